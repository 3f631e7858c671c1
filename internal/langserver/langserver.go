// Package langserver answers editor queries about a script: diagnostics,
// completions, hover docs and an outline. It parses and analyzes, and only
// resolves requests in dry-run mode; nothing here sends a request.
package langserver

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mehditeymorian/rested/internal/analysis"
	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/environ"
	"github.com/mehditeymorian/rested/internal/parser"
)

// Catalog is the view of the env store the editor features need.
// *environ.Store implements it.
type Catalog interface {
	environ.Source
	Path() string
	Selected() string
	Namespaces() []string
	AllNames() []string
	ValuesOf(name string) map[string]string
	MissingFrom(name string) []string
}

// Position is a zero-based line and character (rune) position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open range of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// RangeOf converts an ast span to an editor range.
func RangeOf(span ast.Span) Range {
	return Range{
		Start: Position{Line: max(span.Start.Line-1, 0), Character: max(span.Start.Column-1, 0)},
		End:   Position{Line: max(span.End.Line-1, 0), Character: max(span.End.Column-1, 0)},
	}
}

// Offset returns the byte offset of pos in src, clamped to the source.
func Offset(src string, pos Position) int {
	line, offset := 0, 0
	for line < pos.Line {
		idx := strings.IndexByte(src[offset:], '\n')
		if idx < 0 {
			return len(src)
		}
		offset += idx + 1
		line++
	}
	for ch := 0; ch < pos.Character && offset < len(src); ch++ {
		r, size := utf8.DecodeRuneInString(src[offset:])
		if r == '\n' {
			break
		}
		offset += size
	}
	return offset
}

// Analysis is the result of Analyze.
type Analysis struct {
	Diags   []diagnostics.Diagnostic `json:"diagnostics"`
	Symbols []analysis.Symbol        `json:"symbols"`
}

// Analyze returns every diagnostic an editor should show for src: front-end
// errors, static analysis, and env() variables missing from some namespaces
// of the catalog. cat may be nil.
func Analyze(path, src string, cat Catalog) Analysis {
	prog, lexErrs, parseErrs := parser.Parse(path, src)
	diags := diagnostics.FromFrontEnd(lexErrs, parseErrs)
	res := analysis.Analyze(prog)
	diags = append(diags, res.Diags...)
	if cat != nil {
		diags = append(diags, envWarnings(prog, cat)...)
	}
	return Analysis{Diags: diagnostics.SortAndDedupe(diags), Symbols: res.Table.Symbols}
}

func envWarnings(prog *ast.Program, cat Catalog) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	namespaces := cat.Namespaces()
	ast.Inspect(prog, func(node any) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok || call.Name != ast.BuiltinEnv.Name() || len(call.Args) != 1 {
			return true
		}
		lit, ok := call.Args[0].(*ast.StringLit)
		if !ok {
			return true
		}
		if len(cat.ValuesOf(lit.Value)) == 0 {
			if len(namespaces) > 0 {
				d := diagnostics.Warning(diagnostics.KindCall, diagnostics.CodeMissingEnv, prog.File, lit.Span,
					fmt.Sprintf("variable '%s' is not defined in %s", lit.Value, cat.Path()))
				d.Hint = "it has to come from the process environment"
				out = append(out, d)
			}
			return true
		}
		if missing := cat.MissingFrom(lit.Value); len(missing) > 0 {
			out = append(out, diagnostics.Warning(diagnostics.KindCall, diagnostics.CodeMissingEnv, prog.File, lit.Span,
				fmt.Sprintf("variable '%s' missing from some namespaces: %s", lit.Value, strings.Join(missing, ", "))))
		}
		return true
	})
	return out
}
