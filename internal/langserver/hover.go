package langserver

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mehditeymorian/rested/internal/analysis"
	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/environ"
	"github.com/mehditeymorian/rested/internal/interpreter"
	"github.com/mehditeymorian/rested/internal/parser"
)

type builtinDoc struct {
	summary   string
	signature string
}

var builtinDocs = map[ast.Builtin]builtinDoc{
	ast.BuiltinEnv: {
		summary: "Read a variable of the selected namespace from `" + environ.FileName + "`.\n" +
			"The file in the workspace is preferred over the one in the home directory; the process environment is consulted last.",
		signature: "(builtin) env(variable: string): string",
	},
	ast.BuiltinRead: {
		summary:   "Read file contents into a string. Relative paths start at the script's directory.",
		signature: "(builtin) read(filename: string): string",
	},
	ast.BuiltinJSON: {
		summary:   "Convert any value to a compact json string. A string argument is parsed and re-serialized.",
		signature: "(builtin) json(value: any): string",
	},
	ast.BuiltinEscapeNewLines: {
		summary:   "Escape newline, carriage return and tab characters in a string.",
		signature: "(builtin) escape_new_lines(value: string): string",
	},
}

// Hover is the markdown documentation for the node under the cursor.
type Hover struct {
	Contents string `json:"contents"`
	Range    Range  `json:"range"`
}

// HoverAt documents the builtin, attribute, identifier, env variable or
// request URL under pos. Request URLs are resolved in dry-run mode with the
// catalog as the env source. cat may be nil.
func HoverAt(path, src string, pos Position, cat Catalog) (Hover, bool) {
	offset := Offset(src, pos)
	prog, _, _ := parser.Parse(path, src)

	var (
		found   Hover
		ok      bool
		envCall bool
	)
	ast.Inspect(prog, func(node any) bool {
		if ok {
			return false
		}
		span := ast.SpanOf(node)
		if _, isProg := node.(*ast.Program); !isProg && !span.Contains(offset) {
			return false
		}
		switch n := node.(type) {
		case *ast.CallExpr:
			if n.NameSpan.Contains(offset) {
				found, ok = hoverBuiltin(n)
				return false
			}
			envCall = n.Name == ast.BuiltinEnv.Name()
		case *ast.Attribute:
			if n.NameSpan.Contains(offset) {
				found, ok = hoverAttribute(n)
				return false
			}
		case *ast.IdentExpr:
			found, ok = hoverIdent(src, prog, n, offset)
			return false
		case *ast.StringLit:
			if envCall && cat != nil {
				found, ok = hoverEnv(n, cat)
			}
			return false
		case *ast.RequestStmt:
			if urlSpan := ast.SpanOf(n.URL); urlSpan.Contains(offset) {
				if _, isLit := n.URL.(*ast.URLLit); isLit {
					found, ok = hoverURL(path, prog, n, cat)
					return false
				}
			}
		}
		return true
	})
	return found, ok
}

func hoverBuiltin(call *ast.CallExpr) (Hover, bool) {
	b := ast.LookupBuiltin(call.Name)
	doc, known := builtinDocs[b]
	if !known {
		return Hover{}, false
	}
	return Hover{
		Contents: doc.summary + "\n```typescript\n" + doc.signature + "\n```",
		Range:    RangeOf(call.NameSpan),
	}, true
}

func hoverAttribute(attr *ast.Attribute) (Hover, bool) {
	spec, known := interpreter.LookupAttribute(attr.Name)
	if !known {
		return Hover{}, false
	}
	return Hover{
		Contents: spec.Doc + "\n```rd\n" + spec.Example + "\n```",
		Range:    RangeOf(attr.NameSpan),
	}, true
}

func hoverIdent(src string, prog *ast.Program, ident *ast.IdentExpr, offset int) (Hover, bool) {
	table := analysis.Analyze(prog).Table
	sym, found := table.Lookup(ident.Name, offset)
	if !found {
		return Hover{}, false
	}
	value := "..."
	if span := ast.SpanOf(sym.Value); !span.IsZero() && span.End.Offset <= len(src) {
		value = src[span.Start.Offset:span.End.Offset]
	}
	decl := fmt.Sprintf("let %s = %s", sym.Name, value)
	if sym.Kind == analysis.SymbolSet {
		decl = fmt.Sprintf("set %s %s", sym.Name, value)
	}
	return Hover{
		Contents: "```rd\n" + decl + "\n```\n" + fmt.Sprintf("declared on line %d", sym.Decl.Start.Line),
		Range:    RangeOf(ident.Span),
	}, true
}

func hoverEnv(lit *ast.StringLit, cat Catalog) (Hover, bool) {
	values := cat.ValuesOf(lit.Value)
	if len(values) == 0 {
		return Hover{}, false
	}
	namespaces := make([]string, 0, len(values))
	for ns := range values {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var sb strings.Builder
	if current, ok := values[cat.Selected()]; ok {
		fmt.Fprintf(&sb, "```json\n%q\n```\n", current)
	}
	sb.WriteString("Resolved from env file:\n```sh\n")
	sb.WriteString(cat.Path())
	sb.WriteString("\n```\n```js\n")
	for _, ns := range namespaces {
		fmt.Fprintf(&sb, "%s: %q", ns, values[ns])
		if ns == cat.Selected() {
			sb.WriteString(" (current)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return Hover{Contents: sb.String(), Range: RangeOf(lit.Span)}, true
}

func hoverURL(path string, prog *ast.Program, req *ast.RequestStmt, cat Catalog) (Hover, bool) {
	opt := interpreter.Options{DryRun: true, ScriptDir: filepath.Dir(path)}
	if cat != nil {
		opt.Env = environ.Chain{cat, environ.NewProcess()}
	}
	res := interpreter.Run(context.Background(), prog, opt)
	for _, r := range res.Requests {
		if r.Span != req.Span || r.Request == nil {
			continue
		}
		return Hover{
			Contents: r.Request.Method + " " + r.Request.URL,
			Range:    RangeOf(ast.SpanOf(req.URL)),
		}, true
	}
	return Hover{}, false
}
