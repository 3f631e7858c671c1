// Package analysis checks a parsed script without running it and builds the
// symbol table editors use for hover and completion.
package analysis

import (
	"fmt"
	"strings"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/interpreter"
)

// SymbolKind says what declared a symbol.
type SymbolKind string

const (
	SymbolSet     SymbolKind = "set"
	SymbolLet     SymbolKind = "let"
	SymbolRequest SymbolKind = "request"
)

// Symbol is one declared name.
type Symbol struct {
	Name  string     `json:"name"`
	Kind  SymbolKind `json:"kind"`
	Span  ast.Span   `json:"span"`
	Decl  ast.Span   `json:"decl"`
	Order int        `json:"order"`
	// Value is the declared expression of set/let symbols.
	Value ast.Expr `json:"-"`
	// Detail is a short description, the method and url for requests.
	Detail string `json:"detail,omitempty"`
	// Named marks requests carrying a literal @name.
	Named bool `json:"named,omitempty"`
}

// Table holds symbols in declaration order.
type Table struct {
	Symbols []Symbol
}

// Bindings returns the set/let symbols visible at offset, one per name, in
// first-declaration order. Each entry is what Lookup returns for that name.
func (t *Table) Bindings(offset int) []Symbol {
	index := map[string]int{}
	var out []Symbol
	for _, sym := range t.Symbols {
		if sym.Kind == SymbolRequest || sym.Decl.End.Offset > offset {
			continue
		}
		idx, ok := index[sym.Name]
		if !ok {
			index[sym.Name] = len(out)
			out = append(out, sym)
			continue
		}
		// a global never replaces a local
		if sym.Kind == SymbolSet && out[idx].Kind == SymbolLet {
			continue
		}
		out[idx] = sym
	}
	return out
}

// Lookup resolves name as seen at offset. Locals shadow globals.
func (t *Table) Lookup(name string, offset int) (Symbol, bool) {
	var global, local *Symbol
	for i := range t.Symbols {
		sym := &t.Symbols[i]
		if sym.Name != name || sym.Decl.End.Offset > offset {
			continue
		}
		switch sym.Kind {
		case SymbolLet:
			local = sym
		case SymbolSet:
			global = sym
		}
	}
	if local != nil {
		return *local, true
	}
	if global != nil {
		return *global, true
	}
	return Symbol{}, false
}

// Requests returns the request symbols.
func (t *Table) Requests() []Symbol {
	var out []Symbol
	for _, sym := range t.Symbols {
		if sym.Kind == SymbolRequest {
			out = append(out, sym)
		}
	}
	return out
}

// Result is the outcome of Analyze.
type Result struct {
	Table *Table
	Diags []diagnostics.Diagnostic
}

// Analyze checks prog. It never evaluates builtins or sends requests.
func Analyze(prog *ast.Program) Result {
	a := &analyzer{file: prog.File, table: &Table{}}
	a.passSymbols(prog)
	a.passStatements(prog)
	a.passRequestNames()
	return Result{Table: a.table, Diags: diagnostics.SortAndDedupe(a.diags)}
}

type analyzer struct {
	file  string
	table *Table
	diags []diagnostics.Diagnostic
}

func (a *analyzer) passSymbols(prog *ast.Program) {
	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *ast.SetStmt:
			a.add(Symbol{Name: s.Name, Kind: SymbolSet, Span: s.NameSpan, Decl: s.Span, Value: s.Value})
		case *ast.LetStmt:
			a.add(Symbol{Name: s.Name, Kind: SymbolLet, Span: s.NameSpan, Decl: s.Span, Value: s.Value})
		case *ast.RequestStmt:
			detail := s.Method.String() + " " + urlText(s.URL)
			name, span := requestName(s)
			named := name != ""
			if !named {
				name, span = detail, s.MethodSpan
			}
			a.add(Symbol{Name: name, Kind: SymbolRequest, Span: span, Decl: s.Span, Detail: detail, Named: named})
		}
	}
}

func (a *analyzer) add(sym Symbol) {
	sym.Order = len(a.table.Symbols)
	a.table.Symbols = append(a.table.Symbols, sym)
}

func (a *analyzer) passStatements(prog *ast.Program) {
	declared := map[string]bool{}
	baseURL := false
	for _, stmt := range prog.Stmts {
		_, warns := interpreter.CheckAttributes(a.file, stmt)
		a.diags = append(a.diags, warns...)

		switch s := stmt.(type) {
		case *ast.SetStmt:
			if !s.Broken {
				a.checkExpr(s.Value, declared)
				if s.Name == interpreter.BaseURLName {
					a.checkBaseURL(s)
				}
			}
			declared[s.Name] = true
			if s.Name == interpreter.BaseURLName {
				baseURL = true
			}
		case *ast.LetStmt:
			if !s.Broken {
				a.checkExpr(s.Value, declared)
			}
			declared[s.Name] = true
		case *ast.RequestStmt:
			if s.Broken {
				continue
			}
			for _, attr := range s.Attrs {
				for _, arg := range attr.Args {
					a.checkExpr(arg, declared)
				}
			}
			a.checkExpr(s.URL, declared)
			if isPathname(s.URL) && !baseURL {
				d := diagnostics.New(diagnostics.KindTypeMismatch, diagnostics.CodeMissingBaseURL, a.file, ast.SpanOf(s.URL),
					"BASE_URL needs to be set first for requests to work with just pathnames")
				d.Hint = `try writing like set BASE_URL "<api origin>" before this request`
				a.diags = append(a.diags, d)
			}
			if s.Block != nil {
				for _, entry := range s.Block.Entries {
					switch e := entry.(type) {
					case *ast.HeaderEntry:
						a.checkExpr(e.Name, declared)
						a.checkExpr(e.Value, declared)
						if lit, ok := e.Name.(*ast.StringLit); ok && strings.TrimSpace(lit.Value) == "" {
							a.diags = append(a.diags, diagnostics.New(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, a.file, lit.Span, "header name is empty"))
						}
					case *ast.BodyEntry:
						a.checkExpr(e.Value, declared)
					}
				}
			}
		}
	}
}

// checkExpr reports identifiers that are not declared yet and calls that
// name no builtin.
func (a *analyzer) checkExpr(expr ast.Expr, declared map[string]bool) {
	if expr == nil {
		return
	}
	ast.Inspect(expr, func(node any) bool {
		switch n := node.(type) {
		case *ast.IdentExpr:
			if !declared[n.Name] {
				d := diagnostics.New(diagnostics.KindUndefinedIdentifier, diagnostics.CodeUndefinedIdent, a.file, n.Span, "undeclared variable: "+n.Name)
				d.Hint = fmt.Sprintf("declare it first, like let %s = \"...\"", n.Name)
				a.diags = append(a.diags, d)
			}
		case *ast.CallExpr:
			if n.Builtin == ast.BuiltinUnknown && ast.LookupBuiltin(n.Name) == ast.BuiltinUnknown {
				d := diagnostics.New(diagnostics.KindCall, diagnostics.CodeUnknownCall, a.file, n.NameSpan, "attempting to call an undefined function: "+n.Name)
				d.Hint = "env(..), read(..), json(..), and escape_new_lines(..) are the only calls supported"
				a.diags = append(a.diags, d)
			}
		}
		return true
	})
}

func (a *analyzer) checkBaseURL(s *ast.SetStmt) {
	switch v := s.Value.(type) {
	case *ast.NumberLit, *ast.BoolLit, *ast.NullLit, *ast.ArrayLit, *ast.ObjectLit:
		a.diags = append(a.diags, diagnostics.New(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, a.file, ast.SpanOf(v),
			"BASE_URL must be a string"))
	}
}

func (a *analyzer) passRequestNames() {
	first := map[string]Symbol{}
	for _, sym := range a.table.Requests() {
		if !sym.Named {
			continue
		}
		if prev, ok := first[sym.Name]; ok {
			d := diagnostics.Warning(diagnostics.KindAttribute, diagnostics.CodeDuplicateName, a.file, sym.Span,
				fmt.Sprintf("request name %q is already used", sym.Name))
			d.Related = &diagnostics.Related{File: a.file, Span: prev.Span, Message: "first declaration"}
			d.Hint = "rstd run -r selects every request with this name"
			a.diags = append(a.diags, d)
			continue
		}
		first[sym.Name] = sym
	}
}

// requestName returns the literal @name of a request, if any.
func requestName(s *ast.RequestStmt) (string, ast.Span) {
	for _, attr := range s.Attrs {
		if attr.Name != "name" || len(attr.Args) == 0 {
			continue
		}
		if lit, ok := attr.Args[0].(*ast.StringLit); ok {
			return lit.Value, lit.Span
		}
		return "", ast.Span{}
	}
	return "", ast.Span{}
}

func isPathname(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.URLLit:
		return e.Pathname
	case *ast.StringLit:
		return strings.HasPrefix(e.Value, "/")
	case *ast.TemplateLit:
		return len(e.Parts) > 0 && e.Parts[0].IsText() && strings.HasPrefix(e.Parts[0].Text, "/")
	}
	return false
}

func urlText(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.URLLit:
		return e.Raw
	case *ast.StringLit:
		return e.Value
	case *ast.IdentExpr:
		return e.Name
	case *ast.TemplateLit:
		var sb strings.Builder
		for _, part := range e.Parts {
			if part.IsText() {
				sb.WriteString(part.Text)
			} else {
				sb.WriteString("${..}")
			}
		}
		return sb.String()
	case *ast.CallExpr:
		return e.Name + "(..)"
	}
	return "?"
}
