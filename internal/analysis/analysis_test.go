package analysis

import (
	"strings"
	"testing"

	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/parser"
)

func analyze(t *testing.T, src string) Result {
	t.Helper()
	prog, lexErrs, parseErrs := parser.Parse("test.rd", src)
	if len(lexErrs)+len(parseErrs) > 0 {
		t.Fatalf("unexpected front-end errors: %v %v", lexErrs, parseErrs)
	}
	return Analyze(prog)
}

func codes(diags []diagnostics.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestAnalyzeCleanScript(t *testing.T) {
	res := analyze(t, `
set BASE_URL "http://localhost:8080"
let token = env("TOKEN")

@name("list")
get /items {
  header "Authorization" `+"`Bearer ${token}`"+`
}
`)
	if len(res.Diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", res.Diags)
	}
	if got := len(res.Table.Symbols); got != 3 {
		t.Fatalf("expected 3 symbols, got %d", got)
	}
	reqs := res.Table.Requests()
	if len(reqs) != 1 || reqs[0].Name != "list" || !reqs[0].Named || reqs[0].Detail != "GET /items" {
		t.Fatalf("unexpected request symbols %+v", reqs)
	}
}

func TestAnalyzeDiagnostics(t *testing.T) {
	cases := []struct {
		name string
		src  string
		code string
		msg  string
	}{
		{name: "undeclared", src: "get `https://x.test/${id}`\nlet id = 1\n", code: diagnostics.CodeUndefinedIdent, msg: "undeclared variable: id"},
		{name: "pathname-before-base", src: "get /items\nset BASE_URL \"http://x.test\"\n", code: diagnostics.CodeMissingBaseURL, msg: "BASE_URL needs to be set first"},
		{name: "unknown-call", src: "let a = upper(\"x\")\n", code: diagnostics.CodeUnknownCall, msg: "undefined function: upper"},
		{name: "base-url-number", src: "set BASE_URL 42\n", code: diagnostics.CodeTypeMismatch, msg: "BASE_URL must be a string"},
		{name: "empty-header", src: "get https://x.test {\n  header \"\" \"v\"\n}\n", code: diagnostics.CodeTypeMismatch, msg: "header name is empty"},
		{name: "unknown-attribute", src: "@retry\nget https://x.test\n", code: diagnostics.CodeUnknownAttribute, msg: "unsupported attribute: @retry"},
		{name: "attribute-on-let", src: "@log\nlet a = 1\n", code: diagnostics.CodeIgnoredAttribute, msg: "no effect on let statements"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, _, parseErrs := parser.Parse("test.rd", tc.src)
			if len(parseErrs) > 0 {
				t.Fatalf("unexpected parse errors %v", parseErrs)
			}
			res := Analyze(prog)
			for _, d := range res.Diags {
				if d.Code == tc.code && strings.Contains(d.Message, tc.msg) {
					return
				}
			}
			t.Fatalf("expected %s %q, got %v", tc.code, tc.msg, res.Diags)
		})
	}
}

func TestAnalyzeUndeclaredReportsOnlyUsesBeforeDeclaration(t *testing.T) {
	res := analyze(t, "let a = b\nlet b = 1\nlet c = b\n")
	if got := codes(res.Diags); len(got) != 1 || got[0] != diagnostics.CodeUndefinedIdent {
		t.Fatalf("expected one undefined identifier, got %v", res.Diags)
	}
	if res.Diags[0].Line() != 1 {
		t.Fatalf("expected the diagnostic on line 1, got %d", res.Diags[0].Line())
	}
}

func TestAnalyzeDuplicateRequestNames(t *testing.T) {
	res := analyze(t, `
@name("a")
get https://x.test/1

@name("a")
get https://x.test/2

get https://x.test/1
get https://x.test/1
`)
	if len(res.Diags) != 1 {
		t.Fatalf("expected one diagnostic, got %v", res.Diags)
	}
	d := res.Diags[0]
	if d.Code != diagnostics.CodeDuplicateName || d.Severity != diagnostics.SeverityWarning {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if d.Related == nil || d.Related.Message != "first declaration" || d.Related.Span.Start.Line != 2 {
		t.Fatalf("expected a related pointer to the first @name, got %+v", d.Related)
	}
}

func TestTableLookupAndBindings(t *testing.T) {
	src := "set host \"a\"\nlet host = \"b\"\nlet x = 1\nlet x = 2\n"
	res := analyze(t, src)

	sym, ok := res.Table.Lookup("host", len(src))
	if !ok || sym.Kind != SymbolLet {
		t.Fatalf("expected the let to shadow the set, got %+v", sym)
	}
	sym, ok = res.Table.Lookup("host", strings.Index(src, "let host"))
	if !ok || sym.Kind != SymbolSet {
		t.Fatalf("expected the set before the let, got %+v", sym)
	}
	if _, ok := res.Table.Lookup("x", 0); ok {
		t.Fatal("x must not be visible before its declaration")
	}

	bindings := res.Table.Bindings(len(src))
	if len(bindings) != 2 {
		t.Fatalf("expected host and x, got %+v", bindings)
	}
	if bindings[1].Name != "x" || bindings[1].Decl.Start.Line != 4 {
		t.Fatalf("expected the latest x, got %+v", bindings[1])
	}
}

func TestBindingsAgreeWithLookup(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind SymbolKind
		line int
	}{
		{name: "set after let", src: "let host = \"b\"\nset host \"a\"\n", kind: SymbolLet, line: 1},
		{name: "let after set", src: "set host \"a\"\nlet host = \"b\"\n", kind: SymbolLet, line: 2},
		{name: "set redeclared", src: "set host \"a\"\nset host \"b\"\n", kind: SymbolSet, line: 2},
		{name: "let between sets", src: "set host \"a\"\nlet host = \"b\"\nset host \"c\"\n", kind: SymbolLet, line: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := analyze(t, tc.src)
			bindings := res.Table.Bindings(len(tc.src))
			if len(bindings) != 1 {
				t.Fatalf("expected one binding, got %+v", bindings)
			}
			got := bindings[0]
			if got.Kind != tc.kind || got.Decl.Start.Line != tc.line {
				t.Fatalf("expected %s from line %d, got %+v", tc.kind, tc.line, got)
			}
			want, ok := res.Table.Lookup("host", len(tc.src))
			if !ok || want.Order != got.Order {
				t.Fatalf("bindings and lookup disagree: %+v vs %+v", got, want)
			}
		})
	}
}
