package langserver

import (
	"strings"
	"testing"

	"github.com/mehditeymorian/rested/internal/analysis"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/environ"
)

func catalog(t *testing.T) *environ.Store {
	t.Helper()
	store := environ.New("/work/" + environ.FileName)
	if err := store.Load([]byte(`{
  "default": {"TOKEN": "abc", "HOST": "localhost"},
  "prod": {"TOKEN": "xyz"}
}`)); err != nil {
		t.Fatal(err)
	}
	return store
}

// at returns the position of the first "|" in src and src without it.
func at(t *testing.T, src string) (string, Position) {
	t.Helper()
	idx := strings.Index(src, "|")
	if idx < 0 {
		t.Fatal("missing cursor marker")
	}
	before := src[:idx]
	line := strings.Count(before, "\n")
	col := len([]rune(before[strings.LastIndex(before, "\n")+1:]))
	return before + src[idx+1:], Position{Line: line, Character: col}
}

func labels(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestOffset(t *testing.T) {
	src := "let a = 1\nlet ü = 2\n"
	cases := []struct {
		pos  Position
		want int
	}{
		{Position{0, 0}, 0},
		{Position{0, 4}, 4},
		{Position{1, 5}, 16},
		{Position{1, 99}, 20},
		{Position{9, 0}, len(src)},
	}
	for _, tc := range cases {
		if got := Offset(src, tc.pos); got != tc.want {
			t.Fatalf("Offset(%+v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestAnalyzeWarnsAboutPartialEnvVars(t *testing.T) {
	src := "let a = env(\"TOKEN\")\nlet b = env(\"HOST\")\nlet c = env(\"NOWHERE\")\n"
	res := Analyze("test.rd", src, catalog(t))

	var msgs []string
	for _, d := range res.Diags {
		if d.Code == diagnostics.CodeMissingEnv {
			msgs = append(msgs, d.Message)
		}
	}
	if len(msgs) != 2 {
		t.Fatalf("expected two env warnings, got %v", res.Diags)
	}
	if msgs[0] != "variable 'HOST' missing from some namespaces: prod" {
		t.Fatalf("unexpected message %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "'NOWHERE' is not defined") {
		t.Fatalf("unexpected message %q", msgs[1])
	}
	if len(res.Symbols) != 3 {
		t.Fatalf("expected 3 symbols, got %+v", res.Symbols)
	}
}

func TestAnalyzeMergesFrontEndAndSemanticDiagnostics(t *testing.T) {
	res := Analyze("test.rd", "get {}\nlet a = b\n", nil)
	var parse, undefined bool
	for _, d := range res.Diags {
		parse = parse || d.Kind == diagnostics.KindParse
		undefined = undefined || d.Code == diagnostics.CodeUndefinedIdent
	}
	if !parse || !undefined {
		t.Fatalf("expected a parse error and an undefined identifier, got %v", res.Diags)
	}
}

func TestComplete(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		want    []string
		notWant []string
	}{
		{name: "empty", src: "|", want: []string{"let", "set", "get", "delete"}},
		{name: "next-statement", src: "get /a\n|", want: []string{"post", "let"}},
		{name: "partial-keyword", src: "get /a\npo|", want: []string{"post"}},
		{name: "attribute", src: "@|\nget /a", want: []string{"log", "log(..)", "name(..)", "skip", "dbg"}, notWant: []string{"name"}},
		{name: "set-name", src: "set |", want: []string{"BASE_URL"}},
		{name: "block-entry", src: "get /a {\n  |\n}", want: []string{"header", "body"}},
		{name: "after-header", src: "get /a {\n  header \"A\" \"b\"\n  |\n}", want: []string{"header", "body"}},
		{name: "header-name", src: "get /a {\n  header |\n}", want: []string{"Authorization", "Content-Type"}},
		{name: "header-value", src: "let token = \"t\"\nget /a {\n  header \"Authorization\" |\n}", want: []string{"token", "env(..)"}},
		{name: "body", src: "let payload = 1\nget /a {\n  body |\n}", want: []string{"payload", "json(..)"}},
		{name: "env-var", src: "let a = env(\"|\")", want: []string{"TOKEN", "HOST"}},
		{name: "env-var-unterminated", src: "let a = env(\"TO|", want: []string{"TOKEN"}},
		{name: "declared-after", src: "let a = |\nlet later = 1", want: []string{"read(..)"}, notWant: []string{"later", "a"}},
		{name: "interpolation", src: "let id = 1\nget `/a/${|}`", want: []string{"id"}},
		{name: "comment", src: "// get |", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, pos := at(t, tc.src)
			got := labels(Complete("test.rd", src, pos, catalog(t)))
			if tc.want == nil && len(got) != 0 {
				t.Fatalf("expected no items, got %v", got)
			}
			for _, w := range tc.want {
				if !contains(got, w) {
					t.Fatalf("expected %q in %v", w, got)
				}
			}
			for _, w := range tc.notWant {
				if contains(got, w) {
					t.Fatalf("did not expect %q in %v", w, got)
				}
			}
		})
	}
}

func TestCompleteHeaderCatalog(t *testing.T) {
	src, pos := at(t, "get /a {\n  header |\n}")
	items := Complete("test.rd", src, pos, nil)
	if len(items) != len(HeaderNames) {
		t.Fatalf("expected %d header names, got %d", len(HeaderNames), len(items))
	}
	if items[0].InsertText != `"Accept"` {
		t.Fatalf("header names insert quoted strings, got %q", items[0].InsertText)
	}
}

func TestHover(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []string
	}{
		{name: "builtin", src: "let a = re|ad(\"x\")", want: []string{"(builtin) read(filename: string): string"}},
		{name: "attribute", src: "@lo|g\nget https://x.test", want: []string{"Print the response body", `@log("responses/user.json")`}},
		{name: "let", src: "let token = \"abc\"\nget https://x.test {\n  header \"A\" to|ken\n}", want: []string{`let token = "abc"`, "declared on line 1"}},
		{name: "set", src: "set host \"h\"\nlet a = ho|st", want: []string{`set host "h"`}},
		{name: "env", src: "let a = env(\"TOK|EN\")", want: []string{`default: "abc" (current)`, `prod: "xyz"`, "/work/.env.rd.json"}},
		{name: "url", src: "set BASE_URL \"http://localhost:8080/v1\"\nget /us|ers", want: []string{"GET http://localhost:8080/v1/users"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, pos := at(t, tc.src)
			h, ok := HoverAt("test.rd", src, pos, catalog(t))
			if !ok {
				t.Fatal("expected hover docs")
			}
			for _, w := range tc.want {
				if !strings.Contains(h.Contents, w) {
					t.Fatalf("expected %q in %q", w, h.Contents)
				}
			}
		})
	}
}

func TestHoverNothing(t *testing.T) {
	src, pos := at(t, "let a = \"pl|ain\"")
	if h, ok := HoverAt("test.rd", src, pos, catalog(t)); ok {
		t.Fatalf("expected no hover, got %+v", h)
	}
}

func TestDocumentSymbols(t *testing.T) {
	src := "set BASE_URL \"http://x.test\"\nlet a = 1\n\n@name(\"users\")\nget /users\npost /items\n"
	syms := DocumentSymbols("test.rd", src)
	if len(syms) != 4 {
		t.Fatalf("expected 4 symbols, got %+v", syms)
	}
	want := []struct {
		name string
		kind analysis.SymbolKind
	}{
		{"BASE_URL", analysis.SymbolSet},
		{"a", analysis.SymbolLet},
		{"users", analysis.SymbolRequest},
		{"POST /items", analysis.SymbolRequest},
	}
	for i, w := range want {
		if syms[i].Name != w.name || syms[i].Kind != w.kind {
			t.Fatalf("symbol %d = %+v, want %s %s", i, syms[i], w.kind, w.name)
		}
	}
	if syms[2].Range.Start.Line != 3 || syms[2].SelectionRange.Start.Line != 3 {
		t.Fatalf("unexpected ranges %+v", syms[2])
	}
}
