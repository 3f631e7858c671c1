package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
)

func span(line, startCol, endCol int) ast.Span {
	return ast.Span{
		Start: ast.Position{Line: line, Column: startCol},
		End:   ast.Position{Line: line, Column: endCol},
	}
}

func TestDiagnosticsPlain(t *testing.T) {
	src := "let token = env(\"TOKEN\")\nget /items\n"
	d := diagnostics.New(diagnostics.KindTypeMismatch, diagnostics.CodeMissingBaseURL, "api.rd", span(2, 5, 11),
		"BASE_URL needs to be set first for requests to work with just pathnames")
	d.Hint = "set BASE_URL first"
	name := "list"
	d.Request = &name

	var buf bytes.Buffer
	New(&buf, ColorNever).Diagnostics([]diagnostics.Diagnostic{d}, map[string]string{"api.rd": src})

	want := strings.Join([]string{
		"error[E_MISSING_BASE_URL]: BASE_URL needs to be set first for requests to work with just pathnames",
		" --> api.rd:2:5",
		"  |",
		"2 | get /items",
		"  |     ^^^^^^",
		"  = hint: set BASE_URL first",
		"  = request: list",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDiagnosticsWithoutSource(t *testing.T) {
	d := diagnostics.Warning(diagnostics.KindAttribute, diagnostics.CodeDuplicateName, "api.rd", span(12, 7, 12), `request name "a" is already used`)
	d.Related = &diagnostics.Related{File: "api.rd", Span: span(3, 7, 10), Message: "first declaration"}

	var buf bytes.Buffer
	New(&buf, ColorNever).Diagnostics([]diagnostics.Diagnostic{d}, nil)
	got := buf.String()
	if !strings.HasPrefix(got, "warning[W_DUPLICATE_NAME]:") {
		t.Fatalf("unexpected header %q", got)
	}
	if strings.Contains(got, "^") {
		t.Fatalf("no excerpt expected without a source:\n%s", got)
	}
	if !strings.Contains(got, "   = related: api.rd:3:7 first declaration") {
		t.Fatalf("missing related line:\n%s", got)
	}
}

func TestCaretHandlesWideRunesAndTabs(t *testing.T) {
	pad, width := caret("\tlet 名前 = x", 6, 8, true)
	if pad != "\t    " || width != 4 {
		t.Fatalf("caret = %q, %d", pad, width)
	}
	pad, width = caret("abc", 4, 4, true)
	if pad != "   " || width != 1 {
		t.Fatalf("caret at end of line = %q, %d", pad, width)
	}
	_, width = caret("let a = {", 9, 2, false)
	if width != 1 {
		t.Fatalf("multi-line spans mark to the end of the first line, got %d", width)
	}
}

func TestSummary(t *testing.T) {
	diags := []diagnostics.Diagnostic{
		diagnostics.New(diagnostics.KindParse, "E", "a.rd", span(1, 1, 2), "x"),
		diagnostics.New(diagnostics.KindParse, "E", "a.rd", span(2, 1, 2), "y"),
		diagnostics.Warning(diagnostics.KindAttribute, "W", "a.rd", span(3, 1, 2), "z"),
	}
	var buf bytes.Buffer
	p := New(&buf, ColorNever)
	p.Summary(diags)
	if got := buf.String(); got != "2 errors, 1 warning\n" {
		t.Fatalf("unexpected summary %q", got)
	}
	buf.Reset()
	p.Summary(nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no summary, got %q", buf.String())
	}
}

func TestHighlightJSON(t *testing.T) {
	body := "{\n  \"a\": 1\n}"

	var plain bytes.Buffer
	if err := New(&bytes.Buffer{}, ColorNever).HighlightJSON(&plain, body); err != nil {
		t.Fatal(err)
	}
	if plain.String() != body {
		t.Fatalf("plain output changed the body: %q", plain.String())
	}

	var colored bytes.Buffer
	p := New(&bytes.Buffer{}, ColorAlways)
	if !p.Color() {
		t.Fatal("always mode must enable colors")
	}
	if err := p.HighlightJSON(&colored, body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(colored.String(), "\x1b[") || !strings.Contains(colored.String(), `"a"`) {
		t.Fatalf("expected escape sequences around the body, got %q", colored.String())
	}
}
