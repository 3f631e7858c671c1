package diagnostics

import (
	"testing"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/parser"
)

func at(line, col int) ast.Span {
	return ast.Span{
		Start: ast.Position{Line: line, Column: col},
		End:   ast.Position{Line: line, Column: col + 1},
	}
}

func TestSortAndDedupeNilAndEmpty(t *testing.T) {
	if got := SortAndDedupe(nil); got != nil {
		t.Fatalf("expected nil for nil input, got %#v", got)
	}
	if got := SortAndDedupe([]Diagnostic{}); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
}

func TestSortAndDedupeOrdersByCanonicalKey(t *testing.T) {
	in := []Diagnostic{
		{Code: "E_B", File: "z.rd", Span: at(2, 3), Message: "z"},
		{Code: "E_A", File: "a.rd", Span: at(2, 3), Message: "b"},
		{Code: "E_A", File: "a.rd", Span: at(1, 1), Message: "b"},
		{Code: "E_A", File: "a.rd", Span: at(2, 1), Message: "b"},
		{Code: "E_A", File: "a.rd", Span: at(2, 1), Message: "a"},
		{Code: "E_A", File: "a.rd", Span: at(2, 1), Message: "a", Related: &Related{File: "r.rd", Span: at(3, 2)}},
	}

	got := SortAndDedupe(in)
	if len(got) != len(in) {
		t.Fatalf("expected no dedupe in this set, got %d entries", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.File > cur.File {
			t.Fatalf("diagnostics are not sorted by file: %+v then %+v", prev, cur)
		}
	}
	if got[0].Line() != 1 || got[0].Column() != 1 {
		t.Fatalf("expected earliest source location first, got %+v", got[0])
	}
	if got[len(got)-1].File != "z.rd" {
		t.Fatalf("expected z.rd to be last, got %+v", got[len(got)-1])
	}
}

func TestSortAndDedupeIgnoresRequestLabel(t *testing.T) {
	reqA := "req-a"
	reqB := "req-b"
	in := []Diagnostic{
		{Code: "E_X", File: "a.rd", Span: at(10, 2), Message: "same", Request: &reqA},
		{Code: "E_X", File: "a.rd", Span: at(10, 2), Message: "same", Request: &reqB},
	}
	got := SortAndDedupe(in)
	if len(got) != 1 {
		t.Fatalf("expected duplicates to collapse regardless of request, got %d", len(got))
	}
	if got[0].Request == nil || *got[0].Request != reqA {
		t.Fatalf("expected first instance to be preserved, got %+v", got[0])
	}
}

func TestSortAndDedupeIncludesRelatedLocationInDeduping(t *testing.T) {
	in := []Diagnostic{
		{Code: "E_X", File: "a.rd", Span: at(10, 2), Message: "same", Related: &Related{File: "r.rd", Span: at(1, 1)}},
		{Code: "E_X", File: "a.rd", Span: at(10, 2), Message: "same", Related: &Related{File: "r.rd", Span: at(1, 2)}},
	}
	got := SortAndDedupe(in)
	if len(got) != 2 {
		t.Fatalf("expected distinct related locations to remain distinct, got %d", len(got))
	}
}

func TestFromFrontEnd(t *testing.T) {
	_, lexErrs, parseErrs := parser.Parse("bad.rd", "let a = \"open\nget {}")
	got := FromFrontEnd(lexErrs, parseErrs)
	if len(got) != 2 {
		t.Fatalf("expected one lex and one parse diagnostic, got %v", got)
	}
	if got[0].Kind != KindLex || got[1].Kind != KindParse {
		t.Fatalf("unexpected kinds %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[0].Line() != 1 || got[0].Column() != 9 || got[0].File != "bad.rd" {
		t.Fatalf("unexpected lex location %s", got[0])
	}
	if got[1].Line() != 2 || got[1].Severity != SeverityError {
		t.Fatalf("unexpected parse diagnostic %s", got[1])
	}
	if !HasErrors(got) {
		t.Fatalf("expected HasErrors to be true")
	}
}

func TestCountAndString(t *testing.T) {
	in := []Diagnostic{
		New(KindCall, CodeEnvMissing, "a.rd", at(3, 4), "missing"),
		Warning(KindAttribute, CodeUnknownAttribute, "a.rd", at(1, 1), "unknown"),
		Warning(KindAttribute, CodeDuplicateAttr, "a.rd", at(2, 1), "dup"),
	}
	errs, warnings := Count(in)
	if errs != 1 || warnings != 2 {
		t.Fatalf("count = %d errors %d warnings", errs, warnings)
	}
	if got := in[0].String(); got != "a.rd:3:4: error: missing" {
		t.Fatalf("String() = %q", got)
	}
	if HasErrors(in[1:]) {
		t.Fatalf("warnings alone must not count as errors")
	}
}
