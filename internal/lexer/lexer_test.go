package lexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func kindsOf(tokens []Token) []Kind {
	out := make([]Kind, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Kind)
	}
	return out
}

func equalKinds(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLexerValidFiles(t *testing.T) {
	root := filepath.Join("..", "..", "testdata", "lexer")
	paths, err := filepath.Glob(filepath.Join(root, "valid", "*.rd"))
	if err != nil {
		t.Fatalf("glob valid: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no valid lexer fixtures found")
	}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		tokens, errs := Lex(path, string(src))
		if len(errs) > 0 {
			t.Fatalf("expected no errors for %s, got %v", path, errs)
		}
		for _, tok := range tokens {
			if tok.Kind == ILLEGAL {
				t.Fatalf("unexpected ILLEGAL token %q in %s", tok.Lit, path)
			}
		}
	}
}

func TestLexerInvalidFiles(t *testing.T) {
	root := filepath.Join("..", "..", "testdata", "lexer")
	paths, err := filepath.Glob(filepath.Join(root, "invalid", "*.rd"))
	if err != nil {
		t.Fatalf("glob invalid: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no invalid lexer fixtures found")
	}

	expected := map[string]string{
		"unterminated-string.rd":   ErrUnterminatedString,
		"unterminated-template.rd": ErrUnterminatedTemplate,
		"unexpected-char.rd":       ErrUnexpectedChar,
		"bad-escape.rd":            ErrBadEscape,
	}

	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		_, errs := Lex(path, string(src))
		if len(errs) == 0 {
			t.Fatalf("expected errors for %s", path)
		}
		if code, ok := expected[filepath.Base(path)]; ok {
			found := false
			for _, le := range errs {
				if le.Code == code {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected error code %s for %s, got %v", code, path, errs)
			}
		}
	}
}

func TestLexerKinds(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []Kind
	}{
		{
			name: "set base url",
			src:  `set BASE_URL "http://localhost:8080/api"`,
			want: []Kind{KW_SET, IDENT, STRING, EOF},
		},
		{
			name: "request with block",
			src:  "post /users {\n  header \"Content-Type\" \"application/json\"\n  body json({ a: 1 })\n}",
			want: []Kind{
				KW_POST, PATH, LBRACE,
				KW_HEADER, STRING, STRING,
				KW_BODY, IDENT, LPAREN, LBRACE, IDENT, COLON, NUMBER, RBRACE, RPAREN,
				RBRACE, EOF,
			},
		},
		{
			name: "absolute url",
			src:  "get https://example.com/a?b=c#frag",
			want: []Kind{KW_GET, URL, EOF},
		},
		{
			name: "attributes",
			src:  "@log(\"out/a.json\")\n@dbg\ndelete /x",
			want: []Kind{AT, IDENT, LPAREN, STRING, RPAREN, AT, IDENT, KW_DELETE, PATH, EOF},
		},
		{
			name: "let with dotted ident and negative number",
			src:  "let user.id = -12.5",
			want: []Kind{KW_LET, IDENT, ASSIGN, NUMBER, EOF},
		},
		{
			name: "comments and shebang",
			src:  "#!/usr/bin/env rstd\n// hello\nget /",
			want: []Kind{COMMENT, COMMENT, KW_GET, PATH, EOF},
		},
		{
			name: "plain template",
			src:  "let a = `hello world`",
			want: []Kind{KW_LET, IDENT, ASSIGN, TEMPLATE, EOF},
		},
		{
			name: "template interpolation",
			src:  "`a ${b} c ${env(\"d\")} e`",
			want: []Kind{TEMPLATE_HEAD, IDENT, TEMPLATE_MIDDLE, IDENT, LPAREN, STRING, RPAREN, TEMPLATE_TAIL, EOF},
		},
		{
			name: "object inside interpolation",
			src:  "`x ${json({ a: { b: 1 } })} y`",
			want: []Kind{
				TEMPLATE_HEAD, IDENT, LPAREN, LBRACE, IDENT, COLON, LBRACE, IDENT, COLON, NUMBER, RBRACE, RBRACE, RPAREN,
				TEMPLATE_TAIL, EOF,
			},
		},
		{
			name: "nested template",
			src:  "`a ${`b ${c}`} d`",
			want: []Kind{TEMPLATE_HEAD, TEMPLATE_HEAD, IDENT, TEMPLATE_TAIL, TEMPLATE_TAIL, EOF},
		},
		{
			name: "keywords",
			src:  "true false null header body put patch",
			want: []Kind{KW_TRUE, KW_FALSE, KW_NULL, KW_HEADER, KW_BODY, KW_PUT, KW_PATCH, EOF},
		},
		{
			name: "array",
			src:  `[1, "two", true]`,
			want: []Kind{LBRACK, NUMBER, COMMA, STRING, COMMA, KW_TRUE, RBRACK, EOF},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, errs := Lex("test.rd", tc.src)
			if len(errs) > 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			got := kindsOf(tokens)
			if !equalKinds(got, tc.want) {
				t.Fatalf("kinds mismatch\n got: %v\nwant: %v", got, tc.want)
			}
		})
	}
}

func TestLexerDepth(t *testing.T) {
	tokens, errs := Lex("test.rd", "get /a {\n  body { b: [1] }\n}")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := map[string]int{}
	got := map[string][]int{}
	for _, tok := range tokens {
		got[tok.Lit] = append(got[tok.Lit], tok.Depth)
	}
	want["get"] = 0
	want["body"] = 1
	want["b"] = 2
	want["1"] = 3
	for lit, depth := range want {
		if len(got[lit]) == 0 || got[lit][0] != depth {
			t.Fatalf("depth of %q = %v, want %d", lit, got[lit], depth)
		}
	}
	braces := got["}"]
	if len(braces) != 2 || braces[0] != 1 || braces[1] != 0 {
		t.Fatalf("closing brace depths = %v, want [1 0]", braces)
	}
}

func TestLexerTemplateDepth(t *testing.T) {
	tokens, _ := Lex("test.rd", "let a = `x ${b} y`")
	var head, ident, tail Token
	for _, tok := range tokens {
		switch tok.Kind {
		case TEMPLATE_HEAD:
			head = tok
		case TEMPLATE_TAIL:
			tail = tok
		case IDENT:
			if tok.Lit == "b" {
				ident = tok
			}
		}
	}
	if head.Depth != 0 || tail.Depth != 0 || ident.Depth != 1 {
		t.Fatalf("depths head=%d ident=%d tail=%d, want 0 1 0", head.Depth, ident.Depth, tail.Depth)
	}
}

func TestLexerSpans(t *testing.T) {
	tokens, _ := Lex("test.rd", "let a = 1\nget /x")
	get := tokens[4]
	if get.Kind != KW_GET {
		t.Fatalf("expected KW_GET, got %s", get.Kind)
	}
	if get.Span.Start.Line != 2 || get.Span.Start.Column != 1 || get.Span.Start.Offset != 10 {
		t.Fatalf("unexpected get span: %+v", get.Span)
	}
	path := tokens[5]
	if path.Span.End.Offset != 16 || path.Span.End.Column != 7 {
		t.Fatalf("unexpected path span end: %+v", path.Span.End)
	}
}

func TestLexerRecoversAfterIllegal(t *testing.T) {
	tokens, errs := Lex("test.rd", "let a = ~~~ 1\nget /ok")
	if len(errs) != 1 || errs[0].Code != ErrUnexpectedChar {
		t.Fatalf("expected one unexpected char error, got %v", errs)
	}
	want := []Kind{KW_LET, IDENT, ASSIGN, ILLEGAL, NUMBER, KW_GET, PATH, EOF}
	if got := kindsOf(tokens); !equalKinds(got, want) {
		t.Fatalf("kinds mismatch\n got: %v\nwant: %v", got, want)
	}
	if errs[0].Span.Start.Column != 9 {
		t.Fatalf("error column = %d, want 9", errs[0].Span.Start.Column)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tokens, errs := Lex("test.rd", "let a = \"abc\nget /ok")
	if len(errs) != 1 || errs[0].Code != ErrUnterminatedString {
		t.Fatalf("expected unterminated string error, got %v", errs)
	}
	want := []Kind{KW_LET, IDENT, ASSIGN, ILLEGAL, KW_GET, PATH, EOF}
	if got := kindsOf(tokens); !equalKinds(got, want) {
		t.Fatalf("kinds mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestLexerUnterminatedInterpolation(t *testing.T) {
	_, errs := Lex("test.rd", "let a = `x ${b")
	if len(errs) != 1 || errs[0].Code != ErrUnterminatedTemplate {
		t.Fatalf("expected unterminated template error, got %v", errs)
	}
	if errs[0].Span.Start.Column != 9 {
		t.Fatalf("error column = %d, want 9", errs[0].Span.Start.Column)
	}
}

func TestDecodeString(t *testing.T) {
	cases := map[string]string{
		`"plain"`:      "plain",
		`"a\nb"`:       "a\nb",
		`"tab\there"`:  "tab\there",
		`"q\"q"`:       `q"q`,
		`"back\\"`:     `back\`,
		`"keep\q"`:     `keep\q`,
		`"cr\r"`:       "cr\r",
		`"unicode é"`:  "unicode é",
		`""`:           "",
		`"multi\n\t."`: "multi\n\t.",
	}
	for raw, want := range cases {
		if got := DecodeString(raw); got != want {
			t.Fatalf("DecodeString(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestTemplateText(t *testing.T) {
	tokens, errs := Lex("test.rd", "`a \\` b ${x} c \\${d} e`")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if tokens[0].Kind != TEMPLATE_HEAD {
		t.Fatalf("expected head, got %s", tokens[0].Kind)
	}
	if got := TemplateText(tokens[0]); got != "a ` b " {
		t.Fatalf("head text = %q", got)
	}
	if tokens[2].Kind != TEMPLATE_TAIL {
		t.Fatalf("expected tail, got %s", tokens[2].Kind)
	}
	if got := TemplateText(tokens[2]); got != " c ${d} e" {
		t.Fatalf("tail text = %q", got)
	}
}

// Joining every raw token text with newlines must lex back to the same
// kind sequence.
func TestLexerRelexIsStable(t *testing.T) {
	root := filepath.Join("..", "..", "testdata", "lexer", "valid")
	paths, err := filepath.Glob(filepath.Join(root, "*.rd"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		first, _ := Lex(path, string(src))
		lits := make([]string, 0, len(first))
		for _, tok := range first {
			if tok.Kind != EOF {
				lits = append(lits, tok.Lit)
			}
		}
		second, errs := Lex(path, strings.Join(lits, "\n"))
		if len(errs) > 0 {
			t.Fatalf("relex errors for %s: %v", path, errs)
		}
		if !equalKinds(kindsOf(first), kindsOf(second)) {
			t.Fatalf("relex kinds differ for %s\nfirst:  %v\nsecond: %v", path, kindsOf(first), kindsOf(second))
		}
	}
}
