package lexer

import "strconv"

// Kind represents a token kind.
type Kind int

const (
	// special
	EOF Kind = iota
	ILLEGAL
	COMMENT

	// literals
	IDENT
	STRING
	NUMBER
	URL
	PATH

	// template strings
	TEMPLATE        // `text`
	TEMPLATE_HEAD   // `text${
	TEMPLATE_MIDDLE // }text${
	TEMPLATE_TAIL   // }text`

	// keywords
	KW_SET
	KW_LET
	KW_HEADER
	KW_BODY
	KW_TRUE
	KW_FALSE
	KW_NULL

	// http methods
	KW_GET
	KW_POST
	KW_PUT
	KW_PATCH
	KW_DELETE

	// punct
	AT     // @
	ASSIGN // =
	COLON  // :
	COMMA  // ,
	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }
	LBRACK // [
	RBRACK // ]
)

var kindNames = [...]string{
	EOF:             "EOF",
	ILLEGAL:         "ILLEGAL",
	COMMENT:         "COMMENT",
	IDENT:           "IDENT",
	STRING:          "STRING",
	NUMBER:          "NUMBER",
	URL:             "URL",
	PATH:            "PATH",
	TEMPLATE:        "TEMPLATE",
	TEMPLATE_HEAD:   "TEMPLATE_HEAD",
	TEMPLATE_MIDDLE: "TEMPLATE_MIDDLE",
	TEMPLATE_TAIL:   "TEMPLATE_TAIL",
	KW_SET:          "KW_SET",
	KW_LET:          "KW_LET",
	KW_HEADER:       "KW_HEADER",
	KW_BODY:         "KW_BODY",
	KW_TRUE:         "KW_TRUE",
	KW_FALSE:        "KW_FALSE",
	KW_NULL:         "KW_NULL",
	KW_GET:          "KW_GET",
	KW_POST:         "KW_POST",
	KW_PUT:          "KW_PUT",
	KW_PATCH:        "KW_PATCH",
	KW_DELETE:       "KW_DELETE",
	AT:              "AT",
	ASSIGN:          "ASSIGN",
	COLON:           "COLON",
	COMMA:           "COMMA",
	LPAREN:          "LPAREN",
	RPAREN:          "RPAREN",
	LBRACE:          "LBRACE",
	RBRACE:          "RBRACE",
	LBRACK:          "LBRACK",
	RBRACK:          "RBRACK",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsMethod reports whether k is one of the HTTP method keywords.
func (k Kind) IsMethod() bool {
	return k >= KW_GET && k <= KW_DELETE
}

// IsKeyword reports whether k is a reserved word.
func (k Kind) IsKeyword() bool {
	return k >= KW_SET && k <= KW_DELETE
}

// Token represents a lexical token with a source span.
//
// Lit holds the raw source text. Depth counts the delimiters ({, [, ( and
// template interpolations) enclosing the token; a closing delimiter carries
// the depth of its opener.
type Token struct {
	Kind  Kind
	Lit   string
	Span  Span
	Depth int
}

// Position represents a specific point in a source file.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span represents a half-open source range.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether offset falls inside the span. The end offset is
// included so a cursor placed right after a token still hits it.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

var keywordKinds = map[string]Kind{
	"set":    KW_SET,
	"let":    KW_LET,
	"header": KW_HEADER,
	"body":   KW_BODY,
	"true":   KW_TRUE,
	"false":  KW_FALSE,
	"null":   KW_NULL,
	"get":    KW_GET,
	"post":   KW_POST,
	"put":    KW_PUT,
	"patch":  KW_PATCH,
	"delete": KW_DELETE,
}

// LookupKeyword returns the keyword kind for lit.
func LookupKeyword(lit string) (Kind, bool) {
	k, ok := keywordKinds[lit]
	return k, ok
}
