package lexer

import "fmt"

const (
	ErrUnterminatedString   = "E_LEX_UNTERMINATED_STRING"
	ErrUnterminatedTemplate = "E_LEX_UNTERMINATED_TEMPLATE"
	ErrUnexpectedChar       = "E_LEX_UNEXPECTED_CHAR"
	ErrBadEscape            = "E_LEX_BAD_ESCAPE"
)

// LexError captures a lexer diagnostic.
type LexError struct {
	Code    string
	Message string
	Hint    string
	File    string
	Span    Span
}

func (e LexError) Error() string {
	return fmt.Sprintf("%s %s:%d:%d %s", e.Code, e.File, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}
