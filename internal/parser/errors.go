package parser

import (
	"fmt"

	"github.com/mehditeymorian/rested/internal/ast"
)

const (
	ErrExpectedToken   = "E_PARSE_EXPECTED_TOKEN"
	ErrUnexpectedToken = "E_PARSE_UNEXPECTED_TOKEN"
	ErrInvalidExpr     = "E_PARSE_INVALID_EXPR"
	ErrArity           = "E_PARSE_ARITY"
	ErrAttributeTarget = "E_PARSE_ATTRIBUTE_TARGET"
	ErrDuplicateBody   = "E_PARSE_DUPLICATE_BODY"
)

// ParseError captures a parser diagnostic.
type ParseError struct {
	Code    string
	Message string
	Hint    string
	File    string
	Span    ast.Span
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s %s:%d:%d %s", e.Code, e.File, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}
