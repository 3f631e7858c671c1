package interpreter

import (
	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
)

// evalError aborts the statement being evaluated.
type evalError struct {
	kind    diagnostics.Kind
	code    string
	msg     string
	hint    string
	span    ast.Span
	related *diagnostics.Related
}

func (e *evalError) Error() string { return e.msg }

func newEvalError(kind diagnostics.Kind, code string, span ast.Span, msg string) *evalError {
	return &evalError{kind: kind, code: code, span: span, msg: msg}
}

func (e *evalError) withHint(hint string) *evalError {
	e.hint = hint
	return e
}

func (i *interp) diag(e *evalError, request string) diagnostics.Diagnostic {
	d := diagnostics.New(e.kind, e.code, i.file, e.span, e.msg)
	d.Hint = e.hint
	d.Related = e.related
	if request != "" {
		d.Request = &request
	}
	return d
}

