package diagnostics

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/lexer"
	"github.com/mehditeymorian/rested/internal/parser"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind classifies the stage or reason that produced a diagnostic.
type Kind string

const (
	KindLex                 Kind = "LexError"
	KindParse               Kind = "ParseError"
	KindUndefinedIdentifier Kind = "UndefinedIdentifier"
	KindTypeMismatch        Kind = "TypeMismatch"
	KindCall                Kind = "CallError"
	KindTransport           Kind = "TransportError"
	KindAttribute           Kind = "AttributeError"
	KindIO                  Kind = "IOError"
)

// Codes shared by the interpreter and the static analysis.
const (
	CodeUndefinedIdent   = "E_UNDEFINED_IDENT"
	CodeFailedBinding    = "E_FAILED_BINDING"
	CodeTypeMismatch     = "E_TYPE_MISMATCH"
	CodeMissingBaseURL   = "E_MISSING_BASE_URL"
	CodeUnknownCall      = "E_UNKNOWN_CALL"
	CodeEnvMissing       = "E_ENV_MISSING"
	CodeReadFailed       = "E_READ_FAILED"
	CodeMalformedJSON    = "E_MALFORMED_JSON"
	CodeTransport        = "E_TRANSPORT"
	CodeTimeout          = "E_TIMEOUT"
	CodeLogWrite         = "E_LOG_WRITE"
	CodeUnknownAttribute = "W_UNKNOWN_ATTRIBUTE"
	CodeDuplicateAttr    = "W_DUPLICATE_ATTRIBUTE"
	CodeAttributeArgs    = "W_ATTRIBUTE_ARGS"
	CodeIgnoredAttribute = "W_IGNORED_ATTRIBUTE"
	CodeDuplicateName    = "W_DUPLICATE_NAME"
	CodeMissingEnv       = "W_MISSING_ENV"
)

// Related points to a secondary source location.
type Related struct {
	File    string   `json:"file"`
	Span    ast.Span `json:"span"`
	Message string   `json:"message"`
}

// Diagnostic is the canonical lexer/parser/runtime diagnostic contract.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	File     string   `json:"file"`
	Span     ast.Span `json:"span"`
	Hint     string   `json:"hint,omitempty"`
	Related  *Related `json:"related,omitempty"`
	Request  *string  `json:"request,omitempty"`
}

// Line returns the 1-based start line.
func (d Diagnostic) Line() int { return d.Span.Start.Line }

// Column returns the 1-based start column.
func (d Diagnostic) Column() int { return d.Span.Start.Column }

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line(), d.Column(), d.Severity, d.Message)
}

// New builds an error diagnostic.
func New(kind Kind, code, file string, span ast.Span, msg string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Kind: kind, Code: code, File: file, Span: span, Message: msg}
}

// Warning builds a warning diagnostic.
func Warning(kind Kind, code, file string, span ast.Span, msg string) Diagnostic {
	d := New(kind, code, file, span, msg)
	d.Severity = SeverityWarning
	return d
}

// FromLex converts a lexer error.
func FromLex(e lexer.LexError) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Kind:     KindLex,
		Code:     e.Code,
		Message:  e.Message,
		File:     e.File,
		Span: ast.Span{
			Start: ast.Position{Offset: e.Span.Start.Offset, Line: e.Span.Start.Line, Column: e.Span.Start.Column},
			End:   ast.Position{Offset: e.Span.End.Offset, Line: e.Span.End.Line, Column: e.Span.End.Column},
		},
		Hint: e.Hint,
	}
}

// FromParse converts a parser error.
func FromParse(e parser.ParseError) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Kind:     KindParse,
		Code:     e.Code,
		Message:  e.Message,
		File:     e.File,
		Span:     e.Span,
		Hint:     e.Hint,
	}
}

// FromFrontEnd converts every lexer and parser error.
func FromFrontEnd(lexErrs []lexer.LexError, parseErrs []parser.ParseError) []Diagnostic {
	out := make([]Diagnostic, 0, len(lexErrs)+len(parseErrs))
	for _, e := range lexErrs {
		out = append(out, FromLex(e))
	}
	for _, e := range parseErrs {
		out = append(out, FromParse(e))
	}
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(in []Diagnostic) bool {
	for _, d := range in {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings.
func Count(in []Diagnostic) (errs, warnings int) {
	for _, d := range in {
		if d.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// SortAndDedupe enforces deterministic output ordering and duplicate removal.
func SortAndDedupe(in []Diagnostic) []Diagnostic {
	if len(in) == 0 {
		return nil
	}
	out := append([]Diagnostic(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line() != b.Line() {
			return a.Line() < b.Line()
		}
		if a.Column() != b.Column() {
			return a.Column() < b.Column()
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		ar, br := relatedSortKey(a.Related), relatedSortKey(b.Related)
		if ar.file != br.file {
			return ar.file < br.file
		}
		if ar.line != br.line {
			return ar.line < br.line
		}
		return ar.column < br.column
	})
	seen := map[string]struct{}{}
	result := make([]Diagnostic, 0, len(out))
	for _, d := range out {
		key := dedupeKey(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, d)
	}
	return result
}

type relatedKey struct {
	file   string
	line   int
	column int
}

func relatedSortKey(r *Related) relatedKey {
	if r == nil {
		return relatedKey{}
	}
	return relatedKey{file: r.File, line: r.Span.Start.Line, column: r.Span.Start.Column}
}

// dedupeKey ignores the request label so the same problem reported for
// two names collapses into one entry.
func dedupeKey(d Diagnostic) string {
	rk := relatedSortKey(d.Related)
	return d.Code + "|" + d.File + "|" + strconv.Itoa(d.Line()) + "|" + strconv.Itoa(d.Column()) + "|" + d.Message + "|" + rk.file + "|" + strconv.Itoa(rk.line) + "|" + strconv.Itoa(rk.column)
}
