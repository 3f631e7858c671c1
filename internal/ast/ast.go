package ast

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

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s.Start.Line == 0 && s.End.Line == 0
}

// Contains reports whether offset falls within the span, end inclusive.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

// Program is the root AST node for one script.
type Program struct {
	File  string
	Stmts []Stmt
	Span  Span
}

// Stmt marks top-level statements.
type Stmt interface {
	stmtNode()
}

// BlockEntry marks entries inside a request block.
type BlockEntry interface {
	blockEntryNode()
}

// Expr marks expression nodes.
type Expr interface {
	exprNode()
}

// HttpMethod identifies an HTTP method.
type HttpMethod int

const (
	MethodGet HttpMethod = iota
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
)

var methodNames = [...]string{
	MethodGet:    "GET",
	MethodPost:   "POST",
	MethodPut:    "PUT",
	MethodPatch:  "PATCH",
	MethodDelete: "DELETE",
}

// String returns the upper-case wire name of the method.
func (m HttpMethod) String() string {
	if int(m) >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "GET"
}

// Keyword returns the script keyword for the method.
func (m HttpMethod) Keyword() string {
	switch m {
	case MethodPost:
		return "post"
	case MethodPut:
		return "put"
	case MethodPatch:
		return "patch"
	case MethodDelete:
		return "delete"
	default:
		return "get"
	}
}

// Attribute is an @name(args...) directive attached to the statement that
// follows it.
type Attribute struct {
	Name     string
	NameSpan Span
	Args     []Expr
	Parens   bool
	Span     Span
}

// SetStmt declares or overwrites a global constant.
type SetStmt struct {
	Name     string
	NameSpan Span
	Value    Expr
	Attrs    []*Attribute
	Broken   bool
	Span     Span
}

func (*SetStmt) stmtNode() {}

// LetStmt binds a local name for the statements that follow.
type LetStmt struct {
	Name     string
	NameSpan Span
	Value    Expr
	Attrs    []*Attribute
	Broken   bool
	Span     Span
}

func (*LetStmt) stmtNode() {}

// RequestStmt is one HTTP call.
type RequestStmt struct {
	Method     HttpMethod
	MethodSpan Span
	URL        Expr
	Attrs      []*Attribute
	Block      *Block
	Broken     bool
	Span       Span
}

func (*RequestStmt) stmtNode() {}

// Body returns the body entry of the request block, if any.
func (r *RequestStmt) Body() *BodyEntry {
	if r.Block == nil {
		return nil
	}
	for _, entry := range r.Block.Entries {
		if body, ok := entry.(*BodyEntry); ok {
			return body
		}
	}
	return nil
}

// Headers returns the header entries of the request block in order.
func (r *RequestStmt) Headers() []*HeaderEntry {
	if r.Block == nil {
		return nil
	}
	var out []*HeaderEntry
	for _, entry := range r.Block.Entries {
		if h, ok := entry.(*HeaderEntry); ok {
			out = append(out, h)
		}
	}
	return out
}

// CommentStmt keeps a source comment for tooling such as the formatter.
type CommentStmt struct {
	Text string
	Span Span
}

func (*CommentStmt) stmtNode()       {}
func (*CommentStmt) blockEntryNode() {}

// BadStmt stands in for a statement that could not be parsed.
type BadStmt struct {
	Span Span
}

func (*BadStmt) stmtNode() {}

// Block holds the header and body entries of a request.
type Block struct {
	Entries []BlockEntry
	Span    Span
}

// HeaderEntry sets one request header.
type HeaderEntry struct {
	Name  Expr
	Value Expr
	Span  Span
}

func (*HeaderEntry) blockEntryNode() {}

// BodyEntry sets the request body.
type BodyEntry struct {
	Value Expr
	Span  Span
}

func (*BodyEntry) blockEntryNode() {}

// IdentExpr references a binding.
type IdentExpr struct {
	Name string
	Span Span
}

func (*IdentExpr) exprNode() {}

// StringLit is a double-quoted string. Raw keeps the source text.
type StringLit struct {
	Raw   string
	Value string
	Span  Span
}

func (*StringLit) exprNode() {}

// TemplatePart is either literal text or an interpolated expression.
type TemplatePart struct {
	Text string
	Raw  string
	Expr Expr
	Span Span
}

// IsText reports whether the part is literal text.
func (p TemplatePart) IsText() bool {
	return p.Expr == nil
}

// TemplateLit is a backtick string with ${} interpolations.
type TemplateLit struct {
	Parts []TemplatePart
	Span  Span
}

func (*TemplateLit) exprNode() {}

// URLLit is a bare absolute URL or a pathname starting with '/'.
type URLLit struct {
	Raw      string
	Pathname bool
	Span     Span
}

func (*URLLit) exprNode() {}

// NumberLit is a numeric literal.
type NumberLit struct {
	Raw   string
	Value float64
	Span  Span
}

func (*NumberLit) exprNode() {}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Span  Span
}

func (*BoolLit) exprNode() {}

// NullLit is null.
type NullLit struct {
	Span Span
}

func (*NullLit) exprNode() {}

// ArrayLit is a JSON-like array.
type ArrayLit struct {
	Elems []Expr
	Span  Span
}

func (*ArrayLit) exprNode() {}

// ObjectEntry is one key/value pair of an object literal. Comments holds
// the comments written directly above the entry.
type ObjectEntry struct {
	Key      string
	KeySpan  Span
	Quoted   bool
	Value    Expr
	Comments []*CommentStmt
	Span     Span
}

// ObjectLit is a JSON-like object. Trailing keeps comments placed after
// the last entry.
type ObjectLit struct {
	Entries  []*ObjectEntry
	Trailing []*CommentStmt
	Span     Span
}

func (*ObjectLit) exprNode() {}

// CallExpr invokes a builtin.
type CallExpr struct {
	Name     string
	NameSpan Span
	Builtin  Builtin
	Args     []Expr
	Span     Span
}

func (*CallExpr) exprNode() {}

// BadExpr is the placeholder for an expression that failed to parse.
type BadExpr struct {
	Span Span
}

func (*BadExpr) exprNode() {}
