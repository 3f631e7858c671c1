package ast

// Inspect walks the tree rooted at node depth first, calling fn for every
// node. Children are skipped when fn returns false.
func Inspect(node any, fn func(any) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Program:
		for _, stmt := range n.Stmts {
			Inspect(stmt, fn)
		}
	case *SetStmt:
		inspectAttrs(n.Attrs, fn)
		inspectExpr(n.Value, fn)
	case *LetStmt:
		inspectAttrs(n.Attrs, fn)
		inspectExpr(n.Value, fn)
	case *RequestStmt:
		inspectAttrs(n.Attrs, fn)
		inspectExpr(n.URL, fn)
		if n.Block != nil {
			Inspect(n.Block, fn)
		}
	case *Block:
		for _, entry := range n.Entries {
			Inspect(entry, fn)
		}
	case *HeaderEntry:
		inspectExpr(n.Name, fn)
		inspectExpr(n.Value, fn)
	case *BodyEntry:
		inspectExpr(n.Value, fn)
	case *Attribute:
		for _, arg := range n.Args {
			inspectExpr(arg, fn)
		}
	case *TemplateLit:
		for _, part := range n.Parts {
			if !part.IsText() {
				inspectExpr(part.Expr, fn)
			}
		}
	case *ArrayLit:
		for _, elem := range n.Elems {
			inspectExpr(elem, fn)
		}
	case *ObjectLit:
		for _, entry := range n.Entries {
			inspectExpr(entry.Value, fn)
		}
	case *CallExpr:
		for _, arg := range n.Args {
			inspectExpr(arg, fn)
		}
	}
}

func inspectAttrs(attrs []*Attribute, fn func(any) bool) {
	for _, attr := range attrs {
		Inspect(attr, fn)
	}
}

// inspectExpr avoids handing typed nil interfaces to fn.
func inspectExpr(expr Expr, fn func(any) bool) {
	if expr == nil {
		return
	}
	Inspect(expr, fn)
}

// SpanOf returns the source span of a node, or a zero span for unknown
// values.
func SpanOf(node any) Span {
	switch n := node.(type) {
	case *Program:
		return n.Span
	case *SetStmt:
		return n.Span
	case *LetStmt:
		return n.Span
	case *RequestStmt:
		return n.Span
	case *CommentStmt:
		return n.Span
	case *BadStmt:
		return n.Span
	case *Block:
		return n.Span
	case *HeaderEntry:
		return n.Span
	case *BodyEntry:
		return n.Span
	case *Attribute:
		return n.Span
	case *IdentExpr:
		return n.Span
	case *StringLit:
		return n.Span
	case *TemplateLit:
		return n.Span
	case *URLLit:
		return n.Span
	case *NumberLit:
		return n.Span
	case *BoolLit:
		return n.Span
	case *NullLit:
		return n.Span
	case *ArrayLit:
		return n.Span
	case *ObjectLit:
		return n.Span
	case *CallExpr:
		return n.Span
	case *BadExpr:
		return n.Span
	default:
		return Span{}
	}
}

// Attrs returns the attributes attached to a statement.
func Attrs(stmt Stmt) []*Attribute {
	switch s := stmt.(type) {
	case *SetStmt:
		return s.Attrs
	case *LetStmt:
		return s.Attrs
	case *RequestStmt:
		return s.Attrs
	}
	return nil
}
