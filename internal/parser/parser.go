package parser

import (
	"fmt"
	"strconv"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/lexer"
)

// Parser converts lexer tokens into AST nodes. It never gives up on
// malformed input: the first error of a statement is recorded, the rest
// of the statement is skipped and parsing resumes at the next boundary.
type Parser struct {
	lx   *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
	errs []ParseError

	prevLine int

	// comments read ahead of cur, waiting to be attached
	comments []lexer.Token

	panicking bool
	broken    bool
}

// Parse parses the provided source into an AST.
func Parse(path, src string) (*ast.Program, []lexer.LexError, []ParseError) {
	lx := lexer.NewLexer(path, src)
	p := NewParser(lx)
	program := p.ParseProgram()
	return program, lx.Errors(), p.Errors()
}

// NewParser creates a parser for the lexer stream.
func NewParser(lx *lexer.Lexer) *Parser {
	p := &Parser{lx: lx}
	p.cur = p.nextToken()
	p.peek = p.nextToken()
	return p
}

// Errors returns parser errors.
func (p *Parser) Errors() []ParseError {
	return p.errs
}

func (p *Parser) nextToken() lexer.Token {
	for {
		tok := p.lx.Next()
		if tok.Kind != lexer.COMMENT {
			return tok
		}
		p.comments = append(p.comments, tok)
	}
}

func (p *Parser) advance() {
	p.prevLine = p.cur.Span.End.Line
	p.cur = p.peek
	p.peek = p.nextToken()
}

func (p *Parser) match(kind lexer.Kind) bool {
	if p.cur.Kind == kind {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token when it has the wanted kind. On a
// mismatch it reports an error and leaves the token in place for recovery.
func (p *Parser) expect(kind lexer.Kind, msg, hint string) (lexer.Token, bool) {
	if p.cur.Kind != kind {
		p.addError(ErrExpectedToken, msg, hint, p.cur.Span)
		return p.cur, false
	}
	tok := p.cur
	p.advance()
	return tok, true
}

func (p *Parser) addError(code, msg, hint string, span lexer.Span) {
	p.broken = true
	if p.panicking {
		return
	}
	p.panicking = true
	p.errs = append(p.errs, ParseError{
		Code:    code,
		Message: msg,
		Hint:    hint,
		File:    p.lx.Path(),
		Span:    toASTSpan(span),
	})
}

// silentError marks the statement broken without a message, used when the
// lexer already reported the problem.
func (p *Parser) silentError() {
	p.broken = true
	p.panicking = true
}

func (p *Parser) firstOnLine() bool {
	return p.cur.Span.Start.Line > p.prevLine
}

// ParseProgram parses the entire token stream.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.lx.Path()}
	for {
		for _, c := range p.takeComments(p.cur.Span.Start.Offset) {
			program.Stmts = append(program.Stmts, c)
		}
		if p.cur.Kind == lexer.EOF {
			break
		}
		p.panicking = false
		p.broken = false
		stmt := p.parseStatement()
		program.Stmts = append(program.Stmts, stmt)
	}
	for _, c := range p.takeComments(-1) {
		program.Stmts = append(program.Stmts, c)
	}
	for _, stmt := range program.Stmts {
		program.Span = joinSpan(program.Span, ast.SpanOf(stmt))
	}
	return program
}

func (p *Parser) parseStatement() ast.Stmt {
	var attrs []*ast.Attribute
	if p.cur.Kind == lexer.AT {
		attrs = p.parseAttributes()
	}

	switch {
	case p.cur.Kind == lexer.KW_SET:
		return p.parseSet(attrs)
	case p.cur.Kind == lexer.KW_LET:
		return p.parseLet(attrs)
	case p.cur.Kind.IsMethod():
		return p.parseRequest(attrs)
	}

	start := p.cur.Span
	if len(attrs) > 0 {
		p.addError(ErrAttributeTarget, "after attributes should come requests or more attributes", "place a request, let or set statement after the attributes", p.cur.Span)
		start = toLexSpan(attrs[0].Span)
	} else if p.cur.Kind == lexer.ILLEGAL {
		p.silentError()
	} else {
		p.addError(ErrUnexpectedToken, fmt.Sprintf("unexpected %s at top level", describe(p.cur)), "start a statement with set, let, a request method or an @attribute", p.cur.Span)
	}
	end := toASTSpan(p.cur.Span)
	if p.cur.Kind == lexer.EOF && len(attrs) > 0 {
		end = attrs[len(attrs)-1].Span
	}
	if !p.atTopStart() {
		p.advance()
	}
	p.syncTop()
	return &ast.BadStmt{Span: joinSpan(toASTSpan(start), end)}
}

func (p *Parser) parseAttributes() []*ast.Attribute {
	var attrs []*ast.Attribute
	for p.cur.Kind == lexer.AT {
		at := p.cur
		p.advance()
		nameTok := p.cur
		if nameTok.Kind != lexer.IDENT && !nameTok.Kind.IsKeyword() {
			p.addError(ErrExpectedToken, "expected an attribute name after '@'", "write attributes like @log or @name(\"label\")", nameTok.Span)
			attrs = append(attrs, &ast.Attribute{Span: toASTSpan(at.Span), NameSpan: toASTSpan(at.Span)})
			continue
		}
		p.advance()
		attr := &ast.Attribute{
			Name:     nameTok.Lit,
			NameSpan: toASTSpan(nameTok.Span),
			Span:     joinSpan(toASTSpan(at.Span), toASTSpan(nameTok.Span)),
		}
		if p.cur.Kind == lexer.LPAREN {
			args, end := p.parseArgs()
			attr.Args = args
			attr.Parens = true
			attr.Span = joinSpan(attr.Span, toASTSpan(end))
		}
		attrs = append(attrs, attr)
	}
	return attrs
}

func (p *Parser) parseSet(attrs []*ast.Attribute) ast.Stmt {
	startTok := p.cur
	p.advance()
	stmt := &ast.SetStmt{Attrs: attrs, Span: toASTSpan(startTok.Span)}
	if len(attrs) > 0 {
		stmt.Span = joinSpan(attrs[0].Span, stmt.Span)
	}
	nameTok, ok := p.expect(lexer.IDENT, "expected a name after set", `write set BASE_URL "http://localhost"`)
	if ok {
		stmt.Name = nameTok.Lit
		stmt.NameSpan = toASTSpan(nameTok.Span)
		stmt.Value = p.parseExpr()
		stmt.Span = joinSpan(stmt.Span, ast.SpanOf(stmt.Value))
	} else {
		stmt.Value = &ast.BadExpr{Span: toASTSpan(p.cur.Span)}
	}
	p.finishStmt(&stmt.Broken)
	return stmt
}

func (p *Parser) parseLet(attrs []*ast.Attribute) ast.Stmt {
	startTok := p.cur
	p.advance()
	stmt := &ast.LetStmt{Attrs: attrs, Span: toASTSpan(startTok.Span)}
	if len(attrs) > 0 {
		stmt.Span = joinSpan(attrs[0].Span, stmt.Span)
	}
	nameTok, ok := p.expect(lexer.IDENT, "expected a name after let", "write let name = value")
	if ok {
		stmt.Name = nameTok.Lit
		stmt.NameSpan = toASTSpan(nameTok.Span)
		if _, ok := p.expect(lexer.ASSIGN, "expected '=' after the let name", "write let name = value"); ok {
			stmt.Value = p.parseExpr()
			stmt.Span = joinSpan(stmt.Span, ast.SpanOf(stmt.Value))
		}
	}
	if stmt.Value == nil {
		stmt.Value = &ast.BadExpr{Span: toASTSpan(p.cur.Span)}
	}
	p.finishStmt(&stmt.Broken)
	return stmt
}

func (p *Parser) parseRequest(attrs []*ast.Attribute) ast.Stmt {
	methodTok := p.cur
	p.advance()
	stmt := &ast.RequestStmt{
		Method:     methodOf(methodTok.Kind),
		MethodSpan: toASTSpan(methodTok.Span),
		Attrs:      attrs,
		Span:       toASTSpan(methodTok.Span),
	}
	if len(attrs) > 0 {
		stmt.Span = joinSpan(attrs[0].Span, stmt.Span)
	}

	switch p.cur.Kind {
	case lexer.URL, lexer.PATH, lexer.STRING, lexer.TEMPLATE, lexer.TEMPLATE_HEAD, lexer.IDENT, lexer.ILLEGAL:
		stmt.URL = p.parseExpr()
		stmt.Span = joinSpan(stmt.Span, ast.SpanOf(stmt.URL))
	default:
		p.addError(ErrExpectedToken, "expected a url or pathname after "+methodTok.Lit, "write "+methodTok.Lit+" /path or "+methodTok.Lit+" https://host/path", p.cur.Span)
		stmt.URL = &ast.BadExpr{Span: toASTSpan(p.cur.Span)}
	}

	if p.cur.Kind == lexer.LBRACE && !p.panicking {
		stmt.Block = p.parseBlock()
		stmt.Span = joinSpan(stmt.Span, stmt.Block.Span)
	} else if p.cur.Kind == lexer.LBRACE && p.cur.Span.Start.Line == methodTok.Span.Start.Line {
		// keep the block of a request whose url is broken
		stmt.Block = p.parseBlock()
		stmt.Span = joinSpan(stmt.Span, stmt.Block.Span)
	}
	p.finishStmt(&stmt.Broken)
	return stmt
}

// finishStmt records whether the statement failed and skips what is left
// of it.
func (p *Parser) finishStmt(broken *bool) {
	if !p.broken {
		return
	}
	*broken = true
	p.syncTop()
}

func (p *Parser) parseBlock() *ast.Block {
	open := p.cur
	depth := open.Depth
	p.advance()
	block := &ast.Block{Span: toASTSpan(open.Span)}
	hasBody := false

	// panicking is never cleared inside the block: once the request or one
	// of its entries failed, the rest of the statement stays quiet.
	for {
		for _, c := range p.takeComments(p.cur.Span.Start.Offset) {
			block.Entries = append(block.Entries, c)
		}

		switch {
		case p.cur.Kind == lexer.RBRACE:
			block.Span = joinSpan(block.Span, toASTSpan(p.cur.Span))
			p.advance()
			return block
		case p.cur.Kind == lexer.EOF:
			p.addError(ErrExpectedToken, "expected '}' to close the request block", "add '}' after the last header or body", open.Span)
			return block
		case p.cur.Kind == lexer.KW_HEADER:
			start := p.cur
			p.advance()
			name := p.parseExpr()
			var value ast.Expr = &ast.BadExpr{Span: toASTSpan(p.cur.Span)}
			if !p.panicking {
				value = p.parseExpr()
			}
			entry := &ast.HeaderEntry{Name: name, Value: value, Span: joinSpan(toASTSpan(start.Span), ast.SpanOf(value))}
			block.Entries = append(block.Entries, entry)
			block.Span = joinSpan(block.Span, entry.Span)
		case p.cur.Kind == lexer.KW_BODY:
			start := p.cur
			p.advance()
			value := p.parseExpr()
			entry := &ast.BodyEntry{Value: value, Span: joinSpan(toASTSpan(start.Span), ast.SpanOf(value))}
			if hasBody {
				p.addError(ErrDuplicateBody, "a request may only declare one body", "merge the bodies or remove the extra one", start.Span)
			} else {
				hasBody = true
				block.Entries = append(block.Entries, entry)
			}
			block.Span = joinSpan(block.Span, entry.Span)
		case p.atTopStart():
			p.addError(ErrExpectedToken, "expected '}' to close the request block", "add '}' after the last header or body", open.Span)
			return block
		default:
			if p.cur.Kind == lexer.ILLEGAL {
				p.silentError()
			} else {
				p.addError(ErrUnexpectedToken, "may only declare headers or a body statement here", `write header "Name" value or body value`, p.cur.Span)
			}
			p.advance()
		}

		if p.panicking {
			p.syncBlock(depth)
		}
	}
}

// atTopStart reports whether cur can begin a new top-level statement.
func (p *Parser) atTopStart() bool {
	switch {
	case p.cur.Kind == lexer.AT, p.cur.Kind == lexer.KW_SET, p.cur.Kind == lexer.KW_LET, p.cur.Kind.IsMethod():
	default:
		return false
	}
	if p.cur.Depth == 0 {
		return true
	}
	return p.firstOnLine() && p.peek.Kind != lexer.COLON
}

func (p *Parser) syncTop() {
	for p.cur.Kind != lexer.EOF && !p.atTopStart() {
		p.advance()
	}
}

// syncBlock skips to the next entry of the block opened at depth, its
// closing brace, or a statement that clearly starts outside of it.
func (p *Parser) syncBlock(depth int) {
	for p.cur.Kind != lexer.EOF {
		switch {
		case p.cur.Kind == lexer.RBRACE && p.cur.Depth <= depth:
			return
		case (p.cur.Kind == lexer.KW_HEADER || p.cur.Kind == lexer.KW_BODY) && p.cur.Depth == depth+1:
			return
		case p.atTopStart():
			return
		}
		p.advance()
	}
}

func (p *Parser) parseExpr() ast.Expr {
	tok := p.cur
	switch tok.Kind {
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Raw: tok.Lit, Value: lexer.DecodeString(tok.Lit), Span: toASTSpan(tok.Span)}
	case lexer.TEMPLATE, lexer.TEMPLATE_HEAD:
		return p.parseTemplate()
	case lexer.NUMBER:
		p.advance()
		val, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			p.addError(ErrInvalidExpr, "invalid number "+tok.Lit, "", tok.Span)
		}
		return &ast.NumberLit{Raw: tok.Lit, Value: val, Span: toASTSpan(tok.Span)}
	case lexer.KW_TRUE, lexer.KW_FALSE:
		p.advance()
		return &ast.BoolLit{Value: tok.Kind == lexer.KW_TRUE, Span: toASTSpan(tok.Span)}
	case lexer.KW_NULL:
		p.advance()
		return &ast.NullLit{Span: toASTSpan(tok.Span)}
	case lexer.URL, lexer.PATH:
		p.advance()
		return &ast.URLLit{Raw: tok.Lit, Pathname: tok.Kind == lexer.PATH, Span: toASTSpan(tok.Span)}
	case lexer.IDENT:
		if p.peek.Kind == lexer.LPAREN {
			return p.parseCall()
		}
		p.advance()
		return &ast.IdentExpr{Name: tok.Lit, Span: toASTSpan(tok.Span)}
	case lexer.LBRACE:
		return p.parseObjectLit()
	case lexer.LBRACK:
		return p.parseArrayLit()
	case lexer.ILLEGAL:
		p.advance()
		p.silentError()
		return &ast.BadExpr{Span: toASTSpan(tok.Span)}
	default:
		p.addError(ErrInvalidExpr, "expected an expression, found "+describe(tok), "use a string, template, number, boolean, name, call, object or array", tok.Span)
		return &ast.BadExpr{Span: toASTSpan(tok.Span)}
	}
}

func (p *Parser) parseTemplate() ast.Expr {
	first := p.cur
	p.advance()
	lit := &ast.TemplateLit{Span: toASTSpan(first.Span)}
	lit.Parts = appendText(lit.Parts, first)
	if first.Kind == lexer.TEMPLATE {
		return lit
	}

	for {
		expr := p.parseExpr()
		lit.Parts = append(lit.Parts, ast.TemplatePart{Expr: expr, Span: ast.SpanOf(expr)})
		if p.panicking {
			return lit
		}
		tok := p.cur
		switch tok.Kind {
		case lexer.TEMPLATE_MIDDLE:
			p.advance()
			lit.Parts = appendText(lit.Parts, tok)
			lit.Span = joinSpan(lit.Span, toASTSpan(tok.Span))
		case lexer.TEMPLATE_TAIL:
			p.advance()
			lit.Parts = appendText(lit.Parts, tok)
			lit.Span = joinSpan(lit.Span, toASTSpan(tok.Span))
			return lit
		default:
			p.addError(ErrExpectedToken, "expected '}' to close the template interpolation", "interpolations hold a single expression like ${name}", tok.Span)
			return lit
		}
	}
}

func appendText(parts []ast.TemplatePart, tok lexer.Token) []ast.TemplatePart {
	raw := lexer.TemplateRaw(tok)
	if raw == "" {
		return parts
	}
	return append(parts, ast.TemplatePart{Text: lexer.TemplateText(tok), Raw: raw, Span: toASTSpan(tok.Span)})
}

func (p *Parser) parseCall() ast.Expr {
	nameTok := p.cur
	p.advance()
	args, end := p.parseArgs()
	call := &ast.CallExpr{
		Name:     nameTok.Lit,
		NameSpan: toASTSpan(nameTok.Span),
		Builtin:  ast.LookupBuiltin(nameTok.Lit),
		Args:     args,
		Span:     joinSpan(toASTSpan(nameTok.Span), toASTSpan(end)),
	}
	if call.Builtin != ast.BuiltinUnknown && len(args) != call.Builtin.Arity() && !p.panicking {
		p.addError(ErrArity, fmt.Sprintf("%d argument(s) required, received %d", call.Builtin.Arity(), len(args)), call.Name+" takes exactly one argument", toLexSpan(call.Span))
	}
	return call
}

// parseArgs parses a parenthesized, comma separated argument list and
// returns the span of the closing parenthesis.
func (p *Parser) parseArgs() ([]ast.Expr, lexer.Span) {
	open := p.cur
	p.advance()
	var args []ast.Expr
	for p.cur.Kind != lexer.RPAREN {
		args = append(args, p.parseExpr())
		if p.panicking {
			return args, open.Span
		}
		if p.match(lexer.COMMA) {
			continue
		}
		if p.cur.Kind != lexer.RPAREN {
			p.addError(ErrExpectedToken, "expected ',' or ')' after argument, found "+describe(p.cur), "separate arguments with commas", p.cur.Span)
			return args, open.Span
		}
	}
	end := p.cur.Span
	p.advance()
	return args, end
}

func (p *Parser) parseArrayLit() *ast.ArrayLit {
	open := p.cur
	p.advance()
	arr := &ast.ArrayLit{Span: toASTSpan(open.Span)}
	for p.cur.Kind != lexer.RBRACK {
		elem := p.parseExpr()
		arr.Elems = append(arr.Elems, elem)
		arr.Span = joinSpan(arr.Span, ast.SpanOf(elem))
		if p.panicking {
			return arr
		}
		if p.match(lexer.COMMA) {
			continue
		}
		if p.cur.Kind != lexer.RBRACK {
			p.addError(ErrExpectedToken, "expected ',' or ']' after array item, found "+describe(p.cur), "separate array items with commas", p.cur.Span)
			return arr
		}
	}
	arr.Span = joinSpan(arr.Span, toASTSpan(p.cur.Span))
	p.dropComments(arr.Span)
	p.advance()
	return arr
}

func (p *Parser) parseObjectLit() *ast.ObjectLit {
	open := p.cur
	p.advance()
	obj := &ast.ObjectLit{Span: toASTSpan(open.Span)}
	for {
		comments := p.takeComments(p.cur.Span.Start.Offset)
		if p.cur.Kind == lexer.RBRACE {
			obj.Trailing = comments
			obj.Span = joinSpan(obj.Span, toASTSpan(p.cur.Span))
			p.advance()
			return obj
		}

		if p.atTopStart() {
			p.addError(ErrExpectedToken, "expected '}' to close the object literal", "add '}' after the last entry", open.Span)
			return obj
		}

		entry := &ast.ObjectEntry{Comments: comments}
		keyTok := p.cur
		switch {
		case keyTok.Kind == lexer.IDENT || keyTok.Kind.IsKeyword():
			entry.Key = keyTok.Lit
		case keyTok.Kind == lexer.STRING:
			entry.Key = lexer.DecodeString(keyTok.Lit)
			entry.Quoted = true
		case keyTok.Kind == lexer.ILLEGAL:
			p.advance()
			p.silentError()
			return obj
		default:
			p.addError(ErrExpectedToken, "expected an object key, found "+describe(keyTok), "write entries like key: value", keyTok.Span)
			return obj
		}
		p.advance()
		entry.KeySpan = toASTSpan(keyTok.Span)
		if _, ok := p.expect(lexer.COLON, "expected ':' after object key "+entry.Key, "write entries like key: value"); !ok {
			return obj
		}
		entry.Value = p.parseExpr()
		entry.Span = joinSpan(entry.KeySpan, ast.SpanOf(entry.Value))
		obj.Entries = append(obj.Entries, entry)
		obj.Span = joinSpan(obj.Span, entry.Span)
		if p.panicking {
			return obj
		}
		if p.match(lexer.COMMA) {
			continue
		}
		if p.cur.Kind != lexer.RBRACE {
			p.addError(ErrExpectedToken, "expected ',' or '}' after object entry, found "+describe(p.cur), "separate object entries with commas", p.cur.Span)
			return obj
		}
	}
}

// takeComments removes and returns the pending comments that start before
// offset. A negative offset takes all of them.
func (p *Parser) takeComments(offset int) []*ast.CommentStmt {
	var out []*ast.CommentStmt
	rest := p.comments[:0]
	for _, c := range p.comments {
		if offset < 0 || c.Span.Start.Offset < offset {
			out = append(out, &ast.CommentStmt{Text: c.Lit, Span: toASTSpan(c.Span)})
			continue
		}
		rest = append(rest, c)
	}
	p.comments = rest
	return out
}

// dropComments forgets the pending comments inside span. Arrays do not
// keep comments.
func (p *Parser) dropComments(span ast.Span) {
	rest := p.comments[:0]
	for _, c := range p.comments {
		if c.Span.Start.Offset > span.Start.Offset && c.Span.Start.Offset < span.End.Offset {
			continue
		}
		rest = append(rest, c)
	}
	p.comments = rest
}

func methodOf(kind lexer.Kind) ast.HttpMethod {
	switch kind {
	case lexer.KW_POST:
		return ast.MethodPost
	case lexer.KW_PUT:
		return ast.MethodPut
	case lexer.KW_PATCH:
		return ast.MethodPatch
	case lexer.KW_DELETE:
		return ast.MethodDelete
	default:
		return ast.MethodGet
	}
}

func describe(tok lexer.Token) string {
	if tok.Kind == lexer.EOF {
		return "end of file"
	}
	return "'" + tok.Lit + "'"
}

func toASTSpan(span lexer.Span) ast.Span {
	return ast.Span{
		Start: ast.Position{Offset: span.Start.Offset, Line: span.Start.Line, Column: span.Start.Column},
		End:   ast.Position{Offset: span.End.Offset, Line: span.End.Line, Column: span.End.Column},
	}
}

func toLexSpan(span ast.Span) lexer.Span {
	return lexer.Span{
		Start: lexer.Position{Offset: span.Start.Offset, Line: span.Start.Line, Column: span.Start.Column},
		End:   lexer.Position{Offset: span.End.Offset, Line: span.End.Line, Column: span.End.Column},
	}
}

func joinSpan(a, b ast.Span) ast.Span {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	start, end := a.Start, a.End
	if b.Start.Offset < start.Offset {
		start = b.Start
	}
	if b.End.Offset > end.Offset {
		end = b.End
	}
	return ast.Span{Start: start, End: end}
}
