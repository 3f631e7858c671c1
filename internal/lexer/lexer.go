package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer converts script text into tokens. It is a pure function of its
// input and can be restarted from any statement boundary.
type Lexer struct {
	path string
	src  string

	pos  int
	line int
	col  int

	depth int

	// one frame per open template interpolation
	templates []templateFrame

	errs []LexError
}

type templateFrame struct {
	braces int
	start  Position
}

// NewLexer returns a new lexer for the provided source.
func NewLexer(path, src string) *Lexer {
	return &Lexer{
		path: path,
		src:  src,
		line: 1,
		col:  1,
	}
}

// Lex returns all tokens and lexer errors for the provided source. The last
// token is always EOF.
func Lex(path, src string) ([]Token, []LexError) {
	lx := NewLexer(path, src)
	var toks []Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks, lx.Errors()
}

// Errors returns accumulated lexer diagnostics.
func (l *Lexer) Errors() []LexError {
	return l.errs
}

// Path returns the source path for diagnostics.
func (l *Lexer) Path() string {
	return l.path
}

// Next returns the next token in the stream.
func (l *Lexer) Next() Token {
	l.skipWhitespace()
	if l.pos >= len(l.src) {
		return l.emitEOF()
	}

	start := l.position()
	r := l.peek()
	switch {
	case r == '/' && l.peekN(1) == '/':
		return l.scanComment()
	case r == '#' && l.peekN(1) == '!':
		return l.scanComment()
	case r == '/':
		return l.scanWord(PATH)
	case r == '"':
		return l.scanString()
	case r == '`':
		l.advance()
		return l.scanTemplateText(start, true)
	case r == '}' && l.inInterpolation():
		l.advance()
		return l.scanTemplateText(start, false)
	case unicode.IsDigit(r) || (r == '-' && unicode.IsDigit(l.peekN(1))):
		return l.scanNumber()
	case l.peekURLPrefix():
		return l.scanWord(URL)
	case isIdentStart(r):
		return l.scanIdentOrKeyword()
	}

	if tok, ok := l.scanPunct(); ok {
		return tok
	}

	l.addError(ErrUnexpectedChar, "unexpected character "+quoteRune(r), "remove or replace the character", Span{Start: start, End: l.positionAfter(r)})
	return l.scanIllegal(start)
}

func (l *Lexer) emitEOF() Token {
	for len(l.templates) > 0 {
		frame := l.templates[len(l.templates)-1]
		l.templates = l.templates[:len(l.templates)-1]
		l.addError(ErrUnterminatedTemplate, "unterminated template interpolation", "close the interpolation with '}' and the template with '`'", spanAt(frame.start))
	}
	pos := l.position()
	return Token{Kind: EOF, Span: Span{Start: pos, End: pos}}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		r := l.peek()
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' && r != '\f' && r != '\v' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) scanComment() Token {
	start := l.position()
	for {
		r := l.peek()
		if r == 0 || r == '\n' {
			break
		}
		l.advance()
	}
	lit := strings.TrimRight(l.src[start.Offset:l.pos], "\r")
	end := start
	end.Offset += len(lit)
	end.Column += utf8.RuneCountInString(lit)
	return Token{Kind: COMMENT, Lit: lit, Span: Span{Start: start, End: end}, Depth: l.depth}
}

// scanWord reads a URL or pathname which runs until whitespace.
func (l *Lexer) scanWord(kind Kind) Token {
	start := l.position()
	for {
		r := l.peek()
		if r == 0 || unicode.IsSpace(r) || (r == '}' && l.inInterpolation()) {
			break
		}
		l.advance()
	}
	return l.token(kind, start)
}

func (l *Lexer) scanString() Token {
	start := l.position()
	l.advance()
	for {
		r := l.peek()
		if r == 0 || r == '\n' {
			l.addError(ErrUnterminatedString, "unterminated string literal", "close the string with '\"'", Span{Start: start, End: l.position()})
			return Token{Kind: ILLEGAL, Lit: l.src[start.Offset:l.pos], Span: Span{Start: start, End: l.position()}, Depth: l.depth}
		}
		if r == '"' {
			l.advance()
			return l.token(STRING, start)
		}
		if r == '\\' {
			escStart := l.position()
			l.advance()
			next := l.peek()
			if next == 0 || next == '\n' {
				continue
			}
			l.advance()
			if !isStringEscape(next) {
				l.addError(ErrBadEscape, "unknown escape sequence \\"+string(next), `supported escapes are \n \t \r \" and \\`, Span{Start: escStart, End: l.position()})
			}
			continue
		}
		l.advance()
	}
}

// scanTemplateText reads template text after an opening backtick or after
// the '}' that closes an interpolation. The opening character has already
// been consumed.
func (l *Lexer) scanTemplateText(start Position, opening bool) Token {
	for {
		r := l.peek()
		switch {
		case r == 0:
			return l.unterminatedTemplate(start, opening)
		case r == '\\':
			l.advance()
			if l.peek() != 0 {
				l.advance()
			}
		case r == '`':
			l.advance()
			if opening {
				return l.token(TEMPLATE, start)
			}
			l.templates = l.templates[:len(l.templates)-1]
			l.depth--
			return l.token(TEMPLATE_TAIL, start)
		case r == '$' && l.peekN(1) == '{':
			l.advance()
			l.advance()
			if opening {
				tok := l.token(TEMPLATE_HEAD, start)
				l.templates = append(l.templates, templateFrame{start: start})
				l.depth++
				return tok
			}
			tok := l.token(TEMPLATE_MIDDLE, start)
			tok.Depth = l.depth - 1
			return tok
		default:
			l.advance()
		}
	}
}

func (l *Lexer) unterminatedTemplate(start Position, opening bool) Token {
	if !opening {
		l.templates = l.templates[:len(l.templates)-1]
		l.depth--
	}
	span := Span{Start: start, End: l.position()}
	l.addError(ErrUnterminatedTemplate, "unterminated template string", "close the template with '`'", span)
	return Token{Kind: ILLEGAL, Lit: l.src[start.Offset:l.pos], Span: span, Depth: l.depth}
}

func (l *Lexer) scanNumber() Token {
	start := l.position()
	if l.peek() == '-' {
		l.advance()
	}
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && unicode.IsDigit(l.peekN(1)) {
		l.advance()
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	return l.token(NUMBER, start)
}

func (l *Lexer) scanIdentOrKeyword() Token {
	start := l.position()
	for {
		for isIdentChar(l.peek()) {
			l.advance()
		}
		// dotted names such as user.id form a single identifier
		if l.peek() == '.' && isIdentStart(l.peekN(1)) {
			l.advance()
			continue
		}
		break
	}
	lit := l.src[start.Offset:l.pos]
	if kind, ok := keywordKinds[lit]; ok {
		return l.token(kind, start)
	}
	return l.token(IDENT, start)
}

func (l *Lexer) scanPunct() (Token, bool) {
	start := l.position()
	kind := EOF
	switch l.peek() {
	case '@':
		kind = AT
	case '=':
		kind = ASSIGN
	case ':':
		kind = COLON
	case ',':
		kind = COMMA
	case '(':
		kind = LPAREN
	case '[':
		kind = LBRACK
	case '{':
		kind = LBRACE
	case ')':
		kind = RPAREN
	case ']':
		kind = RBRACK
	case '}':
		kind = RBRACE
	default:
		return Token{}, false
	}
	l.advance()

	switch kind {
	case LPAREN, LBRACK, LBRACE:
		tok := l.token(kind, start)
		if kind == LBRACE && len(l.templates) > 0 {
			l.templates[len(l.templates)-1].braces++
		}
		l.depth++
		return tok, true
	case RPAREN, RBRACK, RBRACE:
		if kind == RBRACE && len(l.templates) > 0 {
			l.templates[len(l.templates)-1].braces--
		}
		if l.depth > 0 {
			l.depth--
		}
	}
	return l.token(kind, start), true
}

// scanIllegal skips to the next whitespace or delimiter so the tokens that
// follow stay usable.
func (l *Lexer) scanIllegal(start Position) Token {
	l.advance()
	for {
		r := l.peek()
		if r == 0 || unicode.IsSpace(r) || isDelimiter(r) {
			break
		}
		l.advance()
	}
	return Token{Kind: ILLEGAL, Lit: l.src[start.Offset:l.pos], Span: Span{Start: start, End: l.position()}, Depth: l.depth}
}

func (l *Lexer) inInterpolation() bool {
	return len(l.templates) > 0 && l.templates[len(l.templates)-1].braces == 0
}

func (l *Lexer) peekURLPrefix() bool {
	rest := l.remaining()
	return strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://")
}

func (l *Lexer) token(kind Kind, start Position) Token {
	return Token{Kind: kind, Lit: l.src[start.Offset:l.pos], Span: Span{Start: start, End: l.position()}, Depth: l.depth}
}

func (l *Lexer) addError(code, msg, hint string, span Span) {
	l.errs = append(l.errs, LexError{Code: code, Message: msg, Hint: hint, File: l.path, Span: span})
}

func spanAt(pos Position) Span {
	return Span{Start: pos, End: pos}
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) positionAfter(r rune) Position {
	return Position{Offset: l.pos + utf8.RuneLen(r), Line: l.line, Column: l.col + 1}
}

func (l *Lexer) remaining() string {
	if l.pos >= len(l.src) {
		return ""
	}
	return l.src[l.pos:]
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) peekN(n int) rune {
	idx := l.pos
	for i := 0; i < n; i++ {
		if idx >= len(l.src) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(l.src[idx:])
		idx += size
	}
	if idx >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[idx:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.src) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
		return
	}
	l.col++
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDelimiter(r rune) bool {
	switch r {
	case '{', '}', '(', ')', '[', ']', ',':
		return true
	}
	return false
}

func isStringEscape(r rune) bool {
	switch r {
	case 'n', 't', 'r', '"', '\\':
		return true
	}
	return false
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}
