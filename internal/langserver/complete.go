package langserver

import (
	"strings"

	"github.com/mehditeymorian/rested/internal/analysis"
	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/interpreter"
	"github.com/mehditeymorian/rested/internal/lexer"
	"github.com/mehditeymorian/rested/internal/parser"
)

// ItemKind classifies a completion item.
type ItemKind string

const (
	ItemKeyword  ItemKind = "keyword"
	ItemFunction ItemKind = "function"
	ItemVariable ItemKind = "variable"
	ItemConstant ItemKind = "constant"
)

// Item is one completion candidate. Snippet marks InsertText as an editor
// snippet with ${1:placeholder} tab stops.
type Item struct {
	Label      string   `json:"label"`
	Kind       ItemKind `json:"kind"`
	Detail     string   `json:"detail,omitempty"`
	InsertText string   `json:"insertText"`
	Snippet    bool     `json:"snippet,omitempty"`
}

// HeaderNames are offered after the header keyword.
var HeaderNames = []string{
	"Accept",
	"Accept-Charset",
	"Accept-Encoding",
	"Accept-Language",
	"Authorization",
	"Cache-Control",
	"Connection",
	"Content-Disposition",
	"Content-Encoding",
	"Content-Length",
	"Content-Type",
	"Cookie",
	"Date",
	"ETag",
	"Host",
	"If-Match",
	"If-Modified-Since",
	"If-None-Match",
	"If-Range",
	"If-Unmodified-Since",
	"Last-Modified",
	"Location",
	"Origin",
	"Referer",
	"Server",
	"User-Agent",
	"WWW-Authenticate",
	"X-Forwarded-For",
}

type completionContext int

const (
	contextNone completionContext = iota
	contextStatement
	contextBlockEntry
	contextExpr
	contextAttribute
	contextHeaderName
	contextSetName
	contextEnvVar
)

// Complete returns the candidates for the cursor at pos. Variables are the
// set/let names declared before the cursor. cat may be nil.
func Complete(path, src string, pos Position, cat Catalog) []Item {
	offset := Offset(src, pos)
	switch classify(path, src, offset) {
	case contextStatement:
		return statementKeywords()
	case contextBlockEntry:
		return []Item{
			{Label: "header", Kind: ItemKeyword, InsertText: "header"},
			{Label: "body", Kind: ItemKeyword, InsertText: "body"},
		}
	case contextAttribute:
		return attributeItems()
	case contextHeaderName:
		items := make([]Item, 0, len(HeaderNames))
		for _, name := range HeaderNames {
			items = append(items, Item{Label: name, Kind: ItemConstant, InsertText: `"` + name + `"`})
		}
		return items
	case contextSetName:
		return []Item{{Label: interpreter.BaseURLName, Kind: ItemConstant, InsertText: interpreter.BaseURLName}}
	case contextEnvVar:
		if cat == nil {
			return nil
		}
		var items []Item
		for _, name := range cat.AllNames() {
			items = append(items, Item{Label: name, Kind: ItemConstant, InsertText: name})
		}
		return items
	case contextExpr:
		return append(builtinItems(), variableItems(path, src, offset)...)
	}
	return nil
}

func statementKeywords() []Item {
	words := []string{"let", "set"}
	for m := ast.MethodGet; m <= ast.MethodDelete; m++ {
		words = append(words, m.Keyword())
	}
	items := make([]Item, 0, len(words))
	for _, w := range words {
		items = append(items, Item{Label: w, Kind: ItemKeyword, InsertText: w})
	}
	return items
}

func builtinItems() []Item {
	var items []Item
	for _, b := range []ast.Builtin{ast.BuiltinEnv, ast.BuiltinRead, ast.BuiltinJSON, ast.BuiltinEscapeNewLines} {
		items = append(items, Item{
			Label:      b.Name() + "(..)",
			Kind:       ItemFunction,
			Detail:     builtinDocs[b].signature,
			InsertText: b.Name() + "(${1:argument})",
			Snippet:    true,
		})
	}
	return items
}

func attributeItems() []Item {
	var items []Item
	for _, spec := range interpreter.Attributes {
		if spec.MaxArgs > 0 {
			items = append(items, Item{
				Label:      spec.Name + "(..)",
				Kind:       ItemFunction,
				Detail:     spec.Doc,
				InsertText: spec.Name + "(${1:argument})",
				Snippet:    true,
			})
		}
		if spec.MinArgs == 0 {
			items = append(items, Item{Label: spec.Name, Kind: ItemKeyword, Detail: spec.Doc, InsertText: spec.Name})
		}
	}
	return items
}

func variableItems(path, src string, offset int) []Item {
	prog, _, _ := parser.Parse(path, src)
	table := analysis.Analyze(prog).Table
	current := -1
	for _, stmt := range prog.Stmts {
		if start := ast.SpanOf(stmt).Start.Offset; start <= offset {
			current = start
		}
	}
	var items []Item
	for _, sym := range table.Bindings(offset) {
		// the statement under the cursor does not see itself
		if sym.Decl.Start.Offset == current {
			continue
		}
		items = append(items, Item{Label: sym.Name, Kind: ItemVariable, Detail: string(sym.Kind), InsertText: sym.Name})
	}
	return items
}

// classify decides what belongs at offset by looking at the tokens before
// it. Tokens are used instead of the tree because the text being typed is
// usually incomplete.
func classify(path, src string, offset int) completionContext {
	toks, _ := lexer.Lex(path, src)
	var before []lexer.Token
	var cur *lexer.Token
	for i := range toks {
		tok := toks[i]
		if tok.Kind == lexer.COMMENT {
			if tok.Span.Start.Offset < offset && offset <= tok.Span.End.Offset {
				return contextNone
			}
			continue
		}
		if tok.Kind == lexer.EOF {
			continue
		}
		if tok.Span.End.Offset <= offset {
			if tok.Span.End.Offset == offset && (isWord(tok.Kind) || tok.Kind == lexer.ILLEGAL && inString(&tok)) {
				cur = &toks[i]
				continue
			}
			before = append(before, tok)
			continue
		}
		if tok.Span.Start.Offset < offset {
			cur = &toks[i]
		}
		break
	}

	var prev *lexer.Token
	if len(before) > 0 {
		prev = &before[len(before)-1]
	}

	if inString(cur) {
		switch {
		case prev != nil && prev.Kind == lexer.KW_HEADER:
			return contextHeaderName
		case len(before) >= 2 && prev.Kind == lexer.LPAREN && before[len(before)-2].Lit == ast.BuiltinEnv.Name():
			return contextEnvVar
		}
		return contextNone
	}
	if prev == nil {
		return contextStatement
	}
	switch prev.Kind {
	case lexer.AT:
		return contextAttribute
	case lexer.KW_HEADER:
		return contextHeaderName
	case lexer.KW_SET:
		return contextSetName
	case lexer.KW_LET:
		return contextNone
	case lexer.STRING, lexer.TEMPLATE, lexer.TEMPLATE_TAIL:
		if len(before) >= 2 && before[len(before)-2].Kind == lexer.KW_HEADER && !startsLine(src, offset, prev) {
			return contextExpr
		}
	}

	opener, statementKind := enclosing(before)
	newLine := startsLine(src, offset, prev)
	switch {
	case opener == nil:
		if newLine && !continuesStatement(prev.Kind) {
			return contextStatement
		}
		return contextExpr
	case opener.Kind == lexer.LBRACE && opener.Depth == 0 && statementKind.IsMethod():
		if prev == opener || newLine && !continuesStatement(prev.Kind) {
			return contextBlockEntry
		}
		return contextExpr
	case opener.Kind == lexer.LBRACE:
		// object keys are free text
		if prev.Kind == lexer.COLON {
			return contextExpr
		}
		return contextNone
	}
	return contextExpr
}

// enclosing returns the innermost delimiter still open after toks, and the
// keyword of the top-level statement it belongs to.
func enclosing(toks []lexer.Token) (*lexer.Token, lexer.Kind) {
	var stack []*lexer.Token
	statement := lexer.EOF
	for i := range toks {
		tok := &toks[i]
		if tok.Depth == 0 && (tok.Kind.IsMethod() || tok.Kind == lexer.KW_SET || tok.Kind == lexer.KW_LET) {
			statement = tok.Kind
		}
		switch tok.Kind {
		case lexer.LBRACE, lexer.LBRACK, lexer.LPAREN, lexer.TEMPLATE_HEAD:
			stack = append(stack, tok)
		case lexer.RBRACE, lexer.RBRACK, lexer.RPAREN, lexer.TEMPLATE_TAIL:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return nil, statement
	}
	return stack[len(stack)-1], statement
}

func isWord(k lexer.Kind) bool {
	return k == lexer.IDENT || k.IsKeyword()
}

func inString(tok *lexer.Token) bool {
	if tok == nil {
		return false
	}
	return tok.Kind == lexer.STRING || tok.Kind == lexer.ILLEGAL && strings.HasPrefix(tok.Lit, `"`)
}

// startsLine reports whether only whitespace separates prev from offset
// across at least one line break.
func startsLine(src string, offset int, prev *lexer.Token) bool {
	if prev == nil {
		return true
	}
	end := min(prev.Span.End.Offset, len(src))
	return strings.Contains(src[end:min(offset, len(src))], "\n")
}

// continuesStatement reports whether a statement cannot end at a token of
// kind k.
func continuesStatement(k lexer.Kind) bool {
	switch k {
	case lexer.ASSIGN, lexer.COLON, lexer.COMMA, lexer.AT, lexer.KW_BODY, lexer.KW_HEADER,
		lexer.KW_SET, lexer.KW_LET, lexer.LPAREN, lexer.LBRACK, lexer.TEMPLATE_HEAD, lexer.TEMPLATE_MIDDLE:
		return true
	}
	return k.IsMethod()
}
