// Package format prints scripts in their canonical layout.
package format

import (
	"fmt"
	"strings"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/parser"
)

const indentWidth = 2

// SyntaxError is returned for sources that do not parse cleanly.
type SyntaxError struct {
	File  string
	Diags []diagnostics.Diagnostic
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cannot format %s: %d syntax error(s)", e.File, len(e.Diags))
}

// Source formats src. Scripts with lex or parse errors are refused with a
// *SyntaxError so nothing the parser dropped is lost.
func Source(path, src string) (string, error) {
	prog, lexErrs, parseErrs := parser.Parse(path, src)
	if len(lexErrs)+len(parseErrs) > 0 {
		return "", &SyntaxError{File: path, Diags: diagnostics.FromFrontEnd(lexErrs, parseErrs)}
	}
	return Program(prog), nil
}

// Program prints prog. Statements are separated by a blank line, except
// consecutive let statements and consecutive comments which stay together.
func Program(prog *ast.Program) string {
	p := &printer{}
	var prev ast.Stmt
	for _, stmt := range prog.Stmts {
		if prev != nil {
			p.separate(prev, stmt)
		}
		p.stmt(stmt)
		prev = stmt
	}
	if p.sb.Len() > 0 {
		p.newline()
	}
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) write(s string) { p.sb.WriteString(s) }

func (p *printer) newline() { p.sb.WriteByte('\n') }

func (p *printer) writeIndent() {
	p.write(strings.Repeat(" ", indentWidth*p.indent))
}

func (p *printer) separate(prev, next ast.Stmt) {
	_, prevLet := prev.(*ast.LetStmt)
	_, nextLet := next.(*ast.LetStmt)
	_, prevComment := prev.(*ast.CommentStmt)
	_, nextComment := next.(*ast.CommentStmt)
	p.newline()
	switch {
	case prevLet && nextLet && len(ast.Attrs(next)) == 0:
	case prevComment && nextComment:
	default:
		p.newline()
	}
}

func (p *printer) stmt(stmt ast.Stmt) {
	for _, attr := range ast.Attrs(stmt) {
		p.attribute(attr)
		p.newline()
	}
	switch s := stmt.(type) {
	case *ast.CommentStmt:
		p.write(s.Text)
	case *ast.SetStmt:
		p.write("set " + s.Name + " ")
		p.expr(s.Value)
	case *ast.LetStmt:
		p.write("let " + s.Name + " = ")
		p.expr(s.Value)
	case *ast.RequestStmt:
		p.write(s.Method.Keyword() + " ")
		p.expr(s.URL)
		if s.Block != nil {
			p.write(" ")
			p.block(s.Block)
		}
	}
}

func (p *printer) attribute(attr *ast.Attribute) {
	p.write("@" + attr.Name)
	if attr.Parens || len(attr.Args) > 0 {
		p.write("(")
		p.list(attr.Args)
		p.write(")")
	}
}

func (p *printer) block(b *ast.Block) {
	if len(b.Entries) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.newline()
	p.indent++
	for _, entry := range b.Entries {
		p.writeIndent()
		switch e := entry.(type) {
		case *ast.HeaderEntry:
			p.write("header ")
			p.expr(e.Name)
			p.write(" ")
			p.expr(e.Value)
		case *ast.BodyEntry:
			p.write("body ")
			p.expr(e.Value)
		case *ast.CommentStmt:
			p.write(e.Text)
		}
		p.newline()
	}
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *printer) list(exprs []ast.Expr) {
	for i, e := range exprs {
		if i > 0 {
			p.write(", ")
		}
		p.expr(e)
	}
}

func (p *printer) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.StringLit:
		p.write(e.Raw)
	case *ast.URLLit:
		p.write(e.Raw)
	case *ast.NumberLit:
		p.write(e.Raw)
	case *ast.BoolLit:
		if e.Value {
			p.write("true")
		} else {
			p.write("false")
		}
	case *ast.NullLit:
		p.write("null")
	case *ast.IdentExpr:
		p.write(e.Name)
	case *ast.CallExpr:
		p.write(e.Name + "(")
		p.list(e.Args)
		p.write(")")
	case *ast.ArrayLit:
		p.write("[")
		p.list(e.Elems)
		p.write("]")
	case *ast.ObjectLit:
		p.object(e)
	case *ast.TemplateLit:
		p.write("`")
		for _, part := range e.Parts {
			if part.IsText() {
				p.write(part.Raw)
				continue
			}
			p.write("${")
			p.expr(part.Expr)
			p.write("}")
		}
		p.write("`")
	}
}

func (p *printer) object(o *ast.ObjectLit) {
	if len(o.Entries) == 0 && len(o.Trailing) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.newline()
	p.indent++
	for i, entry := range o.Entries {
		p.comments(entry.Comments)
		p.writeIndent()
		p.write(objectKey(entry) + ": ")
		p.expr(entry.Value)
		if i < len(o.Entries)-1 {
			p.write(",")
		}
		p.newline()
	}
	p.comments(o.Trailing)
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *printer) comments(list []*ast.CommentStmt) {
	for _, c := range list {
		p.writeIndent()
		p.write(c.Text)
		p.newline()
	}
}

func objectKey(entry *ast.ObjectEntry) string {
	if !entry.Quoted {
		return entry.Key
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(entry.Key) + `"`
}
