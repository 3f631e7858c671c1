package interpreter

import (
	"fmt"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
)

// AttributeSpec describes one supported attribute.
type AttributeSpec struct {
	Name    string
	MinArgs int
	MaxArgs int
	Doc     string
	Example string
}

// Attributes lists every supported attribute.
var Attributes = []AttributeSpec{
	{Name: "log", MinArgs: 0, MaxArgs: 1, Doc: "Print the response body, or write it to the given file path.", Example: `@log("responses/user.json")`},
	{Name: "dbg", MinArgs: 0, MaxArgs: 0, Doc: "Print the resolved request (method, url, headers, body) before sending it.", Example: "@dbg"},
	{Name: "skip", MinArgs: 0, MaxArgs: 0, Doc: "Do not evaluate or send this request.", Example: "@skip"},
	{Name: "name", MinArgs: 1, MaxArgs: 1, Doc: "Name the request so it can be selected with `rstd run -r <name>`.", Example: `@name("create_user")`},
}

// LookupAttribute returns the spec of a supported attribute.
func LookupAttribute(name string) (AttributeSpec, bool) {
	for _, spec := range Attributes {
		if spec.Name == name {
			return spec, true
		}
	}
	return AttributeSpec{}, false
}

const supportedAttributesHint = "@name, @log, @skip and @dbg are the only supported attributes"

// CheckAttributes validates the attributes of stmt. It returns the
// attributes that take effect, keyed by name (the first of duplicates wins),
// and warnings for the rest. Problems never stop a statement.
func CheckAttributes(file string, stmt ast.Stmt) (map[string]*ast.Attribute, []diagnostics.Diagnostic) {
	attrs := ast.Attrs(stmt)
	if len(attrs) == 0 {
		return nil, nil
	}
	var diags []diagnostics.Diagnostic
	warn := func(code string, span ast.Span, msg, hint string) {
		d := diagnostics.Warning(diagnostics.KindAttribute, code, file, span, msg)
		d.Hint = hint
		diags = append(diags, d)
	}

	if _, ok := stmt.(*ast.RequestStmt); !ok {
		keyword := "let"
		if _, isSet := stmt.(*ast.SetStmt); isSet {
			keyword = "set"
		}
		for _, attr := range attrs {
			warn(diagnostics.CodeIgnoredAttribute, attr.Span, fmt.Sprintf("@%s has no effect on %s statements", attr.Name, keyword), "attributes only change requests")
		}
		return nil, diags
	}

	active := map[string]*ast.Attribute{}
	for _, attr := range attrs {
		spec, ok := LookupAttribute(attr.Name)
		if !ok {
			warn(diagnostics.CodeUnknownAttribute, attr.NameSpan, "unsupported attribute: @"+attr.Name, supportedAttributesHint)
			continue
		}
		if _, dup := active[attr.Name]; dup {
			warn(diagnostics.CodeDuplicateAttr, attr.NameSpan, fmt.Sprintf("duplicate attribute: @%s is already set for this request", attr.Name), "the first one is used")
			continue
		}
		n := len(attr.Args)
		switch {
		case n < spec.MinArgs:
			warn(diagnostics.CodeAttributeArgs, attr.Span, fmt.Sprintf("@%s(..) must be given an argument, like %s", attr.Name, spec.Example), "")
			continue
		case n > spec.MaxArgs && spec.MaxArgs == 0:
			warn(diagnostics.CodeAttributeArgs, attr.Span, fmt.Sprintf("@%s takes no arguments", attr.Name), "the arguments are ignored")
		case n > spec.MaxArgs:
			warn(diagnostics.CodeAttributeArgs, attr.Span, fmt.Sprintf("@%s takes at most %d argument(s), received %d", attr.Name, spec.MaxArgs, n), "only the first argument is used")
		}
		active[attr.Name] = attr
	}
	return active, diags
}

// effects are the resolved attributes of one request.
type effects struct {
	skip    bool
	dbg     bool
	log     bool
	logPath string
	name    string
}

// resolveEffects evaluates the @name argument, then the @log path. A skipped
// request evaluates nothing; it keeps its name only when that is a literal.
func (i *interp) resolveEffects(active map[string]*ast.Attribute) (effects, *evalError) {
	var fx effects
	_, fx.skip = active["skip"]
	_, fx.dbg = active["dbg"]

	if fx.skip {
		if attr, ok := active["name"]; ok {
			if lit, isLit := attr.Args[0].(*ast.StringLit); isLit {
				fx.name = lit.Value
			}
		}
		return fx, nil
	}

	if attr, ok := active["name"]; ok {
		v, err := i.eval(attr.Args[0])
		if err != nil {
			return fx, err
		}
		s, isStr := v.(string)
		if !isStr {
			return fx, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(attr.Args[0]),
				fmt.Sprintf("@name expects a string, got %s", typeName(v)))
		}
		fx.name = s
	}

	if attr, ok := active["log"]; ok {
		fx.log = true
		if len(attr.Args) > 0 {
			v, err := i.eval(attr.Args[0])
			if err != nil {
				return fx, err
			}
			path, isStr := v.(string)
			if !isStr {
				return fx, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(attr.Args[0]),
					fmt.Sprintf("@log expects a file path string, got %s", typeName(v)))
			}
			if path == "" {
				return fx, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(attr.Args[0]),
					"@log file path is empty")
			}
			fx.logPath = path
		}
	}
	return fx, nil
}
