package interpreter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
)

func (i *interp) eval(expr ast.Expr) (any, *evalError) {
	switch e := expr.(type) {
	case *ast.StringLit:
		return e.Value, nil
	case *ast.URLLit:
		return e.Raw, nil
	case *ast.NumberLit:
		return e.Value, nil
	case *ast.BoolLit:
		return e.Value, nil
	case *ast.NullLit:
		return nil, nil
	case *ast.IdentExpr:
		return i.evalIdent(e)
	case *ast.TemplateLit:
		var sb strings.Builder
		for _, part := range e.Parts {
			if part.IsText() {
				sb.WriteString(part.Text)
				continue
			}
			v, err := i.eval(part.Expr)
			if err != nil {
				return nil, err
			}
			sb.WriteString(toText(v))
		}
		return sb.String(), nil
	case *ast.ArrayLit:
		out := make([]any, 0, len(e.Elems))
		for _, elem := range e.Elems {
			v, err := i.eval(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.ObjectLit:
		obj := NewObject()
		for _, entry := range e.Entries {
			v, err := i.eval(entry.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(entry.Key, v)
		}
		return obj, nil
	case *ast.CallExpr:
		return i.evalCall(e)
	case *ast.BadExpr:
		return nil, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, e.Span, "invalid expression")
	case nil:
		return nil, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.Span{}, "missing expression")
	}
	return nil, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(expr), fmt.Sprintf("unsupported expression %T", expr))
}

func (i *interp) evalIdent(e *ast.IdentExpr) (any, *evalError) {
	b, ok := i.scope.Lookup(e.Name)
	if !ok {
		err := newEvalError(diagnostics.KindUndefinedIdentifier, diagnostics.CodeUndefinedIdent, e.Span, "undeclared variable: "+e.Name)
		if i.opt.Env != nil {
			if _, inEnv := i.opt.Env.Lookup(e.Name); inEnv {
				return nil, err.withHint(fmt.Sprintf("did you mean env(%q)?", e.Name))
			}
		}
		return nil, err.withHint(fmt.Sprintf("declare it first, like let %s = \"...\"", e.Name))
	}
	if b.failed {
		err := newEvalError(diagnostics.KindUndefinedIdentifier, diagnostics.CodeFailedBinding, e.Span,
			fmt.Sprintf("%s has no value because its declaration failed", e.Name))
		err.related = &diagnostics.Related{File: i.file, Span: b.decl, Message: "declared here"}
		return nil, err
	}
	return b.value, nil
}

func (i *interp) evalCall(e *ast.CallExpr) (any, *evalError) {
	builtin := e.Builtin
	if builtin == ast.BuiltinUnknown {
		builtin = ast.LookupBuiltin(e.Name)
	}
	if builtin == ast.BuiltinUnknown {
		return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeUnknownCall, e.NameSpan, "attempting to call an undefined function: "+e.Name).
			withHint("env(..), read(..), json(..), and escape_new_lines(..) are the only calls supported")
	}
	if len(e.Args) != builtin.Arity() {
		return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeUnknownCall, e.Span,
			fmt.Sprintf("%d argument(s) required, received %d", builtin.Arity(), len(e.Args)))
	}
	arg := e.Args[0]
	v, err := i.eval(arg)
	if err != nil {
		return nil, err
	}

	switch builtin {
	case ast.BuiltinEnv:
		name, err := expectString(builtin, arg, v)
		if err != nil {
			return nil, err
		}
		return i.callEnv(name, arg)
	case ast.BuiltinRead:
		path, err := expectString(builtin, arg, v)
		if err != nil {
			return nil, err
		}
		return i.callRead(path, arg)
	case ast.BuiltinJSON:
		if s, ok := v.(string); ok {
			out, cerr := compactJSON(s)
			if cerr != nil {
				return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeMalformedJSON, ast.SpanOf(arg),
					"json(..) received malformed JSON: "+cerr.Error())
			}
			return out, nil
		}
		return string(encodeJSON(v)), nil
	case ast.BuiltinEscapeNewLines:
		s, err := expectString(builtin, arg, v)
		if err != nil {
			return nil, err
		}
		return escapeNewLines(s), nil
	}
	return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeUnknownCall, e.NameSpan, "attempting to call an undefined function: "+e.Name)
}

func expectString(b ast.Builtin, arg ast.Expr, v any) (string, *evalError) {
	s, ok := v.(string)
	if !ok {
		return "", newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(arg),
			fmt.Sprintf("%s(..) expects a string argument, got %s", b.Name(), typeName(v)))
	}
	return s, nil
}

func (i *interp) callEnv(name string, arg ast.Expr) (any, *evalError) {
	if i.opt.Env != nil {
		if v, ok := i.opt.Env.Lookup(name); ok {
			return v, nil
		}
	}
	return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeEnvMissing, ast.SpanOf(arg),
		fmt.Sprintf("no variable found by the name %q", name)).
		withHint(fmt.Sprintf("set it with `rstd env set %s <value>` or export it in the shell", name))
}

func (i *interp) callRead(path string, arg ast.Expr) (any, *evalError) {
	full := path
	if !filepath.IsAbs(full) && i.opt.ScriptDir != "" {
		full = filepath.Join(i.opt.ScriptDir, full)
	}
	readFile := i.opt.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(full)
	if err != nil {
		return nil, newEvalError(diagnostics.KindCall, diagnostics.CodeReadFailed, ast.SpanOf(arg),
			fmt.Sprintf("failed to read file %q: %v", path, err)).
			withHint("read(..) paths are relative to the script's directory")
	}
	return string(data), nil
}
