// Package interpreter evaluates a parsed script top to bottom and sends its
// requests.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/environ"
	"github.com/mehditeymorian/rested/internal/transport"
)

// BaseURLName is the global that pathname URLs are joined to.
const BaseURLName = "BASE_URL"

// Options wires the collaborators of a run.
type Options struct {
	Sender    transport.Sender
	Env       environ.Source
	ScriptDir string
	Stdout    io.Writer
	LogWriter io.Writer
	Verbose   bool
	// Only restricts dispatch to requests named with @name.
	Only []string
	// DryRun resolves requests without sending them or applying effects.
	DryRun   bool
	ReadFile func(path string) ([]byte, error)
	// Highlight renders a pretty-printed JSON body for @log; nil writes it as is.
	Highlight func(w io.Writer, body string) error
}

// Outcome says what happened to one request statement.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFiltered Outcome = "filtered"
	OutcomeFailed   Outcome = "failed"
	OutcomePlanned  Outcome = "planned"
)

// RequestResult reports one request statement.
type RequestResult struct {
	Name     string
	Span     ast.Span
	Outcome  Outcome
	Request  *transport.Request
	Response *transport.Response
	Duration time.Duration
	// Error is the first error message when Outcome is failed.
	Error string
	Debug bool
	Log   bool
	// LogPath is the @log file target, empty for stdout.
	LogPath string
}

// Result is everything a run produced.
type Result struct {
	Requests []RequestResult
	Diags    []diagnostics.Diagnostic
}

// Sent counts the requests that got a response.
func (r Result) Sent() int {
	n := 0
	for _, req := range r.Requests {
		if req.Outcome == OutcomeSent {
			n++
		}
	}
	return n
}

type interp struct {
	ctx   context.Context
	opt   Options
	file  string
	scope *Scope
	only  map[string]bool
	res   Result
}

// Run evaluates prog statement by statement. Errors abort only the statement
// they occur in; statements the parser marked broken are passed over.
func Run(ctx context.Context, prog *ast.Program, opt Options) Result {
	if prog == nil {
		return Result{}
	}
	if opt.Sender == nil && !opt.DryRun {
		opt.Sender = transport.NewHTTPSender()
	}
	if opt.Stdout == nil {
		opt.Stdout = io.Discard
	}
	if opt.LogWriter == nil {
		opt.LogWriter = io.Discard
	}
	i := &interp{ctx: ctx, opt: opt, file: prog.File, scope: NewScope()}
	if len(opt.Only) > 0 {
		i.only = map[string]bool{}
		for _, name := range opt.Only {
			i.only[name] = true
		}
	}

	for _, stmt := range prog.Stmts {
		if ctx.Err() != nil {
			break
		}
		switch s := stmt.(type) {
		case *ast.SetStmt:
			i.execSet(s)
		case *ast.LetStmt:
			i.execLet(s)
		case *ast.RequestStmt:
			i.execRequest(s)
		}
	}
	return i.res
}

func (i *interp) execSet(s *ast.SetStmt) {
	_, warns := CheckAttributes(i.file, s)
	i.res.Diags = append(i.res.Diags, warns...)
	if s.Broken {
		i.scope.FailGlobal(s.Name, s.NameSpan)
		return
	}
	v, err := i.eval(s.Value)
	if err == nil && s.Name == BaseURLName {
		if _, ok := v.(string); !ok {
			err = newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(s.Value),
				fmt.Sprintf("%s must be a string, got %s", BaseURLName, typeName(v)))
		}
	}
	if err != nil {
		i.res.Diags = append(i.res.Diags, i.diag(err, ""))
		i.scope.FailGlobal(s.Name, s.NameSpan)
		return
	}
	i.scope.SetGlobal(s.Name, v, s.NameSpan)
	verbosef(i.opt, "set %s = %s", s.Name, toText(v))
}

func (i *interp) execLet(s *ast.LetStmt) {
	_, warns := CheckAttributes(i.file, s)
	i.res.Diags = append(i.res.Diags, warns...)
	if s.Broken {
		i.scope.FailLocal(s.Name, s.NameSpan)
		return
	}
	v, err := i.eval(s.Value)
	if err != nil {
		i.res.Diags = append(i.res.Diags, i.diag(err, ""))
		i.scope.FailLocal(s.Name, s.NameSpan)
		return
	}
	i.scope.SetLocal(s.Name, v, s.NameSpan)
	verbosef(i.opt, "let %s = %s", s.Name, toText(v))
}

func (i *interp) execRequest(s *ast.RequestStmt) {
	rr := RequestResult{Span: s.Span}
	active, warns := CheckAttributes(i.file, s)
	i.res.Diags = append(i.res.Diags, warns...)

	if s.Broken {
		rr.Outcome = OutcomeFailed
		rr.Error = "request has syntax errors"
		i.res.Requests = append(i.res.Requests, rr)
		return
	}

	fx, err := i.resolveEffects(active)
	rr.Name = fx.name
	if err != nil {
		i.fail(&rr, err)
		return
	}
	if fx.skip {
		rr.Outcome = OutcomeSkipped
		verbosef(i.opt, "%s %s: skipped", s.Method, describeURL(s.URL))
		i.res.Requests = append(i.res.Requests, rr)
		return
	}
	if i.only != nil && !i.only[fx.name] {
		rr.Outcome = OutcomeFiltered
		i.res.Requests = append(i.res.Requests, rr)
		return
	}
	rr.Debug, rr.Log, rr.LogPath = fx.dbg, fx.log, fx.logPath

	req, err := i.buildRequest(s, fx.name)
	if err != nil {
		i.fail(&rr, err)
		return
	}
	rr.Request = req

	if i.opt.DryRun {
		rr.Outcome = OutcomePlanned
		i.res.Requests = append(i.res.Requests, rr)
		return
	}

	_, _ = fmt.Fprintf(i.opt.LogWriter, "sending %s request to %s\n", req.Method, req.URL)
	if fx.dbg {
		writeDebug(i.opt.LogWriter, req)
	}

	start := time.Now()
	resp, sendErr := i.opt.Sender.Send(i.ctx, *req)
	rr.Duration = time.Since(start)
	if sendErr != nil {
		code := diagnostics.CodeTransport
		var terr *transport.Error
		if errors.As(sendErr, &terr) && terr.Timeout() {
			code = diagnostics.CodeTimeout
		}
		e := newEvalError(diagnostics.KindTransport, code, requestSpan(s), sendErr.Error())
		i.fail(&rr, e)
		return
	}
	rr.Outcome = OutcomeSent
	rr.Response = resp
	verbosef(i.opt, "%s %s: done (status=%d, %s)", req.Method, req.URL, resp.Status, rr.Duration.Round(time.Millisecond))

	if fx.log {
		if lerr := i.writeLog(resp, fx.logPath); lerr != nil {
			i.res.Diags = append(i.res.Diags, i.diag(newEvalError(diagnostics.KindIO, diagnostics.CodeLogWrite, requestSpan(s), lerr.Error()), rr.Name))
		}
	}
	i.res.Requests = append(i.res.Requests, rr)
}

func (i *interp) fail(rr *RequestResult, err *evalError) {
	rr.Outcome = OutcomeFailed
	rr.Error = err.msg
	i.res.Diags = append(i.res.Diags, i.diag(err, rr.Name))
	i.res.Requests = append(i.res.Requests, *rr)
}

func (i *interp) buildRequest(s *ast.RequestStmt, name string) (*transport.Request, *evalError) {
	url, err := i.resolveURL(s)
	if err != nil {
		return nil, err
	}
	req := &transport.Request{Name: name, Method: s.Method.String(), URL: url}
	for _, h := range s.Headers() {
		nv, err := i.eval(h.Name)
		if err != nil {
			return nil, err
		}
		hname, ok := nv.(string)
		if !ok {
			return nil, newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, ast.SpanOf(h.Name),
				fmt.Sprintf("header name must be a string, got %s", typeName(nv)))
		}
		vv, err := i.eval(h.Value)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, transport.Header{Name: hname, Value: toText(vv)})
	}
	if body := s.Body(); body != nil {
		v, err := i.eval(body.Value)
		if err != nil {
			return nil, err
		}
		text := toText(v)
		req.Body = &text
	}
	return req, nil
}

func (i *interp) resolveURL(s *ast.RequestStmt) (string, *evalError) {
	v, err := i.eval(s.URL)
	if err != nil {
		return "", err
	}
	span := ast.SpanOf(s.URL)
	raw, ok := v.(string)
	if !ok {
		return "", newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, span,
			fmt.Sprintf("request url must be a string, got %s", typeName(v)))
	}
	if hasScheme(raw) {
		return raw, nil
	}
	if !strings.HasPrefix(raw, "/") {
		return "", newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeTypeMismatch, span,
			fmt.Sprintf("request url %q must be absolute (http:// or https://) or a pathname starting with '/'", raw))
	}

	b, ok := i.scope.Global(BaseURLName)
	if !ok {
		return "", newEvalError(diagnostics.KindTypeMismatch, diagnostics.CodeMissingBaseURL, span,
			"BASE_URL needs to be set first for requests to work with just pathnames").
			withHint(`try writing like set BASE_URL "<api origin>" before this request`)
	}
	if b.failed {
		e := newEvalError(diagnostics.KindUndefinedIdentifier, diagnostics.CodeFailedBinding, span,
			"BASE_URL has no value because its declaration failed")
		e.related = &diagnostics.Related{File: i.file, Span: b.decl, Message: "declared here"}
		return "", e
	}
	return joinURL(b.value.(string), raw), nil
}

func hasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// joinURL appends a pathname to the base. A lone "/" yields the base.
func joinURL(base, path string) string {
	if path == "/" {
		return base
	}
	return strings.TrimRight(base, "/") + path
}

// requestSpan covers the method and the url, which is where transport
// problems are reported.
func requestSpan(s *ast.RequestStmt) ast.Span {
	span := s.MethodSpan
	if s.URL != nil {
		span.End = ast.SpanOf(s.URL).End
	}
	return span
}

func describeURL(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.URLLit:
		return e.Raw
	case *ast.StringLit:
		return e.Value
	case *ast.IdentExpr:
		return e.Name
	}
	return "<url>"
}

func writeDebug(w io.Writer, req *transport.Request) {
	_, _ = fmt.Fprintln(w, " ↳ with request data:")
	var sb strings.Builder
	fmt.Fprintf(&sb, "Method: %s\nUrl: %s\nHeaders:", req.Method, req.URL)
	if len(req.Headers) == 0 {
		sb.WriteString(" (none)")
	}
	for _, h := range req.Headers {
		fmt.Fprintf(&sb, "\n  %s: %s", h.Name, h.Value)
	}
	body := "(no body)"
	if req.Body != nil {
		body = *req.Body
	}
	fmt.Fprintf(&sb, "\nBody: %s", body)
	_, _ = fmt.Fprintln(w, indentLines(sb.String(), 6))
}

func (i *interp) writeLog(resp *transport.Response, path string) error {
	pretty := prettyBody(resp.Body)
	if path == "" {
		text := indentLines(pretty, 4)
		if i.opt.Highlight != nil {
			if err := i.opt.Highlight(i.opt.Stdout, text); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			_, err := fmt.Fprintln(i.opt.Stdout)
			return err
		}
		_, err := fmt.Fprintln(i.opt.Stdout, text)
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory for %q: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(pretty), 0o644); err != nil {
		return fmt.Errorf("save response to %q: %w", path, err)
	}
	_, _ = fmt.Fprintf(i.opt.LogWriter, "saved response to %q\n", path)
	return nil
}

func verbosef(opt Options, format string, args ...any) {
	if !opt.Verbose || opt.LogWriter == nil {
		return
	}
	_, _ = fmt.Fprintf(opt.LogWriter, "[verbose] "+format+"\n", args...)
}
