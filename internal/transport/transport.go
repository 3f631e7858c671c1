// Package transport is the only place requests leave the process.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/mehditeymorian/rested/internal/telemetry"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Header is one name/value pair. Duplicates are kept and sent in order.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Request is a fully resolved request ready to be sent.
type Request struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Method  string   `json:"method" yaml:"method"`
	URL     string   `json:"url" yaml:"url"`
	Headers []Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    *string  `json:"body,omitempty" yaml:"body,omitempty"`
}

// Response is what came back from the server.
type Response struct {
	Status     int
	StatusText string
	Headers    []Header
	Body       []byte
	Duration   time.Duration
}

// Sender dispatches one request synchronously.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) (*Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Error reports a request that never produced a response.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// HTTPSender sends requests with net/http.
type HTTPSender struct {
	client  *http.Client
	timeout time.Duration
	inst    telemetry.Instrumenter
}

// Option configures an HTTPSender.
type Option func(*HTTPSender)

// WithTimeout sets the per-request timeout. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClient replaces the underlying http.Client.
func WithClient(c *http.Client) Option {
	return func(s *HTTPSender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithInstrumenter wraps every request in a telemetry span.
func WithInstrumenter(inst telemetry.Instrumenter) Option {
	return func(s *HTTPSender) {
		if inst != nil {
			s.inst = inst
		}
	}
}

// NewHTTPSender returns a Sender backed by net/http.
func NewHTTPSender(opts ...Option) *HTTPSender {
	s := &HTTPSender{
		client:  &http.Client{},
		timeout: DefaultTimeout,
		inst:    telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewBufferString(*req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	ctx, span := s.inst.Start(ctx, telemetry.RequestStart{Name: req.Name, HTTPRequest: httpReq})
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		span.End(telemetry.RequestResult{Err: err})
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.End(telemetry.RequestResult{Err: err, StatusCode: resp.StatusCode})
		return nil, &Error{Method: req.Method, URL: req.URL, Err: fmt.Errorf("read response body: %w", err)}
	}
	out := &Response{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Body:       data,
		Duration:   time.Since(start),
	}
	for name, values := range resp.Header {
		for _, v := range values {
			out.Headers = append(out.Headers, Header{Name: name, Value: v})
		}
	}
	sort.SliceStable(out.Headers, func(i, j int) bool { return out.Headers[i].Name < out.Headers[j].Name })
	span.End(telemetry.RequestResult{StatusCode: resp.StatusCode, Bytes: len(data)})
	return out, nil
}
