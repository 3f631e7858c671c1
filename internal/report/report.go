// Package report turns a run into JSON and JUnit reports.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/interpreter"
)

// Testcase statuses.
const (
	StatusPassed  = "passed"
	StatusFailure = "failure"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Model is the report model used for JSON and JUnit output.
type Model struct {
	RunID   string  `json:"runId,omitempty"`
	Suites  []Suite `json:"suites"`
	Summary Summary `json:"summary"`
}

type Summary struct {
	Tests    int `json:"tests"`
	Failures int `json:"failures"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`
}

type Suite struct {
	Name      string     `json:"name"`
	Testcases []Testcase `json:"testcases"`
	Summary   Summary    `json:"summary"`
}

type Testcase struct {
	Name       string  `json:"name"`
	Request    string  `json:"request,omitempty"`
	Method     string  `json:"method,omitempty"`
	URL        string  `json:"url,omitempty"`
	StatusCode int     `json:"statusCode,omitempty"`
	Seconds    float64 `json:"time"`
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
}

// NewRunID returns a random identifier for one invocation.
func NewRunID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// Build makes one suite for the script with a testcase per request
// statement. Error diagnostics outside every request become extra error
// cases so a broken let still fails the report.
func Build(script, runID string, result interpreter.Result) Model {
	suite := Suite{Name: script}
	for idx, rr := range result.Requests {
		tc := Testcase{
			Name:    fmt.Sprintf("%d %s", idx+1, display(rr)),
			Request: rr.Name,
			Seconds: rr.Duration.Seconds(),
			Status:  StatusPassed,
		}
		if rr.Request != nil {
			tc.Method, tc.URL = rr.Request.Method, rr.Request.URL
		}
		switch rr.Outcome {
		case interpreter.OutcomeSkipped, interpreter.OutcomeFiltered:
			tc.Status = StatusSkipped
			tc.Message = string(rr.Outcome)
		case interpreter.OutcomeFailed:
			tc.Status = StatusError
			tc.Message = rr.Error
			if d := firstDiagWithin(result.Diags, rr.Span); d != nil {
				tc.Message = diagMessage(*d)
			}
		case interpreter.OutcomeSent:
			if rr.Response != nil {
				tc.StatusCode = rr.Response.Status
				if rr.Response.Status >= 400 {
					tc.Status = StatusFailure
					tc.Message = fmt.Sprintf("HTTP %d %s", rr.Response.Status, rr.Response.StatusText)
				}
			}
		}
		suite.Testcases = append(suite.Testcases, tc)
	}

	statementIndex := 0
	for _, d := range result.Diags {
		if d.Severity != diagnostics.SeverityError || withinAny(result.Requests, d.Span) {
			continue
		}
		statementIndex++
		suite.Testcases = append(suite.Testcases, Testcase{
			Name:    fmt.Sprintf("script :: statement %d", statementIndex),
			Status:  StatusError,
			Message: diagMessage(d),
		})
	}

	suite.Summary = summarize(suite.Testcases)
	model := Model{RunID: runID, Suites: []Suite{suite}}
	model.Summary = summarizeSuites(model.Suites)
	return model
}

func display(rr interpreter.RequestResult) string {
	switch {
	case rr.Name != "":
		return rr.Name
	case rr.Request != nil:
		return rr.Request.Method + " " + rr.Request.URL
	}
	return fmt.Sprintf("request at line %d", rr.Span.Start.Line)
}

func firstDiagWithin(diags []diagnostics.Diagnostic, span ast.Span) *diagnostics.Diagnostic {
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError && within(span, d.Span) {
			copyD := d
			return &copyD
		}
	}
	return nil
}

func withinAny(requests []interpreter.RequestResult, span ast.Span) bool {
	for _, rr := range requests {
		if within(rr.Span, span) {
			return true
		}
	}
	return false
}

func within(outer, inner ast.Span) bool {
	return outer.Start.Offset <= inner.Start.Offset && inner.Start.Offset < outer.End.Offset
}

func diagMessage(d diagnostics.Diagnostic) string {
	return fmt.Sprintf("%s @ %s:%d:%d", d.Message, d.File, d.Line(), d.Column())
}

func summarize(cases []Testcase) Summary {
	s := Summary{Tests: len(cases)}
	for _, tc := range cases {
		switch tc.Status {
		case StatusFailure:
			s.Failures++
		case StatusError:
			s.Errors++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

func summarizeSuites(suites []Suite) Summary {
	s := Summary{}
	for _, suite := range suites {
		s.Tests += suite.Summary.Tests
		s.Failures += suite.Summary.Failures
		s.Errors += suite.Summary.Errors
		s.Skipped += suite.Summary.Skipped
	}
	return s
}

func WriteJSONFile(path string, model Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(model)
}

func WriteJUnitFile(path string, model Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	top := junitSuites{Suites: make([]junitSuite, 0, len(model.Suites))}
	for _, s := range model.Suites {
		js := junitSuite{Name: s.Name, Tests: s.Summary.Tests, Failures: s.Summary.Failures, Errors: s.Summary.Errors, Skipped: s.Summary.Skipped}
		for _, tc := range s.Testcases {
			jtc := junitCase{Name: tc.Name, Classname: s.Name, Time: fmt.Sprintf("%.3f", tc.Seconds)}
			switch tc.Status {
			case StatusFailure:
				jtc.Failure = &junitFailure{Message: tc.Message}
			case StatusError:
				jtc.Error = &junitError{Message: tc.Message}
			case StatusSkipped:
				jtc.Skipped = &junitSkipped{Message: tc.Message}
			}
			js.Cases = append(js.Cases, jtc)
		}
		top.Suites = append(top.Suites, js)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	return enc.Encode(top)
}

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
}

type junitError struct {
	Message string `xml:"message,attr"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}
