// Package snapshot renders the requests a script would send, without
// sending them, as curl commands, yaml or json.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mehditeymorian/rested/internal/ast"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/interpreter"
)

// Format selects the snapshot output.
type Format string

const (
	FormatCurl Format = "curl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCurl, FormatYAML, FormatJSON}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown snapshot format %q (use curl, yaml or json)", s)
}

// Header is one request header.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Entry is one resolved request.
type Entry struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Method  string   `json:"method" yaml:"method"`
	URL     string   `json:"url" yaml:"url"`
	Headers []Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    *string  `json:"body,omitempty" yaml:"body,omitempty"`
	Debug   bool     `json:"debug,omitempty" yaml:"debug,omitempty"`
	Log     bool     `json:"log,omitempty" yaml:"log,omitempty"`
	LogPath string   `json:"logPath,omitempty" yaml:"log_path,omitempty"`
}

type document struct {
	Requests []Entry `json:"requests" yaml:"requests"`
}

// Build resolves the requests of prog in dry-run mode. Skipped and filtered
// requests are left out; requests that fail to resolve are reported in the
// diagnostics.
func Build(ctx context.Context, prog *ast.Program, opt interpreter.Options) ([]Entry, []diagnostics.Diagnostic) {
	opt.DryRun = true
	opt.Sender = nil
	res := interpreter.Run(ctx, prog, opt)
	var entries []Entry
	for _, r := range res.Requests {
		if r.Outcome != interpreter.OutcomePlanned || r.Request == nil {
			continue
		}
		e := Entry{
			Name:    r.Name,
			Method:  r.Request.Method,
			URL:     r.Request.URL,
			Body:    r.Request.Body,
			Debug:   r.Debug,
			Log:     r.Log,
			LogPath: r.LogPath,
		}
		for _, h := range r.Request.Headers {
			e.Headers = append(e.Headers, Header{Name: h.Name, Value: h.Value})
		}
		entries = append(entries, e)
	}
	return entries, res.Diags
}

// Write renders entries in format f.
func Write(w io.Writer, f Format, entries []Entry) error {
	switch f {
	case FormatCurl:
		for i, e := range entries {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, Curl(e)+"\n"); err != nil {
				return err
			}
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document{Requests: nonNil(entries)}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		data, err := json.MarshalIndent(document{Requests: nonNil(entries)}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	}
	return fmt.Errorf("unknown snapshot format %q", f)
}

func nonNil(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// Curl renders e as a shell snippet. @name becomes an echo line, @dbg wraps
// the command in set -xe/set +xe and @log(path) redirects stdout.
func Curl(e Entry) string {
	var sb strings.Builder
	if e.Debug {
		sb.WriteString("set -xe\n")
	}
	if e.Name != "" {
		sb.WriteString("echo " + shellWord(e.Name) + "\n")
	}
	sb.WriteString("curl -X " + e.Method + " ")
	for _, h := range e.Headers {
		sb.WriteString("-H " + doubleQuote(h.Name+": "+h.Value) + " ")
	}
	if e.Body != nil {
		sb.WriteString("-d " + singleQuote(*e.Body) + " ")
	}
	sb.WriteString(shellWord(e.URL))
	if e.LogPath != "" {
		sb.WriteString(" 1> " + shellWord(e.LogPath))
	}
	if e.Debug {
		sb.WriteString("\nset +xe")
	}
	return sb.String()
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func doubleQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}

// shellWord quotes s only when the shell would split or expand it.
func shellWord(s string) string {
	if s == "" {
		return "''"
	}
	for _, r := range s {
		if !isSafe(r) {
			return singleQuote(s)
		}
	}
	return s
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./:@%+=,", r)
}
