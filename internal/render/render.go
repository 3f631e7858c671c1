// Package render prints diagnostics and response bodies for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/mehditeymorian/rested/internal/diagnostics"
)

// Color modes accepted by New.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Printer writes styled output to one writer.
type Printer struct {
	w     io.Writer
	color bool

	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	gutterStyle  lipgloss.Style
	hintStyle    lipgloss.Style
	boldStyle    lipgloss.Style
}

// New returns a printer for w. In auto mode colors follow the terminal and
// the NO_COLOR/CLICOLOR_FORCE environment.
func New(w io.Writer, mode string) *Printer {
	r := lipgloss.NewRenderer(w)
	var profile termenv.Profile
	switch mode {
	case ColorAlways:
		profile = termenv.ANSI256
	case ColorNever:
		profile = termenv.Ascii
	default:
		profile = termenv.NewOutput(w).EnvColorProfile()
	}
	r.SetColorProfile(profile)

	return &Printer{
		w:            w,
		color:        profile != termenv.Ascii,
		errorStyle:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warningStyle: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		gutterStyle:  r.NewStyle().Foreground(lipgloss.Color("12")),
		hintStyle:    r.NewStyle().Foreground(lipgloss.Color("14")),
		boldStyle:    r.NewStyle().Bold(true),
	}
}

// Color reports whether the printer emits escape sequences.
func (p *Printer) Color() bool { return p.color }

// Diagnostics prints each diagnostic with the source line it points at.
// sources maps file names to their contents; files without a source are
// printed without the excerpt.
func (p *Printer) Diagnostics(diags []diagnostics.Diagnostic, sources map[string]string) {
	for i, d := range diags {
		if i > 0 {
			p.printf("\n")
		}
		p.diagnostic(d, sources[d.File])
	}
}

func (p *Printer) diagnostic(d diagnostics.Diagnostic, src string) {
	style := p.errorStyle
	if d.Severity == diagnostics.SeverityWarning {
		style = p.warningStyle
	}
	p.printf("%s %s\n", style.Render(fmt.Sprintf("%s[%s]:", d.Severity, d.Code)), p.boldStyle.Render(d.Message))

	line := d.Line()
	gutter := strings.Repeat(" ", len(fmt.Sprint(line)))
	p.printf("%s %s:%d:%d\n", p.gutterStyle.Render(gutter+"-->"), d.File, line, d.Column())

	if text, ok := sourceLine(src, line); ok {
		pad, width := caret(text, d.Span.Start.Column, d.Span.End.Column, d.Span.Start.Line == d.Span.End.Line)
		p.printf("%s\n", p.gutterStyle.Render(gutter+" |"))
		p.printf("%s %s\n", p.gutterStyle.Render(fmt.Sprintf("%d |", line)), text)
		p.printf("%s %s%s\n", p.gutterStyle.Render(gutter+" |"), pad, style.Render(strings.Repeat("^", width)))
	}
	if d.Hint != "" {
		p.printf("%s %s\n", p.gutterStyle.Render(gutter+" ="), p.hintStyle.Render("hint: "+d.Hint))
	}
	if d.Related != nil {
		p.printf("%s related: %s:%d:%d %s\n", p.gutterStyle.Render(gutter+" ="), d.Related.File, d.Related.Span.Start.Line, d.Related.Span.Start.Column, d.Related.Message)
	}
	if d.Request != nil && *d.Request != "" {
		p.printf("%s request: %s\n", p.gutterStyle.Render(gutter+" ="), *d.Request)
	}
}

// Summary prints the error and warning counts.
func (p *Printer) Summary(diags []diagnostics.Diagnostic) {
	errs, warns := diagnostics.Count(diags)
	if errs == 0 && warns == 0 {
		return
	}
	parts := []string{}
	if errs > 0 {
		parts = append(parts, p.errorStyle.Render(plural(errs, "error")))
	}
	if warns > 0 {
		parts = append(parts, p.warningStyle.Render(plural(warns, "warning")))
	}
	p.printf("%s\n", strings.Join(parts, ", "))
}

// HighlightJSON writes a JSON body, colored when the printer is. It has the
// signature interpreter.Options.Highlight expects.
func (p *Printer) HighlightJSON(w io.Writer, body string) error {
	if !p.color {
		_, err := io.WriteString(w, body)
		return err
	}
	return quick.Highlight(w, body, "json", "terminal256", "monokai")
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// sourceLine returns the 1-based line of src.
func sourceLine(src string, line int) (string, bool) {
	if src == "" || line < 1 {
		return "", false
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[line-1], "\r"), true
}

// caret returns the padding and width of the marker under a span from
// startCol to endCol (1-based rune columns). Tabs are kept in the padding so
// the marker lines up however the terminal expands them; wide runes count
// double.
func caret(text string, startCol, endCol int, sameLine bool) (string, int) {
	runes := []rune(text)
	from := clamp(startCol-1, 0, len(runes))
	to := len(runes)
	if sameLine {
		to = clamp(endCol-1, from, len(runes))
	}
	var pad strings.Builder
	for _, r := range runes[:from] {
		if r == '\t' {
			pad.WriteRune('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	width := runewidth.StringWidth(string(runes[from:to]))
	if width < 1 {
		width = 1
	}
	return pad.String(), width
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
