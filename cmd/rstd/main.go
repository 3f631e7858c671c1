package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/mehditeymorian/rested/internal/config"
	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/environ"
	"github.com/mehditeymorian/rested/internal/interpreter"
	"github.com/mehditeymorian/rested/internal/langserver"
	"github.com/mehditeymorian/rested/internal/parser"
	"github.com/mehditeymorian/rested/internal/render"
	"github.com/mehditeymorian/rested/internal/report"
	"github.com/mehditeymorian/rested/internal/telemetry"
	"github.com/mehditeymorian/rested/internal/transport"
)

var version = "dev"

const (
	runUsage     = "rstd run <script.rd> [-r name]... [--namespace ns] [--timeout duration] [--report-dir dir] [--format pretty|json] [--verbose]"
	checkUsage   = "rstd check <script.rd> [--format pretty|json]"
	fmtUsage     = "rstd fmt <script.rd> [--write | --diff]"
	snapUsage    = "rstd snap <curl|yaml|json> <script.rd>"
	envUsage     = "rstd env show|set|unset|namespaces"
	configUsage  = "rstd config show|path|set"
	scratchUsage = "rstd scratch [--dir dir]"
)

type cliExitError struct {
	code  int
	msg   string
	usage string
}

func (e *cliExitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.usage != "" {
		return e.usage
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		var exitErr *cliExitError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				_, _ = fmt.Fprintln(stderr, exitErr.msg)
			}
			if exitErr.usage != "" {
				_, _ = fmt.Fprintln(stderr, strings.TrimSpace(exitErr.usage))
			}
			return exitErr.code
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		printUsage(stderr)
		return 2
	}
	return 0
}

// globals are the persistent flags shared by every command.
type globals struct {
	color string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "rstd",
		Short: "Run HTTP requests written in the rested language",
		Long: heredoc.Doc(`
			rstd runs .rd scripts: plain-text files of variables and HTTP
			requests that are sent one after another.

			  set BASE_URL "https://api.example.com"
			  let token = env("TOKEN")

			  @log
			  get /users {
			    header "Authorization" ` + "`Bearer ${token}`" + `
			  }
		`),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &cliExitError{code: 2, usage: rootUsage()}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.color, "color", "", "color output: auto|always|never (default from config)")
	root.AddCommand(
		newRunCmd(g, stdout, stderr),
		newCheckCmd(g, stdout),
		newFmtCmd(g, stdout, stderr),
		newSnapCmd(g, stdout, stderr),
		newEnvCmd(stdout),
		newConfigCmd(stdout),
		newScratchCmd(stdout),
	)
	return root
}

func newRunCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var (
		format    string
		reportDir string
		timeout   string
		namespace string
		requests  []string
		verbose   bool
	)

	runCmd := &cobra.Command{
		Use:   "run <script.rd>",
		Short: "Evaluate a script and send its requests",
		Long: heredoc.Doc(`
			Evaluate a script top to bottom and send every request that is not
			marked @skip. Statements with errors are reported and passed over;
			the rest of the script still runs.

			Use -r to send only requests named with @name. Variables come from
			the .env.rd.json next to the script (or in the home directory) and
			then from the process environment.
		`),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &cliExitError{code: 2, msg: "usage: " + runUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return &cliExitError{code: 2, msg: err.Error()}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := cfg.TimeoutDuration()
			if err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			if timeout != "" {
				d, err = time.ParseDuration(timeout)
				if err != nil {
					return &cliExitError{code: 2, msg: fmt.Sprintf("invalid --timeout value: %v", err)}
				}
			}

			path := args[0]
			src, err := readScript(path)
			if err != nil {
				return err
			}
			store, err := openStore(filepath.Dir(path), firstNonEmpty(namespace, cfg.Namespace))
			if err != nil {
				return err
			}

			runID, err := report.NewRunID()
			if err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			tcfg := cfg.TelemetryConfig().Merge(telemetry.ConfigFromEnv(os.Getenv))
			tcfg.Version = version
			tcfg.RunID = runID
			inst, err := telemetry.New(tcfg)
			if err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to start telemetry: %v", err)}
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := inst.Shutdown(ctx); err != nil {
					_, _ = fmt.Fprintf(stderr, "telemetry shutdown: %v\n", err)
				}
			}()

			color := firstNonEmpty(g.color, cfg.Color)
			out := commandOutput{w: stderr, printer: render.New(stderr, color), format: format}
			bodies := stdout
			if format == "json" {
				// stdout carries the json payload only
				out.w, out.printer, bodies = stdout, render.New(stdout, color), stderr
			}
			highlighter := render.New(bodies, color)

			prog, lexErrs, parseErrs := parser.Parse(path, src)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			result := interpreter.Run(ctx, prog, interpreter.Options{
				Sender:    transport.NewHTTPSender(transport.WithTimeout(d), transport.WithInstrumenter(inst)),
				Env:       environ.Chain{store, environ.NewProcess()},
				ScriptDir: filepath.Dir(path),
				Stdout:    bodies,
				LogWriter: stderr,
				Verbose:   verbose,
				Only:      requests,
				Highlight: highlighter.HighlightJSON,
			})
			diags := diagnostics.SortAndDedupe(append(diagnostics.FromFrontEnd(lexErrs, parseErrs), result.Diags...))
			result.Diags = diags
			model := report.Build(path, runID, result)

			if reportDir != "" {
				if err := writeRunReports(reportDir, model); err != nil {
					return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write reports: %v", err)}
				}
			}
			if err := out.result("run", diags, map[string]string{path: src}, &model, nil); err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write output: %v", err)}
			}
			if diagnostics.HasErrors(diags) {
				return &cliExitError{code: 1}
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&format, "format", "pretty", "output format: pretty|json")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "write JUnit and JSON reports to this directory")
	runCmd.Flags().StringVar(&timeout, "timeout", "", "per-request timeout, e.g. 2s (default from config)")
	runCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "env namespace to read variables from")
	runCmd.Flags().StringArrayVarP(&requests, "request", "r", nil, "send only the request with this @name (repeatable)")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "print verbose execution logs")
	return runCmd
}

func newCheckCmd(g *globals, stdout io.Writer) *cobra.Command {
	var format string
	checkCmd := &cobra.Command{
		Use:   "check <script.rd>",
		Short: "Report problems in a script without sending anything",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &cliExitError{code: 2, msg: "usage: " + checkUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return &cliExitError{code: 2, msg: err.Error()}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := args[0]
			src, err := readScript(path)
			if err != nil {
				return err
			}
			store, err := openStore(filepath.Dir(path), cfg.Namespace)
			if err != nil {
				return err
			}

			analysis := langserver.Analyze(path, src, store)
			out := commandOutput{w: stdout, printer: render.New(stdout, firstNonEmpty(g.color, cfg.Color)), format: format}
			extra := map[string]any{"symbols": analysis.Symbols}
			if err := out.result("check", analysis.Diags, map[string]string{path: src}, nil, extra); err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write output: %v", err)}
			}
			if diagnostics.HasErrors(analysis.Diags) {
				return &cliExitError{code: 1}
			}
			return nil
		},
	}
	checkCmd.Flags().StringVar(&format, "format", "pretty", "output format: pretty|json")
	return checkCmd
}

func validateFormat(format string) error {
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown --format %q (expected pretty|json)", format)
	}
	return nil
}

func writeRunReports(reportDir string, model report.Model) error {
	junitPath := filepath.Join(reportDir, "rstd-junit.xml")
	jsonPath := filepath.Join(reportDir, "rstd-report.json")
	if err := report.WriteJUnitFile(junitPath, model); err != nil {
		return err
	}
	if err := report.WriteJSONFile(jsonPath, model); err != nil {
		return err
	}
	return nil
}

// commandOutput prints the outcome of run and check.
type commandOutput struct {
	w       io.Writer
	printer *render.Printer
	format  string
}

func (o commandOutput) result(cmd string, diags []diagnostics.Diagnostic, sources map[string]string, model *report.Model, extra map[string]any) error {
	switch o.format {
	case "pretty":
		o.printer.Diagnostics(diags, sources)
		if len(diags) > 0 {
			_, _ = fmt.Fprintln(o.w)
			o.printer.Summary(diags)
		}
		if model != nil {
			s := model.Summary
			_, _ = fmt.Fprintf(o.w, "requests=%d passed=%d failures=%d errors=%d skipped=%d\n",
				s.Tests, s.Tests-s.Failures-s.Errors-s.Skipped, s.Failures, s.Errors, s.Skipped)
		}
		if len(diags) == 0 && cmd == "check" {
			_, _ = fmt.Fprintln(o.w, "OK")
		}
		return nil
	case "json":
		if diags == nil {
			diags = []diagnostics.Diagnostic{}
		}
		errs, warnings := diagnostics.Count(diags)
		payload := map[string]any{
			"command":     cmd,
			"ok":          errs == 0,
			"diagnostics": diags,
			"summary":     map[string]int{"error_count": errs, "warning_count": warnings},
		}
		if model != nil {
			payload["report"] = model
		}
		for k, v := range extra {
			payload[k] = v
		}
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	default:
		return fmt.Errorf("unknown --format %q (expected pretty|json)", o.format)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, &cliExitError{code: 1, msg: err.Error()}
	}
	return cfg, nil
}

func readScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &cliExitError{code: 1, msg: fmt.Sprintf("script not found: %s", path)}
		}
		return "", &cliExitError{code: 1, msg: fmt.Sprintf("failed to read script: %v", err)}
	}
	return string(data), nil
}

// openStore loads the env file for a workspace directory and selects ns.
func openStore(dir, ns string) (*environ.Store, error) {
	home, _ := os.UserHomeDir()
	path, _ := environ.Locate(dir, home)
	store, err := environ.Open(path)
	if err != nil {
		return nil, &cliExitError{code: 1, msg: err.Error()}
	}
	if err := store.Select(ns); err != nil {
		return nil, &cliExitError{code: 1, msg: fmt.Sprintf("%v in %s", err, path)}
	}
	return store, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printUsage(stderr io.Writer) {
	_, _ = fmt.Fprintln(stderr, strings.TrimSpace(rootUsage()))
}

func rootUsage() string {
	return `Usage:
  ` + runUsage + `
  ` + checkUsage + `
  ` + fmtUsage + `
  ` + snapUsage + `
  ` + envUsage + `
  ` + configUsage + `
  ` + scratchUsage
}
