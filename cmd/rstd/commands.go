package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mehditeymorian/rested/internal/diagnostics"
	"github.com/mehditeymorian/rested/internal/environ"
	"github.com/mehditeymorian/rested/internal/format"
	"github.com/mehditeymorian/rested/internal/interpreter"
	"github.com/mehditeymorian/rested/internal/parser"
	"github.com/mehditeymorian/rested/internal/render"
	"github.com/mehditeymorian/rested/internal/snapshot"
)

func newFmtCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var write, diff bool
	fmtCmd := &cobra.Command{
		Use:   "fmt <script.rd>",
		Short: "Format a script",
		Long: heredoc.Doc(`
			Print the script in canonical layout. With --write the file is
			rewritten in place; with --diff a unified diff against the file is
			printed instead. Scripts with syntax errors are left untouched.
		`),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &cliExitError{code: 2, msg: "usage: " + fmtUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if write && diff {
				return &cliExitError{code: 2, msg: "--write and --diff are mutually exclusive"}
			}
			path := args[0]
			src, err := readScript(path)
			if err != nil {
				return err
			}
			formatted, err := format.Source(path, src)
			if err != nil {
				var syntaxErr *format.SyntaxError
				if errors.As(err, &syntaxErr) {
					printer := render.New(stderr, g.colorOrConfig())
					printer.Diagnostics(syntaxErr.Diags, map[string]string{path: src})
					return &cliExitError{code: 1, msg: err.Error()}
				}
				return &cliExitError{code: 1, msg: err.Error()}
			}

			switch {
			case diff:
				if formatted != src {
					_, _ = io.WriteString(stdout, udiff.Unified(path, path+" (formatted)", src, formatted))
				}
			case write:
				if formatted == src {
					return nil
				}
				mode := os.FileMode(0o644)
				if info, err := os.Stat(path); err == nil {
					mode = info.Mode().Perm()
				}
				if err := os.WriteFile(path, []byte(formatted), mode); err != nil {
					return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write %s: %v", path, err)}
				}
				_, _ = fmt.Fprintln(stdout, path)
			default:
				_, _ = io.WriteString(stdout, formatted)
			}
			return nil
		},
	}
	fmtCmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite the file in place")
	fmtCmd.Flags().BoolVarP(&diff, "diff", "d", false, "print a unified diff instead of the formatted script")
	return fmtCmd
}

func newSnapCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var namespace string
	snapCmd := &cobra.Command{
		Use:   "snap <curl|yaml|json> <script.rd>",
		Short: "Print the requests a script would send",
		Long: heredoc.Doc(`
			Resolve every request of a script without sending it and print the
			result as curl commands, yaml or json. @skip requests are left out.
		`),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &cliExitError{code: 2, msg: "usage: " + snapUsage}
			}
			return nil
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				out := make([]string, 0, len(snapshot.Formats))
				for _, f := range snapshot.Formats {
					out = append(out, string(f))
				}
				return out, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveDefault
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := snapshot.ParseFormat(args[0])
			if err != nil {
				return &cliExitError{code: 2, msg: err.Error()}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := args[1]
			src, err := readScript(path)
			if err != nil {
				return err
			}
			printer := render.New(stderr, firstNonEmpty(g.color, cfg.Color))
			sources := map[string]string{path: src}

			prog, lexErrs, parseErrs := parser.Parse(path, src)
			if front := diagnostics.FromFrontEnd(lexErrs, parseErrs); len(front) > 0 {
				printer.Diagnostics(diagnostics.SortAndDedupe(front), sources)
				return &cliExitError{code: 1}
			}
			store, err := openStore(filepath.Dir(path), firstNonEmpty(namespace, cfg.Namespace))
			if err != nil {
				return err
			}
			entries, diags := snapshot.Build(context.Background(), prog, interpreter.Options{
				Env:       environ.Chain{store, environ.NewProcess()},
				ScriptDir: filepath.Dir(path),
			})
			if err := snapshot.Write(stdout, f, entries); err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write output: %v", err)}
			}
			diags = diagnostics.SortAndDedupe(diags)
			printer.Diagnostics(diags, sources)
			if diagnostics.HasErrors(diags) {
				return &cliExitError{code: 1}
			}
			return nil
		},
	}
	snapCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "env namespace to read variables from")
	return snapCmd
}

const scratchTemplate = `// scratch %s
set BASE_URL "https://httpbin.org"

@log
get /get
`

func newScratchCmd(stdout io.Writer) *cobra.Command {
	var dir string
	scratchCmd := &cobra.Command{
		Use:   "scratch",
		Short: "Create a new scratch script",
		Long: heredoc.Doc(`
			Create a script with a random name in the scratch directory
			(scratch_dir in the config, or --dir) and print its path.
		`),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return &cliExitError{code: 2, msg: "usage: " + scratchUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.ScratchDir
			}
			id, err := uuid.NewRandom()
			if err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to name scratch file: %v", err)}
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to create scratch directory: %v", err)}
			}
			path := filepath.Join(dir, "scratch-"+id.String()[:8]+".rd")
			if err := os.WriteFile(path, []byte(fmt.Sprintf(scratchTemplate, id)), 0o644); err != nil {
				return &cliExitError{code: 1, msg: fmt.Sprintf("failed to write scratch file: %v", err)}
			}
			_, _ = fmt.Fprintln(stdout, path)
			return nil
		},
	}
	scratchCmd.Flags().StringVar(&dir, "dir", "", "directory to create the script in (default from config)")
	return scratchCmd
}

// colorOrConfig resolves the color mode for commands that do not need the
// rest of the config.
func (g *globals) colorOrConfig() string {
	if g.color != "" {
		return g.color
	}
	if cfg, err := loadConfig(); err == nil {
		return cfg.Color
	}
	return render.ColorAuto
}
