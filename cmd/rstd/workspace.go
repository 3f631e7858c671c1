package main

import (
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/mehditeymorian/rested/internal/config"
	"github.com/mehditeymorian/rested/internal/environ"
)

func newEnvCmd(stdout io.Writer) *cobra.Command {
	var (
		file      string
		namespace string
	)
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and edit the env file",
		Long: heredoc.Doc(`
			Manage .env.rd.json, the namespaced variables read by env(name).
			The file in the current directory is used when it exists, then
			the one in the home directory. --file picks another one.

			  {"default": {"TOKEN": "abc"}, "prod": {"TOKEN": "xyz"}}
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return &cliExitError{code: 2, msg: "usage: " + envUsage}
		},
	}
	envCmd.PersistentFlags().StringVar(&file, "file", "", "env file to use")
	envCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "namespace to act on (default from config)")

	open := func(create bool) (*environ.Store, error) {
		ns := namespace
		if ns == "" {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			ns = cfg.Namespace
		}
		var (
			store *environ.Store
			err   error
		)
		if file != "" {
			store, err = environ.Open(file)
			if err != nil {
				return nil, &cliExitError{code: 1, msg: err.Error()}
			}
		} else {
			wd, _ := os.Getwd()
			if store, err = openStore(wd, ""); err != nil {
				return nil, err
			}
		}
		if create && ns != "" {
			store.AddNamespace(ns)
		}
		if err := store.Select(ns); err != nil {
			return nil, &cliExitError{code: 1, msg: fmt.Sprintf("%v in %s", err, store.Path())}
		}
		return store, nil
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the variables of a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(false)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "# %s (%s)\n", store.Path(), store.Selected())
			for _, name := range store.Names() {
				value, _ := store.Lookup(name)
				_, _ = fmt.Fprintf(stdout, "%s=%s\n", name, value)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <NAME> <value>",
		Short: "Set a variable, creating the namespace if needed",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &cliExitError{code: 2, msg: "usage: rstd env set <NAME> <value> [--namespace ns]"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(true)
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			if err := store.Save(); err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			_, _ = fmt.Fprintf(stdout, "set %s in %s\n", args[0], store.Selected())
			return nil
		},
	}

	unsetCmd := &cobra.Command{
		Use:   "unset <NAME>",
		Short: "Remove a variable from a namespace",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &cliExitError{code: 2, msg: "usage: rstd env unset <NAME> [--namespace ns]"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(false)
			if err != nil {
				return err
			}
			if !store.Unset(args[0]) {
				return &cliExitError{code: 1, msg: fmt.Sprintf("variable %s is not set in %s", args[0], store.Selected())}
			}
			if err := store.Save(); err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			_, _ = fmt.Fprintf(stdout, "unset %s in %s\n", args[0], store.Selected())
			return nil
		},
	}

	namespacesCmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List namespaces; the selected one is starred",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(false)
			if err != nil {
				return err
			}
			for _, ns := range store.Namespaces() {
				marker := " "
				if ns == store.Selected() {
					marker = "*"
				}
				_, _ = fmt.Fprintf(stdout, "%s %s\n", marker, ns)
			}
			return nil
		},
	}

	envCmd.AddCommand(showCmd, setCmd, unsetCmd, namespacesCmd)
	return envCmd
}

func newConfigCmd(stdout io.Writer) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the rstd configuration",
		Long: heredoc.Doc(`
			Settings live in config.toml under the user config directory
			(override the directory with RSTD_CONFIG_DIR). Keys:

			  scratch_dir, namespace, timeout, color,
			  telemetry.endpoint, telemetry.insecure, telemetry.service_name
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return &cliExitError{code: 2, msg: "usage: " + configUsage}
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, key := range config.Keys() {
				value, _ := cfg.Get(key)
				_, _ = fmt.Fprintf(stdout, "%s = %q\n", key, value)
			}
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(stdout, config.Path())
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &cliExitError{code: 2, msg: "usage: rstd config set <key> <value>"}
			}
			return nil
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			if err := config.Save(cfg); err != nil {
				return &cliExitError{code: 1, msg: err.Error()}
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, pathCmd, setCmd)
	return configCmd
}
