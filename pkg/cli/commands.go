package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/computerscienceiscool/code-animator/pkg/app"
	"github.com/computerscienceiscool/code-animator/pkg/config"
	"github.com/computerscienceiscool/code-animator/pkg/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// withApp bootstraps the application, runs fn and closes the app
func withApp(cmd *cobra.Command, v *viper.Viper, fn func(a *app.App) error) error {
	a, err := bootstrapApp(cmd, v)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Run the validation pipeline on a path without reading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				return newPrinter(cmd).print("validate", args[0], a.ValidateFile(args[0]))
			})
		},
	}
}

func newReadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Validate and read a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				return newPrinter(cmd).print("read", args[0], a.ReadFile(args[0]))
			})
		},
	}
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path> <expected-hash>",
		Short: "Validate a file and compare its digest to an expected hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				return newPrinter(cmd).print("verify", args[0], a.VerifyFile(args[0], args[1]))
			})
		},
	}
}

func newMatchCmd(v *viper.Viper) *cobra.Command {
	var file, content string

	cmd := &cobra.Command{
		Use:   "match <pattern>",
		Short: "Evaluate a regular expression under the execution time limit",
		Long: `Evaluate a regular expression against --content, or against a file read
through the gateway with --file. Evaluation is abandoned once the configured
max_pattern_execution_time has elapsed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && content == "" {
				return fmt.Errorf("one of --file or --content is required")
			}
			return withApp(cmd, v, func(a *app.App) error {
				resp := a.Match(cmd.Context(), args[0], content, file)
				return newPrinter(cmd).print("match", args[0], resp)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "File to match against")
	cmd.Flags().StringVar(&content, "content", "", "Text to match against")
	return cmd
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show security statistics and the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				return newPrinter(cmd).print("stats", "", a.Stats())
			})
		},
	}
}

func newExportLogCmd(v *viper.Viper) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-log",
		Short: "Write the security audit log to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				return newPrinter(cmd).print("export", out, a.Export(out))
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: <export-dir>/security-log-<millis>.json)")
	return cmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-lines requests from the UI process on stdin/stdout",
		Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout. Supported methods: file:read, file:validate, file:verify,
regex:match, security:getStats, security:exportLog, workspace:import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, v, func(a *app.App) error {
				a.GetSession().Logger.Info("serving requests on stdin")
				err := a.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func newWorkspaceCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage the workspace directory",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app.App) error {
				root := a.GetGateway().Config().WorkspaceDir
				if _, err := workspace.Ensure(root); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace ready: %s\n", root)
				return nil
			})
		},
	}

	var name string
	var backup bool
	importCmd := &cobra.Command{
		Use:   "import <source>",
		Short: "Copy a file into the workspace so it can be opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			return withApp(cmd, v, func(a *app.App) error {
				maxSize := a.GetGateway().Config().MaxFileSize
				info, err := os.Stat(src)
				if err != nil {
					return fmt.Errorf("cannot read source: %w", err)
				}
				if info.Size() > maxSize {
					return fmt.Errorf("source too large (%d bytes, max %d)", info.Size(), maxSize)
				}
				content, err := os.ReadFile(src)
				if err != nil {
					return fmt.Errorf("cannot read source: %w", err)
				}

				target := name
				if target == "" {
					target = filepath.Base(src)
				}
				return newPrinter(cmd).print("import", target, a.Import(target, string(content), backup))
			})
		},
	}
	importCmd.Flags().StringVar(&name, "name", "", "Path inside the workspace (default: source file name)")
	importCmd.Flags().BoolVar(&backup, "backup", true, "Back up an existing file before overwriting it")

	cmd.AddCommand(initCmd, importCmd)
	return cmd
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var out string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = config.DefaultConfigPath()
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", out)
			}

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("failed to build config: %w", err)
			}
			if err := config.SaveConfig(cfg, out); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: ./code-animator.config.yaml)")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
