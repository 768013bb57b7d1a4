package cli

import (
	"errors"
	"fmt"

	"github.com/computerscienceiscool/code-animator/pkg/app"
	"github.com/computerscienceiscool/code-animator/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrRequestFailed is returned after a rejected request has been printed
var ErrRequestFailed = errors.New("request failed")

// flagKeys maps persistent flags onto nested config keys
var flagKeys = map[string]string{
	"working-dir":      "security.working_dir",
	"workspace-dir":    "security.workspace_dir",
	"allow-dir":        "security.extra_allowed_dirs",
	"allow-symlinks":   "security.allow_symlinks",
	"max-size":         "security.max_file_size",
	"rate-limit-scope": "security.rate_limit_scope",
	"hash-algorithm":   "security.hash_algorithm",
	"watch":            "workspace.watch_roots",
	"audit-db":         "audit.db_path",
	"export-dir":       "audit.export_dir",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

// NewRootCmd builds the command tree. Each tree owns its viper instance.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "code-animator",
		Short: "Secure file access for the code animation workspace",
		Long: `code-animator mediates every file the animation UI opens. Paths are checked
against the allowed roots, symlink policy, extension allow-list, size limits
and a rate limit before any content is returned, and every decision is
recorded in the security audit log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadConfigFile(v, cfgFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./code-animator.config.yaml or $HOME)")

	// Security flags
	flags.String("working-dir", "", "Working directory; relative paths resolve against it (default: current directory)")
	flags.String("workspace-dir", "", "Workspace directory (default: <working-dir>/workspace)")
	flags.StringSlice("allow-dir", nil, "Additional allowed directories")
	flags.Bool("allow-symlinks", false, "Follow symlinks that stay inside allowed directories")
	flags.Int64("max-size", 0, "Maximum file size in bytes")
	flags.String("rate-limit-scope", "", "Rate limit key scope: global or path")
	flags.String("hash-algorithm", "", "Digest: sha256, sha512, sha1, sha3-256, blake2b-256")

	// Collaborators
	flags.StringSlice("watch", nil, "Directories whose new sub-directories become allowed")
	flags.String("audit-db", "", "SQLite file archiving every audit entry")
	flags.String("export-dir", "", "Directory for exported security logs")

	// Output flags
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Bool("json", false, "Output in JSON format")

	for name, key := range flagKeys {
		v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newValidateCmd(v),
		newReadCmd(v),
		newVerifyCmd(v),
		newMatchCmd(v),
		newStatsCmd(v),
		newExportLogCmd(v),
		newServeCmd(v),
		newWorkspaceCmd(v),
		newConfigCmd(v),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// jsonOutput reports whether --json was given on cmd or an ancestor
func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

// bootstrapApp builds the application from the merged configuration
func bootstrapApp(cmd *cobra.Command, v *viper.Viper) (*app.App, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	a, err := app.Bootstrap(cfg, app.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}
	return a, nil
}
