package app

import (
	"fmt"
	"io"
	"os"

	"github.com/computerscienceiscool/code-animator/pkg/auditstore"
	"github.com/computerscienceiscool/code-animator/pkg/config"
	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	"github.com/computerscienceiscool/code-animator/pkg/session"
	"github.com/computerscienceiscool/code-animator/pkg/workspace"
	"go.uber.org/multierr"
)

// Options are process-level knobs that do not belong in the config file
type Options struct {
	// LogOutput receives structured logs; defaults to stderr
	LogOutput io.Writer
	// GatewayOptions are appended to the options Bootstrap builds
	GatewayOptions []gateway.Option
}

// Bootstrap initializes and returns a configured App
func Bootstrap(cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	logger, err := session.NewLogger(cfg.Logging.Level, cfg.Logging.Format, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	// Create session
	sess := session.NewSession(logger)

	a := &App{config: cfg, session: sess}

	// Optional persistent audit archive
	gwOpts := []gateway.Option{
		gateway.WithLogger(sess.Logger),
		gateway.WithSessionID(sess.ID),
	}
	if cfg.Audit.DBPath != "" {
		store, err := auditstore.Open(cfg.Audit.DBPath, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit archive: %w", err)
		}
		a.store = store
		gwOpts = append(gwOpts, gateway.WithAuditSink(store))
	}
	gwOpts = append(gwOpts, opts.GatewayOptions...)

	gw, err := gateway.New(cfg.Security, gwOpts...)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	a.gateway = gw

	// Workspace directory is always an allowed root; create it on startup
	if cfg.Workspace.Create {
		ws, err := workspace.Ensure(gw.Config().WorkspaceDir)
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		a.workspace = ws
	}

	if len(cfg.Workspace.WatchRoots) > 0 {
		w, err := workspace.NewWatcher(cfg.Workspace.WatchRoots, sess.Logger)
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		a.watcher = w
	}

	sess.Logger.Debug("application bootstrapped",
		"working_dir", gw.Config().WorkingDir,
		"workspace_dir", gw.Config().WorkspaceDir,
		"audit_db", cfg.Audit.DBPath,
	)
	return a, nil
}
