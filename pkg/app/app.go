// Package app wires the security gateway to its collaborators and exposes
// the operations the UI process may request.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/computerscienceiscool/code-animator/pkg/auditstore"
	"github.com/computerscienceiscool/code-animator/pkg/config"
	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	"github.com/computerscienceiscool/code-animator/pkg/session"
	"github.com/computerscienceiscool/code-animator/pkg/workspace"
	"go.uber.org/multierr"
)

// App represents the main application
type App struct {
	config    *config.Config
	session   *session.Session
	gateway   *gateway.Gateway
	store     *auditstore.Store
	workspace *workspace.Workspace
	watcher   *workspace.Watcher
}

// GetConfig returns the application config
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetSession returns the current session
func (a *App) GetSession() *session.Session {
	return a.session
}

// GetGateway returns the security gateway
func (a *App) GetGateway() *gateway.Gateway {
	return a.gateway
}

// GetWorkspace returns the workspace, or nil when workspace.create is off
func (a *App) GetWorkspace() *workspace.Workspace {
	return a.workspace
}

// GetStore returns the audit archive, or nil when none is configured
func (a *App) GetStore() *auditstore.Store {
	return a.store
}

// ExportLog writes the security log document to path. An empty path writes
// security-log-<unix-millis>.json into the configured export directory.
// The written path is returned.
func (a *App) ExportLog(path string) (string, error) {
	doc := a.gateway.ExportSecurityLog()

	if path == "" {
		name := fmt.Sprintf("%s%d.json", config.DefaultExportFilePrefix, time.Now().UnixMilli())
		path = filepath.Join(a.config.Audit.ExportDir, name)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode security log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write security log: %w", err)
	}

	a.session.Logger.Info("security log exported", "path", path, "operations", len(doc.Operations))
	return path, nil
}

// Close releases the watcher and the audit archive
func (a *App) Close() error {
	var err error
	if a.watcher != nil {
		err = multierr.Append(err, a.watcher.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	return err
}
