// Package workspace manages the writable directory the application keeps
// user-supplied source files in.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"
)

// Workspace is a directory under which imported files are stored
type Workspace struct {
	Root string
	fs   afero.Fs
	now  func() time.Time
}

// ImportResult describes a file written into the workspace
type ImportResult struct {
	Path         string `json:"path"`
	Action       string `json:"action"` // CREATED or UPDATED
	BytesWritten int64  `json:"bytesWritten"`
	BackupPath   string `json:"backupPath,omitempty"`
}

// ImportOptions controls Import
type ImportOptions struct {
	MaxSize int64
	Backup  bool
}

// Ensure creates the workspace directory if needed and returns it
func Ensure(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve workspace directory: %w", err)
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	info, err := fs.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace path is not a directory: %s", abs)
	}

	return &Workspace{Root: abs, fs: fs, now: time.Now}, nil
}

// Path resolves name under the workspace root. Symlinks and ".." in name
// are evaluated as if the root were the filesystem root, so the result
// never escapes the workspace.
func (w *Workspace) Path(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("file name must not be empty")
	}
	if strings.ContainsRune(name, 0) {
		return "", errors.New("file name contains a null byte")
	}
	return securejoin.SecureJoin(w.Root, name)
}

// Import writes content to name inside the workspace
func (w *Workspace) Import(name string, content []byte, opts ImportOptions) (*ImportResult, error) {
	if opts.MaxSize > 0 && int64(len(content)) > opts.MaxSize {
		return nil, fmt.Errorf("content too large (%d bytes, max %d)", len(content), opts.MaxSize)
	}

	target, err := w.Path(name)
	if err != nil {
		return nil, err
	}
	if target == w.Root {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	result := &ImportResult{Path: target, Action: "CREATED"}

	if info, err := w.fs.Stat(target); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("target is a directory: %s", target)
		}
		result.Action = "UPDATED"
		if opts.Backup {
			backup, err := w.backup(target)
			if err != nil {
				return nil, err
			}
			result.BackupPath = backup
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot stat target: %w", err)
	}

	if err := w.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Write to a temp file in the same directory, then rename over the target
	tmp, err := afero.TempFile(w.fs, filepath.Dir(target), ".import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		w.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		w.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := w.fs.Chmod(tmpName, 0644); err != nil {
		w.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := w.fs.Rename(tmpName, target); err != nil {
		w.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	result.BytesWritten = int64(len(content))
	return result, nil
}

// backup copies an existing file to <file>.bak.<unix>
func (w *Workspace) backup(filePath string) (string, error) {
	backupPath := fmt.Sprintf("%s.bak.%d", filePath, w.now().Unix())

	original, err := afero.ReadFile(w.fs, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read original file: %w", err)
	}
	if err := afero.WriteFile(w.fs, backupPath, original, 0644); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}
