package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports directories created directly under a set of roots.
// The owner decides whether to register them with the gateway.
type Watcher struct {
	w      *fsnotify.Watcher
	dirs   chan string
	logger *slog.Logger

	// mu is held by Run for its whole lifetime so Close never closes dirs
	// under an active sender.
	mu        sync.Mutex
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewWatcher starts watching roots. Roots that do not exist are an error.
func NewWatcher(roots []string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, root := range roots {
		if err := fw.Add(root); err != nil {
			fw.Close()
			return nil, fmt.Errorf("cannot watch %s: %w", root, err)
		}
	}

	return &Watcher{
		w:      fw,
		dirs:   make(chan string, 16),
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Dirs delivers the absolute path of each new directory. It is closed
// by Close.
func (w *Watcher) Dirs() <-chan string {
	return w.dirs
}

// Run forwards events until ctx is done or the watcher is closed. It may
// be called again after it returns; concurrent calls run one at a time.
func (w *Watcher) Run(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Lstat(ev.Name)
			if err != nil || !info.IsDir() {
				continue
			}
			w.logger.Debug("new directory under watch root", "dir", ev.Name)
			select {
			case w.dirs <- ev.Name:
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watcher error", "error", err)
		}
	}
}

// Close stops the underlying fsnotify watcher, waits for Run to return
// and closes Dirs. Repeated calls return the first result.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.w.Close()

		w.mu.Lock()
		w.closed = true
		close(w.dirs)
		w.mu.Unlock()
	})
	return w.closeErr
}
