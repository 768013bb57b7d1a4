package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sourcegraph/conc"
)

// A request line can carry a whole file as a JSON string; \u escapes
// expand a byte to at most six.
const (
	maxEscapeRatio  = 6
	scanBufferSlack = 64 * 1024
)

// Serve reads one JSON request per line from in and writes one JSON
// response per line to out, until in is exhausted or ctx is done.
// Requests are handled one at a time. Directories reported by the
// workspace watcher are registered as allowed roots between requests.
func (a *App) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg conc.WaitGroup
	defer wg.Wait()
	defer cancel()

	// The reader is not part of wg: a blocked Read on an open stdin must
	// not keep Serve from returning.
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), int(a.gateway.Config().MaxFileSize)*maxEscapeRatio+scanBufferSlack)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var dirs <-chan string
	if a.watcher != nil {
		wg.Go(func() { a.watcher.Run(ctx) })
		dirs = a.watcher.Dirs()
	}

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case dir, ok := <-dirs:
			if !ok {
				dirs = nil
				continue
			}
			if abs, err := a.gateway.AddAllowedDir(dir); err != nil {
				a.session.Logger.Warn("could not register directory", "dir", dir, "error", err)
			} else {
				a.session.Logger.Info("registered allowed directory", "dir", abs)
			}

		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("failed reading requests: %w", err)
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			var req Request
			var resp Response
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				resp = failure(fmt.Errorf("malformed request: %w", err))
			} else {
				resp = a.Handle(ctx, req)
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed writing response: %w", err)
			}
		}
	}
}
