package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/computerscienceiscool/code-animator/pkg/app"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// printer writes responses either as the framed text format or as JSON
type printer struct {
	w    io.Writer
	json bool
}

// newPrinter picks JSON when --json is set or stdout is not a terminal
func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	useJSON := jsonOutput(cmd)
	if f, ok := w.(*os.File); !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		useJSON = true
	}
	return &printer{w: w, json: useJSON}
}

// print writes resp and returns ErrRequestFailed for rejected requests
func (p *printer) print(label, target string, resp app.Response) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if resp.Success {
		p.printSuccess(label, target, resp)
	} else {
		p.printError(label, target, resp)
	}

	if !resp.Success {
		return ErrRequestFailed
	}
	return nil
}

func (p *printer) printSuccess(label, target string, resp app.Response) {
	w := p.w
	switch {
	case resp.Content != "":
		fmt.Fprintf(w, "=== FILE: %s ===\n", resp.FilePath)
		fmt.Fprint(w, resp.Content)
		if !strings.HasSuffix(resp.Content, "\n") {
			fmt.Fprint(w, "\n")
		}
		fmt.Fprint(w, "=== END FILE ===\n")
		fmt.Fprintf(w, "Size: %s\n", humanize.IBytes(uint64(resp.Size)))
		if resp.Hash != "" {
			fmt.Fprintf(w, "Hash: %s\n", resp.Hash)
		}

	case resp.Stats != nil:
		s := resp.Stats
		fmt.Fprint(w, "=== SECURITY STATS ===\n")
		fmt.Fprintf(w, "Total operations: %d\n", s.TotalOperations)
		fmt.Fprintf(w, "Uptime: %s\n", time.Duration(s.Uptime)*time.Millisecond)
		fmt.Fprintf(w, "Rate limit entries: %d\n", s.RateLimitEntries)
		fmt.Fprintf(w, "Cached hashes: %d\n", s.CachedHashes)
		fmt.Fprintf(w, "Working dir: %s\n", s.Config.WorkingDir)
		fmt.Fprintf(w, "Workspace dir: %s\n", s.Config.WorkspaceDir)
		fmt.Fprintf(w, "Max file size: %s\n", humanize.IBytes(uint64(s.Config.MaxFileSize)))
		types := make([]string, 0, len(resp.Archived))
		for typ := range resp.Archived {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(w, "Archived %s: %s\n", typ, humanize.Comma(resp.Archived[typ]))
		}
		fmt.Fprint(w, "=== END STATS ===\n")

	case resp.Matched != nil:
		fmt.Fprintf(w, "=== MATCH: %s ===\n", target)
		fmt.Fprintf(w, "Matched: %t\n", *resp.Matched)
		fmt.Fprint(w, "=== END MATCH ===\n")

	case resp.Import != nil:
		fmt.Fprintf(w, "=== IMPORT SUCCESSFUL: %s ===\n", resp.Import.Path)
		fmt.Fprintf(w, "Action: %s\n", resp.Import.Action)
		fmt.Fprintf(w, "Bytes written: %s\n", humanize.IBytes(uint64(resp.Import.BytesWritten)))
		if resp.Import.BackupPath != "" {
			fmt.Fprintf(w, "Backup: %s\n", resp.Import.BackupPath)
		}
		fmt.Fprint(w, "=== END IMPORT ===\n")

	default:
		fmt.Fprintf(w, "=== %s OK: %s ===\n", strings.ToUpper(label), resp.FilePath)
		if resp.Size > 0 {
			fmt.Fprintf(w, "Size: %s\n", humanize.IBytes(uint64(resp.Size)))
		}
		if resp.Hash != "" {
			fmt.Fprintf(w, "Hash: %s\n", resp.Hash)
		}
		fmt.Fprintf(w, "=== END %s ===\n", strings.ToUpper(label))
	}
}

func (p *printer) printError(label, target string, resp app.Response) {
	fmt.Fprintf(p.w, "=== ERROR: %s ===\n", resp.ErrorType)
	fmt.Fprintf(p.w, "Message: %s\n", resp.Error)
	if resp.ErrorCode != "" {
		fmt.Fprintf(p.w, "Code: %s\n", resp.ErrorCode)
	}
	fmt.Fprintf(p.w, "Command: %s %s\n", label, target)
	fmt.Fprint(p.w, "=== END ERROR ===\n")
}
