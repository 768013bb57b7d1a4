package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// CheckSymlinkSafety enforces the symlink policy for filePath. Every
// component below the allowed root containing filePath is inspected, so a
// linked directory is treated the same as a linked file. With symlinks
// disabled any link is rejected outright. With symlinks allowed the chain is
// followed hop by hop, each resolved path must itself pass IsPathSafe, and
// the chain may not be longer than MaxSymlinkDepth. depth is the number of
// hops already taken to reach filePath.
func (g *Gateway) CheckSymlinkSafety(filePath string, depth int) error {
	if depth > g.cfg.MaxSymlinkDepth {
		return newSymlinkError(g.now(),
			fmt.Sprintf("Symlink depth exceeded: %d > %d", depth, g.cfg.MaxSymlinkDepth), filePath, "")
	}

	link, rest, ok := g.firstLink(filePath)
	if !ok {
		// Missing files are reported by the size stage.
		return nil
	}

	target, err := g.readlink(link)
	if err != nil {
		return newSymlinkError(g.now(), fmt.Sprintf("Cannot read symlink: %v", err), filePath, "")
	}

	if !g.cfg.AllowSymlinks {
		return newSymlinkError(g.now(), "Symlinks are disabled by security policy", filePath, target)
	}

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(link), resolved)
	}
	next := filepath.Join(resolved, rest)
	if err := g.IsPathSafe(next); err != nil {
		serr := newSymlinkError(g.now(), fmt.Sprintf("Symlink target not allowed: %s", next), filePath, target)
		serr.Err = err
		return serr
	}

	return g.CheckSymlinkSafety(next, depth+1)
}

// firstLink walks filePath one component at a time, starting below the
// deepest allowed root that contains it, and returns the first component
// that is a symlink together with the remainder of the path. The allowed
// roots themselves are operator configuration and are not inspected.
func (g *Gateway) firstLink(filePath string) (link, rest string, ok bool) {
	base := g.containingRoot(filePath)
	if base == "" {
		base = filepath.VolumeName(filePath) + string(filepath.Separator)
	}

	relPath, err := filepath.Rel(base, filePath)
	if err != nil || relPath == "." {
		return "", "", false
	}

	parts := strings.Split(relPath, string(filepath.Separator))
	current := base
	for i, part := range parts {
		current = filepath.Join(current, part)
		info, exists := g.lstat(current)
		if !exists {
			return "", "", false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return current, filepath.Join(parts[i+1:]...), true
		}
	}
	return "", "", false
}

// containingRoot returns the longest allowed root that contains path.
func (g *Gateway) containingRoot(path string) string {
	best := ""
	roots := append([]string{g.cfg.WorkingDir, g.cfg.WorkspaceDir}, g.allowedDirs()...)
	for _, root := range roots {
		if isWithin(path, root) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

// lstat inspects filePath without following a final symlink. Filesystems
// without link support report every entry as a regular file.
func (g *Gateway) lstat(filePath string) (os.FileInfo, bool) {
	lstater, ok := g.fs.(afero.Lstater)
	if !ok {
		return nil, false
	}
	info, _, err := lstater.LstatIfPossible(filePath)
	if err != nil {
		return nil, false
	}
	return info, true
}

func (g *Gateway) readlink(filePath string) (string, error) {
	reader, ok := g.fs.(afero.LinkReader)
	if !ok {
		return "", fmt.Errorf("filesystem does not support reading links")
	}
	return reader.ReadlinkIfPossible(filePath)
}
