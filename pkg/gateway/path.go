package gateway

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Syntactic patterns rejected before any filesystem access.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\.[/\\]`),       // ../ or ..\
	regexp.MustCompile(`[<>"|?*]`),        // invalid filename characters (":" stays for drive letters)
	regexp.MustCompile(`\x00`),            // null byte
	regexp.MustCompile(`[\x00-\x1f\x7f]`), // control characters
}

// ValidateInput rejects empty strings, traversal segments, reserved
// characters, control characters and over-long paths. It never touches the
// filesystem.
func (g *Gateway) ValidateInput(target string) error {
	if target == "" {
		return newSecurityError(g.now(), CodeInvalidInput, "Invalid input: target must be a non-empty string", "", nil)
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(target) {
			return newPathTraversalError(g.now(),
				fmt.Sprintf("Dangerous pattern detected in input: %q", target), "", target)
		}
	}

	if len(target) > g.cfg.MaxPathLength {
		return newPathTraversalError(g.now(),
			fmt.Sprintf("Path too long: %d > %d", len(target), g.cfg.MaxPathLength), "", target)
	}

	return nil
}

// normalizePath cleans p and unifies separators to "/".
func normalizePath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(p)), `\`, "/")
}

// IsPathSafe rejects paths matching a forbidden pattern and paths that do
// not fall under the working directory, the workspace directory or one of
// the extra allowed directories.
func (g *Gateway) IsPathSafe(targetPath string) error {
	normalized := normalizePath(targetPath)

	for _, forbidden := range g.forbidden {
		if forbidden.MatchString(normalized) {
			return newPathTraversalError(g.now(),
				fmt.Sprintf("Access to forbidden path: %s", targetPath), targetPath, normalized)
		}
	}

	absPath := g.resolve(targetPath)
	if isWithin(absPath, g.cfg.WorkingDir) || isWithin(absPath, g.cfg.WorkspaceDir) {
		return nil
	}
	for _, dir := range g.allowedDirs() {
		if isWithin(absPath, dir) {
			return nil
		}
	}

	return newPathTraversalError(g.now(),
		fmt.Sprintf("Path outside allowed directories. Please copy files to workspace folder: %s", g.cfg.WorkspaceDir),
		targetPath, absPath)
}

// resolve returns the absolute, cleaned form of p. Relative paths are taken
// relative to the configured working directory.
func (g *Gateway) resolve(p string) string {
	return g.cfg.resolve(p)
}

// isWithin reports whether path equals root or lies below it. The check is
// done on whole path segments so /work does not contain /workshop.
func isWithin(path, root string) bool {
	if root == "" {
		return false
	}
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
