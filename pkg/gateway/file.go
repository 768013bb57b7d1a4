package gateway

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFileExtension checks the lowercase extension against the allow-list.
func (g *Gateway) ValidateFileExtension(filePath string) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	if _, ok := g.extensions[ext]; !ok {
		return newFileValidationError(g.now(),
			fmt.Sprintf("File extension not allowed: %q", ext), filePath, ReasonInvalidExtension, nil)
	}
	return nil
}

// ValidateFileSize stats filePath and returns its size if it lies within
// the configured bounds.
func (g *Gateway) ValidateFileSize(filePath string) (int64, error) {
	info, err := g.fs.Stat(filePath)
	if err != nil {
		return 0, newFileValidationError(g.now(), "Cannot validate file size", filePath, ReasonStatError, err)
	}
	if info.IsDir() {
		return 0, newFileValidationError(g.now(), "Cannot validate file size: path is a directory", filePath, ReasonStatError, nil)
	}

	size := info.Size()
	if size < g.cfg.MinFileSize {
		return size, newFileValidationError(g.now(),
			fmt.Sprintf("File too small: %d bytes", size), filePath, ReasonFileTooSmall, nil)
	}
	if size > g.cfg.MaxFileSize {
		return size, newFileValidationError(g.now(),
			fmt.Sprintf("File too large: %d > %d", size, g.cfg.MaxFileSize), filePath, ReasonFileTooLarge, nil)
	}

	return size, nil
}
