// Package gateway mediates every file open requested by the UI process.
//
// A candidate path goes through a fixed, fail-fast pipeline before any byte
// of content is exposed:
//
//	resolve -> input syntax -> allowed roots -> symlink policy ->
//	extension -> size -> rate limit -> hash
//
// Cheap string checks run before anything touches the filesystem. Every
// outcome, accepted or rejected, is appended to the audit trail.
package gateway

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Gateway is the file-access security gateway. One instance is owned by
// the application process.
type Gateway struct {
	cfg        Config
	forbidden  []*regexp.Regexp
	extensions map[string]struct{}

	// extraMu guards cfg.ExtraAllowedDirs, the only field that changes
	// after construction.
	extraMu sync.RWMutex

	fs        afero.Fs
	logger    *slog.Logger
	now       func() time.Time
	sink      AuditSink
	sessionID string

	startTime time.Time
	limiter   *rateWindow
	hashes    *hashTable
	audit     *auditLog
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(g *Gateway) { g.fs = fs }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithClock replaces time.Now for rate limiting, regex timing and all
// audit and error timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithAuditSink forwards every audit entry to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithSessionID tags exported logs with the owning session.
func WithSessionID(id string) Option {
	return func(g *Gateway) { g.sessionID = id }
}

// New creates a gateway from cfg. The configuration is copied; later
// changes to cfg have no effect.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	cfg = cfg.clone()
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("invalid security configuration: %w", err)
	}

	forbidden, err := compileForbidden(cfg.ForbiddenPaths)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[ext] = struct{}{}
	}

	g := &Gateway{
		cfg:        cfg,
		forbidden:  forbidden,
		extensions: exts,
		fs:         afero.NewOsFs(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		hashes:     newHashTable(),
		audit:      newAuditLog(cfg.AuditCapacity),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.startTime = g.now()
	g.limiter = newRateWindow(cfg.RateLimitWindow, cfg.MaxOperationsPerWindow, cfg.MaxFilesPerSecond)
	return g, nil
}

// Config returns a copy of the active configuration.
func (g *Gateway) Config() Config {
	g.extraMu.RLock()
	defer g.extraMu.RUnlock()
	return g.cfg.clone()
}

// AddAllowedDir registers dir as an additional allowed root. This is the
// only mutation permitted after construction; it should be called by the
// gateway's owner only.
func (g *Gateway) AddAllowedDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("allowed directory must not be empty")
	}
	abs := g.resolve(dir)

	g.extraMu.Lock()
	for _, existing := range g.cfg.ExtraAllowedDirs {
		if existing == abs {
			g.extraMu.Unlock()
			return abs, nil
		}
	}
	g.cfg.ExtraAllowedDirs = append(g.cfg.ExtraAllowedDirs, abs)
	g.extraMu.Unlock()

	g.logOperation(OpAllowedDirAdded, map[string]any{"dir": abs})
	return abs, nil
}

func (g *Gateway) allowedDirs() []string {
	g.extraMu.RLock()
	defer g.extraMu.RUnlock()
	return append([]string(nil), g.cfg.ExtraAllowedDirs...)
}

// ValidationResult describes a file that passed every stage.
type ValidationResult struct {
	Valid     bool      `json:"valid"`
	FilePath  string    `json:"filePath"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidateFile runs the full validation pipeline on filePath.
func (g *Gateway) ValidateFile(filePath string) (*ValidationResult, error) {
	result, err := g.validate(filePath)
	if err != nil {
		data := map[string]any{
			"filePath": filePath,
			"error":    err.Error(),
		}
		if gerr, ok := AsError(err); ok {
			data["errorType"] = gerr.Name()
			data["errorCode"] = gerr.Tag()
		}
		g.logOperation(OpValidationFailed, data)
		g.logger.Info("file validation rejected", "path", filePath, "error", err)
		return nil, err
	}

	g.logOperation(OpValidationSuccess, map[string]any{
		"filePath": result.FilePath,
		"size":     result.Size,
		"hash":     result.Hash,
	})
	return result, nil
}

func (g *Gateway) validate(filePath string) (*ValidationResult, error) {
	// 1. Resolve the absolute path (string-only, no filesystem access)
	absPath := g.resolve(filePath)

	// 2. Input validation on both the literal and the resolved form
	if err := g.ValidateInput(filePath); err != nil {
		return nil, err
	}
	if err := g.ValidateInput(absPath); err != nil {
		return nil, err
	}

	// 3. Allowed roots
	if err := g.IsPathSafe(absPath); err != nil {
		return nil, err
	}

	// 4. Symlink policy
	if err := g.CheckSymlinkSafety(absPath, 0); err != nil {
		return nil, err
	}

	// 5. Extension
	if err := g.ValidateFileExtension(absPath); err != nil {
		return nil, err
	}

	// 6. Size
	size, err := g.ValidateFileSize(absPath)
	if err != nil {
		return nil, err
	}

	// 7. Rate limit
	if err := g.CheckRateLimit(g.rateLimitKey(absPath)); err != nil {
		return nil, err
	}

	// 8. Hash
	var sum string
	if g.cfg.VerifyFileIntegrity {
		sum, err = g.CalculateFileHash(absPath)
		if err != nil {
			return nil, err
		}
	}

	return &ValidationResult{
		Valid:     true,
		FilePath:  absPath,
		Size:      size,
		Hash:      sum,
		Timestamp: g.now(),
	}, nil
}

// ReadResult is a validated file together with its text content.
type ReadResult struct {
	Content   string `json:"content"`
	FilePath  string `json:"filePath"`
	FileName  string `json:"fileName"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	Hash      string `json:"hash,omitempty"`
}

// SecureReadFile validates filePath and then reads it. The file can still
// change between validation and read; a failure at read time is reported
// as READ_ERROR.
func (g *Gateway) SecureReadFile(filePath string) (*ReadResult, error) {
	validation, err := g.ValidateFile(filePath)
	if err != nil {
		return nil, err
	}

	content, err := g.readBounded(validation.FilePath)
	if err != nil {
		rerr := newSecurityError(g.now(), CodeRead, "Failed to read file", validation.FilePath, err)
		g.logOperation(OpReadFailed, map[string]any{
			"filePath": validation.FilePath,
			"error":    rerr.Error(),
		})
		return nil, rerr
	}

	g.logOperation(OpReadSuccess, map[string]any{
		"filePath": validation.FilePath,
		"size":     len(content),
	})

	return &ReadResult{
		Content:   string(content),
		FilePath:  validation.FilePath,
		FileName:  filepath.Base(validation.FilePath),
		Extension: filepath.Ext(validation.FilePath),
		Size:      validation.Size,
		Hash:      validation.Hash,
	}, nil
}

// readBounded reads at most MaxFileSize bytes. A file that grew past the
// limit since it was validated is an error rather than a partial read.
func (g *Gateway) readBounded(filePath string) ([]byte, error) {
	f, err := g.fs.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, g.cfg.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > g.cfg.MaxFileSize {
		return nil, fmt.Errorf("file grew beyond %d bytes after validation", g.cfg.MaxFileSize)
	}
	return content, nil
}
