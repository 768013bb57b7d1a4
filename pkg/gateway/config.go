package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Default values for the security configuration
const (
	DefaultMaxPathLength           = 260
	DefaultMinFileSize             = 1
	DefaultMaxFileSize             = 10 * 1024 * 1024 // 10MB
	DefaultMaxSymlinkDepth         = 3
	DefaultMaxPatternExecutionTime = 1 * time.Second
	DefaultMaxOperationsPerWindow  = 500
	DefaultRateLimitWindow         = 1 * time.Minute
	DefaultMaxFilesPerSecond       = 0 // burst limiter off unless configured
	DefaultHashAlgorithm           = HashSHA256
	DefaultAuditCapacity           = 1000
	DefaultWorkspaceDirName        = "workspace"
)

// Rate limit scopes
const (
	ScopeGlobal = "global"
	ScopePath   = "path"
)

// DefaultAllowedExtensions lists the source and text formats the gateway
// will open. Executables, archives and binaries are deliberately absent.
var DefaultAllowedExtensions = []string{
	".js", ".ts", ".jsx", ".tsx", ".vue", ".svelte",
	".html", ".css", ".scss", ".sass", ".less",
	".py", ".java", ".cpp", ".c", ".cs", ".go", ".rs", ".rb",
	".php", ".pl", ".sh", ".bash", ".zsh",
	".yml", ".yaml", ".json", ".xml", ".toml",
	".md", ".txt", ".sql", ".lua", ".swift", ".kt", ".dart", ".scala",
}

// DefaultForbiddenPaths are matched against the normalized, slash-separated
// form of a candidate path.
var DefaultForbiddenPaths = []string{
	`(?i)^[A-Z]:/Windows/`,
	`(?i)^[A-Z]:/Program Files/`,
	`^/etc/`,
	`^/usr/bin/`,
	`^/System/`,
	`^/bin/`,
	`^/sbin/`,
	`(^|/)node_modules(/|$)`,
	`(^|/)\.git(/|$)`,
}

// Config holds the gateway's security configuration.
type Config struct {
	MaxPathLength     int      `mapstructure:"max_path_length" yaml:"max_path_length" json:"max_path_length"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions" json:"allowed_extensions"`
	ForbiddenPaths    []string `mapstructure:"forbidden_paths" yaml:"forbidden_paths" json:"forbidden_paths"`

	// WorkingDir and WorkspaceDir are the built-in allowed roots. Relative
	// candidates are resolved against WorkingDir.
	WorkingDir       string   `mapstructure:"working_dir" yaml:"working_dir" json:"working_dir"`
	WorkspaceDir     string   `mapstructure:"workspace_dir" yaml:"workspace_dir" json:"workspace_dir"`
	ExtraAllowedDirs []string `mapstructure:"extra_allowed_dirs" yaml:"extra_allowed_dirs" json:"extra_allowed_dirs"`

	MinFileSize int64 `mapstructure:"min_file_size" yaml:"min_file_size" json:"min_file_size"`
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size" json:"max_file_size"`

	AllowSymlinks   bool `mapstructure:"allow_symlinks" yaml:"allow_symlinks" json:"allow_symlinks"`
	MaxSymlinkDepth int  `mapstructure:"max_symlink_depth" yaml:"max_symlink_depth" json:"max_symlink_depth"`

	EnableReDoSProtection   bool          `mapstructure:"enable_redos_protection" yaml:"enable_redos_protection" json:"enable_redos_protection"`
	MaxPatternExecutionTime time.Duration `mapstructure:"max_pattern_execution_time" yaml:"max_pattern_execution_time" json:"max_pattern_execution_time"`

	MaxOperationsPerWindow int           `mapstructure:"max_operations_per_window" yaml:"max_operations_per_window" json:"max_operations_per_window"`
	RateLimitWindow        time.Duration `mapstructure:"rate_limit_window" yaml:"rate_limit_window" json:"rate_limit_window"`
	RateLimitScope         string        `mapstructure:"rate_limit_scope" yaml:"rate_limit_scope" json:"rate_limit_scope"`
	MaxFilesPerSecond      int           `mapstructure:"max_files_per_second" yaml:"max_files_per_second" json:"max_files_per_second"`

	HashAlgorithm       string `mapstructure:"hash_algorithm" yaml:"hash_algorithm" json:"hash_algorithm"`
	VerifyFileIntegrity bool   `mapstructure:"verify_file_integrity" yaml:"verify_file_integrity" json:"verify_file_integrity"`

	AuditCapacity int `mapstructure:"audit_capacity" yaml:"audit_capacity" json:"audit_capacity"`
}

// DefaultConfig returns the default security configuration. WorkingDir and
// WorkspaceDir are left empty and filled in by New.
func DefaultConfig() Config {
	return Config{
		MaxPathLength:           DefaultMaxPathLength,
		AllowedExtensions:       append([]string(nil), DefaultAllowedExtensions...),
		ForbiddenPaths:          append([]string(nil), DefaultForbiddenPaths...),
		MinFileSize:             DefaultMinFileSize,
		MaxFileSize:             DefaultMaxFileSize,
		AllowSymlinks:           false,
		MaxSymlinkDepth:         DefaultMaxSymlinkDepth,
		EnableReDoSProtection:   true,
		MaxPatternExecutionTime: DefaultMaxPatternExecutionTime,
		MaxOperationsPerWindow:  DefaultMaxOperationsPerWindow,
		RateLimitWindow:         DefaultRateLimitWindow,
		RateLimitScope:          ScopeGlobal,
		MaxFilesPerSecond:       DefaultMaxFilesPerSecond,
		HashAlgorithm:           DefaultHashAlgorithm,
		VerifyFileIntegrity:     true,
		AuditCapacity:           DefaultAuditCapacity,
	}
}

// clone returns a deep copy so callers never share slices with the gateway.
func (c Config) clone() Config {
	c.AllowedExtensions = append([]string(nil), c.AllowedExtensions...)
	c.ForbiddenPaths = append([]string(nil), c.ForbiddenPaths...)
	c.ExtraAllowedDirs = append([]string(nil), c.ExtraAllowedDirs...)
	return c
}

// normalize resolves the allowed roots and checks the numeric limits.
func (c *Config) normalize() error {
	if c.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot determine working directory: %w", err)
		}
		c.WorkingDir = wd
	}
	wd, err := filepath.Abs(c.WorkingDir)
	if err != nil {
		return fmt.Errorf("cannot resolve working directory: %w", err)
	}
	c.WorkingDir = wd

	if c.WorkspaceDir == "" {
		c.WorkspaceDir = filepath.Join(c.WorkingDir, DefaultWorkspaceDirName)
	}
	c.WorkspaceDir = c.resolve(c.WorkspaceDir)

	extras := make([]string, 0, len(c.ExtraAllowedDirs))
	for _, dir := range c.ExtraAllowedDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		extras = append(extras, c.resolve(dir))
	}
	c.ExtraAllowedDirs = extras

	exts := make([]string, 0, len(c.AllowedExtensions))
	for _, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.AllowedExtensions = exts

	if c.RateLimitScope == "" {
		c.RateLimitScope = ScopeGlobal
	}

	switch {
	case c.MaxPathLength <= 0:
		return fmt.Errorf("max_path_length must be positive, got %d", c.MaxPathLength)
	case c.MinFileSize < 0:
		return fmt.Errorf("min_file_size must not be negative, got %d", c.MinFileSize)
	case c.MaxFileSize < c.MinFileSize:
		return fmt.Errorf("max_file_size %d is below min_file_size %d", c.MaxFileSize, c.MinFileSize)
	case c.MaxSymlinkDepth < 0:
		return fmt.Errorf("max_symlink_depth must not be negative, got %d", c.MaxSymlinkDepth)
	case c.MaxPatternExecutionTime <= 0:
		return fmt.Errorf("max_pattern_execution_time must be positive, got %v", c.MaxPatternExecutionTime)
	case c.MaxOperationsPerWindow <= 0:
		return fmt.Errorf("max_operations_per_window must be positive, got %d", c.MaxOperationsPerWindow)
	case c.RateLimitWindow <= 0:
		return fmt.Errorf("rate_limit_window must be positive, got %v", c.RateLimitWindow)
	case c.MaxFilesPerSecond < 0:
		return fmt.Errorf("max_files_per_second must not be negative, got %d", c.MaxFilesPerSecond)
	case c.RateLimitScope != ScopeGlobal && c.RateLimitScope != ScopePath:
		return fmt.Errorf("unknown rate_limit_scope: %s", c.RateLimitScope)
	}

	if _, err := newHasher(c.HashAlgorithm); err != nil {
		return err
	}
	if c.AuditCapacity <= 0 {
		c.AuditCapacity = DefaultAuditCapacity
	}
	return nil
}

// resolve makes p absolute, interpreting relative paths against WorkingDir.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.WorkingDir, p)
}

func compileForbidden(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid forbidden path pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
