package config

import (
	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	"github.com/spf13/viper"
)

// SetViperDefaults sets all default configuration values on v
func SetViperDefaults(v *viper.Viper) {
	sec := gateway.DefaultConfig()

	// Security defaults
	v.SetDefault("security.max_path_length", sec.MaxPathLength)
	v.SetDefault("security.allowed_extensions", sec.AllowedExtensions)
	v.SetDefault("security.forbidden_paths", sec.ForbiddenPaths)
	v.SetDefault("security.working_dir", "")
	v.SetDefault("security.workspace_dir", "")
	v.SetDefault("security.extra_allowed_dirs", []string{})
	v.SetDefault("security.min_file_size", sec.MinFileSize)
	v.SetDefault("security.max_file_size", sec.MaxFileSize)
	v.SetDefault("security.allow_symlinks", sec.AllowSymlinks)
	v.SetDefault("security.max_symlink_depth", sec.MaxSymlinkDepth)
	v.SetDefault("security.enable_redos_protection", sec.EnableReDoSProtection)
	v.SetDefault("security.max_pattern_execution_time", sec.MaxPatternExecutionTime)
	v.SetDefault("security.max_operations_per_window", sec.MaxOperationsPerWindow)
	v.SetDefault("security.rate_limit_window", sec.RateLimitWindow)
	v.SetDefault("security.rate_limit_scope", sec.RateLimitScope)
	v.SetDefault("security.max_files_per_second", sec.MaxFilesPerSecond)
	v.SetDefault("security.hash_algorithm", sec.HashAlgorithm)
	v.SetDefault("security.verify_file_integrity", sec.VerifyFileIntegrity)
	v.SetDefault("security.audit_capacity", sec.AuditCapacity)

	// Workspace defaults
	v.SetDefault("workspace.create", true)
	v.SetDefault("workspace.watch_roots", []string{})

	// Audit archive defaults
	v.SetDefault("audit.db_path", DefaultAuditDBPath)
	v.SetDefault("audit.export_dir", ".")

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}
