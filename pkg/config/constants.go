package config

// Application-level defaults. Security limits live in the gateway package.
const (
	// Config file lookup
	ConfigName = "code-animator.config"
	ConfigType = "yaml"
	EnvPrefix  = "ANIMATOR"

	// Workspace
	DefaultWorkspaceDir = "workspace"

	// Audit archive; empty disables the SQLite sink
	DefaultAuditDBPath      = ""
	DefaultExportFilePrefix = "security-log-"

	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)
