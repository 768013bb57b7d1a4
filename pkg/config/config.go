package config

import (
	"fmt"
	"strings"

	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	"github.com/spf13/viper"
)

// Config is the full application configuration
type Config struct {
	Security  gateway.Config  `mapstructure:"security" yaml:"security"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// WorkspaceConfig controls the workspace directory and the watcher that
// registers new directories as allowed roots.
type WorkspaceConfig struct {
	Create     bool     `mapstructure:"create" yaml:"create"`
	WatchRoots []string `mapstructure:"watch_roots" yaml:"watch_roots"`
}

// AuditConfig configures the persistent audit archive and log export
type AuditConfig struct {
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// NewViper returns a viper instance with defaults, config file lookup and
// environment overrides (ANIMATOR_SECURITY_MAX_FILE_SIZE, ...) configured
func NewViper() *viper.Viper {
	v := viper.New()
	SetViperDefaults(v)

	v.SetConfigName(ConfigName)
	v.SetConfigType(ConfigType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile reads the config file if one exists. A missing file is not
// an error; configuration then comes from defaults, env and flags.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Load decodes the merged configuration tree into a Config
func Load(v *viper.Viper) (*Config, error) {
	// Every key has a viper default; decode into a zero Config.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("unknown logging format: %s", cfg.Logging.Format)
	}

	return cfg, nil
}
