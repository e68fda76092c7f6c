package app

import (
	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
)

// Config contains the runtime configuration for the application layer.
type Config struct {
	// DatabasePath is the SQLite file backing contracts, scans, and findings.
	DatabasePath string `yaml:"database_path"`

	// MLCfg configures the remote ML analysis client.
	MLCfg mlclient.Config `yaml:"ml"`

	// MaxSourceBytes bounds uploaded contract size.
	MaxSourceBytes int64 `yaml:"max_source_bytes"`

	// FailOnMLError makes an ML analysis failure fail the whole scan instead
	// of degrading to static-only results.
	FailOnMLError bool `yaml:"fail_on_ml_error"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:   "auditor.db",
		MLCfg:          mlclient.Config{Enabled: false},
		MaxSourceBytes: 1 << 20,
		FailOnMLError:  false,
	}
}
