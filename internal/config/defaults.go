package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir:  homeDir,
			DataDir:  filepath.Join(homeDir, "data"),
			CacheDir: filepath.Join(homeDir, "cache"),
			Timeout:  5 * time.Minute,
			Debug:    false,
		},
		Database: DBConfig{
			Path:           filepath.Join(homeDir, "rtops.db"),
			MaxConnections: 10,
			Timeout:        30 * time.Second,
			WALMode:        true,
			AutoVacuum:     true,
		},
		Attack: AttackConfig{
			ProvenancePriority: []string{"manual", "spreadsheet", "navigator", "stix"},
		},
		Report: ReportConfig{
			DefaultFormat:   "markdown",
			Title:           "Red Team Exercise Report",
			IncludeResolved: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "",
		},
	}
}

// DefaultHomeDir returns the default RTOps home directory
func DefaultHomeDir() string {
	return getDefaultHomeDir()
}

// DefaultConfigPath returns the config file path under a home directory
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// getDefaultHomeDir returns the default RTOps home directory.
// It uses ~/.rtops or falls back to a temporary directory if user home
// cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rtops")
	}
	return filepath.Join(userHome, ".rtops")
}
