package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test Core defaults
	assert.NotEmpty(t, cfg.Core.HomeDir, "HomeDir should not be empty")
	assert.Contains(t, cfg.Core.HomeDir, ".rtops", "HomeDir should contain .rtops")
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "data"), cfg.Core.DataDir)
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "cache"), cfg.Core.CacheDir)
	assert.Equal(t, 5*time.Minute, cfg.Core.Timeout)
	assert.False(t, cfg.Core.Debug)

	// Test Database defaults
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "rtops.db"), cfg.Database.Path)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Database.Timeout)
	assert.True(t, cfg.Database.WALMode)
	assert.True(t, cfg.Database.AutoVacuum)

	// Test Attack defaults
	assert.Equal(t, []string{"manual", "spreadsheet", "navigator", "stix"}, cfg.Attack.ProvenancePriority)

	// Test Report defaults
	assert.Equal(t, "markdown", cfg.Report.DefaultFormat)
	assert.False(t, cfg.Report.IncludeResolved)

	// Test Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Test Tracing defaults
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
core:
  home_dir: /tmp/rtops-test
  data_dir: /tmp/rtops-test/data
  cache_dir: /tmp/rtops-test/cache
  timeout: 10m
  debug: true

database:
  path: /tmp/rtops-test/rtops.db
  max_connections: 20
  timeout: 1m
  wal_mode: true
  auto_vacuum: false

attack:
  provenance_priority:
    - manual
    - stix
    - navigator
    - spreadsheet

report:
  default_format: json
  title: Quarterly Assessment

logging:
  level: debug
  format: text

tracing:
  enabled: true
  endpoint: http://localhost:4318
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/tmp/rtops-test", cfg.Core.HomeDir)
	assert.Equal(t, 10*time.Minute, cfg.Core.Timeout)
	assert.True(t, cfg.Core.Debug)

	assert.Equal(t, "/tmp/rtops-test/rtops.db", cfg.Database.Path)
	assert.Equal(t, 20, cfg.Database.MaxConnections)
	assert.False(t, cfg.Database.AutoVacuum)

	assert.Equal(t, []attack.Provenance{
		attack.ProvenanceManual,
		attack.ProvenanceSTIX,
		attack.ProvenanceNavigator,
		attack.ProvenanceSpreadsheet,
	}, cfg.Attack.Priority())

	assert.Equal(t, "json", cfg.Report.DefaultFormat)
	assert.Equal(t, "Quarterly Assessment", cfg.Report.Title)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Database.MaxConnections, cfg.Database.MaxConnections)
}

func TestLoadEnvironmentInterpolation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("RTOPS_TEST_HOME", "/srv/rtops")

	configContent := `
core:
  home_dir: ${RTOPS_TEST_HOME}
  timeout: 5m

database:
  path: ${RTOPS_TEST_HOME}/rtops.db
  max_connections: 10
  timeout: 30s
`

	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/rtops", cfg.Core.HomeDir)
	assert.Equal(t, "/srv/rtops/rtops.db", cfg.Database.Path)
}

func TestValidatorRejectsBadConfig(t *testing.T) {
	validator := NewValidator()

	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, validator.Validate(nil))
	})

	t.Run("unknown provenance source", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Attack.ProvenancePriority = []string{"manual", "osint"}
		err := validator.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "osint")
	})

	t.Run("duplicate provenance source", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Attack.ProvenancePriority = []string{"manual", "manual"}
		assert.Error(t, validator.Validate(cfg))
	})

	t.Run("tracing endpoint required when enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracing.Enabled = true
		assert.Error(t, validator.Validate(cfg))
	})

	t.Run("bad logging level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "verbose"
		assert.Error(t, validator.Validate(cfg))
	})
}
