package config

import (
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
)

// Config is the root configuration for the RTOps platform.
type Config struct {
	Core     CoreConfig    `mapstructure:"core" yaml:"core" validate:"required"`
	Database DBConfig      `mapstructure:"database" yaml:"database" validate:"required"`
	Attack   AttackConfig  `mapstructure:"attack" yaml:"attack"`
	Report   ReportConfig  `mapstructure:"report" yaml:"report"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing  TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir  string        `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir  string        `mapstructure:"data_dir" yaml:"data_dir"`
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug    bool          `mapstructure:"debug" yaml:"debug"`
}

// DBConfig contains database configuration.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	WALMode        bool          `mapstructure:"wal_mode" yaml:"wal_mode"`
	AutoVacuum     bool          `mapstructure:"auto_vacuum" yaml:"auto_vacuum"`
}

// AttackConfig contains technique catalog and import settings.
type AttackConfig struct {
	// ProvenancePriority orders catalog sources from most to least
	// authoritative. Field-level merges never let a lower-priority source
	// overwrite data contributed by a higher one.
	ProvenancePriority []string `mapstructure:"provenance_priority" yaml:"provenance_priority"`
}

// Priority returns the configured provenance order as typed values,
// falling back to the built-in ordering when the list is empty.
func (a AttackConfig) Priority() []attack.Provenance {
	if len(a.ProvenancePriority) == 0 {
		return attack.DefaultProvenancePriority()
	}
	order := make([]attack.Provenance, 0, len(a.ProvenancePriority))
	for _, source := range a.ProvenancePriority {
		order = append(order, attack.Provenance(source))
	}
	return order
}

// ReportConfig contains report export settings.
type ReportConfig struct {
	// DefaultFormat selects the exporter used when none is requested
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format" validate:"omitempty,oneof=json markdown"`

	// Title is the default report title
	Title string `mapstructure:"title" yaml:"title"`

	// IncludeResolved controls whether resolved findings appear in exports
	IncludeResolved bool `mapstructure:"include_resolved" yaml:"include_resolved"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}
