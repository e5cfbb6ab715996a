package main

import (
	"context"
	"os"
	"strings"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/config"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/observability"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// rtopsHome resolves the home directory from flags, environment, or default
func rtopsHome() string {
	if globalFlags.HomeDir != "" {
		return globalFlags.HomeDir
	}
	if env := os.Getenv("RTOPS_HOME"); env != "" {
		return env
	}
	return config.DefaultHomeDir()
}

// loadPlatformConfig loads the config file for the resolved home directory,
// falling back to defaults when the file does not exist.
func loadPlatformConfig() (*config.Config, error) {
	configFile := globalFlags.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigPath(rtopsHome())
	}

	loader := config.NewConfigLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return nil, internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	return cfg, nil
}

// openDB opens the platform database per loaded config
func openDB(cfg *config.Config) (*database.DB, error) {
	dbCfg := database.DefaultConfig(cfg.Database.Path)
	dbCfg.WALMode = cfg.Database.WALMode
	if cfg.Database.MaxConnections > 0 {
		dbCfg.MaxConns = cfg.Database.MaxConnections
	}

	db, err := database.OpenWithConfig(dbCfg)
	if err != nil {
		return nil, internal.WrapError(internal.ExitDatabaseError, "failed to open database (run 'rtops init' first)", err)
	}
	return db, nil
}

// platform bundles the stores most commands need
type platform struct {
	cfg     *config.Config
	db      *database.DB
	catalog attack.Catalog
	logger  *observability.TracedLogger
}

// openPlatform loads config, opens the database, and wires the catalog
// with the configured provenance priority. Callers must Close.
func openPlatform() (*platform, error) {
	cfg, err := loadPlatformConfig()
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	handler := observability.NewHandler(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	logger := observability.NewTracedLogger(handler, "", currentOperator())

	catalog := attack.NewCatalog(db, attack.WithProvenancePriority(cfg.Attack.Priority()))

	return &platform{cfg: cfg, db: db, catalog: catalog, logger: logger}, nil
}

// Close releases the platform's database handle
func (p *platform) Close() error {
	return p.db.Close()
}

// resolveExercise looks an exercise up by UUID or by name
func resolveExercise(ctx context.Context, dao database.ExerciseDAO, ref string) (*database.Exercise, error) {
	if id, err := types.ParseID(ref); err == nil {
		return dao.GetByID(ctx, id)
	}
	return dao.GetByName(ctx, ref)
}

// currentOperator returns the operator name for audit fields
func currentOperator() string {
	if operator := os.Getenv("RTOPS_OPERATOR"); operator != "" {
		return operator
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// truncate shortens a string for table display
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// joinTactics renders a tactic list for table columns
func joinTactics(tactics []attack.Tactic) string {
	labels := make([]string, 0, len(tactics))
	for _, tactic := range tactics {
		labels = append(labels, string(tactic))
	}
	return strings.Join(labels, ",")
}
