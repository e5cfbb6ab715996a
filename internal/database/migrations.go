package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Migrator handles database schema migrations
type Migrator interface {
	// Migrate applies all pending migrations
	Migrate(ctx context.Context) error

	// CurrentVersion returns the current schema version
	CurrentVersion(ctx context.Context) (int, error)

	// Rollback rolls back to a target version
	Rollback(ctx context.Context, targetVersion int) error

	// GetAppliedMigrations returns a list of all applied migrations
	GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error)
}

// MigrationInfo describes an applied migration
type MigrationInfo struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	AppliedAt string `json:"applied_at"`
}

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
	down    string
}

// migrator implements the Migrator interface
type migrator struct {
	db         *DB
	migrations []migration
}

// NewMigrator creates a new database migrator
func NewMigrator(db *DB) Migrator {
	return &migrator{
		db:         db,
		migrations: getMigrations(),
	}
}

// getMigrations returns all available migrations in order
func getMigrations() []migration {
	migrations := []migration{
		{
			version: 1,
			name:    "exercises",
			up:      exercisesSchema,
			down:    exercisesDown,
		},
		{
			version: 2,
			name:    "technique_catalog",
			up:      techniqueCatalogSchema,
			down:    techniqueCatalogDown,
		},
		{
			version: 3,
			name:    "kill_chain_versions",
			up:      killChainVersionsSchema,
			down:    killChainVersionsDown,
		},
		{
			version: 4,
			name:    "findings",
			up:      findingsSchema,
			down:    findingsDown,
		},
	}

	// Defensive ordering in case entries are added out of sequence
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations
}

const exercisesSchema = `
CREATE TABLE IF NOT EXISTS exercises (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'planned',
	scope TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_exercises_status ON exercises(status);
`

const exercisesDown = `
DROP INDEX IF EXISTS idx_exercises_status;
DROP TABLE IF EXISTS exercises;
`

const techniqueCatalogSchema = `
CREATE TABLE IF NOT EXISTS techniques (
	technique_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	refs TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL DEFAULT 'manual',
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS technique_tactics (
	technique_id TEXT NOT NULL REFERENCES techniques(technique_id) ON DELETE CASCADE,
	tactic TEXT NOT NULL,
	PRIMARY KEY (technique_id, tactic)
);

CREATE INDEX IF NOT EXISTS idx_technique_tactics_tactic ON technique_tactics(tactic);
`

const techniqueCatalogDown = `
DROP INDEX IF EXISTS idx_technique_tactics_tactic;
DROP TABLE IF EXISTS technique_tactics;
DROP TABLE IF EXISTS techniques;
`

const killChainVersionsSchema = `
CREATE TABLE IF NOT EXISTS kill_chain_versions (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	stages TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kill_chain_versions_plan
	ON kill_chain_versions(plan_id, created_at);
`

const killChainVersionsDown = `
DROP INDEX IF EXISTS idx_kill_chain_versions_plan;
DROP TABLE IF EXISTS kill_chain_versions;
`

const findingsSchema = `
CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT 'info',
	status TEXT NOT NULL DEFAULT 'open',
	description TEXT NOT NULL DEFAULT '',
	remediation TEXT NOT NULL DEFAULT '',
	technique_ids TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_findings_exercise ON findings(exercise_id);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
`

const findingsDown = `
DROP INDEX IF EXISTS idx_findings_severity;
DROP INDEX IF EXISTS idx_findings_exercise;
DROP TABLE IF EXISTS findings;
`

// ensureMigrationsTable creates the schema_migrations tracking table if needed
func (m *migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`

	if _, err := m.db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// CurrentVersion returns the highest applied migration version, or 0 if none
func (m *migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}

	var version sql.NullInt64
	query := `SELECT MAX(version) FROM schema_migrations`
	if err := m.db.conn.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}

	if !version.Valid {
		return 0, nil
	}

	return int(version.Int64), nil
}

// Migrate applies all pending migrations in version order
func (m *migrator) Migrate(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.version <= current {
			continue
		}

		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.name, err)
		}
	}

	return nil
}

// apply runs a single migration inside a transaction and records it
func (m *migrator) apply(ctx context.Context, mig migration) error {
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range splitStatements(mig.up) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement failed: %w", err)
			}
		}

		query := `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`
		if _, err := tx.ExecContext(ctx, query, mig.version, mig.name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

// Rollback rolls back migrations above targetVersion, newest first
func (m *migrator) Rollback(ctx context.Context, targetVersion int) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if targetVersion >= current {
		return nil
	}

	// Walk migrations newest first
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if mig.version > current || mig.version <= targetVersion {
			continue
		}

		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range splitStatements(mig.down) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement failed: %w", err)
				}
			}

			query := `DELETE FROM schema_migrations WHERE version = ?`
			if _, err := tx.ExecContext(ctx, query, mig.version); err != nil {
				return fmt.Errorf("failed to remove migration record: %w", err)
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("rollback of migration %d (%s) failed: %w", mig.version, mig.name, err)
		}
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations ordered by version
func (m *migrator) GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	query := `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`
	rows, err := m.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []MigrationInfo
	for rows.Next() {
		var info MigrationInfo
		if err := rows.Scan(&info.Version, &info.Name, &info.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied = append(applied, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return applied, nil
}

// splitStatements splits a migration script into individual SQL statements.
// SQLite's driver executes one statement per Exec call inside a transaction.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
