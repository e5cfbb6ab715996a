package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// DB wraps the platform's SQLite connection. The catalog, kill chain
// versions, exercises, and findings all live in this one file; every
// store reaches the database through this handle.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds connection options for the platform database
type Config struct {
	Path        string
	WALMode     bool
	MaxConns    int
	IdleConns   int
	BusyTimeout time.Duration
}

// DefaultConfig returns connection defaults for a database at path
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		WALMode:     true,
		MaxConns:    10,
		IdleConns:   5,
		BusyTimeout: 5 * time.Second,
	}
}

// Open opens the database at path with default settings
func Open(path string) (*DB, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database with the given settings. Foreign
// keys are always on; catalog tactic rows and kill chain stage rows
// depend on them. The busy timeout keeps concurrent imports from
// failing fast on a locked row.
func OpenWithConfig(cfg Config) (*DB, error) {
	journal := "DELETE"
	if cfg.WALMode {
		journal = "WAL"
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path, journal, int(cfg.BusyTimeout.Milliseconds()))

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.DB_OPEN_FAILED, "open database", err)
	}

	conn.SetMaxOpenConns(cfg.MaxConns)
	conn.SetMaxIdleConns(cfg.IdleConns)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, types.WrapError(types.DB_OPEN_FAILED, "ping database", err)
	}

	db := &DB{conn: conn, path: cfg.Path}

	if err := db.verifyPragmas(cfg.WALMode); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// verifyPragmas confirms the DSN pragmas actually took effect. SQLite
// silently ignores unknown DSN parameters, so trust nothing.
func (db *DB) verifyPragmas(wantWAL bool) error {
	if wantWAL {
		var journalMode string
		if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
			return types.WrapError(types.DB_OPEN_FAILED, "read journal_mode", err)
		}
		if journalMode != "wal" {
			return types.NewError(types.DB_OPEN_FAILED,
				fmt.Sprintf("WAL mode not enabled (got %s)", journalMode))
		}
	}

	var foreignKeys int
	if err := db.conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		return types.WrapError(types.DB_OPEN_FAILED, "read foreign_keys", err)
	}
	if foreignKeys != 1 {
		return types.NewError(types.DB_OPEN_FAILED, "foreign keys not enabled")
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Health checks that the connection is alive and can serve a query
func (db *DB) Health(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return types.WrapError(types.DB_CONNECTION_LOST, "ping failed", err)
	}

	var result int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "probe query failed", err)
	}

	return nil
}

// WithTx runs fn inside a transaction, committing on nil return and
// rolling back otherwise. Catalog upserts and kill chain saves rely on
// this for their atomic multi-row writes.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "commit transaction", err)
	}

	return nil
}

// Stats summarizes the connection pool state
type Stats struct {
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
}

// Stats returns connection pool statistics
func (db *DB) Stats() Stats {
	s := db.conn.Stats()
	return Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}
}

// Vacuum reclaims unused space in the database file
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "vacuum failed", err)
	}
	return nil
}

// InitSchema applies all pending schema migrations
func (db *DB) InitSchema() error {
	migrator := NewMigrator(db)
	if err := migrator.Migrate(context.Background()); err != nil {
		return types.WrapError(types.DB_MIGRATION_FAILED, "run migrations", err)
	}
	return nil
}

// QueryContext wraps the underlying connection's QueryContext
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext wraps the underlying connection's QueryRowContext
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// ExecContext wraps the underlying connection's ExecContext
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}
