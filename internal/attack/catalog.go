package attack

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// ChangeKind classifies the outcome of a catalog upsert
type ChangeKind string

const (
	// ChangeCreated indicates a new catalog row was inserted
	ChangeCreated ChangeKind = "created"
	// ChangeUpdated indicates an existing row was modified by the merge
	ChangeUpdated ChangeKind = "updated"
	// ChangeUnchanged indicates the merge produced no field changes
	ChangeUnchanged ChangeKind = "unchanged"
)

// UpsertResult reports what an upsert did and the resulting catalog state
type UpsertResult struct {
	Kind      ChangeKind `json:"kind"`
	Technique Technique  `json:"technique"`
}

// Catalog is the technique catalog store. All importers and the kill chain
// builder read and write through it. There is no delete operation;
// retirement is a Deactivate field update.
type Catalog interface {
	// Upsert inserts the technique if its identifier is absent, otherwise
	// merges field-by-field under provenance precedence. Each call is a
	// single atomic read-modify-write on the identifier's row.
	Upsert(ctx context.Context, technique Technique) (UpsertResult, error)

	// Get returns the technique for the identifier, or a
	// CATALOG_TECHNIQUE_NOT_FOUND coded error.
	Get(ctx context.Context, id string) (*Technique, error)

	// ListByTactic returns techniques tagged with the tactic,
	// ordered by identifier for determinism.
	ListByTactic(ctx context.Context, tactic Tactic) ([]Technique, error)

	// Search performs a case-insensitive substring match over identifier,
	// name, and description, ordered by identifier.
	Search(ctx context.Context, query string) ([]Technique, error)

	// Deactivate marks a technique inactive without removing it
	Deactivate(ctx context.Context, id string) error
}

// CatalogOption configures a catalog store
type CatalogOption func(*dbCatalog)

// WithProvenancePriority overrides the merge precedence. Sources are
// ordered highest priority first; unknown sources rank below all listed.
func WithProvenancePriority(priority []Provenance) CatalogOption {
	return func(c *dbCatalog) {
		if len(priority) > 0 {
			c.priority = priority
		}
	}
}

// dbCatalog implements Catalog over the SQLite store
type dbCatalog struct {
	db       *database.DB
	priority []Provenance
}

// NewCatalog creates a catalog store backed by the given database
func NewCatalog(db *database.DB, opts ...CatalogOption) Catalog {
	c := &dbCatalog{
		db:       db,
		priority: DefaultProvenancePriority(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rank returns the precedence index of a provenance source; lower is
// higher priority. Sources missing from the configured priority list
// rank below every configured source.
func (c *dbCatalog) rank(p Provenance) int {
	for i, candidate := range c.priority {
		if candidate == p {
			return i
		}
	}
	return len(c.priority)
}

// outranks reports whether incoming has strictly higher precedence than existing
func (c *dbCatalog) outranks(incoming, existing Provenance) bool {
	return c.rank(incoming) < c.rank(existing)
}

// Upsert inserts or merges a technique. The read-modify-write runs inside a
// single transaction so concurrent imports touching the same identifier
// converge to one merged row instead of losing an update.
func (c *dbCatalog) Upsert(ctx context.Context, technique Technique) (UpsertResult, error) {
	technique.ID = strings.TrimSpace(technique.ID)
	technique.Name = strings.TrimSpace(technique.Name)
	technique.Description = strings.TrimSpace(technique.Description)
	if technique.Provenance == "" {
		technique.Provenance = ProvenanceManual
	}
	technique.Tactics = normalizeTactics(technique.Tactics)

	if err := technique.Validate(); err != nil {
		return UpsertResult{}, types.WrapError(types.CATALOG_TECHNIQUE_INVALID, "rejected technique payload", err)
	}

	var result UpsertResult
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := getTechniqueTx(ctx, tx, technique.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			// First reference from any source creates the row. The catalog
			// invariant requires at least one tactic at creation time.
			if len(technique.Tactics) == 0 {
				return types.NewError(types.CATALOG_TECHNIQUE_INVALID,
					fmt.Sprintf("technique %s has no tactic", technique.ID))
			}
			technique.Active = true
			now := time.Now().UTC()
			technique.CreatedAt = now
			technique.LastModified = now
			if err := insertTechniqueTx(ctx, tx, &technique); err != nil {
				return err
			}
			result = UpsertResult{Kind: ChangeCreated, Technique: technique}
			return nil
		}

		merged, changed := c.merge(*existing, technique)
		if !changed {
			result = UpsertResult{Kind: ChangeUnchanged, Technique: *existing}
			return nil
		}

		merged.LastModified = time.Now().UTC()
		if err := updateTechniqueTx(ctx, tx, existing, &merged); err != nil {
			return err
		}
		result = UpsertResult{Kind: ChangeUpdated, Technique: merged}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	return result, nil
}

// merge applies the field-level provenance merge. A field keeps its existing
// non-empty value unless the incoming source ranks at least as high as the
// row's provenance tag or the existing field is empty. Equal rank overwrites,
// so within one import run the last row for an identifier wins; identical
// values report no change, which keeps re-imports idempotent. Tactic sets
// merge as a union and never shrink. The provenance tag tracks the
// highest-priority source that has actually contributed a field or tactic,
// so a contribution-free import neither relabels the row nor counts as an
// update, and manual edits stay protected across any later sequence of
// imports.
func (c *dbCatalog) merge(existing, incoming Technique) (Technique, bool) {
	merged := existing
	changed := false

	overwrite := c.rank(incoming.Provenance) <= c.rank(existing.Provenance)

	if incoming.Name != "" && (existing.Name == "" || overwrite) && incoming.Name != existing.Name {
		merged.Name = incoming.Name
		changed = true
	}
	if incoming.Description != "" && (existing.Description == "" || overwrite) && incoming.Description != existing.Description {
		merged.Description = incoming.Description
		changed = true
	}
	if incoming.Refs != "" && (existing.Refs == "" || overwrite) && incoming.Refs != existing.Refs {
		merged.Refs = incoming.Refs
		changed = true
	}

	for _, tac := range incoming.Tactics {
		if !merged.HasTactic(tac) {
			merged.Tactics = append(merged.Tactics, tac)
			changed = true
		}
	}
	merged.Tactics = normalizeTactics(merged.Tactics)

	if changed && c.outranks(incoming.Provenance, merged.Provenance) {
		merged.Provenance = incoming.Provenance
	}

	return merged, changed
}

// Get returns the technique for the identifier
func (c *dbCatalog) Get(ctx context.Context, id string) (*Technique, error) {
	query := `
		SELECT technique_id, name, description, refs, provenance, active,
		       created_at, updated_at
		FROM techniques
		WHERE technique_id = ?
	`

	technique, err := scanTechnique(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.CATALOG_TECHNIQUE_NOT_FOUND,
			fmt.Sprintf("technique not found: %s", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to get technique", err)
	}

	tactics, err := fetchTactics(ctx, c.db, technique.ID)
	if err != nil {
		return nil, err
	}
	technique.Tactics = tactics

	return technique, nil
}

// ListByTactic returns techniques tagged with the tactic, ordered by identifier
func (c *dbCatalog) ListByTactic(ctx context.Context, tactic Tactic) ([]Technique, error) {
	query := `
		SELECT t.technique_id, t.name, t.description, t.refs, t.provenance,
		       t.active, t.created_at, t.updated_at
		FROM techniques t
		JOIN technique_tactics tt ON tt.technique_id = t.technique_id
		WHERE tt.tactic = ?
		ORDER BY t.technique_id
	`

	return c.queryTechniques(ctx, query, string(tactic))
}

// Search matches identifier, name, and description case-insensitively
func (c *dbCatalog) Search(ctx context.Context, query string) ([]Technique, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	stmt := `
		SELECT technique_id, name, description, refs, provenance, active,
		       created_at, updated_at
		FROM techniques
		WHERE lower(technique_id) LIKE ?
		   OR lower(name) LIKE ?
		   OR lower(description) LIKE ?
		ORDER BY technique_id
	`

	return c.queryTechniques(ctx, stmt, pattern, pattern, pattern)
}

// Deactivate marks a technique inactive; historical references keep resolving
func (c *dbCatalog) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE techniques
		SET active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE technique_id = ?
	`

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to deactivate technique", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return types.NewError(types.CATALOG_TECHNIQUE_NOT_FOUND,
			fmt.Sprintf("technique not found: %s", id))
	}

	return nil
}

// queryTechniques runs a multi-row technique query and loads tactic sets
func (c *dbCatalog) queryTechniques(ctx context.Context, query string, args ...interface{}) ([]Technique, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query techniques", err)
	}
	defer rows.Close()

	var techniques []Technique
	for rows.Next() {
		technique, err := scanTechniqueRows(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan technique", err)
		}
		techniques = append(techniques, *technique)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "error iterating techniques", err)
	}

	for i := range techniques {
		tactics, err := fetchTactics(ctx, c.db, techniques[i].ID)
		if err != nil {
			return nil, err
		}
		techniques[i].Tactics = tactics
	}

	return techniques, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInto(scanner rowScanner) (*Technique, error) {
	var technique Technique
	var active int
	err := scanner.Scan(
		&technique.ID,
		&technique.Name,
		&technique.Description,
		&technique.Refs,
		&technique.Provenance,
		&active,
		&technique.CreatedAt,
		&technique.LastModified,
	)
	if err != nil {
		return nil, err
	}
	technique.Active = active != 0
	return &technique, nil
}

func scanTechnique(row *sql.Row) (*Technique, error) {
	return scanInto(row)
}

func scanTechniqueRows(rows *sql.Rows) (*Technique, error) {
	return scanInto(rows)
}

// tacticQueryer covers both *database.DB and *sql.Tx
type tacticQueryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// fetchTactics loads the tactic set for a technique, canonically ordered
func fetchTactics(ctx context.Context, q tacticQueryer, techniqueID string) ([]Tactic, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tactic FROM technique_tactics WHERE technique_id = ?`, techniqueID)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query tactics", err)
	}
	defer rows.Close()

	var tactics []Tactic
	for rows.Next() {
		var tactic Tactic
		if err := rows.Scan(&tactic); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan tactic", err)
		}
		tactics = append(tactics, tactic)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "error iterating tactics", err)
	}

	sortTactics(tactics)
	return tactics, nil
}

// getTechniqueTx loads a technique inside a transaction, nil when absent
func getTechniqueTx(ctx context.Context, tx *sql.Tx, id string) (*Technique, error) {
	query := `
		SELECT technique_id, name, description, refs, provenance, active,
		       created_at, updated_at
		FROM techniques
		WHERE technique_id = ?
	`

	technique, err := scanTechnique(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read technique", err)
	}

	tactics, err := fetchTactics(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	technique.Tactics = tactics

	return technique, nil
}

// insertTechniqueTx writes a new technique row and its tactic set
func insertTechniqueTx(ctx context.Context, tx *sql.Tx, technique *Technique) error {
	query := `
		INSERT INTO techniques (
			technique_id, name, description, refs, provenance, active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		technique.ID,
		technique.Name,
		technique.Description,
		technique.Refs,
		technique.Provenance,
		boolToInt(technique.Active),
		technique.CreatedAt,
		technique.LastModified,
	)
	if err != nil {
		return types.WrapError(types.CATALOG_UPSERT_FAILED, "failed to insert technique", err)
	}

	return insertTacticsTx(ctx, tx, technique.ID, technique.Tactics)
}

// updateTechniqueTx persists a merged technique, adding any new tactics
func updateTechniqueTx(ctx context.Context, tx *sql.Tx, existing, merged *Technique) error {
	query := `
		UPDATE techniques
		SET name = ?, description = ?, refs = ?, provenance = ?, updated_at = ?
		WHERE technique_id = ?
	`

	_, err := tx.ExecContext(ctx, query,
		merged.Name,
		merged.Description,
		merged.Refs,
		merged.Provenance,
		merged.LastModified,
		merged.ID,
	)
	if err != nil {
		return types.WrapError(types.CATALOG_UPSERT_FAILED, "failed to update technique", err)
	}

	var added []Tactic
	for _, tac := range merged.Tactics {
		if !existing.HasTactic(tac) {
			added = append(added, tac)
		}
	}

	return insertTacticsTx(ctx, tx, merged.ID, added)
}

func insertTacticsTx(ctx context.Context, tx *sql.Tx, techniqueID string, tactics []Tactic) error {
	for _, tac := range tactics {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO technique_tactics (technique_id, tactic) VALUES (?, ?)`,
			techniqueID, string(tac))
		if err != nil {
			return types.WrapError(types.CATALOG_UPSERT_FAILED, "failed to insert tactic mapping", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
