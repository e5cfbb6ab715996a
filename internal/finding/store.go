package finding

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// Store provides persistence for findings
type Store interface {
	// Save persists a finding, inserting or replacing by ID
	Save(ctx context.Context, f *Finding) error

	// Get retrieves a finding by ID
	Get(ctx context.Context, id types.ID) (*Finding, error)

	// List retrieves findings for an exercise with optional filtering
	List(ctx context.Context, exerciseID types.ID, filter *Filter) ([]*Finding, error)

	// UpdateStatus transitions a finding to a new triage state
	UpdateStatus(ctx context.Context, id types.ID, status Status) error

	// Delete removes a finding
	Delete(ctx context.Context, id types.ID) error

	// CountBySeverity returns finding counts grouped by severity for an exercise
	CountBySeverity(ctx context.Context, exerciseID types.ID) (map[Severity]int, error)
}

// DBStore implements Store using the platform database
type DBStore struct {
	db     *database.DB
	tracer trace.Tracer
}

// StoreOption is a functional option for configuring DBStore
type StoreOption func(*DBStore)

// WithTracer sets the OpenTelemetry tracer for the store
func WithTracer(tracer trace.Tracer) StoreOption {
	return func(s *DBStore) {
		s.tracer = tracer
	}
}

// NewDBStore creates a new database-backed finding store
func NewDBStore(db *database.DB, opts ...StoreOption) *DBStore {
	store := &DBStore{
		db:     db,
		tracer: noop.NewTracerProvider().Tracer("finding-store"),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

const findingColumns = `
	id, exercise_id, title, severity, status, description,
	remediation, technique_ids, created_at, updated_at
`

// Save inserts a finding, or replaces every mutable field when the ID
// already exists. CreatedAt is preserved on replace.
func (s *DBStore) Save(ctx context.Context, f *Finding) error {
	ctx, span := s.tracer.Start(ctx, "DBStore.Save")
	defer span.End()

	if f.ID.IsZero() {
		f.ID = types.NewID()
	}
	if f.Severity == "" {
		f.Severity = SeverityInfo
	}
	if f.Status == "" {
		f.Status = StatusOpen
	}
	if err := f.Validate(); err != nil {
		return types.NewError(types.FINDING_INVALID, err.Error())
	}

	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	techniqueIDsJSON, err := json.Marshal(f.TechniqueIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal technique_ids: %w", err)
	}

	query := `
		INSERT INTO findings (
			id, exercise_id, title, severity, status, description,
			remediation, technique_ids, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			severity = excluded.severity,
			status = excluded.status,
			description = excluded.description,
			remediation = excluded.remediation,
			technique_ids = excluded.technique_ids,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		f.ID.String(),
		f.ExerciseID.String(),
		f.Title,
		string(f.Severity),
		string(f.Status),
		f.Description,
		f.Remediation,
		string(techniqueIDsJSON),
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to save finding", err)
	}

	return nil
}

// Get retrieves a finding by ID
func (s *DBStore) Get(ctx context.Context, id types.ID) (*Finding, error) {
	ctx, span := s.tracer.Start(ctx, "DBStore.Get")
	defer span.End()

	query := "SELECT " + findingColumns + " FROM findings WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id.String())

	f, err := scanFinding(row)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.FINDING_NOT_FOUND, fmt.Sprintf("finding not found: %s", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to get finding", err)
	}

	return f, nil
}

// List retrieves findings for an exercise, newest first. SQL handles the
// exercise scope and exact severity/status filters; technique and
// minimum-severity filters are applied in memory.
func (s *DBStore) List(ctx context.Context, exerciseID types.ID, filter *Filter) ([]*Finding, error) {
	ctx, span := s.tracer.Start(ctx, "DBStore.List")
	defer span.End()

	var conditions []string
	var args []interface{}

	conditions = append(conditions, "exercise_id = ?")
	args = append(args, exerciseID.String())

	if filter != nil {
		if filter.Severity != nil {
			conditions = append(conditions, "severity = ?")
			args = append(args, string(*filter.Severity))
		}
		if filter.Status != nil {
			conditions = append(conditions, "status = ?")
			args = append(args, string(*filter.Status))
		}
	}

	query := "SELECT " + findingColumns + " FROM findings WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to list findings", err)
	}
	defer rows.Close()

	all, err := scanFindings(rows)
	if err != nil {
		return nil, err
	}

	findings := make([]*Finding, 0, len(all))
	for _, f := range all {
		if filter.matches(f) {
			findings = append(findings, f)
		}
	}

	return findings, nil
}

// UpdateStatus transitions a finding to a new triage state
func (s *DBStore) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	ctx, span := s.tracer.Start(ctx, "DBStore.UpdateStatus")
	defer span.End()

	if !status.IsValid() {
		return types.NewError(types.FINDING_INVALID, fmt.Sprintf("invalid status %q", status))
	}

	query := "UPDATE findings SET status = ?, updated_at = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to update finding status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to get rows affected", err)
	}
	if affected == 0 {
		return types.NewError(types.FINDING_NOT_FOUND, fmt.Sprintf("finding not found: %s", id))
	}

	return nil
}

// Delete removes a finding
func (s *DBStore) Delete(ctx context.Context, id types.ID) error {
	ctx, span := s.tracer.Start(ctx, "DBStore.Delete")
	defer span.End()

	result, err := s.db.ExecContext(ctx, "DELETE FROM findings WHERE id = ?", id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to delete finding", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to get rows affected", err)
	}
	if affected == 0 {
		return types.NewError(types.FINDING_NOT_FOUND, fmt.Sprintf("finding not found: %s", id))
	}

	return nil
}

// CountBySeverity returns finding counts grouped by severity for an exercise
func (s *DBStore) CountBySeverity(ctx context.Context, exerciseID types.ID) (map[Severity]int, error) {
	ctx, span := s.tracer.Start(ctx, "DBStore.CountBySeverity")
	defer span.End()

	query := `
		SELECT severity, COUNT(*) AS count
		FROM findings
		WHERE exercise_id = ?
		GROUP BY severity
	`

	rows, err := s.db.QueryContext(ctx, query, exerciseID.String())
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to count findings", err)
	}
	defer rows.Close()

	counts := make(map[Severity]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan count", err)
		}
		counts[Severity(severity)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "error iterating rows", err)
	}

	return counts, nil
}

func scanFinding(scanner interface {
	Scan(dest ...interface{}) error
}) (*Finding, error) {
	var f Finding
	var (
		idStr            string
		exerciseIDStr    string
		severityStr      string
		statusStr        string
		techniqueIDsJSON string
	)

	err := scanner.Scan(
		&idStr,
		&exerciseIDStr,
		&f.Title,
		&severityStr,
		&statusStr,
		&f.Description,
		&f.Remediation,
		&techniqueIDsJSON,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse finding ID: %w", err)
	}
	f.ID = id

	exerciseID, err := types.ParseID(exerciseIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exercise ID: %w", err)
	}
	f.ExerciseID = exerciseID

	f.Severity = Severity(severityStr)
	f.Status = Status(statusStr)

	if err := json.Unmarshal([]byte(techniqueIDsJSON), &f.TechniqueIDs); err != nil {
		return nil, fmt.Errorf("failed to parse technique_ids: %w", err)
	}

	return &f, nil
}

func scanFindings(rows *sql.Rows) ([]*Finding, error) {
	findings := make([]*Finding, 0)

	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan finding", err)
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "error iterating rows", err)
	}

	return findings, nil
}

var _ Store = (*DBStore)(nil)
