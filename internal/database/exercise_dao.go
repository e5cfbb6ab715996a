package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// ExerciseStatus represents the lifecycle state of a red team exercise
type ExerciseStatus string

const (
	// ExerciseStatusPlanned indicates scoping and planning are in progress
	ExerciseStatusPlanned ExerciseStatus = "planned"
	// ExerciseStatusActive indicates the exercise is being executed
	ExerciseStatusActive ExerciseStatus = "active"
	// ExerciseStatusCompleted indicates execution has finished
	ExerciseStatusCompleted ExerciseStatus = "completed"
	// ExerciseStatusArchived indicates the exercise is retained for history only
	ExerciseStatusArchived ExerciseStatus = "archived"
)

// Exercise represents a persisted red team exercise. Kill chain versions and
// findings reference exercises by ID.
type Exercise struct {
	ID          types.ID       `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      ExerciseStatus `json:"status"`
	Scope       string         `json:"scope,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ExerciseDAO provides database operations for exercises
type ExerciseDAO interface {
	// Create creates a new exercise
	Create(ctx context.Context, exercise *Exercise) error

	// GetByID retrieves an exercise by ID
	GetByID(ctx context.Context, id types.ID) (*Exercise, error)

	// GetByName retrieves an exercise by name
	GetByName(ctx context.Context, name string) (*Exercise, error)

	// List lists all exercises with optional status filter
	List(ctx context.Context, status ExerciseStatus) ([]*Exercise, error)

	// Update updates an exercise
	Update(ctx context.Context, exercise *Exercise) error

	// UpdateStatus updates just the status of an exercise
	UpdateStatus(ctx context.Context, id types.ID, status ExerciseStatus) error

	// Delete deletes an exercise
	Delete(ctx context.Context, id types.ID) error
}

// exerciseDAO implements ExerciseDAO
type exerciseDAO struct {
	db *DB
}

// NewExerciseDAO creates a new exercise DAO
func NewExerciseDAO(db *DB) ExerciseDAO {
	return &exerciseDAO{db: db}
}

// Create creates a new exercise
func (d *exerciseDAO) Create(ctx context.Context, exercise *Exercise) error {
	if exercise.ID == "" {
		exercise.ID = types.NewID()
	}
	if exercise.Status == "" {
		exercise.Status = ExerciseStatusPlanned
	}

	query := `
		INSERT INTO exercises (
			id, name, description, status, scope, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	_, err := d.db.conn.ExecContext(
		ctx, query,
		exercise.ID,
		exercise.Name,
		exercise.Description,
		exercise.Status,
		exercise.Scope,
	)

	if err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}

	return nil
}

// GetByID retrieves an exercise by ID
func (d *exerciseDAO) GetByID(ctx context.Context, id types.ID) (*Exercise, error) {
	query := `
		SELECT id, name, description, status, scope, created_at, updated_at,
		       started_at, completed_at
		FROM exercises
		WHERE id = ?
	`

	return d.scanOne(d.db.conn.QueryRowContext(ctx, query, id), string(id))
}

// GetByName retrieves an exercise by name
func (d *exerciseDAO) GetByName(ctx context.Context, name string) (*Exercise, error) {
	query := `
		SELECT id, name, description, status, scope, created_at, updated_at,
		       started_at, completed_at
		FROM exercises
		WHERE name = ?
	`

	return d.scanOne(d.db.conn.QueryRowContext(ctx, query, name), name)
}

// scanOne scans a single exercise row, mapping sql.ErrNoRows to a coded error
func (d *exerciseDAO) scanOne(row *sql.Row, ref string) (*Exercise, error) {
	var exercise Exercise
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&exercise.ID,
		&exercise.Name,
		&exercise.Description,
		&exercise.Status,
		&exercise.Scope,
		&exercise.CreatedAt,
		&exercise.UpdatedAt,
		&startedAt,
		&completedAt,
	)

	if err == sql.ErrNoRows {
		return nil, types.NewError(types.EXERCISE_NOT_FOUND, fmt.Sprintf("exercise not found: %s", ref))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}

	if startedAt.Valid {
		exercise.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		exercise.CompletedAt = &completedAt.Time
	}

	return &exercise, nil
}

// List lists all exercises with optional status filter
func (d *exerciseDAO) List(ctx context.Context, status ExerciseStatus) ([]*Exercise, error) {
	var query string
	var args []interface{}

	if status != "" {
		query = `
			SELECT id, name, description, status, scope, created_at, updated_at,
			       started_at, completed_at
			FROM exercises
			WHERE status = ?
			ORDER BY created_at DESC
		`
		args = append(args, status)
	} else {
		query = `
			SELECT id, name, description, status, scope, created_at, updated_at,
			       started_at, completed_at
			FROM exercises
			ORDER BY created_at DESC
		`
	}

	rows, err := d.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	defer rows.Close()

	var exercises []*Exercise
	for rows.Next() {
		var exercise Exercise
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&exercise.ID,
			&exercise.Name,
			&exercise.Description,
			&exercise.Status,
			&exercise.Scope,
			&exercise.CreatedAt,
			&exercise.UpdatedAt,
			&startedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}

		if startedAt.Valid {
			exercise.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			exercise.CompletedAt = &completedAt.Time
		}

		exercises = append(exercises, &exercise)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exercises: %w", err)
	}

	return exercises, nil
}

// Update updates an exercise
func (d *exerciseDAO) Update(ctx context.Context, exercise *Exercise) error {
	query := `
		UPDATE exercises
		SET name = ?, description = ?, status = ?, scope = ?,
		    updated_at = CURRENT_TIMESTAMP,
		    started_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := d.db.conn.ExecContext(
		ctx, query,
		exercise.Name,
		exercise.Description,
		exercise.Status,
		exercise.Scope,
		exercise.StartedAt,
		exercise.CompletedAt,
		exercise.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewError(types.EXERCISE_NOT_FOUND, fmt.Sprintf("exercise not found: %s", exercise.ID))
	}

	return nil
}

// UpdateStatus updates just the status of an exercise
func (d *exerciseDAO) UpdateStatus(ctx context.Context, id types.ID, status ExerciseStatus) error {
	query := `
		UPDATE exercises
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := d.db.conn.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update exercise status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewError(types.EXERCISE_NOT_FOUND, fmt.Sprintf("exercise not found: %s", id))
	}

	return nil
}

// Delete deletes an exercise. Findings cascade via foreign key; kill chain
// versions are intentionally retained as historical records.
func (d *exerciseDAO) Delete(ctx context.Context, id types.ID) error {
	query := `DELETE FROM exercises WHERE id = ?`

	result, err := d.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewError(types.EXERCISE_NOT_FOUND, fmt.Sprintf("exercise not found: %s", id))
	}

	return nil
}
