package attack

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// KillChainStage is one of the fixed, ordered attack stages a technique
// selection is projected onto. The ordering is canonical and never
// reordered per-version.
type KillChainStage string

const (
	StageReconnaissance      KillChainStage = "Reconnaissance"
	StageWeaponization       KillChainStage = "Weaponization"
	StageDelivery            KillChainStage = "Delivery"
	StageExploitation        KillChainStage = "Exploitation"
	StageInstallation        KillChainStage = "Installation"
	StageCommandAndControl   KillChainStage = "Command & Control"
	StageActionsOnObjectives KillChainStage = "Actions on Objectives"
)

// killChainStages is the canonical stage ordering
var killChainStages = []KillChainStage{
	StageReconnaissance,
	StageWeaponization,
	StageDelivery,
	StageExploitation,
	StageInstallation,
	StageCommandAndControl,
	StageActionsOnObjectives,
}

// KillChainStages returns the fixed stage ordering.
// The returned slice is a copy and safe to modify.
func KillChainStages() []KillChainStage {
	out := make([]KillChainStage, len(killChainStages))
	copy(out, killChainStages)
	return out
}

// IsValid reports whether the stage is one of the fixed stages
func (s KillChainStage) IsValid() bool {
	for _, stage := range killChainStages {
		if stage == s {
			return true
		}
	}
	return false
}

// StageMapping assigns an ordered set of technique identifiers to one stage
type StageMapping struct {
	Stage        KillChainStage `json:"stage"`
	TechniqueIDs []string       `json:"technique_ids"`
}

// KillChainVersion is an immutable, timestamped projection of selected
// techniques onto the kill chain stages, tied to an owning exercise.
// Amendments create a new version; prior versions are never touched.
type KillChainVersion struct {
	ID        types.ID       `json:"version_id"`
	PlanID    types.ID       `json:"plan_id"`
	Author    string         `json:"author"`
	Stages    []StageMapping `json:"stages"`
	CreatedAt time.Time      `json:"created_at"`
}

// KillChainBuilder validates, normalizes, and persists kill chain versions.
// Saves are append-only; there is no in-place update operation.
type KillChainBuilder struct {
	db      *database.DB
	catalog Catalog
}

// NewKillChainBuilder creates a builder over the given database and catalog
func NewKillChainBuilder(db *database.DB, catalog Catalog) *KillChainBuilder {
	return &KillChainBuilder{db: db, catalog: catalog}
}

// emptyScaffold returns a version with every stage present and no
// techniques assigned, so the builder UI always has a starting structure.
func emptyScaffold(planID types.ID) *KillChainVersion {
	stages := make([]StageMapping, 0, len(killChainStages))
	for _, stage := range killChainStages {
		stages = append(stages, StageMapping{Stage: stage, TechniqueIDs: []string{}})
	}
	return &KillChainVersion{PlanID: planID, Stages: stages}
}

// Propose returns the most recent version for the plan, or an empty
// scaffold when the plan has no versions yet.
func (b *KillChainBuilder) Propose(ctx context.Context, planID types.ID) (*KillChainVersion, error) {
	query := `
		SELECT id, plan_id, author, stages, created_at
		FROM kill_chain_versions
		WHERE plan_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	version, err := scanVersion(b.db.QueryRowContext(ctx, query, planID))
	if err == sql.ErrNoRows {
		return emptyScaffold(planID), nil
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to load latest kill chain version", err)
	}

	return version, nil
}

// Save validates the stage mappings, deduplicates technique identifiers
// within each stage (first occurrence wins), assigns a new version id and
// timestamp, and persists the version in a single transaction. Validation
// failures reject the whole save with a ValidationError naming every
// offending stage label and technique identifier; nothing is written.
func (b *KillChainBuilder) Save(ctx context.Context, planID types.ID, mappings []StageMapping, author string) (*KillChainVersion, error) {
	if planID.IsZero() {
		return nil, types.NewError(types.KILLCHAIN_SAVE_FAILED, "plan id is required")
	}

	var issues []string

	// Collect assignments per stage, deduplicating order-preserving.
	// Unknown stage labels are validation issues, not silent drops.
	byStage := make(map[KillChainStage][]string, len(killChainStages))
	for _, mapping := range mappings {
		if !mapping.Stage.IsValid() {
			issues = append(issues, fmt.Sprintf("unknown stage label %q", mapping.Stage))
			continue
		}
		seen := make(map[string]bool)
		for _, existing := range byStage[mapping.Stage] {
			seen[existing] = true
		}
		for _, id := range mapping.TechniqueIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			byStage[mapping.Stage] = append(byStage[mapping.Stage], id)
		}
	}

	version := &KillChainVersion{
		ID:        types.NewID(),
		PlanID:    planID,
		Author:    author,
		Stages:    make([]StageMapping, 0, len(killChainStages)),
		CreatedAt: time.Now().UTC(),
	}
	for _, stage := range killChainStages {
		ids := byStage[stage]
		if ids == nil {
			ids = []string{}
		}
		version.Stages = append(version.Stages, StageMapping{Stage: stage, TechniqueIDs: ids})
	}

	err := b.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Every referenced identifier must resolve in the catalog at save
		// time. Checking inside the insert transaction keeps the whole save
		// atomic against concurrent catalog changes.
		checked := make(map[string]bool)
		for _, mapping := range version.Stages {
			for _, id := range mapping.TechniqueIDs {
				if checked[id] {
					continue
				}
				checked[id] = true

				var one int
				err := tx.QueryRowContext(ctx,
					`SELECT 1 FROM techniques WHERE technique_id = ?`, id).Scan(&one)
				if err == sql.ErrNoRows {
					issues = append(issues, fmt.Sprintf("unknown technique identifier %q in stage %s", id, mapping.Stage))
					continue
				}
				if err != nil {
					return types.WrapError(types.DB_QUERY_FAILED, "failed to resolve technique", err)
				}
			}
		}

		if len(issues) > 0 {
			return &ValidationError{Issues: issues}
		}

		stagesJSON, err := json.Marshal(version.Stages)
		if err != nil {
			return types.WrapError(types.KILLCHAIN_SAVE_FAILED, "failed to marshal stages", err)
		}

		query := `
			INSERT INTO kill_chain_versions (id, plan_id, author, stages, created_at)
			VALUES (?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			version.ID, version.PlanID, version.Author, string(stagesJSON), version.CreatedAt); err != nil {
			return types.WrapError(types.KILLCHAIN_SAVE_FAILED, "failed to persist kill chain version", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return version, nil
}

// History returns all versions for a plan in creation order, oldest first
func (b *KillChainBuilder) History(ctx context.Context, planID types.ID) ([]*KillChainVersion, error) {
	query := `
		SELECT id, plan_id, author, stages, created_at
		FROM kill_chain_versions
		WHERE plan_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := b.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query kill chain history", err)
	}
	defer rows.Close()

	var versions []*KillChainVersion
	for rows.Next() {
		version, err := scanVersionRows(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan kill chain version", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "error iterating kill chain versions", err)
	}

	return versions, nil
}

// Get returns a single version by its id
func (b *KillChainBuilder) Get(ctx context.Context, versionID types.ID) (*KillChainVersion, error) {
	query := `
		SELECT id, plan_id, author, stages, created_at
		FROM kill_chain_versions
		WHERE id = ?
	`

	version, err := scanVersion(b.db.QueryRowContext(ctx, query, versionID))
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KILLCHAIN_NOT_FOUND,
			fmt.Sprintf("kill chain version not found: %s", versionID))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to get kill chain version", err)
	}

	return version, nil
}

func scanVersionInto(scanner rowScanner) (*KillChainVersion, error) {
	var version KillChainVersion
	var stagesJSON string

	err := scanner.Scan(
		&version.ID,
		&version.PlanID,
		&version.Author,
		&stagesJSON,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stagesJSON), &version.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	return &version, nil
}

func scanVersion(row *sql.Row) (*KillChainVersion, error) {
	return scanVersionInto(row)
}

func scanVersionRows(rows *sql.Rows) (*KillChainVersion, error) {
	return scanVersionInto(rows)
}
