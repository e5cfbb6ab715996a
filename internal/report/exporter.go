// Package report assembles exercise report documents and renders them in
// portable formats for downstream tooling.
package report

import (
	"context"
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// Document is a fully assembled exercise report: the exercise record, its
// findings, the latest kill chain version, and detail for every technique
// the findings and kill chain reference.
type Document struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Exercise    *database.Exercise          `json:"exercise"`
	Findings    []*finding.Finding          `json:"findings"`
	KillChain   *attack.KillChainVersion    `json:"kill_chain,omitempty"`
	Techniques  map[string]attack.Technique `json:"techniques,omitempty"`
}

// Exporter defines the interface for rendering a report document.
// Implementations must be safe for concurrent use from multiple goroutines.
type Exporter interface {
	// Export renders the document in the target format with optional filtering
	Export(ctx context.Context, doc *Document, opts Options) ([]byte, error)

	// Format returns the format identifier (e.g., "json", "markdown")
	Format() string

	// ContentType returns the MIME content type for HTTP responses
	ContentType() string
}

// Options configures the export operation with filtering and customization.
type Options struct {
	// MinSeverity filters findings to those at or above this severity.
	// If nil, all severities are included.
	MinSeverity *finding.Severity

	// IncludeResolved controls whether resolved/false positive findings
	// are included. Defaults to false (only active findings).
	IncludeResolved bool

	// IncludeKillChain controls whether the kill chain section is rendered
	IncludeKillChain bool
}

// DefaultOptions returns Options with sensible defaults
func DefaultOptions() Options {
	return Options{
		MinSeverity:      nil,
		IncludeResolved:  false,
		IncludeKillChain: true,
	}
}

// ApplyFilters filters findings based on Options criteria. Returns a new
// slice containing only findings that match all filter conditions.
func ApplyFilters(findings []*finding.Finding, opts Options) []*finding.Finding {
	result := make([]*finding.Finding, 0, len(findings))

	for _, f := range findings {
		if opts.MinSeverity != nil && !f.Severity.AtLeast(*opts.MinSeverity) {
			continue
		}
		if !opts.IncludeResolved {
			if f.Status == finding.StatusResolved || f.Status == finding.StatusFalsePositive {
				continue
			}
		}
		result = append(result, f)
	}

	return result
}

// Builder assembles report documents from the platform stores
type Builder struct {
	exercises database.ExerciseDAO
	findings  finding.Store
	catalog   attack.Catalog
	killchain *attack.KillChainBuilder
}

// NewBuilder creates a report builder over the platform stores
func NewBuilder(exercises database.ExerciseDAO, findings finding.Store, catalog attack.Catalog, killchain *attack.KillChainBuilder) *Builder {
	return &Builder{
		exercises: exercises,
		findings:  findings,
		catalog:   catalog,
		killchain: killchain,
	}
}

// Build assembles the report document for an exercise. The kill chain plan
// shares the exercise ID; exercises without a saved version get no kill
// chain section. Technique references that no longer resolve in the catalog
// are left out of the detail map rather than failing the report.
func (b *Builder) Build(ctx context.Context, exerciseID types.ID) (*Document, error) {
	exercise, err := b.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		return nil, err
	}

	findings, err := b.findings.List(ctx, exerciseID, nil)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		GeneratedAt: time.Now().UTC(),
		Exercise:    exercise,
		Findings:    findings,
		Techniques:  make(map[string]attack.Technique),
	}

	history, err := b.killchain.History(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		doc.KillChain = history[len(history)-1]
	}

	for _, id := range b.referencedTechniques(doc) {
		technique, err := b.catalog.Get(ctx, id)
		if err != nil {
			if types.IsCode(err, types.CATALOG_TECHNIQUE_NOT_FOUND) {
				continue
			}
			return nil, err
		}
		doc.Techniques[id] = *technique
	}

	return doc, nil
}

// referencedTechniques collects every technique identifier the document
// mentions, deduplicated, in first-seen order.
func (b *Builder) referencedTechniques(doc *Document) []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, f := range doc.Findings {
		for _, id := range f.TechniqueIDs {
			add(id)
		}
	}
	if doc.KillChain != nil {
		for _, stage := range doc.KillChain.Stages {
			for _, id := range stage.TechniqueIDs {
				add(id)
			}
		}
	}

	return ids
}
