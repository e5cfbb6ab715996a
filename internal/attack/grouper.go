package attack

import (
	"context"
)

// GroupedResult is a search hit annotated with the tactic groups the
// technique appears under, in canonical matrix order.
type GroupedResult struct {
	Technique Technique `json:"technique"`
	Groups    []Tactic  `json:"groups"`
}

// Grouper presents the catalog grouped by tactic for search and selection.
// It is a pure read projection and never mutates the catalog.
type Grouper struct {
	catalog Catalog
}

// NewGrouper creates a grouper reading from the given catalog
func NewGrouper(catalog Catalog) *Grouper {
	return &Grouper{catalog: catalog}
}

// GroupByTactic returns the catalog keyed by every canonical tactic.
// Each tactic key is always present; techniques with multiple tactics
// appear under each. Values are ordered by identifier.
func (g *Grouper) GroupByTactic(ctx context.Context) (map[Tactic][]Technique, error) {
	groups := make(map[Tactic][]Technique, len(tacticOrder))

	for _, tactic := range Tactics() {
		techniques, err := g.catalog.ListByTactic(ctx, tactic)
		if err != nil {
			return nil, err
		}
		if techniques == nil {
			techniques = []Technique{}
		}
		groups[tactic] = techniques
	}

	return groups, nil
}

// Search delegates to the catalog's substring search and annotates each
// result with the tactic groups it belongs to.
func (g *Grouper) Search(ctx context.Context, query string) ([]GroupedResult, error) {
	techniques, err := g.catalog.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]GroupedResult, 0, len(techniques))
	for _, technique := range techniques {
		groups := make([]Tactic, len(technique.Tactics))
		copy(groups, technique.Tactics)
		sortTactics(groups)

		results = append(results, GroupedResult{
			Technique: technique,
			Groups:    groups,
		})
	}

	return results, nil
}
