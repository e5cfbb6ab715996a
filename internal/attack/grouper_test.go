package attack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByTactic(t *testing.T) {
	catalog := setupCatalog(t)
	grouper := NewGrouper(catalog)
	ctx := context.Background()

	// Insertion order deliberately scrambled; grouping must not depend on it
	for _, tech := range []Technique{
		{ID: "T1204", Name: "User Execution", Tactics: []Tactic{TacticExecution}},
		{ID: "T1078", Name: "Valid Accounts", Tactics: []Tactic{TacticInitialAccess, TacticPersistence}},
		{ID: "T1059", Name: "Command and Scripting Interpreter", Tactics: []Tactic{TacticExecution}},
	} {
		tech.Provenance = ProvenanceSTIX
		_, err := catalog.Upsert(ctx, tech)
		require.NoError(t, err)
	}

	groups, err := grouper.GroupByTactic(ctx)
	require.NoError(t, err)

	// Every canonical tactic key is present even when empty
	assert.Len(t, groups, len(Tactics()))
	assert.NotNil(t, groups[TacticImpact])
	assert.Empty(t, groups[TacticImpact])

	execution := groups[TacticExecution]
	require.Len(t, execution, 2)
	assert.Equal(t, "T1059", execution[0].ID)
	assert.Equal(t, "T1204", execution[1].ID)

	// Multi-tactic techniques appear under each of their tactics
	require.Len(t, groups[TacticInitialAccess], 1)
	require.Len(t, groups[TacticPersistence], 1)
	assert.Equal(t, "T1078", groups[TacticInitialAccess][0].ID)
	assert.Equal(t, "T1078", groups[TacticPersistence][0].ID)
}

func TestGrouperSearchAnnotatesGroups(t *testing.T) {
	catalog := setupCatalog(t)
	grouper := NewGrouper(catalog)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1078",
		Name:       "Valid Accounts",
		Tactics:    []Tactic{TacticPersistence, TacticInitialAccess},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	results, err := grouper.Search(ctx, "valid")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "T1078", results[0].Technique.ID)
	assert.Equal(t, []Tactic{TacticInitialAccess, TacticPersistence}, results[0].Groups,
		"groups reported in canonical matrix order")
}

func TestGrouperSearchNoResults(t *testing.T) {
	grouper := NewGrouper(setupCatalog(t))

	results, err := grouper.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
}
