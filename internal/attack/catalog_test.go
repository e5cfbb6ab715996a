package attack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// setupTestDB opens a temporary migrated database for engine tests
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "rtops-attack-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := database.Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema())
	return db
}

func setupCatalog(t *testing.T, opts ...CatalogOption) Catalog {
	t.Helper()
	return NewCatalog(setupTestDB(t), opts...)
}

func TestCatalogUpsertCreates(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	result, err := catalog.Upsert(ctx, Technique{
		ID:          "T1059",
		Name:        "Command and Scripting Interpreter",
		Description: "Execute commands and scripts via shells/interpreters.",
		Tactics:     []Tactic{TacticExecution},
		Provenance:  ProvenanceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeCreated, result.Kind)
	assert.True(t, result.Technique.Active)
	assert.False(t, result.Technique.CreatedAt.IsZero())

	got, err := catalog.Get(ctx, "T1059")
	require.NoError(t, err)
	assert.Equal(t, "Command and Scripting Interpreter", got.Name)
	assert.Equal(t, []Tactic{TacticExecution}, got.Tactics)
	assert.Equal(t, ProvenanceManual, got.Provenance)
}

func TestCatalogUpsertIdempotent(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	payload := Technique{
		ID:          "T1021",
		Name:        "Remote Services",
		Description: "RDP/SMB/SSH for lateral movement.",
		Tactics:     []Tactic{TacticLateralMovement},
		Provenance:  ProvenanceSTIX,
	}

	first, err := catalog.Upsert(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, ChangeCreated, first.Kind)

	second, err := catalog.Upsert(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, second.Kind)

	got, err := catalog.Get(ctx, "T1021")
	require.NoError(t, err)
	assert.Equal(t, first.Technique.Name, got.Name)
	assert.Equal(t, first.Technique.Tactics, got.Tactics)
}

func TestCatalogProvenancePrecedence(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	// Operator enters the technique manually
	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1003",
		Name:       "OS Credential Dumping (reviewed)",
		Tactics:    []Tactic{TacticCredentialAccess},
		Provenance: ProvenanceManual,
	})
	require.NoError(t, err)

	// A later STIX import must not clobber the manual name but may fill
	// the empty description
	result, err := catalog.Upsert(ctx, Technique{
		ID:          "T1003",
		Name:        "OS Credential Dumping",
		Description: "Dump creds from OS components.",
		Tactics:     []Tactic{TacticCredentialAccess},
		Provenance:  ProvenanceSTIX,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, result.Kind)

	got, err := catalog.Get(ctx, "T1003")
	require.NoError(t, err)
	assert.Equal(t, "OS Credential Dumping (reviewed)", got.Name)
	assert.Equal(t, "Dump creds from OS components.", got.Description)
	// The row stays tagged with its highest-priority contributor
	assert.Equal(t, ProvenanceManual, got.Provenance)

	// Another import after the fill-in still cannot touch the manual name
	_, err = catalog.Upsert(ctx, Technique{
		ID:         "T1003",
		Name:       "Credential Dumping",
		Tactics:    []Tactic{TacticCredentialAccess},
		Provenance: ProvenanceNavigator,
	})
	require.NoError(t, err)

	got, err = catalog.Get(ctx, "T1003")
	require.NoError(t, err)
	assert.Equal(t, "OS Credential Dumping (reviewed)", got.Name)
}

func TestCatalogHigherPrecedenceOverwrites(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1566",
		Name:       "phishing (placeholder)",
		Tactics:    []Tactic{TacticInitialAccess},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	result, err := catalog.Upsert(ctx, Technique{
		ID:         "T1566",
		Name:       "Phishing",
		Tactics:    []Tactic{TacticInitialAccess},
		Provenance: ProvenanceSpreadsheet,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, result.Kind)

	got, err := catalog.Get(ctx, "T1566")
	require.NoError(t, err)
	assert.Equal(t, "Phishing", got.Name)
	assert.Equal(t, ProvenanceSpreadsheet, got.Provenance)
}

func TestCatalogEqualPrecedenceLastWriteWins(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:          "T1595",
		Name:        "Active Scanning (draft)",
		Description: "first pass",
		Tactics:     []Tactic{TacticReconnaissance},
		Provenance:  ProvenanceSpreadsheet,
	})
	require.NoError(t, err)

	// A second row from the same source replaces the earlier values
	result, err := catalog.Upsert(ctx, Technique{
		ID:          "T1595",
		Name:        "Active Scanning",
		Description: "second pass",
		Tactics:     []Tactic{TacticReconnaissance},
		Provenance:  ProvenanceSpreadsheet,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, result.Kind)

	got, err := catalog.Get(ctx, "T1595")
	require.NoError(t, err)
	assert.Equal(t, "Active Scanning", got.Name)
	assert.Equal(t, "second pass", got.Description)

	// Replaying the winning row changes nothing
	result, err = catalog.Upsert(ctx, Technique{
		ID:          "T1595",
		Name:        "Active Scanning",
		Description: "second pass",
		Tactics:     []Tactic{TacticReconnaissance},
		Provenance:  ProvenanceSpreadsheet,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, result.Kind)
}

func TestCatalogProvenanceTagTracksContributors(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:          "T1190",
		Name:        "Exploit Public-Facing Application",
		Description: "exploit internet-facing services",
		Tactics:     []Tactic{TacticInitialAccess},
		Provenance:  ProvenanceSTIX,
	})
	require.NoError(t, err)

	// A higher-ranked source that supplies nothing new neither counts
	// as an update nor relabels the row
	result, err := catalog.Upsert(ctx, Technique{
		ID:         "T1190",
		Provenance: ProvenanceNavigator,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, result.Kind)

	got, err := catalog.Get(ctx, "T1190")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceSTIX, got.Provenance)

	// Once the higher-ranked source actually contributes, the tag follows
	result, err = catalog.Upsert(ctx, Technique{
		ID:         "T1190",
		Refs:       "https://attack.mitre.org/techniques/T1190/",
		Provenance: ProvenanceNavigator,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, result.Kind)
	assert.Equal(t, ProvenanceNavigator, result.Technique.Provenance)
}

func TestCatalogTacticSetsMergeNeverShrink(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1078",
		Name:       "Valid Accounts",
		Tactics:    []Tactic{TacticInitialAccess, TacticPersistence},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	// A source reporting fewer tactics must not shrink the set
	result, err := catalog.Upsert(ctx, Technique{
		ID:         "T1078",
		Tactics:    []Tactic{TacticDefenseEvasion},
		Provenance: ProvenanceNavigator,
	})
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, result.Kind)

	got, err := catalog.Get(ctx, "T1078")
	require.NoError(t, err)
	assert.Equal(t,
		[]Tactic{TacticInitialAccess, TacticPersistence, TacticDefenseEvasion},
		got.Tactics, "tactics in canonical matrix order")
}

func TestCatalogRejectsInsertWithoutTactic(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1027",
		Name:       "Obfuscated Files or Information",
		Provenance: ProvenanceNavigator,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.CATALOG_TECHNIQUE_INVALID))

	_, err = catalog.Get(ctx, "T1027")
	assert.True(t, types.IsCode(err, types.CATALOG_TECHNIQUE_NOT_FOUND))
}

func TestCatalogRejectsMalformedIdentifier(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"", "1059", "T105", "attack-pattern--uuid", "T1059.1"} {
		_, err := catalog.Upsert(ctx, Technique{
			ID:      id,
			Tactics: []Tactic{TacticExecution},
		})
		assert.True(t, types.IsCode(err, types.CATALOG_TECHNIQUE_INVALID), "id %q", id)
	}

	// Sub-technique identifiers are valid
	_, err := catalog.Upsert(ctx, Technique{
		ID:      "T1059.001",
		Name:    "PowerShell",
		Tactics: []Tactic{TacticExecution},
	})
	assert.NoError(t, err)
}

func TestCatalogListByTactic(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	// Insert out of identifier order to verify deterministic listing
	for _, tech := range []Technique{
		{ID: "T1204", Name: "User Execution", Tactics: []Tactic{TacticExecution}},
		{ID: "T1059", Name: "Command and Scripting Interpreter", Tactics: []Tactic{TacticExecution}},
		{ID: "T1021", Name: "Remote Services", Tactics: []Tactic{TacticLateralMovement}},
	} {
		tech.Provenance = ProvenanceSTIX
		_, err := catalog.Upsert(ctx, tech)
		require.NoError(t, err)
	}

	execution, err := catalog.ListByTactic(ctx, TacticExecution)
	require.NoError(t, err)
	require.Len(t, execution, 2)
	assert.Equal(t, "T1059", execution[0].ID)
	assert.Equal(t, "T1204", execution[1].ID)

	empty, err := catalog.ListByTactic(ctx, TacticImpact)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogSearch(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	for _, tech := range []Technique{
		{ID: "T1059", Name: "Command and Scripting Interpreter", Description: "shells and interpreters", Tactics: []Tactic{TacticExecution}},
		{ID: "T1003", Name: "OS Credential Dumping", Description: "dump creds", Tactics: []Tactic{TacticCredentialAccess}},
	} {
		tech.Provenance = ProvenanceSTIX
		_, err := catalog.Upsert(ctx, tech)
		require.NoError(t, err)
	}

	t.Run("matches name case-insensitively", func(t *testing.T) {
		results, err := catalog.Search(ctx, "SCRIPTING")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "T1059", results[0].ID)
	})

	t.Run("matches identifier substring", func(t *testing.T) {
		results, err := catalog.Search(ctx, "1003")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "T1003", results[0].ID)
	})

	t.Run("matches description", func(t *testing.T) {
		results, err := catalog.Search(ctx, "creds")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "T1003", results[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		results, err := catalog.Search(ctx, "kerberoasting")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestCatalogDeactivate(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1490",
		Name:       "Inhibit System Recovery",
		Tactics:    []Tactic{TacticImpact},
		Provenance: ProvenanceManual,
	})
	require.NoError(t, err)

	require.NoError(t, catalog.Deactivate(ctx, "T1490"))

	// Deactivated techniques stay resolvable for historical references
	got, err := catalog.Get(ctx, "T1490")
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = catalog.Deactivate(ctx, "T9999")
	assert.True(t, types.IsCode(err, types.CATALOG_TECHNIQUE_NOT_FOUND))
}

func TestCatalogConcurrentUpsertsConverge(t *testing.T) {
	catalog := setupCatalog(t)
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1105",
		Name:       "Ingress Tool Transfer",
		Tactics:    []Tactic{TacticCommandAndControl},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	extra := []Tactic{TacticExecution, TacticPersistence, TacticLateralMovement, TacticExfiltration}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := catalog.Upsert(ctx, Technique{
				ID:          "T1105",
				Description: fmt.Sprintf("writer %d", i),
				Tactics:     []Tactic{extra[i%len(extra)]},
				Provenance:  ProvenanceSpreadsheet,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	// All writers land on the single row: the description is whichever
	// writer committed last, and the tactic union holds every addition
	got, err := catalog.Get(ctx, "T1105")
	require.NoError(t, err)
	assert.Regexp(t, `^writer \d+$`, got.Description)
	for _, tac := range extra {
		assert.True(t, got.HasTactic(tac), "tactic %s", tac)
	}
	assert.True(t, got.HasTactic(TacticCommandAndControl))
}

func TestCatalogCustomProvenancePriority(t *testing.T) {
	// Inverted priority: stix outranks everything
	catalog := setupCatalog(t, WithProvenancePriority([]Provenance{
		ProvenanceSTIX,
		ProvenanceNavigator,
		ProvenanceSpreadsheet,
		ProvenanceManual,
	}))
	ctx := context.Background()

	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1110",
		Name:       "brute force (manual note)",
		Tactics:    []Tactic{TacticCredentialAccess},
		Provenance: ProvenanceManual,
	})
	require.NoError(t, err)

	_, err = catalog.Upsert(ctx, Technique{
		ID:         "T1110",
		Name:       "Brute Force",
		Tactics:    []Tactic{TacticCredentialAccess},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	got, err := catalog.Get(ctx, "T1110")
	require.NoError(t, err)
	assert.Equal(t, "Brute Force", got.Name)
}
