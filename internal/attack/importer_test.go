package attack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stixBundleFixture is a minimal synthetic bundle with one attack-pattern
const stixBundleFixture = `{
	"type": "bundle",
	"id": "bundle--11111111-2222-3333-4444-555555555555",
	"objects": [
		{
			"type": "attack-pattern",
			"id": "attack-pattern--aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			"name": "Command and Scripting Interpreter",
			"description": "Adversaries may abuse command and script interpreters.",
			"kill_chain_phases": [
				{"kill_chain_name": "mitre-attack", "phase_name": "execution"}
			],
			"external_references": [
				{"source_name": "mitre-attack", "external_id": "T1059", "url": "https://attack.mitre.org/techniques/T1059/"},
				{"source_name": "some-vendor", "external_id": "X-1"}
			]
		},
		{
			"type": "intrusion-set",
			"id": "intrusion-set--ffffffff-0000-1111-2222-333333333333",
			"name": "Some Group"
		}
	]
}`

func TestImportSTIXRoundTrip(t *testing.T) {
	catalog := setupCatalog(t)
	importer := NewImporter(catalog)
	ctx := context.Background()

	summary, err := importer.ImportSTIX(ctx, []byte(stixBundleFixture))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Warnings)

	got, err := catalog.Get(ctx, "T1059")
	require.NoError(t, err)
	assert.Equal(t, "Command and Scripting Interpreter", got.Name)
	assert.Equal(t, ProvenanceSTIX, got.Provenance)
	assert.Equal(t, []Tactic{TacticExecution}, got.Tactics)
	assert.Equal(t, "https://attack.mitre.org/techniques/T1059/", got.Refs)

	// Re-importing the identical bundle is a zero-diff operation
	again, err := importer.ImportSTIX(ctx, []byte(stixBundleFixture))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 1, again.Unchanged)
}

func TestImportSTIXSkipsObjectsWithoutAttackReference(t *testing.T) {
	catalog := setupCatalog(t)
	importer := NewImporter(catalog)

	bundle := `{
		"type": "bundle",
		"objects": [
			{
				"type": "attack-pattern",
				"id": "attack-pattern--no-ref",
				"name": "Vendor Technique",
				"kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}],
				"external_references": [{"source_name": "capec", "external_id": "CAPEC-1"}]
			}
		]
	}`

	summary, err := importer.ImportSTIX(context.Background(), []byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total())
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "no ATT&CK external reference")
}

func TestImportSTIXSkipsRevoked(t *testing.T) {
	catalog := setupCatalog(t)
	importer := NewImporter(catalog)

	bundle := `{
		"type": "bundle",
		"objects": [
			{
				"type": "attack-pattern",
				"id": "attack-pattern--old",
				"name": "Retired Technique",
				"revoked": true,
				"kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}],
				"external_references": [{"source_name": "mitre-attack", "external_id": "T1064"}]
			}
		]
	}`

	summary, err := importer.ImportSTIX(context.Background(), []byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
}

func TestImportSTIXFatalParseErrors(t *testing.T) {
	importer := NewImporter(setupCatalog(t))
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{"invalid JSON", `{not json`},
		{"wrong top-level type", `{"type": "report", "objects": []}`},
		{"missing objects", `{"type": "bundle"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := importer.ImportSTIX(ctx, []byte(tt.data))
			assert.Nil(t, summary)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "stix", parseErr.Format)
		})
	}
}

func TestImportNavigatorLayer(t *testing.T) {
	catalog := setupCatalog(t)
	importer := NewImporter(catalog)
	ctx := context.Background()

	layer := `{
		"name": "acme exercise layer",
		"domain": "enterprise-attack",
		"techniques": [
			{"techniqueID": "T1566", "tactic": "initial-access", "score": 75, "comment": "primary entry", "enabled": true},
			{"techniqueID": "T1021", "tactic": "lateral-movement", "score": 10, "enabled": false},
			{"tactic": "execution", "score": 5}
		]
	}`

	summary, err := importer.ImportNavigatorLayer(ctx, []byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "missing techniqueID")

	// Scoring metadata is ignored; only identity and tactic are recorded
	got, err := catalog.Get(ctx, "T1566")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceNavigator, got.Provenance)
	assert.Equal(t, []Tactic{TacticInitialAccess}, got.Tactics)

	// Disabled entries are still catalog references
	_, err = catalog.Get(ctx, "T1021")
	assert.NoError(t, err)

	// Idempotent re-import
	again, err := importer.ImportNavigatorLayer(ctx, []byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 2, again.Unchanged)
	assert.Equal(t, 0, again.Created)
}

func TestImportNavigatorLayerFatalParseErrors(t *testing.T) {
	importer := NewImporter(setupCatalog(t))
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{"invalid JSON", `[not json`},
		{"missing techniques list", `{"name": "layer", "domain": "enterprise-attack"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := importer.ImportNavigatorLayer(ctx, []byte(tt.data))
			assert.Nil(t, summary)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "navigator", parseErr.Format)
		})
	}
}

func TestImportNavigatorEntryWithoutTacticOnExisting(t *testing.T) {
	catalog := setupCatalog(t)
	importer := NewImporter(catalog)
	ctx := context.Background()

	// Technique already exists from a STIX import with a tactic
	_, err := catalog.Upsert(ctx, Technique{
		ID:         "T1595",
		Name:       "Active Scanning",
		Tactics:    []Tactic{TacticReconnaissance},
		Provenance: ProvenanceSTIX,
	})
	require.NoError(t, err)

	// Layer entry without a tactic merges fine against the existing row
	layer := `{"techniques": [{"techniqueID": "T1595"}]}`
	summary, err := importer.ImportNavigatorLayer(ctx, []byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unchanged)

	// But a brand-new technique with no tactic cannot satisfy the
	// at-least-one-tactic invariant and is skipped with a warning
	layer = `{"techniques": [{"techniqueID": "T1583"}]}`
	summary, err = importer.ImportNavigatorLayer(ctx, []byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
}
