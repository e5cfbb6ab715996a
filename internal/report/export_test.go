package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// setupBuilder wires a builder over a temporary database seeded with one
// exercise, two catalog techniques, two findings, and one kill chain version.
func setupBuilder(t *testing.T) (*Builder, types.ID) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "rtops-report-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := database.Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	ctx := context.Background()

	exercises := database.NewExerciseDAO(db)
	exercise := &database.Exercise{
		Name:   "operation-glasshouse",
		Status: database.ExerciseStatusActive,
		Scope:  "corp domain only",
	}
	require.NoError(t, exercises.Create(ctx, exercise))

	catalog := attack.NewCatalog(db)
	for _, technique := range []attack.Technique{
		{ID: "T1059", Name: "Command and Scripting Interpreter", Tactics: []attack.Tactic{attack.TacticExecution}},
		{ID: "T1021", Name: "Remote Services", Tactics: []attack.Tactic{attack.TacticLateralMovement}},
	} {
		_, err := catalog.Upsert(ctx, technique)
		require.NoError(t, err)
	}

	store := finding.NewDBStore(db)
	require.NoError(t, store.Save(ctx, &finding.Finding{
		ExerciseID:   exercise.ID,
		Title:        "Interpreter abuse on jump host",
		Severity:     finding.SeverityHigh,
		Status:       finding.StatusConfirmed,
		Description:  "PowerShell payload executed via scheduled task.",
		Remediation:  "Constrain language mode and audit 4104 events.",
		TechniqueIDs: []string{"T1059"},
	}))
	require.NoError(t, store.Save(ctx, &finding.Finding{
		ExerciseID: exercise.ID,
		Title:      "Stale alert rule",
		Severity:   finding.SeverityLow,
		Status:     finding.StatusResolved,
	}))

	killchain := attack.NewKillChainBuilder(db, catalog)
	_, err = killchain.Save(ctx, exercise.ID, []attack.StageMapping{
		{Stage: attack.StageExploitation, TechniqueIDs: []string{"T1059"}},
		{Stage: attack.StageActionsOnObjectives, TechniqueIDs: []string{"T1021"}},
	}, "operator-1")
	require.NoError(t, err)

	return NewBuilder(exercises, store, catalog, killchain), exercise.ID
}

func TestBuilderAssemblesDocument(t *testing.T) {
	builder, exerciseID := setupBuilder(t)

	doc, err := builder.Build(context.Background(), exerciseID)
	require.NoError(t, err)

	assert.Equal(t, "operation-glasshouse", doc.Exercise.Name)
	assert.Len(t, doc.Findings, 2)
	require.NotNil(t, doc.KillChain)
	assert.Len(t, doc.KillChain.Stages, 7)

	assert.Contains(t, doc.Techniques, "T1059")
	assert.Contains(t, doc.Techniques, "T1021")
	assert.Equal(t, "Remote Services", doc.Techniques["T1021"].Name)
}

func TestBuilderUnknownExercise(t *testing.T) {
	builder, _ := setupBuilder(t)

	_, err := builder.Build(context.Background(), types.NewID())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.EXERCISE_NOT_FOUND))
}

func TestBuilderNoKillChain(t *testing.T) {
	builder, _ := setupBuilder(t)
	ctx := context.Background()

	exercise := &database.Exercise{Name: "bare", Status: database.ExerciseStatusPlanned}
	require.NoError(t, builder.exercises.Create(ctx, exercise))

	doc, err := builder.Build(ctx, exercise.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.KillChain)
	assert.Empty(t, doc.Findings)
}

func TestApplyFilters(t *testing.T) {
	medium := finding.SeverityMedium
	findings := []*finding.Finding{
		{Title: "a", Severity: finding.SeverityCritical, Status: finding.StatusOpen},
		{Title: "b", Severity: finding.SeverityLow, Status: finding.StatusOpen},
		{Title: "c", Severity: finding.SeverityHigh, Status: finding.StatusResolved},
	}

	active := ApplyFilters(findings, Options{})
	require.Len(t, active, 2)

	severe := ApplyFilters(findings, Options{MinSeverity: &medium, IncludeResolved: true})
	require.Len(t, severe, 2)
	assert.Equal(t, "a", severe[0].Title)
	assert.Equal(t, "c", severe[1].Title)
}

func TestJSONExport(t *testing.T) {
	builder, exerciseID := setupBuilder(t)
	ctx := context.Background()

	doc, err := builder.Build(ctx, exerciseID)
	require.NoError(t, err)

	data, err := NewJSONExporter(true).Export(ctx, doc, DefaultOptions())
	require.NoError(t, err)

	var decoded struct {
		Report   Document `json:"report"`
		Metadata Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 2, decoded.Metadata.TotalFindings)
	assert.Equal(t, 1, decoded.Metadata.ExportedFindings)
	require.Len(t, decoded.Report.Findings, 1)
	assert.Equal(t, "Interpreter abuse on jump host", decoded.Report.Findings[0].Title)
	require.NotNil(t, decoded.Report.KillChain)
}

func TestJSONExportExcludesKillChain(t *testing.T) {
	builder, exerciseID := setupBuilder(t)
	ctx := context.Background()

	doc, err := builder.Build(ctx, exerciseID)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.IncludeKillChain = false
	data, err := NewJSONExporter(false).Export(ctx, doc, opts)
	require.NoError(t, err)

	var decoded struct {
		Report Document `json:"report"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Report.KillChain)
	assert.NotContains(t, string(data), `"kill_chain":`)
	// source document untouched
	assert.NotNil(t, doc.KillChain)
}

func TestMarkdownExport(t *testing.T) {
	builder, exerciseID := setupBuilder(t)
	ctx := context.Background()

	doc, err := builder.Build(ctx, exerciseID)
	require.NoError(t, err)

	data, err := NewMarkdownExporter().WithTitle("Glasshouse Report").Export(ctx, doc, DefaultOptions())
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "# Glasshouse Report"))
	assert.Contains(t, out, "**Exercise:** operation-glasshouse")
	assert.Contains(t, out, "## Kill Chain")
	assert.Contains(t, out, "### Exploitation")
	assert.Contains(t, out, "`T1059` - Command and Scripting Interpreter")
	assert.Contains(t, out, "_No techniques assigned._")
	assert.Contains(t, out, "#### Remediation")
	// resolved finding filtered out by default
	assert.NotContains(t, out, "Stale alert rule")
}

func TestExporterMetadata(t *testing.T) {
	assert.Equal(t, "json", NewJSONExporter(false).Format())
	assert.Equal(t, "application/json", NewJSONExporter(false).ContentType())
	assert.Equal(t, "markdown", NewMarkdownExporter().Format())
	assert.Equal(t, "text/markdown; charset=utf-8", NewMarkdownExporter().ContentType())
}
