package attack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTactic(t *testing.T) {
	tests := []struct {
		in   string
		want Tactic
		ok   bool
	}{
		{"execution", TacticExecution, true},
		{"Execution", TacticExecution, true},
		{"  Initial Access ", TacticInitialAccess, true},
		{"initial-access", TacticInitialAccess, true},
		{"Command and Control", TacticCommandAndControl, true},
		{"Command & Control", TacticCommandAndControl, true},
		{"command-and-control", TacticCommandAndControl, true},
		{"Privilege Escalation", TacticPrivilegeEscalation, true},
		{"weaponization", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTactic(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestTacticTitle(t *testing.T) {
	assert.Equal(t, "Command & Control", TacticCommandAndControl.Title())
	assert.Equal(t, "Initial Access", TacticInitialAccess.Title())
	assert.Equal(t, "Some Custom Label", Tactic("some-custom-label").Title())
}

func TestTacticsOrder(t *testing.T) {
	tactics := Tactics()
	assert.Len(t, tactics, 14)
	assert.Equal(t, TacticReconnaissance, tactics[0])
	assert.Equal(t, TacticImpact, tactics[13])
}

func TestIsTechniqueID(t *testing.T) {
	valid := []string{"T1059", "T1059.001", "T1003", "T9999.999"}
	for _, id := range valid {
		assert.True(t, IsTechniqueID(id), "id %q", id)
	}

	invalid := []string{"", "T105", "T10590", "1059", "T1059.1", "T1059.0001", "t1059", "attack-pattern--x"}
	for _, id := range invalid {
		assert.False(t, IsTechniqueID(id), "id %q", id)
	}
}

func TestTechniqueValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tech := Technique{
			ID:         "T1059",
			Name:       "Command and Scripting Interpreter",
			Tactics:    []Tactic{TacticExecution},
			Provenance: ProvenanceManual,
		}
		assert.NoError(t, tech.Validate())
	})

	t.Run("bad identifier", func(t *testing.T) {
		tech := Technique{ID: "X1", Tactics: []Tactic{TacticExecution}}
		assert.Error(t, tech.Validate())
	})

	t.Run("bad tactic", func(t *testing.T) {
		tech := Technique{ID: "T1059", Tactics: []Tactic{"weaponization"}}
		assert.Error(t, tech.Validate())
	})

	t.Run("bad provenance", func(t *testing.T) {
		tech := Technique{ID: "T1059", Tactics: []Tactic{TacticExecution}, Provenance: "scraper"}
		assert.Error(t, tech.Validate())
	})
}

func TestNormalizeTactics(t *testing.T) {
	got := normalizeTactics([]Tactic{
		TacticImpact,
		TacticExecution,
		TacticImpact,
		TacticInitialAccess,
	})
	assert.Equal(t, []Tactic{TacticInitialAccess, TacticExecution, TacticImpact}, got)
}

func TestKillChainStageIsValid(t *testing.T) {
	for _, stage := range KillChainStages() {
		assert.True(t, stage.IsValid(), "stage %q", stage)
	}
	assert.False(t, KillChainStage("Lateral Movement").IsValid())
	assert.False(t, KillChainStage("").IsValid())
}
