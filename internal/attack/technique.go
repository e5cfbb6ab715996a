package attack

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Tactic is an ATT&CK Enterprise tactic used as a grouping key on techniques.
// Values are the canonical short names used by STIX kill_chain_phases.
type Tactic string

const (
	TacticReconnaissance      Tactic = "reconnaissance"
	TacticResourceDevelopment Tactic = "resource-development"
	TacticInitialAccess       Tactic = "initial-access"
	TacticExecution           Tactic = "execution"
	TacticPersistence         Tactic = "persistence"
	TacticPrivilegeEscalation Tactic = "privilege-escalation"
	TacticDefenseEvasion      Tactic = "defense-evasion"
	TacticCredentialAccess    Tactic = "credential-access"
	TacticDiscovery           Tactic = "discovery"
	TacticLateralMovement     Tactic = "lateral-movement"
	TacticCollection          Tactic = "collection"
	TacticCommandAndControl   Tactic = "command-and-control"
	TacticExfiltration        Tactic = "exfiltration"
	TacticImpact              Tactic = "impact"
)

// tacticOrder is the canonical ATT&CK Enterprise matrix ordering
var tacticOrder = []Tactic{
	TacticReconnaissance,
	TacticResourceDevelopment,
	TacticInitialAccess,
	TacticExecution,
	TacticPersistence,
	TacticPrivilegeEscalation,
	TacticDefenseEvasion,
	TacticCredentialAccess,
	TacticDiscovery,
	TacticLateralMovement,
	TacticCollection,
	TacticCommandAndControl,
	TacticExfiltration,
	TacticImpact,
}

// tacticTitles maps tactic short names to display titles
var tacticTitles = map[Tactic]string{
	TacticReconnaissance:      "Reconnaissance",
	TacticResourceDevelopment: "Resource Development",
	TacticInitialAccess:       "Initial Access",
	TacticExecution:           "Execution",
	TacticPersistence:         "Persistence",
	TacticPrivilegeEscalation: "Privilege Escalation",
	TacticDefenseEvasion:      "Defense Evasion",
	TacticCredentialAccess:    "Credential Access",
	TacticDiscovery:           "Discovery",
	TacticLateralMovement:     "Lateral Movement",
	TacticCollection:          "Collection",
	TacticCommandAndControl:   "Command & Control",
	TacticExfiltration:        "Exfiltration",
	TacticImpact:              "Impact",
}

// Tactics returns all tactics in canonical matrix order.
// The returned slice is a copy and safe to modify.
func Tactics() []Tactic {
	out := make([]Tactic, len(tacticOrder))
	copy(out, tacticOrder)
	return out
}

// Title returns the human-readable display title for the tactic.
// Unknown tactics fall back to a title-cased form of the short name.
func (t Tactic) Title() string {
	if title, ok := tacticTitles[t]; ok {
		return title
	}
	parts := strings.Split(string(t), "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// IsValid reports whether the tactic is one of the canonical tactics
func (t Tactic) IsValid() bool {
	_, ok := tacticTitles[t]
	return ok
}

// ParseTactic normalizes a free-form tactic label (short name or display
// title, any case) to its canonical Tactic. The second return value is
// false when the label does not map to a known tactic.
func ParseTactic(s string) (Tactic, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " & ", " and ")
	normalized = strings.ReplaceAll(normalized, " ", "-")

	t := Tactic(normalized)
	if t.IsValid() {
		return t, true
	}
	return "", false
}

// sortTactics orders tactics by canonical matrix position, in place
func sortTactics(tactics []Tactic) {
	position := make(map[Tactic]int, len(tacticOrder))
	for i, t := range tacticOrder {
		position[t] = i
	}
	sort.Slice(tactics, func(i, j int) bool {
		return position[tactics[i]] < position[tactics[j]]
	})
}

// Provenance identifies the origin of catalog data, used to arbitrate
// which source may overwrite which during field-level merges.
type Provenance string

const (
	// ProvenanceManual marks operator-entered data
	ProvenanceManual Provenance = "manual"
	// ProvenanceSpreadsheet marks data from the ATT&CK reference spreadsheet
	ProvenanceSpreadsheet Provenance = "spreadsheet"
	// ProvenanceNavigator marks data from a Navigator layer export
	ProvenanceNavigator Provenance = "navigator"
	// ProvenanceSTIX marks data from a STIX bundle
	ProvenanceSTIX Provenance = "stix"
)

// DefaultProvenancePriority returns the default merge precedence,
// highest priority first.
func DefaultProvenancePriority() []Provenance {
	return []Provenance{
		ProvenanceManual,
		ProvenanceSpreadsheet,
		ProvenanceNavigator,
		ProvenanceSTIX,
	}
}

// IsValid reports whether the provenance is a known source tag
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceManual, ProvenanceSpreadsheet, ProvenanceNavigator, ProvenanceSTIX:
		return true
	}
	return false
}

// techniqueIDPattern matches ATT&CK technique identifiers such as
// T1059 and sub-technique identifiers such as T1059.001.
var techniqueIDPattern = regexp.MustCompile(`^T\d{4}(\.\d{3})?$`)

// IsTechniqueID reports whether s is a well-formed ATT&CK technique identifier
func IsTechniqueID(s string) bool {
	return techniqueIDPattern.MatchString(s)
}

// Technique is a catalog entry keyed by its external ATT&CK identifier.
// Rows are created on first reference from any source and never hard-deleted;
// retirement is modeled by the Active flag so historical kill chain versions
// and findings keep resolving.
type Technique struct {
	ID           string     `json:"identifier"`
	Name         string     `json:"name"`
	Tactics      []Tactic   `json:"tactics"`
	Description  string     `json:"description"`
	Refs         string     `json:"refs,omitempty"`
	Provenance   Provenance `json:"provenance"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
}

// Validate checks the technique invariants: a well-formed identifier,
// a known provenance tag, and only canonical tactic labels.
func (t *Technique) Validate() error {
	if !IsTechniqueID(t.ID) {
		return fmt.Errorf("invalid technique identifier %q", t.ID)
	}
	if t.Provenance != "" && !t.Provenance.IsValid() {
		return fmt.Errorf("invalid provenance %q", t.Provenance)
	}
	for _, tac := range t.Tactics {
		if !tac.IsValid() {
			return fmt.Errorf("invalid tactic %q", tac)
		}
	}
	return nil
}

// HasTactic reports whether the technique is tagged with the given tactic
func (t *Technique) HasTactic(tactic Tactic) bool {
	for _, tac := range t.Tactics {
		if tac == tactic {
			return true
		}
	}
	return false
}

// normalizeTactics deduplicates and canonically orders a tactic set
func normalizeTactics(tactics []Tactic) []Tactic {
	seen := make(map[Tactic]bool, len(tactics))
	var out []Tactic
	for _, t := range tactics {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sortTactics(out)
	return out
}
