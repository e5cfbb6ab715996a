// Package finding provides security finding records for red team exercises.
// Findings reference catalog technique identifiers as weak references;
// technique edits never cascade into recorded findings.
package finding

import (
	"fmt"
	"time"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// Severity represents how serious a finding is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities for filtering, most severe first
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// IsValid reports whether the severity is a known level
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at least as severe as min
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] <= severityRank[min]
}

// Status represents the triage state of a finding
type Status string

const (
	StatusOpen          Status = "open"
	StatusConfirmed     Status = "confirmed"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// IsValid reports whether the status is a known state
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusConfirmed, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Finding is a recorded security finding tied to an exercise
type Finding struct {
	ID           types.ID  `json:"id"`
	ExerciseID   types.ID  `json:"exercise_id"`
	Title        string    `json:"title"`
	Severity     Severity  `json:"severity"`
	Status       Status    `json:"status"`
	Description  string    `json:"description,omitempty"`
	Remediation  string    `json:"remediation,omitempty"`
	TechniqueIDs []string  `json:"technique_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks required fields and enum values. Technique references
// must be well-formed identifiers; existence is checked at store time by
// callers that hold a catalog.
func (f *Finding) Validate() error {
	if f.Title == "" {
		return fmt.Errorf("finding title is required")
	}
	if f.ExerciseID.IsZero() {
		return fmt.Errorf("finding exercise id is required")
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity %q", f.Severity)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("invalid status %q", f.Status)
	}
	for _, id := range f.TechniqueIDs {
		if !attack.IsTechniqueID(id) {
			return fmt.Errorf("invalid technique identifier %q", id)
		}
	}
	return nil
}

// Filter provides filtering options for finding queries
type Filter struct {
	Severity    *Severity
	Status      *Status
	MinSeverity *Severity
	TechniqueID *string
}

// NewFilter creates a new empty filter
func NewFilter() *Filter {
	return &Filter{}
}

// WithSeverity filters by exact severity
func (f *Filter) WithSeverity(severity Severity) *Filter {
	f.Severity = &severity
	return f
}

// WithStatus filters by status
func (f *Filter) WithStatus(status Status) *Filter {
	f.Status = &status
	return f
}

// WithMinSeverity filters to findings at or above a severity
func (f *Filter) WithMinSeverity(min Severity) *Filter {
	f.MinSeverity = &min
	return f
}

// WithTechnique filters to findings referencing a technique identifier
func (f *Filter) WithTechnique(id string) *Filter {
	f.TechniqueID = &id
	return f
}

// matches reports whether a finding passes the filter
func (f *Filter) matches(finding *Finding) bool {
	if f == nil {
		return true
	}
	if f.Severity != nil && finding.Severity != *f.Severity {
		return false
	}
	if f.Status != nil && finding.Status != *f.Status {
		return false
	}
	if f.MinSeverity != nil && !finding.Severity.AtLeast(*f.MinSeverity) {
		return false
	}
	if f.TechniqueID != nil {
		found := false
		for _, id := range finding.TechniqueIDs {
			if id == *f.TechniqueID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
