package attack

import (
	"fmt"
)

// ImportSummary reports the outcome of an enrich or import call for
// operator visibility. Warnings itemize every skipped or partially
// handled entry; the overall call still succeeds when warnings occur.
type ImportSummary struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Total returns the number of entries that reached the catalog
func (s *ImportSummary) Total() int {
	return s.Created + s.Updated + s.Unchanged
}

// record tallies an upsert outcome
func (s *ImportSummary) record(result UpsertResult) {
	switch result.Kind {
	case ChangeCreated:
		s.Created++
	case ChangeUpdated:
		s.Updated++
	case ChangeUnchanged:
		s.Unchanged++
	}
}

// skip counts a skipped entry and records its warning
func (s *ImportSummary) skip(format string, args ...interface{}) {
	s.Skipped++
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// warn records a warning without counting a skipped entry
func (s *ImportSummary) warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Importer parses external threat-intelligence artifacts and upserts the
// technique references they carry into the catalog, tagging provenance.
// Documents are handed in as already-materialized bytes; acquisition and
// release of the underlying file or upload is the caller's concern.
type Importer struct {
	catalog Catalog
}

// NewImporter creates an importer writing through the given catalog
func NewImporter(catalog Catalog) *Importer {
	return &Importer{catalog: catalog}
}
