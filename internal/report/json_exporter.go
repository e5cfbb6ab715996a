package report

import (
	"context"
	"encoding/json"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
)

// JSONExporter renders report documents in JSON format.
// Thread-safe for concurrent use.
type JSONExporter struct {
	// Indent controls whether the output is pretty-printed.
	// If true, uses 2-space indentation. If false, compact output.
	Indent bool
}

// NewJSONExporter creates a new JSON exporter
func NewJSONExporter(indent bool) *JSONExporter {
	return &JSONExporter{
		Indent: indent,
	}
}

// Export renders the document as JSON with optional finding filtering.
//
// The output structure is:
//
//	{
//	  "report": {...},
//	  "metadata": {
//	    "total_findings": N,
//	    "exported_findings": M,
//	    "filters_applied": {...}
//	  }
//	}
func (e *JSONExporter) Export(ctx context.Context, doc *Document, opts Options) ([]byte, error) {
	filtered := ApplyFilters(doc.Findings, opts)

	rendered := *doc
	rendered.Findings = filtered
	if !opts.IncludeKillChain {
		rendered.KillChain = nil
	}

	output := struct {
		Report   Document `json:"report"`
		Metadata Metadata `json:"metadata"`
	}{
		Report: rendered,
		Metadata: Metadata{
			TotalFindings:    len(doc.Findings),
			ExportedFindings: len(filtered),
			FiltersApplied: FiltersApplied{
				MinSeverity:      opts.MinSeverity,
				IncludeResolved:  opts.IncludeResolved,
				IncludeKillChain: opts.IncludeKillChain,
			},
		},
	}

	if e.Indent {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

// Format returns "json"
func (e *JSONExporter) Format() string {
	return "json"
}

// ContentType returns "application/json"
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// Metadata contains metadata about the export operation
type Metadata struct {
	TotalFindings    int            `json:"total_findings"`
	ExportedFindings int            `json:"exported_findings"`
	FiltersApplied   FiltersApplied `json:"filters_applied"`
}

// FiltersApplied describes which filters were applied during export
type FiltersApplied struct {
	MinSeverity      *finding.Severity `json:"min_severity,omitempty"`
	IncludeResolved  bool              `json:"include_resolved"`
	IncludeKillChain bool              `json:"include_kill_chain"`
}

// Ensure JSONExporter implements Exporter at compile time
var _ Exporter = (*JSONExporter)(nil)
