package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
)

// MarkdownExporter renders report documents in GitHub-flavored Markdown.
// Thread-safe for concurrent use.
type MarkdownExporter struct {
	// Title is the report title
	Title string
}

// NewMarkdownExporter creates a new Markdown exporter with defaults
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{
		Title: "Red Team Exercise Report",
	}
}

// WithTitle configures a custom report title
func (m *MarkdownExporter) WithTitle(title string) *MarkdownExporter {
	m.Title = title
	return m
}

// Export renders the document as Markdown
func (m *MarkdownExporter) Export(ctx context.Context, doc *Document, opts Options) ([]byte, error) {
	filtered := ApplyFilters(doc.Findings, opts)

	var buf bytes.Buffer

	m.writeHeader(&buf, doc, len(filtered))
	m.writeSummaryTable(&buf, filtered)
	if opts.IncludeKillChain && doc.KillChain != nil {
		m.writeKillChain(&buf, doc)
	}
	m.writeFindings(&buf, doc, filtered)

	return buf.Bytes(), nil
}

// Format returns "markdown"
func (m *MarkdownExporter) Format() string {
	return "markdown"
}

// ContentType returns "text/markdown"
func (m *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}

// writeHeader writes the report header
func (m *MarkdownExporter) writeHeader(buf *bytes.Buffer, doc *Document, count int) {
	buf.WriteString("# ")
	buf.WriteString(m.Title)
	buf.WriteString("\n\n")

	buf.WriteString("**Exercise:** ")
	buf.WriteString(doc.Exercise.Name)
	buf.WriteString("\n\n")

	buf.WriteString("**Status:** ")
	buf.WriteString(string(doc.Exercise.Status))
	buf.WriteString("\n\n")

	if doc.Exercise.Scope != "" {
		buf.WriteString("**Scope:** ")
		buf.WriteString(doc.Exercise.Scope)
		buf.WriteString("\n\n")
	}

	buf.WriteString("**Generated:** ")
	buf.WriteString(doc.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	buf.WriteString("\n\n")

	buf.WriteString("**Total Findings:** ")
	buf.WriteString(fmt.Sprintf("%d", count))
	buf.WriteString("\n\n")

	buf.WriteString("---\n\n")
}

// writeSummaryTable writes a summary table with severity counts
func (m *MarkdownExporter) writeSummaryTable(buf *bytes.Buffer, findings []*finding.Finding) {
	buf.WriteString("## Summary\n\n")

	counts := make(map[finding.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}

	buf.WriteString("| Severity | Count |\n")
	buf.WriteString("|----------|-------|\n")

	severities := []finding.Severity{
		finding.SeverityCritical,
		finding.SeverityHigh,
		finding.SeverityMedium,
		finding.SeverityLow,
		finding.SeverityInfo,
	}

	for _, sev := range severities {
		if count := counts[sev]; count > 0 {
			buf.WriteString(fmt.Sprintf("| %s | %d |\n", sev, count))
		}
	}

	buf.WriteString("\n")
}

// writeKillChain writes the kill chain section, one stage per heading,
// with catalog detail for techniques that resolve.
func (m *MarkdownExporter) writeKillChain(buf *bytes.Buffer, doc *Document) {
	buf.WriteString("## Kill Chain\n\n")

	buf.WriteString(fmt.Sprintf("**Version:** `%s`", doc.KillChain.ID.Short()))
	if doc.KillChain.Author != "" {
		buf.WriteString(fmt.Sprintf(" by %s", doc.KillChain.Author))
	}
	buf.WriteString(fmt.Sprintf(" (%s)\n\n", doc.KillChain.CreatedAt.Format("2006-01-02 15:04")))

	for _, stage := range doc.KillChain.Stages {
		buf.WriteString(fmt.Sprintf("### %s\n\n", stage.Stage))

		if len(stage.TechniqueIDs) == 0 {
			buf.WriteString("_No techniques assigned._\n\n")
			continue
		}

		for _, id := range stage.TechniqueIDs {
			buf.WriteString(fmt.Sprintf("- `%s`", id))
			if technique, ok := doc.Techniques[id]; ok {
				buf.WriteString(" - ")
				buf.WriteString(technique.Name)
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	buf.WriteString("---\n\n")
}

// writeFindings writes all findings in detail
func (m *MarkdownExporter) writeFindings(buf *bytes.Buffer, doc *Document, findings []*finding.Finding) {
	buf.WriteString("## Findings\n\n")

	if len(findings) == 0 {
		buf.WriteString("_No findings recorded._\n")
		return
	}

	for i, f := range findings {
		m.writeFinding(buf, doc, f, i+1)
		buf.WriteString("\n---\n\n")
	}
}

// writeFinding writes a single finding
func (m *MarkdownExporter) writeFinding(buf *bytes.Buffer, doc *Document, f *finding.Finding, num int) {
	buf.WriteString(fmt.Sprintf("### %d. %s\n\n", num, f.Title))

	buf.WriteString("| Attribute | Value |\n")
	buf.WriteString("|-----------|-------|\n")
	buf.WriteString(fmt.Sprintf("| **Severity** | %s |\n", f.Severity))
	buf.WriteString(fmt.Sprintf("| **Status** | %s |\n", f.Status))
	buf.WriteString(fmt.Sprintf("| **Created** | %s |\n", f.CreatedAt.Format("2006-01-02 15:04:05")))
	buf.WriteString("\n")

	if f.Description != "" {
		buf.WriteString("#### Description\n\n")
		buf.WriteString(f.Description)
		buf.WriteString("\n\n")
	}

	if len(f.TechniqueIDs) > 0 {
		buf.WriteString("#### ATT&CK Techniques\n\n")
		for _, id := range f.TechniqueIDs {
			buf.WriteString(fmt.Sprintf("- `%s`", id))
			if technique, ok := doc.Techniques[id]; ok {
				buf.WriteString(fmt.Sprintf(" - %s (%s)", technique.Name, tacticTitles(technique.Tactics)))
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	if f.Remediation != "" {
		buf.WriteString("#### Remediation\n\n")
		buf.WriteString("> ")
		buf.WriteString(strings.ReplaceAll(f.Remediation, "\n", "\n> "))
		buf.WriteString("\n\n")
	}
}

// tacticTitles renders a tactic list as comma-separated display titles
func tacticTitles(tactics []attack.Tactic) string {
	titles := make([]string, 0, len(tactics))
	for _, tactic := range tactics {
		titles = append(titles, tactic.Title())
	}
	return strings.Join(titles, ", ")
}

var _ Exporter = (*MarkdownExporter)(nil)
