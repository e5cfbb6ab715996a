package attack

import (
	"context"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetRow carries the four logical fields the enricher needs from a
// row of the ATT&CK reference spreadsheet. The surrounding loader owns the
// exact column layout.
type SpreadsheetRow struct {
	TechniqueID string
	Name        string
	Tactics     []string
	Description string
}

// Enricher fills in or overwrites stale catalog fields from the
// authoritative reference spreadsheet without discarding user-entered
// overrides; the catalog's provenance merge handles the arbitration.
type Enricher struct {
	catalog Catalog
}

// NewEnricher creates an enricher writing through the given catalog
func NewEnricher(catalog Catalog) *Enricher {
	return &Enricher{catalog: catalog}
}

// Enrich upserts each row with provenance spreadsheet. Rows with a missing
// or malformed identifier are skipped and counted as warnings, never fatal.
// Row order does not affect final state except that later rows win ties for
// identical identifiers.
func (e *Enricher) Enrich(ctx context.Context, rows []SpreadsheetRow) (*ImportSummary, error) {
	summary := &ImportSummary{}

	for idx, row := range rows {
		id := strings.TrimSpace(row.TechniqueID)
		if id == "" {
			summary.skip("row %d: missing technique identifier", idx)
			continue
		}
		if !IsTechniqueID(id) {
			summary.skip("row %d: malformed technique identifier %q", idx, id)
			continue
		}

		var tactics []Tactic
		for _, label := range row.Tactics {
			tactic, ok := ParseTactic(label)
			if !ok {
				summary.warn("technique %s: unknown tactic %q", id, label)
				continue
			}
			tactics = append(tactics, tactic)
		}

		result, err := e.catalog.Upsert(ctx, Technique{
			ID:          id,
			Name:        row.Name,
			Description: row.Description,
			Tactics:     tactics,
			Provenance:  ProvenanceSpreadsheet,
		})
		if err != nil {
			summary.skip("technique %s: %v", id, err)
			continue
		}
		summary.record(result)
	}

	return summary, nil
}

// LoadWorkbook reads an ATT&CK reference spreadsheet and extracts technique
// rows from every sheet whose header row looks like a techniques listing.
// Header matching is fuzzy because ATT&CK releases rename columns between
// versions. A workbook that cannot be opened at all is a fatal ParseError.
func LoadWorkbook(r io.Reader) ([]SpreadsheetRow, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, newParseError("xlsx", "cannot open workbook", err)
	}
	defer book.Close()

	var out []SpreadsheetRow

	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		header := headerIndex(rows[0])
		colID := findColumn(header, "technique id", "external id", "external_id", "id")
		colName := findColumn(header, "technique name", "name", "technique")
		colDesc := findColumn(header, "description")
		colTactics := findColumn(header, "tactics", "tactic")

		// Not a techniques-like sheet
		if colID < 0 || colName < 0 || colTactics < 0 {
			continue
		}

		for _, row := range rows[1:] {
			id := strings.TrimSpace(cell(row, colID))
			if !strings.HasPrefix(id, "T") {
				continue
			}

			out = append(out, SpreadsheetRow{
				TechniqueID: id,
				Name:        strings.TrimSpace(cell(row, colName)),
				Description: strings.TrimSpace(cell(row, colDesc)),
				Tactics:     splitTactics(cell(row, colTactics)),
			})
		}
	}

	return out, nil
}

// headerIndex maps normalized header labels to their column index
func headerIndex(row []string) map[string]int {
	index := make(map[string]int, len(row))
	for i, v := range row {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

// findColumn returns the first column whose header contains any key,
// preferring earlier keys. Returns -1 when nothing matches.
func findColumn(header map[string]int, keys ...string) int {
	for _, key := range keys {
		best := -1
		for label, col := range header {
			if strings.Contains(label, key) && (best < 0 || col < best) {
				best = col
			}
		}
		if best >= 0 {
			return best
		}
	}
	return -1
}

// cell returns the trimmed cell at col, or empty when the row is short
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// splitTactics splits a tactics cell on the separators ATT&CK spreadsheets
// have used across releases: comma, slash, and ampersand.
func splitTactics(raw string) []string {
	raw = strings.ReplaceAll(raw, "/", ",")
	raw = strings.ReplaceAll(raw, " & ", ",")

	var tactics []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tactics = append(tactics, part)
		}
	}
	return tactics
}
