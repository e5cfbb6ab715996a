package attack

import (
	"context"
	"encoding/json"
)

// navigatorLayer is the shape of an ATT&CK Navigator layer export. Only the
// technique list matters to the catalog; scoring, color, and enabled flags
// belong to the emulation-plan layer and are ignored here.
type navigatorLayer struct {
	Name       string                `json:"name"`
	Domain     string                `json:"domain"`
	Techniques *[]navigatorTechnique `json:"techniques"`
}

// navigatorTechnique is a single layer entry. TechniqueID is the durable
// ATT&CK identifier; tactic and name are optional.
type navigatorTechnique struct {
	TechniqueID   string  `json:"techniqueID"`
	TechniqueName string  `json:"techniqueName"`
	Tactic        string  `json:"tactic"`
	Score         float64 `json:"score"`
	Comment       string  `json:"comment"`
	Enabled       *bool   `json:"enabled"`
}

// ImportNavigatorLayer parses a Navigator layer export and upserts every
// listed technique identifier, tagging provenance navigator. Entries without
// an identifier are skipped with a warning; a document that is not valid
// JSON or lacks the top-level techniques list is a fatal ParseError.
func (i *Importer) ImportNavigatorLayer(ctx context.Context, data []byte) (*ImportSummary, error) {
	var layer navigatorLayer
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, newParseError("navigator", "invalid JSON", err)
	}
	if layer.Techniques == nil {
		return nil, newParseError("navigator", "missing top-level techniques list", nil)
	}

	summary := &ImportSummary{}

	for idx, entry := range *layer.Techniques {
		if entry.TechniqueID == "" {
			summary.skip("entry %d: missing techniqueID", idx)
			continue
		}
		if !IsTechniqueID(entry.TechniqueID) {
			summary.skip("entry %d: malformed technique identifier %q", idx, entry.TechniqueID)
			continue
		}

		var tactics []Tactic
		if entry.Tactic != "" {
			tactic, ok := ParseTactic(entry.Tactic)
			if !ok {
				summary.warn("technique %s: unknown tactic %q", entry.TechniqueID, entry.Tactic)
			} else {
				tactics = append(tactics, tactic)
			}
		}

		result, err := i.catalog.Upsert(ctx, Technique{
			ID:         entry.TechniqueID,
			Name:       entry.TechniqueName,
			Tactics:    tactics,
			Provenance: ProvenanceNavigator,
		})
		if err != nil {
			summary.skip("technique %s: %v", entry.TechniqueID, err)
			continue
		}
		summary.record(result)
	}

	return summary, nil
}
