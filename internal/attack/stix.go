package attack

import (
	"context"
	"encoding/json"
	"strings"
)

// stixBundle is the top-level shape of a STIX 2.x bundle. Objects stay raw
// so a single malformed object does not fail the whole document.
type stixBundle struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Objects []json.RawMessage `json:"objects"`
}

// stixAttackPattern carries the fields of an attack-pattern object that the
// catalog cares about. The object's own STIX id is ephemeral per bundle; the
// durable join key is the ATT&CK external reference.
type stixAttackPattern struct {
	Type            string `json:"type"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Revoked         bool   `json:"revoked"`
	Deprecated      bool   `json:"x_mitre_deprecated"`
	KillChainPhases []struct {
		KillChainName string `json:"kill_chain_name"`
		PhaseName     string `json:"phase_name"`
	} `json:"kill_chain_phases"`
	ExternalReferences []struct {
		SourceName string `json:"source_name"`
		ExternalID string `json:"external_id"`
		URL        string `json:"url"`
	} `json:"external_references"`
}

// attackReference resolves the durable ATT&CK identifier and reference URL
// from the object's external references. Returns ok=false when no
// recognizable ATT&CK reference exists.
func (p *stixAttackPattern) attackReference() (id, url string, ok bool) {
	for _, ref := range p.ExternalReferences {
		if strings.EqualFold(ref.SourceName, "mitre-attack") && IsTechniqueID(ref.ExternalID) {
			return ref.ExternalID, ref.URL, true
		}
	}
	return "", "", false
}

// ImportSTIX parses a STIX bundle and upserts every attack-pattern object
// that carries an ATT&CK external reference. Objects of other types are
// ignored; attack-patterns without a recognizable reference, and revoked or
// deprecated ones, are skipped with a warning. A document that is not valid
// JSON or not a bundle is a fatal ParseError and leaves the catalog
// untouched. Re-importing an identical bundle yields an all-unchanged
// summary.
func (i *Importer) ImportSTIX(ctx context.Context, data []byte) (*ImportSummary, error) {
	var bundle stixBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, newParseError("stix", "invalid JSON", err)
	}
	if bundle.Type != "bundle" {
		return nil, newParseError("stix", "top-level type is not \"bundle\"", nil)
	}
	if bundle.Objects == nil {
		return nil, newParseError("stix", "bundle has no objects list", nil)
	}

	summary := &ImportSummary{}

	for idx, raw := range bundle.Objects {
		var obj stixAttackPattern
		if err := json.Unmarshal(raw, &obj); err != nil {
			summary.skip("object %d: cannot decode: %v", idx, err)
			continue
		}
		if obj.Type != "attack-pattern" {
			continue
		}
		if obj.Revoked || obj.Deprecated {
			summary.skip("object %d (%s): revoked or deprecated", idx, obj.ID)
			continue
		}

		techniqueID, refURL, ok := obj.attackReference()
		if !ok {
			summary.skip("object %d (%s): no ATT&CK external reference", idx, obj.ID)
			continue
		}

		var tactics []Tactic
		for _, phase := range obj.KillChainPhases {
			if phase.KillChainName != "mitre-attack" {
				continue
			}
			tactic, ok := ParseTactic(phase.PhaseName)
			if !ok {
				summary.warn("technique %s: unknown tactic %q", techniqueID, phase.PhaseName)
				continue
			}
			tactics = append(tactics, tactic)
		}

		result, err := i.catalog.Upsert(ctx, Technique{
			ID:          techniqueID,
			Name:        obj.Name,
			Description: obj.Description,
			Tactics:     tactics,
			Refs:        refURL,
			Provenance:  ProvenanceSTIX,
		})
		if err != nil {
			summary.skip("technique %s: %v", techniqueID, err)
			continue
		}
		summary.record(result)
	}

	return summary, nil
}
