// ABOUTME: Importer for Trivy config scan JSON.
// ABOUTME: Maps failed misconfigurations onto ExternalFinding values.

package importers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/jfeddern/TerraSentry/internal/types"
)

// trivyJSON matches `trivy config -f json` output
type trivyJSON struct {
	Results []struct {
		Target            string `json:"Target"`
		Misconfigurations []struct {
			ID            string   `json:"ID"`
			AVDID         string   `json:"AVDID"`
			Title         string   `json:"Title"`
			Description   string   `json:"Description"`
			Message       string   `json:"Message"`
			Resolution    string   `json:"Resolution"`
			Severity      string   `json:"Severity"`
			Status        string   `json:"Status"`
			PrimaryURL    string   `json:"PrimaryURL"`
			References    []string `json:"References"`
			CauseMetadata struct {
				Resource  string `json:"Resource"`
				StartLine int    `json:"StartLine"`
			} `json:"CauseMetadata"`
		} `json:"Misconfigurations"`
	} `json:"Results"`
}

// ParseTrivy parses Trivy misconfiguration results. Passing checks are dropped.
func ParseTrivy(b []byte) ([]types.ExternalFinding, error) {
	var doc trivyJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Trivy JSON: %w", err)
	}

	var out []types.ExternalFinding
	for _, r := range doc.Results {
		target := filepath.ToSlash(r.Target)
		for _, m := range r.Misconfigurations {
			if m.Status == "PASS" {
				continue
			}

			resource := target
			if m.CauseMetadata.Resource != "" {
				resource = fmt.Sprintf("%s (%s)", m.CauseMetadata.Resource, target)
			}
			if m.CauseMetadata.StartLine > 0 {
				resource = fmt.Sprintf("%s:%d", resource, m.CauseMetadata.StartLine)
			}

			url := m.PrimaryURL
			if url == "" && len(m.References) > 0 {
				url = m.References[0]
			}

			out = append(out, types.ExternalFinding{
				Source:      SourceTrivy,
				ID:          firstNonEmpty(m.AVDID, m.ID),
				Title:       m.Title,
				Severity:    severityOrLow(m.Severity),
				Status:      m.Status,
				Resource:    resource,
				Description: firstNonEmpty(m.Message, m.Description, m.Title),
				Remediation: m.Resolution,
				URL:         url,
			})
		}
	}
	return out, nil
}
