// ABOUTME: Importer for Prowler OCSF JSON output.
// ABOUTME: Maps failed checks onto ExternalFinding values and drops passing ones.

package importers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jfeddern/TerraSentry/internal/types"
)

// prowlerOCSF covers the fields of Prowler's OCSF JSON output that we report on
type prowlerOCSF struct {
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	StatusCode string `json:"status_code"`
	Metadata   struct {
		EventCode string `json:"event_code"`
	} `json:"metadata"`
	FindingInfo struct {
		UID   string `json:"uid"`
		Title string `json:"title"`
		Desc  string `json:"desc"`
	} `json:"finding_info"`
	Resources []struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	} `json:"resources"`
	Remediation struct {
		Desc       string   `json:"desc"`
		References []string `json:"references"`
	} `json:"remediation"`
	Unmapped struct {
		RelatedURL string `json:"related_url"`
	} `json:"unmapped"`
}

// ParseProwler parses a Prowler OCSF JSON array. Passing checks are dropped.
func ParseProwler(b []byte) ([]types.ExternalFinding, error) {
	var doc []prowlerOCSF
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Prowler OCSF JSON: %w", err)
	}

	var out []types.ExternalFinding
	for _, f := range doc {
		status := strings.ToUpper(strings.TrimSpace(f.StatusCode))
		if status == "PASS" {
			continue
		}

		resource := ""
		if len(f.Resources) > 0 {
			resource = firstNonEmpty(f.Resources[0].UID, f.Resources[0].Name)
		}

		url := f.Unmapped.RelatedURL
		if url == "" && len(f.Remediation.References) > 0 {
			url = f.Remediation.References[0]
		}

		out = append(out, types.ExternalFinding{
			Source:      SourceProwler,
			ID:          firstNonEmpty(f.Metadata.EventCode, f.FindingInfo.UID),
			Title:       firstNonEmpty(f.FindingInfo.Title, f.Message),
			Severity:    severityOrLow(f.Severity),
			Status:      status,
			Resource:    resource,
			Description: firstNonEmpty(f.FindingInfo.Desc, f.Message),
			Remediation: f.Remediation.Desc,
			URL:         url,
		})
	}
	return out, nil
}
