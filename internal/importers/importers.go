// ABOUTME: Importers for third-party scanner JSON output (Prowler OCSF, Trivy config).
// ABOUTME: Normalises external results into ExternalFinding values for consolidation.

package importers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jfeddern/TerraSentry/internal/types"
)

const (
	SourceProwler = "prowler"
	SourceTrivy   = "trivy"
)

// ParseError is returned by ParseFile when the file was read but its content is
// not a recognised scanner format. Raw holds the file content.
type ParseError struct {
	Path string
	Raw  []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse findings file '%s': %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile reads path and parses it with Parse
func ParseFile(path string) ([]types.ExternalFinding, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings file '%s': %w", path, err)
	}
	findings, err := Parse(b)
	if err != nil {
		return nil, &ParseError{Path: path, Raw: b, Err: err}
	}
	return findings, nil
}

// Parse detects the scanner format and parses it. A JSON array is treated as
// Prowler OCSF output, an object with a Results key as Trivy output.
func Parse(b []byte) ([]types.ExternalFinding, error) {
	b = CleanJSON(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("findings input is empty")
	}

	switch b[0] {
	case '[':
		return ParseProwler(b)
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(b, &probe); err != nil {
			return nil, fmt.Errorf("failed to parse findings JSON: %w", err)
		}
		if _, ok := probe["Results"]; ok {
			return ParseTrivy(b)
		}
		if _, ok := probe["finding_info"]; ok {
			return ParseProwler(append(append([]byte{'['}, b...), ']'))
		}
	}

	return nil, fmt.Errorf("unrecognised findings format")
}

// CleanJSON strips anything before the first '{' or '[' and after the last
// '}' or ']', which scanners often print around their JSON.
func CleanJSON(output []byte) []byte {
	start := bytes.IndexAny(output, "{[")
	if start == -1 {
		return bytes.TrimSpace(output)
	}

	end := bytes.LastIndexAny(output, "}]")
	if end == -1 || end < start {
		return bytes.TrimSpace(output)
	}

	return output[start : end+1]
}

func severityOrLow(raw string) types.Severity {
	if sev, ok := types.ParseSeverity(raw); ok {
		return sev
	}
	return types.SeverityLow
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
