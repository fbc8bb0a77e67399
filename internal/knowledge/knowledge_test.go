// ABOUTME: Tests for knowledge base selection, file loading, and validation.
// ABOUTME: Verifies built-in tables compile and are protected from caller mutation.

package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jfeddern/TerraSentry/internal/scanner"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTablesCompile(t *testing.T) {
	for _, provider := range Providers() {
		t.Run(provider, func(t *testing.T) {
			table, err := Builtin(provider)
			require.NoError(t, err)
			assert.NotEmpty(t, table.Patterns)
			assert.Empty(t, Validate(table))

			ids := map[string]bool{}
			for _, p := range table.Patterns {
				assert.True(t, p.Severity.Valid(), "pattern %s has invalid severity", p.ID)
				assert.False(t, ids[p.ID], "duplicate id %s", p.ID)
				ids[p.ID] = true
			}
		})
	}
}

func TestBuiltin(t *testing.T) {
	table, err := Builtin(" GCP ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGCP, table.Provider)
	assert.Len(t, table.Patterns, 8)

	_, err = Builtin("oracle")
	assert.Error(t, err)
}

func TestBuiltinReturnsCopy(t *testing.T) {
	table, err := Builtin(ProviderGCP)
	require.NoError(t, err)
	table.Patterns[0].Pattern = "mutated"

	again, err := Builtin(ProviderGCP)
	require.NoError(t, err)
	assert.Equal(t, `member = "allUsers"`, again.Patterns[0].Pattern)
}

func TestGCPTableDetectsKnownBadSnippets(t *testing.T) {
	table, err := Builtin(ProviderGCP)
	require.NoError(t, err)

	corpus := `resource "google_storage_bucket_iam_member" "public" {
  member = "allUsers"
}
resource "google_compute_firewall" "open" {
  source_ranges = ["0.0.0.0/0"]
}
resource "google_project_iam_member" "owner" {
  role = "roles/owner"
}
resource "google_storage_bucket" "b" {
  uniform_bucket_level_access = false
}`

	report := scanner.Scan(table.Patterns, corpus)

	ids := []string{}
	for _, f := range report.Findings {
		ids = append(ids, f.Pattern.ID)
	}
	assert.Contains(t, ids, "GCP-001")
	assert.Contains(t, ids, "GCP-003")
	assert.Contains(t, ids, "GCP-004")
	assert.Contains(t, ids, "GCP-008")
	assert.NotContains(t, ids, "GCP-005")
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	content := `provider: AWS
patterns:
  - id: CUSTOM-1
    category: Network Security
    pattern: '0\.0\.0\.0/0'
    vulnerability: Open ingress
    severity: critical
    remediation: Restrict it
  - id: CUSTOM-2
    category: Broken
    pattern: '(unclosed'
    vulnerability: Never compiles
    severity: Moderate
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "aws", table.Provider)
	require.Len(t, table.Patterns, 2)
	assert.Equal(t, types.SeverityCritical, table.Patterns[0].Severity)
	assert.Equal(t, types.SeverityMedium, table.Patterns[1].Severity)

	invalid := Validate(table)
	require.Len(t, invalid, 1)
	assert.Equal(t, 1, invalid[0].Index)
	assert.Contains(t, invalid[0].Error(), "CUSTOM-2")
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	content := `{"provider": "gcp", "patterns": [{"category": "IAM", "pattern": "roles/owner", "vulnerability": "Owner", "severity": "HIGH"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, table.Patterns, 1)
	assert.Equal(t, types.SeverityHigh, table.Patterns[0].Severity)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "no patterns", content: "provider: gcp\npatterns: []\n"},
		{name: "missing regex", content: "patterns:\n  - category: x\n    severity: HIGH\n"},
		{name: "unknown severity", content: "patterns:\n  - pattern: x\n    severity: URGENT\n"},
		{name: "malformed yaml", content: "patterns: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
