// ABOUTME: Tests for the local Terraform document source and result file discovery.
// ABOUTME: Uses temporary directories to cover walking, filtering, ordering, and errors.

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalSourceName(t *testing.T) {
	assert.Equal(t, "local", NewLocalSource(".", nil, true, quietLogger()).Name())
}

func TestLocalSourceDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "storage.tf"), `member = "allUsers"`)
	writeFile(t, filepath.Join(dir, "compute.TF"), `source_ranges = ["0.0.0.0/0"]`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "plain notes")
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")
	writeFile(t, filepath.Join(dir, "modules", "net", "vpc.tf"), "resource {}")
	writeFile(t, filepath.Join(dir, ".terraform", "cached.tf"), "hidden")

	t.Run("recursive", func(t *testing.T) {
		docs, err := NewLocalSource(dir, []string{".tf", "txt"}, true, quietLogger()).Discover(context.Background())
		require.NoError(t, err)

		var names []string
		for _, d := range docs {
			rel, err := filepath.Rel(dir, filepath.FromSlash(d.Path))
			require.NoError(t, err)
			names = append(names, filepath.ToSlash(rel))
		}
		assert.Equal(t, []string{"compute.TF", "modules/net/vpc.tf", "notes.txt", "storage.tf"}, names)
		assert.Equal(t, `member = "allUsers"`, docs[3].Content)
	})

	t.Run("top level only", func(t *testing.T) {
		docs, err := NewLocalSource(dir, []string{".tf"}, false, quietLogger()).Discover(context.Background())
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestLocalSourceSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample_terraform.hcl")
	writeFile(t, path, "role = \"roles/owner\"\n")

	docs, err := NewLocalSource(path, []string{".tf"}, true, quietLogger()).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "role = \"roles/owner\"\n", docs[0].Content)
}

func TestLocalSourceErrors(t *testing.T) {
	_, err := NewLocalSource(filepath.Join(t.TempDir(), "missing"), []string{".tf"}, true, quietLogger()).Discover(context.Background())
	assert.Error(t, err)

	empty := t.TempDir()
	writeFile(t, filepath.Join(empty, "main.py"), "print()")
	_, err = NewLocalSource(empty, []string{".tf"}, true, quietLogger()).Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestLocalSourceContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.tf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalSource(dir, []string{".tf"}, true, quietLogger()).Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcat(t *testing.T) {
	out := Concat([]types.Document{
		{Path: "a.tf", Content: "one"},
		{Path: "b.tf", Content: "two\n"},
	})
	assert.Equal(t, "# File: a.tf\none\n\n# File: b.tf\ntwo\n", out)
	assert.Equal(t, "", Concat(nil))
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "prowler_scan_20250701.ocsf_cleaned.json")
	newer := filepath.Join(dir, "nested", "prowler_scan_20250708.ocsf_cleaned.json")
	unrelated := filepath.Join(dir, "terraform.json")
	writeFile(t, older, "[]")
	writeFile(t, newer, "[]")
	writeFile(t, unrelated, "{}")

	base := time.Date(2025, 7, 8, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(unrelated, base.Add(2*time.Hour), base.Add(2*time.Hour)))

	got, err := FindLatest(dir, FindingsGlobs)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = FindLatest(dir, AnalysisGlobs)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	analysis := filepath.Join(dir, "security_analysis_20250708_120000.md")
	writeFile(t, analysis, "# report")
	got, err = FindLatest(dir, AnalysisGlobs)
	require.NoError(t, err)
	assert.Equal(t, analysis, got)

	_, err = FindLatest(dir, []string{"[bad"})
	assert.Error(t, err)
}
