// ABOUTME: Discovery of analysis reports and scanner output in a results directory.
// ABOUTME: Matches files by naming convention and picks the most recently modified one.

package local

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// AnalysisGlobs match analysis reports written by the analyze command and older tooling
var AnalysisGlobs = []string{
	"enhanced_security_analysis_*.txt",
	"*security_analysis*.md",
	"*security_analysis*.txt",
	"*gemini*analysis*.txt",
	"*gemini*security*.txt",
}

// FindingsGlobs match Prowler and Trivy JSON output
var FindingsGlobs = []string{
	"*prowler*cleaned*.json",
	"*prowler*.json",
	"*cleaned*prowler*.json",
	"prowler_*.json",
	"*prowler*output*.json",
	"*trivy*.json",
}

// FindLatest returns the most recently modified file under dir (at any depth) whose
// base name matches one of globs. It returns "" when nothing matches.
func FindLatest(dir string, globs []string) (string, error) {
	for _, g := range globs {
		if _, err := filepath.Match(g, ""); err != nil {
			return "", fmt.Errorf("invalid glob %q: %w", g, err)
		}
	}

	var latest string
	var latestMod time.Time

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !matchesAny(d.Name(), globs) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		// Ties go to the lexically greater path so the choice is stable
		if latest == "" || info.ModTime().After(latestMod) || (info.ModTime().Equal(latestMod) && path > latest) {
			latest = path
			latestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search '%s': %w", dir, err)
	}

	return latest, nil
}

func matchesAny(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}
