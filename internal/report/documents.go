// ABOUTME: Markdown documents for analysis and consolidation runs.
// ABOUTME: Writes the files produced by the analyze and consolidate commands.

package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jfeddern/TerraSentry/internal/importers"
	"github.com/jfeddern/TerraSentry/internal/types"
)

// WriteAnalysis renders an LLM analysis run as Markdown
func WriteAnalysis(w io.Writer, result *types.AnalysisResult) error {
	fmt.Fprintf(w, "# Terraform Security Analysis Report\n\n")
	fmt.Fprintf(w, "**Project:** %s  \n", result.Project)
	fmt.Fprintf(w, "**Analysis Date:** %s  \n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Run ID:** %s  \n", result.RunID)
	fmt.Fprintf(w, "**Cloud Provider:** %s  \n", result.CloudProvider)
	fmt.Fprintf(w, "**Model:** %s (Temperature: %g)  \n", result.Model, result.Temperature)
	fmt.Fprintf(w, "**Documents Analyzed:** %d  \n\n", len(result.Documents))
	fmt.Fprintf(w, "---\n\n%s\n\n---\n\n", result.Analysis)

	fmt.Fprintf(w, "## Specialized Analysis Results\n")
	for _, q := range result.Queries {
		fmt.Fprintf(w, "\n### %s\n\n", q.Title)
		if q.Error != "" {
			fmt.Fprintf(w, "_Query failed: %s_\n", q.Error)
			continue
		}
		fmt.Fprintf(w, "%s\n", q.Response)
	}

	fmt.Fprintf(w, "\n## Pattern Scanner Findings\n\n")
	writeScanBody(w, Scan{
		RunID:           result.RunID,
		Provider:        result.CloudProvider,
		PatternCount:    len(result.Patterns),
		InvalidPatterns: result.InvalidPatterns,
		Documents:       result.Documents,
		GeneratedAt:     result.GeneratedAt,
	}, "###")

	fmt.Fprintf(w, "\n## Knowledge Base Patterns\n\n")
	fmt.Fprintf(w, "%d patterns used (%d invalid).\n", len(result.Patterns), result.InvalidPatterns)
	for _, p := range result.Patterns {
		fmt.Fprintf(w, "\n### %s - %s\n", p.Category, p.Severity)
		fmt.Fprintf(w, "- **Pattern:** `%s`\n", p.Pattern)
		fmt.Fprintf(w, "- **Vulnerability:** %s\n", p.Vulnerability)
		if p.Impact != "" {
			fmt.Fprintf(w, "- **Impact:** %s\n", p.Impact)
		}
	}

	_, err := fmt.Fprintf(w, "\n*Generated by TerraSentry. Validate findings before applying changes.*\n")
	return err
}

// WriteConsolidated renders the final consolidated report as Markdown
func WriteConsolidated(w io.Writer, result *types.ConsolidationResult) error {
	sources := "LLM Analysis"
	if result.FindingsFile != "" {
		sources += " + Scanner Findings"
	}
	if result.AnalysisFile == "" {
		sources = "Scanner Findings"
	}

	fmt.Fprintf(w, "# Final Consolidated Security Assessment\n\n")
	fmt.Fprintf(w, "**Project:** %s  \n", result.Project)
	fmt.Fprintf(w, "**Analysis Date:** %s  \n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Run ID:** %s  \n", result.RunID)
	fmt.Fprintf(w, "**Sources:** %s  \n", sources)
	fmt.Fprintf(w, "**Model:** %s  \n\n", result.Model)
	fmt.Fprintf(w, "---\n\n%s\n\n---\n\n", result.Report)

	fmt.Fprintf(w, "## Consolidation Details\n\n")
	fmt.Fprintf(w, "- **Analysis Report:** %s\n", availability(result.AnalysisFile))
	fmt.Fprintf(w, "- **Scanner Results:** %s\n", availability(result.FindingsFile))

	if len(result.ExternalFindings) > 0 {
		counts := map[types.Severity]int{}
		bySource := map[string]int{}
		for _, f := range result.ExternalFindings {
			counts[f.Severity]++
			bySource[f.Source]++
		}

		fmt.Fprintf(w, "\n### Scanner Findings by Severity\n\n")
		fmt.Fprintf(w, "| Severity | Count |\n|---|---|\n")
		for _, sev := range types.Severities {
			fmt.Fprintf(w, "| %s | %d |\n", sev, counts[sev])
		}
		fmt.Fprintf(w, "| **Total** | **%d** |\n", len(result.ExternalFindings))
		for _, source := range []string{importers.SourceProwler, importers.SourceTrivy} {
			if n := bySource[source]; n > 0 {
				fmt.Fprintf(w, "\n%s: %d findings\n", source, n)
			}
		}
	}

	_, err := fmt.Fprintf(w, "\n*This report consolidates every available source for %s.*\n", result.Project)
	return err
}

func availability(path string) string {
	if path == "" {
		return "not available"
	}
	return "available (" + filepath.Base(path) + ")"
}
