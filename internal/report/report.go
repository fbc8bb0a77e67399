// ABOUTME: Renders scan results and LLM reports as text, Markdown, or JSON.
// ABOUTME: Findings are grouped CRITICAL, HIGH, MEDIUM, LOW with numbered entries per group.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jfeddern/TerraSentry/internal/types"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts text, markdown (or md), and json
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want text, markdown or json)", s)
	}
}

// maxEvidenceLines is how many matching lines are shown per finding
const maxEvidenceLines = 3

// Scan is the rendered view of one pattern scan over a set of documents
type Scan struct {
	RunID           string                 `json:"run_id,omitempty"`
	Provider        string                 `json:"provider"`
	PatternCount    int                    `json:"pattern_count"`
	InvalidPatterns int                    `json:"invalid_patterns"`
	Documents       []types.DocumentReport `json:"documents"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// FromSnapshot builds the report view of a collection snapshot
func FromSnapshot(s *types.Snapshot) Scan {
	if s == nil {
		return Scan{}
	}
	return Scan{
		RunID:           s.RunID,
		Provider:        s.Provider,
		PatternCount:    s.PatternCount,
		InvalidPatterns: s.InvalidPatterns,
		Documents:       s.Documents,
		GeneratedAt:     s.CollectedAt,
	}
}

// Summary holds counts derived from the documents
type Summary struct {
	Total      int                    `json:"total"`
	BySeverity map[types.Severity]int `json:"by_severity"`
	Documents  int                    `json:"documents"`
}

func (s Scan) Summary() Summary {
	var combined types.ScanReport
	for _, d := range s.Documents {
		combined.Findings = append(combined.Findings, d.Report.Findings...)
	}
	return Summary{
		Total:      combined.Total(),
		BySeverity: combined.CountBySeverity(),
		Documents:  len(s.Documents),
	}
}

// Entry is one numbered finding inside a severity group
type Entry struct {
	Label   string // e.g. CRITICAL-01
	Path    string
	Finding types.Finding
}

// Group is a severity bucket of entries
type Group struct {
	Severity types.Severity
	Entries  []Entry
}

// Groups buckets every finding by severity, omitting empty buckets.
// Within a bucket entries keep document order, then knowledge-base order.
func (s Scan) Groups() []Group {
	var groups []Group
	for _, sev := range types.Severities {
		var entries []Entry
		for _, d := range s.Documents {
			for _, f := range d.Report.Findings {
				if f.Severity() != sev {
					continue
				}
				entries = append(entries, Entry{
					Label:   fmt.Sprintf("%s-%02d", sev, len(entries)+1),
					Path:    d.Path,
					Finding: f,
				})
			}
		}
		if len(entries) > 0 {
			groups = append(groups, Group{Severity: sev, Entries: entries})
		}
	}
	return groups
}

type Renderer interface {
	Render(w io.Writer, scan Scan) error
}

func New(f Format) Renderer {
	switch f {
	case FormatJSON:
		return &jsonRenderer{}
	case FormatMarkdown:
		return &markdownRenderer{}
	default:
		return &textRenderer{}
	}
}

type jsonRenderer struct{}

func (r *jsonRenderer) Render(w io.Writer, scan Scan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Scan
		Summary Summary `json:"summary"`
	}{scan, scan.Summary()})
}

type textRenderer struct{}

func (r *textRenderer) Render(w io.Writer, scan Scan) error {
	summary := scan.Summary()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SEVERITY\tCOUNT\n")
	for _, sev := range types.Severities {
		fmt.Fprintf(tw, "%s\t%d\n", sev, summary.BySeverity[sev])
	}
	fmt.Fprintf(tw, "TOTAL\t%d\n", summary.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, g := range scan.Groups() {
		fmt.Fprintf(w, "\n%s VULNERABILITIES (%d found)\n", g.Severity, len(g.Entries))
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
		for _, e := range g.Entries {
			p := e.Finding.Pattern
			fmt.Fprintf(w, "\n[%s] %s\n", e.Label, p.Category)
			fmt.Fprintf(w, "File: %s\n", e.Path)
			fmt.Fprintf(w, "Vulnerability: %s\n", p.Vulnerability)
			fmt.Fprintf(w, "Pattern: %s\n", p.Pattern)
			if len(e.Finding.LineMatches) > 0 {
				fmt.Fprintf(w, "Evidence found at:\n")
				for _, line := range evidence(e.Finding) {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
			fmt.Fprintf(w, "Remediation: %s\n", e.Finding.Remediation)
		}
	}

	if summary.BySeverity[types.SeverityCritical] > 0 {
		fmt.Fprintf(w, "\nIMMEDIATE ACTION REQUIRED: %d critical vulnerabilities detected\n", summary.BySeverity[types.SeverityCritical])
	}
	return nil
}

type markdownRenderer struct{}

func (r *markdownRenderer) Render(w io.Writer, scan Scan) error {
	fmt.Fprintf(w, "# Terraform Security Scan\n\n")
	fmt.Fprintf(w, "**Provider:** %s  \n", scan.Provider)
	if scan.RunID != "" {
		fmt.Fprintf(w, "**Run ID:** %s  \n", scan.RunID)
	}
	fmt.Fprintf(w, "**Generated:** %s  \n", scan.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Patterns:** %d (%d invalid)  \n\n", scan.PatternCount, scan.InvalidPatterns)
	writeScanBody(w, scan, "##")
	return nil
}

// writeScanBody writes the summary table and grouped findings with headings under level
func writeScanBody(w io.Writer, scan Scan, level string) {
	summary := scan.Summary()

	fmt.Fprintf(w, "%s Summary\n\n", level)
	fmt.Fprintf(w, "| Severity | Count |\n|---|---|\n")
	for _, sev := range types.Severities {
		fmt.Fprintf(w, "| %s | %d |\n", sev, summary.BySeverity[sev])
	}
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", summary.Total)
	fmt.Fprintf(w, "Documents scanned: %d\n", summary.Documents)

	groups := scan.Groups()
	if len(groups) == 0 {
		fmt.Fprintf(w, "\nNo pattern findings.\n")
		return
	}

	for _, g := range groups {
		fmt.Fprintf(w, "\n%s %s (%d)\n", level, g.Severity, len(g.Entries))
		for _, e := range g.Entries {
			p := e.Finding.Pattern
			fmt.Fprintf(w, "\n%s# [%s] %s\n\n", level, e.Label, p.Category)
			fmt.Fprintf(w, "- **File:** `%s`\n", e.Path)
			fmt.Fprintf(w, "- **Vulnerability:** %s\n", p.Vulnerability)
			fmt.Fprintf(w, "- **Pattern:** `%s`\n", p.Pattern)
			if len(e.Finding.LineMatches) == 0 {
				fmt.Fprintf(w, "- **Evidence:** match spans multiple lines\n")
			} else {
				fmt.Fprintf(w, "- **Evidence:**\n")
				for _, line := range evidence(e.Finding) {
					fmt.Fprintf(w, "  - %s\n", line)
				}
			}
			if p.Impact != "" {
				fmt.Fprintf(w, "- **Impact:** %s\n", p.Impact)
			}
			fmt.Fprintf(w, "- **Remediation:** %s\n", e.Finding.Remediation)
		}
	}
}

func evidence(f types.Finding) []string {
	var out []string
	for i, lm := range f.LineMatches {
		if i == maxEvidenceLines {
			out = append(out, fmt.Sprintf("... and %d more occurrences", len(f.LineMatches)-maxEvidenceLines))
			break
		}
		out = append(out, fmt.Sprintf("Line %d: %s", lm.Line, lm.Text))
	}
	return out
}

// FileName returns prefix_YYYYMMDD_HHMMSS.md
func FileName(prefix string, t time.Time) string {
	return FileNameExt(prefix, ".md", t)
}

func FileNameExt(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format("20060102_150405"), ext)
}
