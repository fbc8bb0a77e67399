// ABOUTME: Common types shared across the TerraSentry system.
// ABOUTME: Defines security patterns, scan findings, external findings, and image vulnerabilities.

package types

import (
	"strings"
	"time"
)

// Severity is the fixed ranking used to group and prioritise findings
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every severity from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns a weight for ordering (higher = more severe, 0 = unknown)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known severities
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalises scanner-specific severity strings.
// The boolean is false when the value could not be mapped.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL":
		return SeverityCritical, true
	case "HIGH", "ERROR":
		return SeverityHigh, true
	case "MEDIUM", "MODERATE", "WARNING":
		return SeverityMedium, true
	case "LOW", "INFO", "INFORMATIONAL":
		return SeverityLow, true
	default:
		return "", false
	}
}

// SecurityPattern is an immutable knowledge-base entry
type SecurityPattern struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	Category      string   `json:"category" yaml:"category"`
	Pattern       string   `json:"pattern" yaml:"pattern"`
	Vulnerability string   `json:"vulnerability" yaml:"vulnerability"`
	Severity      Severity `json:"severity" yaml:"severity"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Impact        string   `json:"impact,omitempty" yaml:"impact,omitempty"`
	Remediation   string   `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// LineMatch is one line of evidence for a finding
type LineMatch struct {
	Line int    `json:"line"` // 1-based
	Text string `json:"text"` // trimmed line content
}

// Finding aggregates every hit of a single pattern in one corpus
type Finding struct {
	Pattern     *SecurityPattern `json:"pattern"`
	Matches     []string         `json:"matches"`
	LineMatches []LineMatch      `json:"line_matches"`
	Remediation string           `json:"remediation"`
}

// Severity is a shortcut for the pattern's severity
func (f Finding) Severity() Severity {
	if f.Pattern == nil {
		return ""
	}
	return f.Pattern.Severity
}

// SeverityGroup is a run of findings sharing one severity
type SeverityGroup struct {
	Severity Severity  `json:"severity"`
	Findings []Finding `json:"findings"`
}

// ScanReport is the result of one scan. Counters are always derived from Findings.
type ScanReport struct {
	Findings []Finding `json:"findings"`
}

// Total returns the number of findings
func (r ScanReport) Total() int {
	return len(r.Findings)
}

// CountBySeverity recounts findings per severity
func (r ScanReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, sev := range Severities {
		counts[sev] = 0
	}
	for _, f := range r.Findings {
		counts[f.Severity()]++
	}
	return counts
}

// Grouped returns findings bucketed CRITICAL, HIGH, MEDIUM, LOW.
// Empty buckets are omitted and knowledge-base order is kept within a bucket.
func (r ScanReport) Grouped() []SeverityGroup {
	var groups []SeverityGroup
	for _, sev := range Severities {
		var bucket []Finding
		for _, f := range r.Findings {
			if f.Severity() == sev {
				bucket = append(bucket, f)
			}
		}
		if len(bucket) > 0 {
			groups = append(groups, SeverityGroup{Severity: sev, Findings: bucket})
		}
	}
	return groups
}

// HasAtLeast reports whether any finding is at or above the given severity
func (r ScanReport) HasAtLeast(threshold Severity) bool {
	for _, f := range r.Findings {
		if f.Severity().Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

// Document is one loaded source file
type Document struct {
	Path    string `json:"path"`
	Content string `json:"-"`
}

// DocumentReport is the scan result for a single document
type DocumentReport struct {
	Path   string     `json:"path"`
	Report ScanReport `json:"report"`
}

// ExternalFinding is a finding imported from a third-party scanner
type ExternalFinding struct {
	Source      string   `json:"source"` // prowler, trivy
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Status      string   `json:"status,omitempty"`
	Resource    string   `json:"resource,omitempty"`
	Description string   `json:"description,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// VulnerabilityFinding represents a single container image vulnerability
type VulnerabilityFinding struct {
	Name             string  `json:"name"`              // CVE ID
	Description      string  `json:"description"`       // Vulnerability description
	Severity         string  `json:"severity"`          // CRITICAL, HIGH, MEDIUM, LOW
	PackageName      string  `json:"package_name"`      // Vulnerable package name
	PackageVersion   string  `json:"package_version"`   // Current package version
	FixVersion       string  `json:"fix_version"`       // Version with fix (if available)
	URI              string  `json:"uri"`               // Reference URI
	ExploitAvailable string  `json:"exploit_available"` // YES, NO, or unknown
	FixAvailable     string  `json:"fix_available"`     // YES, NO, PARTIAL, or unknown
	Score            float64 `json:"score"`
}

// ImageVulnerability is the registry scan result for an image referenced by Terraform
type ImageVulnerability struct {
	ImageURI        string                 `json:"image_uri"`
	Repository      string                 `json:"repository"`
	Tag             string                 `json:"tag"`
	Vulnerabilities map[string]int         `json:"vulnerability_counts"` // severity -> count
	TotalCount      int                    `json:"total_count"`
	ScanStatus      string                 `json:"scan_status"`
	LastScanTime    *string                `json:"last_scan_time"`
	Findings        []VulnerabilityFinding `json:"findings"`
}

// Snapshot is the state produced by one collection cycle
type Snapshot struct {
	RunID           string                         `json:"run_id"`
	Provider        string                         `json:"provider"`
	PatternCount    int                            `json:"pattern_count"`
	InvalidPatterns int                            `json:"invalid_patterns"`
	Documents       []DocumentReport               `json:"documents"`
	Images          map[string]*ImageVulnerability `json:"images"`
	CollectedAt     time.Time                      `json:"collected_at"`
}

// Combined merges every document report into one ScanReport in document order
func (s *Snapshot) Combined() ScanReport {
	var all ScanReport
	if s == nil {
		return all
	}
	for _, d := range s.Documents {
		all.Findings = append(all.Findings, d.Report.Findings...)
	}
	return all
}

// QueryResult is the answer to one specialised follow-up query
type QueryResult struct {
	Title    string `json:"title"`
	Query    string `json:"query"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AnalysisResult is everything produced by one LLM analysis run
type AnalysisResult struct {
	RunID           string            `json:"run_id"`
	Project         string            `json:"project"`
	CloudProvider   string            `json:"cloud_provider"`
	Model           string            `json:"model"`
	Temperature     float64           `json:"temperature"`
	Documents       []DocumentReport  `json:"documents"`
	Scan            ScanReport        `json:"scan"`
	Patterns        []SecurityPattern `json:"patterns"`
	InvalidPatterns int               `json:"invalid_patterns"`
	Analysis        string            `json:"analysis"`
	Queries         []QueryResult     `json:"queries"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// ConsolidationResult is the final report merging an analysis with external scanner output
type ConsolidationResult struct {
	RunID            string            `json:"run_id"`
	Project          string            `json:"project"`
	Model            string            `json:"model"`
	AnalysisFile     string            `json:"analysis_file"`
	FindingsFile     string            `json:"findings_file,omitempty"`
	ExternalFindings []ExternalFinding `json:"external_findings,omitempty"`
	Report           string            `json:"report"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
