// ABOUTME: Prompt construction for Terraform security analysis and report consolidation.
// ABOUTME: Builds the expert analysis prompt, follow-up queries, and the one-shot consolidation prompt.

package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jfeddern/TerraSentry/internal/types"
)

// Consolidation input limits, in characters
const (
	MaxAnalysisChars = 4000
	MaxFindingsChars = 2000
)

// Truncate shortens text to at most max characters plus a marker saying how much was kept.
// The cut moves back to the last newline when one falls in the final 20% of the window.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := runes[:max]
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '\n' {
			if float64(i) > float64(max)*0.8 {
				cut = cut[:i]
			}
			break
		}
	}

	return fmt.Sprintf("%s\n\n... [TRUNCATED - Original length: %d chars, showing first %d chars]", string(cut), len(runes), len(cut))
}

// Query is one specialised follow-up question asked after the main analysis
type Query struct {
	Title string
	Text  string
}

// Specialized returns the follow-up queries in report order
func Specialized() []Query {
	return []Query{
		{
			Title: "Public Access Analysis",
			Text:  "Find all resources with public access using 'allUsers' or '0.0.0.0/0'. Include the specific configurations and their security implications.",
		},
		{
			Title: "Credential Security Analysis",
			Text:  "Identify any hardcoded secrets, passwords, or API keys in the configurations. Look for JWT secrets, database passwords, and service account keys.",
		},
		{
			Title: "IAM Permission Analysis",
			Text:  "Analyze IAM permissions and service account configurations. Identify overprivileged accounts with Owner, Editor, or excessive custom permissions.",
		},
	}
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

var analysisTemplate = template.Must(template.New("analysis").Funcs(funcs).Parse(`You are a senior cybersecurity expert specializing in cloud infrastructure security.

Analyze the Terraform configurations of project {{.Project}} below for security vulnerabilities.

CRITICAL PATTERNS TO DETECT:
{{range $i, $p := .Patterns}}{{inc $i}}. {{$p.Category}} ({{$p.Severity}}): {{$p.Vulnerability}}
{{end}}
SEVERITY CRITERIA:
- CRITICAL: internet-facing exposure, hardcoded secrets, public access
- HIGH: excessive permissions, weak authentication, unencrypted data
- MEDIUM: configuration drift, missing logging, suboptimal practices
- LOW: documentation gaps and non-security optimizations

PATTERN SCANNER EVIDENCE ({{.Total}} findings):
{{range .Findings}}- [{{.Severity}}] {{.Category}}: {{.Vulnerability}}
{{range .Lines}}    line {{.Line}}: {{.Text}}
{{end}}{{else}}- none
{{end}}
REQUIRED REPORT STRUCTURE:
## Executive Summary
Overall risk level, counts of critical and high findings, total vulnerabilities.
## Critical Vulnerabilities
For each finding: title, file and line, evidence, attack vector, business impact, corrected configuration, priority.
## High-Risk Vulnerabilities
## Medium-Risk Issues
## Implementation Roadmap
Phase 1 (0-24 hours), Phase 2 (1-7 days), Phase 3 (1-30 days).

Focus on findings that pose real security risk, not configuration preferences.

TERRAFORM CONFIGURATIONS:
{{range .Documents}}
--- {{.Path}} ---
{{.Content}}
{{end}}`))

type analysisFinding struct {
	Severity      types.Severity
	Category      string
	Vulnerability string
	Lines         []types.LineMatch
}

// Analysis builds the main analysis prompt from the corpus, the knowledge base, and scanner output
func Analysis(project string, docs []types.Document, patterns []types.SecurityPattern, reports []types.DocumentReport) (string, error) {
	var findings []analysisFinding
	for _, dr := range reports {
		for _, f := range dr.Report.Findings {
			lines := make([]types.LineMatch, 0, len(f.LineMatches))
			for _, lm := range f.LineMatches {
				lines = append(lines, types.LineMatch{Line: lm.Line, Text: dr.Path + ": " + lm.Text})
			}
			findings = append(findings, analysisFinding{
				Severity:      f.Severity(),
				Category:      f.Pattern.Category,
				Vulnerability: f.Pattern.Vulnerability,
				Lines:         lines,
			})
		}
	}

	var sb strings.Builder
	err := analysisTemplate.Execute(&sb, map[string]any{
		"Project":   project,
		"Patterns":  patterns,
		"Findings":  findings,
		"Total":     len(findings),
		"Documents": docs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	return sb.String(), nil
}

// ConsolidationInput carries both sources merged by the consolidation prompt
type ConsolidationInput struct {
	Project  string
	Date     time.Time
	Analysis string                  // empty when no analysis report was found
	Findings []types.ExternalFinding // parsed scanner findings
	Raw      string                  // scanner output that could not be parsed

	// ScannerParsed is set when a findings file was parsed, even if it held no failing checks
	ScannerParsed bool
}

var consolidationTemplate = template.Must(template.New("consolidation").Parse(`You are a senior cybersecurity expert creating a final security assessment by consolidating two analysis sources.

PROJECT: {{.Project}}
ANALYSIS DATE: {{.Date}}

## SOURCE 1: LLM SECURITY ANALYSIS (primary)
` + "```" + `
{{.Analysis}}
` + "```" + `

## SOURCE 2: SCANNER FINDINGS (verification, {{.Count}} findings)
` + "```json" + `
{{.Findings}}
` + "```" + `

## CONSOLIDATION RULES
- Use the LLM analysis as the foundation for risk assessment and context.
- Use scanner findings to validate results and add technical precision.
- Merge overlapping findings; keep unique findings from either source.
- Explain any conflicting severity assessments.

## REQUIRED OUTPUT
# Consolidated Security Assessment Report
## Executive Summary
Overall risk level, total issues, critical and high counts, P0/P1/P2 breakdown.
## Critical Security Findings
For each: sources, severity, risk score 1-10, configuration issue, attack vector, business impact, remediation, validation.
## High-Risk Vulnerabilities
## Medium-Risk Issues
## Source Comparison
A table of finding category, LLM view, scanner view, consolidated assessment.
## Implementation Roadmap
Phase 1 (0-24 hours), Phase 2 (1-7 days), Phase 3 (1-30 days).
`))

// Consolidation builds the one-shot consolidation prompt. Both sources are truncated.
func Consolidation(in ConsolidationInput) (string, error) {
	analysis := in.Analysis
	if strings.TrimSpace(analysis) == "" {
		analysis = "No security analysis available"
	}

	findings := "No scanner data available"
	count := len(in.Findings)
	switch {
	case len(in.Findings) > 0:
		b, err := json.MarshalIndent(in.Findings, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode scanner findings: %w", err)
		}
		findings = string(b)
	case strings.TrimSpace(in.Raw) != "":
		findings = in.Raw
	case in.ScannerParsed:
		findings = "Scanner reported no failing checks"
	}

	var sb strings.Builder
	err := consolidationTemplate.Execute(&sb, map[string]any{
		"Project":  in.Project,
		"Date":     in.Date.Format("2006-01-02 15:04:05"),
		"Analysis": Truncate(analysis, MaxAnalysisChars),
		"Count":    count,
		"Findings": Truncate(findings, MaxFindingsChars),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render consolidation prompt: %w", err)
	}
	return sb.String(), nil
}
