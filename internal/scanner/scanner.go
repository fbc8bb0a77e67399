// ABOUTME: Pattern scanner that evaluates a security knowledge base against Terraform text.
// ABOUTME: Produces one finding per matching pattern with line-level evidence.

package scanner

import (
	"regexp"
	"strings"

	"github.com/jfeddern/TerraSentry/internal/types"
)

// Scan evaluates every pattern of the knowledge base against corpus, in order.
//
// Patterns that fail to compile are skipped. A pattern that matches anywhere in
// the corpus yields exactly one finding; its line evidence comes from re-testing
// the pattern on each line, so a match that only spans a newline produces a
// finding with no line matches.
func Scan(kb []types.SecurityPattern, corpus string) types.ScanReport {
	report := types.ScanReport{}
	if len(kb) == 0 || corpus == "" {
		return report
	}

	var lines []string
	for i := range kb {
		pattern := &kb[i]

		whole, err := regexp.Compile("(?im)" + pattern.Pattern)
		if err != nil {
			continue
		}

		hits := whole.FindAllStringSubmatch(corpus, -1)
		if len(hits) == 0 {
			continue
		}

		perLine, err := regexp.Compile("(?i)" + pattern.Pattern)
		if err != nil {
			continue
		}

		if lines == nil {
			lines = strings.Split(corpus, "\n")
		}

		report.Findings = append(report.Findings, types.Finding{
			Pattern:     pattern,
			Matches:     matchedStrings(hits, whole.NumSubexp()),
			LineMatches: lineMatches(perLine, lines),
			Remediation: pattern.Remediation,
		})
	}

	return report
}

// ScanDocuments scans each document independently
func ScanDocuments(kb []types.SecurityPattern, docs []types.Document) []types.DocumentReport {
	reports := make([]types.DocumentReport, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, types.DocumentReport{
			Path:   doc.Path,
			Report: Scan(kb, doc.Content),
		})
	}
	return reports
}

// matchedStrings mirrors findall: the whole match without groups, group 1 with
// exactly one group, all groups joined by "|" otherwise.
func matchedStrings(hits [][]string, groups int) []string {
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		switch groups {
		case 0:
			out = append(out, hit[0])
		case 1:
			out = append(out, hit[1])
		default:
			out = append(out, strings.Join(hit[1:], "|"))
		}
	}
	return out
}

func lineMatches(re *regexp.Regexp, lines []string) []types.LineMatch {
	var out []types.LineMatch
	for i, line := range lines {
		if re.MatchString(line) {
			out = append(out, types.LineMatch{
				Line: i + 1,
				Text: strings.TrimSpace(line),
			})
		}
	}
	return out
}
