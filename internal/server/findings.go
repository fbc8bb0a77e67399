// ABOUTME: HTTP handlers exposing the latest Terraform scan as JSON findings and a Markdown report.
// ABOUTME: Supports severity, file, category and limit filters over the collected snapshot.

package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jfeddern/TerraSentry/internal/report"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

const (
	maxLimit        = 10000
	maxFilterLength = 200
	topCategories   = 10
)

// SnapshotProvider exposes the latest scan snapshot
type SnapshotProvider interface {
	GetSnapshot() (*types.Snapshot, time.Time)
}

type FindingsHandler struct {
	provider SnapshotProvider
	logger   *logrus.Logger
}

// FindingEntry is one pattern finding flattened with the file it was found in
type FindingEntry struct {
	File          string            `json:"file"`
	PatternID     string            `json:"pattern_id,omitempty"`
	Category      string            `json:"category"`
	Vulnerability string            `json:"vulnerability"`
	Severity      types.Severity    `json:"severity"`
	Pattern       string            `json:"pattern"`
	Lines         []types.LineMatch `json:"lines"`
	Impact        string            `json:"impact,omitempty"`
	Remediation   string            `json:"remediation"`
}

type FindingsResponse struct {
	RunID       string                      `json:"run_id"`
	Findings    []FindingEntry              `json:"findings"`
	Images      []*types.ImageVulnerability `json:"images"`
	Summary     FindingsSummary             `json:"summary"`
	LastUpdated string                      `json:"last_updated"`
}

type FindingsSummary struct {
	TotalDocuments       int             `json:"total_documents"`
	TotalFindings        int             `json:"total_findings"`
	SeverityBreakdown    map[string]int  `json:"severity_breakdown"`
	TopCategories        []CategoryCount `json:"top_categories"`
	ImagesMonitored      int             `json:"images_monitored"`
	ImageVulnerabilities int             `json:"image_vulnerabilities"`
}

// CategoryCount counts how many files a finding category appears in
type CategoryCount struct {
	Category  string         `json:"category"`
	Severity  types.Severity `json:"severity"`
	FileCount int            `json:"file_count"`
}

func NewFindingsHandler(provider SnapshotProvider, logger *logrus.Logger) *FindingsHandler {
	return &FindingsHandler{
		provider: provider,
		logger:   logger,
	}
}

type findingsQuery struct {
	severity types.Severity
	file     string
	category string
	limit    int
}

// parseFindingsQuery validates the query string, returning a client-facing message on failure
func parseFindingsQuery(r *http.Request) (findingsQuery, string) {
	var q findingsQuery
	values := r.URL.Query()

	if raw := strings.TrimSpace(values.Get("severity")); raw != "" {
		severity := types.Severity(strings.ToUpper(raw))
		if !severity.Valid() {
			return q, "Invalid severity filter. Must be one of: CRITICAL, HIGH, MEDIUM, LOW"
		}
		q.severity = severity
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return q, "Invalid limit parameter. Must be a positive integer"
		}
		if parsed > maxLimit {
			return q, "Limit parameter too large. Maximum allowed is 10000"
		}
		q.limit = parsed
	}

	q.file = strings.TrimSpace(values.Get("file"))
	q.category = strings.TrimSpace(values.Get("category"))
	if len(q.file) > maxFilterLength || len(q.category) > maxFilterLength {
		return q, "Filter too long. Maximum allowed is 200 characters"
	}

	return q, ""
}

func (q findingsQuery) matches(path string, f types.Finding) bool {
	if q.severity != "" && f.Severity() != q.severity {
		return false
	}
	if q.file != "" && !strings.Contains(path, q.file) {
		return false
	}
	if q.category != "" && (f.Pattern == nil || !strings.Contains(strings.ToLower(f.Pattern.Category), strings.ToLower(q.category))) {
		return false
	}
	return true
}

func (h *FindingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithField("endpoint", "/findings")

	q, problem := parseFindingsQuery(r)
	if problem != "" {
		http.Error(w, problem, http.StatusBadRequest)
		return
	}

	snapshot, lastCollectionTime := h.provider.GetSnapshot()

	logger.WithFields(logrus.Fields{
		"severity_filter": q.severity,
		"file_filter":     q.file,
		"category_filter": q.category,
		"limit":           q.limit,
		"documents":       len(snapshot.Documents),
	}).Debug("Processing findings request")

	findings := []FindingEntry{}
	categories := make(map[string]*CategoryCount)

	for _, doc := range snapshot.Documents {
		seen := make(map[string]bool)
		for _, f := range doc.Report.Findings {
			if f.Pattern == nil {
				continue
			}

			// Summary statistics use the unfiltered data
			if !seen[f.Pattern.Category] {
				seen[f.Pattern.Category] = true
				if c, exists := categories[f.Pattern.Category]; exists {
					c.FileCount++
					if f.Severity().Rank() > c.Severity.Rank() {
						c.Severity = f.Severity()
					}
				} else {
					categories[f.Pattern.Category] = &CategoryCount{Category: f.Pattern.Category, Severity: f.Severity(), FileCount: 1}
				}
			}

			if !q.matches(doc.Path, f) || (q.limit > 0 && len(findings) >= q.limit) {
				continue
			}
			findings = append(findings, FindingEntry{
				File:          doc.Path,
				PatternID:     f.Pattern.ID,
				Category:      f.Pattern.Category,
				Vulnerability: f.Pattern.Vulnerability,
				Severity:      f.Severity(),
				Pattern:       f.Pattern.Pattern,
				Lines:         f.LineMatches,
				Impact:        f.Pattern.Impact,
				Remediation:   f.Remediation,
			})
		}
	}

	combined := snapshot.Combined()
	severityBreakdown := make(map[string]int, len(types.Severities))
	for severity, count := range combined.CountBySeverity() {
		severityBreakdown[severity.String()] = count
	}

	topCats := make([]CategoryCount, 0, len(categories))
	for _, c := range categories {
		topCats = append(topCats, *c)
	}
	sort.Slice(topCats, func(i, j int) bool {
		if topCats[i].FileCount != topCats[j].FileCount {
			return topCats[i].FileCount > topCats[j].FileCount
		}
		if topCats[i].Severity.Rank() != topCats[j].Severity.Rank() {
			return topCats[i].Severity.Rank() > topCats[j].Severity.Rank()
		}
		return topCats[i].Category < topCats[j].Category
	})
	if len(topCats) > topCategories {
		topCats = topCats[:topCategories]
	}

	images := make([]*types.ImageVulnerability, 0, len(snapshot.Images))
	imageVulns := 0
	for _, img := range snapshot.Images {
		if img == nil {
			continue
		}
		images = append(images, img)
		imageVulns += img.TotalCount
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ImageURI < images[j].ImageURI })

	response := FindingsResponse{
		RunID:    snapshot.RunID,
		Findings: findings,
		Images:   images,
		Summary: FindingsSummary{
			TotalDocuments:       len(snapshot.Documents),
			TotalFindings:        combined.Total(),
			SeverityBreakdown:    severityBreakdown,
			TopCategories:        topCats,
			ImagesMonitored:      len(images),
			ImageVulnerabilities: imageVulns,
		},
		LastUpdated: lastCollectionTime.UTC().Format("2006-01-02T15:04:05Z"),
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	if r.URL.Query().Get("pretty") != "" {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.WithFields(logrus.Fields{
		"returned_findings": len(findings),
		"total_findings":    combined.Total(),
	}).Info("Served findings response")
}

// ReportHandler renders the latest snapshot with the report package, Markdown by default
type ReportHandler struct {
	provider SnapshotProvider
	logger   *logrus.Logger
}

func NewReportHandler(provider SnapshotProvider, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{provider: provider, logger: logger}
}

var contentTypes = map[report.Format]string{
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatJSON:     "application/json",
	report.FormatText:     "text/plain; charset=utf-8",
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithField("endpoint", "/report")

	format := report.FormatMarkdown
	if raw := r.URL.Query().Get("format"); raw != "" {
		parsed, err := report.ParseFormat(raw)
		if err != nil {
			http.Error(w, "Invalid format. Must be one of: markdown, json, text", http.StatusBadRequest)
			return
		}
		format = parsed
	}

	snapshot, _ := h.provider.GetSnapshot()

	var buf strings.Builder
	if err := report.New(format).Render(&buf, report.FromSnapshot(snapshot)); err != nil {
		logger.WithError(err).Error("Failed to render report")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	if _, err := w.Write([]byte(buf.String())); err != nil {
		logger.WithError(err).Warn("Failed to write report response")
	}
}

// CreateFindingsHandler creates a standard HTTP handler
func CreateFindingsHandler(provider SnapshotProvider, logger *logrus.Logger) http.HandlerFunc {
	return NewFindingsHandler(provider, logger).ServeHTTP
}

// CreateReportHandler creates a standard HTTP handler
func CreateReportHandler(provider SnapshotProvider, logger *logrus.Logger) http.HandlerFunc {
	return NewReportHandler(provider, logger).ServeHTTP
}
