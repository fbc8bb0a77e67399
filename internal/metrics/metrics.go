// ABOUTME: Prometheus metrics exposition for Terraform scan results and referenced image vulnerabilities.
// ABOUTME: Builds a fresh registry from the latest snapshot on every /metrics request.

package metrics

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SnapshotProvider exposes the latest scan snapshot
type SnapshotProvider interface {
	GetSnapshot() (*types.Snapshot, time.Time)
}

type MetricsHandler struct {
	provider SnapshotProvider
	logger   *logrus.Logger
}

func NewMetricsHandler(provider SnapshotProvider, logger *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{provider: provider, logger: logger}
}

type gauges struct {
	patternFindings    *prometheus.GaugeVec
	findingsBySeverity *prometheus.GaugeVec
	imageVulnCount     *prometheus.GaugeVec
	imageLastScan      *prometheus.GaugeVec
	scanInfo           *prometheus.GaugeVec
}

func newGauges() *gauges {
	return &gauges{
		patternFindings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terrasentry_pattern_findings",
				Help: "Matching lines per pattern finding (1 when the match spans lines)",
			},
			[]string{"file", "category", "vulnerability", "severity"},
		),
		findingsBySeverity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terrasentry_findings_by_severity",
				Help: "Number of pattern findings across all documents by severity",
			},
			[]string{"severity"},
		),
		imageVulnCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terrasentry_image_vulnerability_count",
				Help: "Vulnerabilities in container images referenced by Terraform, by severity",
			},
			[]string{"image_uri", "repository", "tag", "severity"},
		),
		imageLastScan: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terrasentry_image_last_scan_timestamp",
				Help: "Timestamp of the last registry scan for referenced images",
			},
			[]string{"image_uri", "repository", "tag"},
		),
		scanInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terrasentry_scan_info",
				Help: "Information about the latest Terraform scan",
			},
			[]string{"info_type"},
		),
	}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Gauges are rebuilt per request so concurrent scrapes never share state
	g := newGauges()
	registry := prometheus.NewRegistry()
	registry.MustRegister(g.patternFindings, g.findingsBySeverity, g.imageVulnCount, g.imageLastScan, g.scanInfo)

	snapshot, lastCollectionTime := m.provider.GetSnapshot()

	for _, doc := range snapshot.Documents {
		for _, f := range doc.Report.Findings {
			value := float64(len(f.LineMatches))
			if value == 0 {
				value = 1
			}
			g.patternFindings.WithLabelValues(
				sanitizeLabelValue(doc.Path),
				sanitizeLabelValue(f.Pattern.Category),
				sanitizeLabelValue(f.Pattern.Vulnerability),
				f.Severity().String(),
			).Add(value)
		}
	}

	for severity, count := range snapshot.Combined().CountBySeverity() {
		g.findingsBySeverity.WithLabelValues(severity.String()).Set(float64(count))
	}

	for imageURI, vuln := range snapshot.Images {
		if vuln == nil {
			m.logger.WithField("image_uri", imageURI).Warn("Missing vulnerability data for image")
			continue
		}
		for severity, count := range vuln.Vulnerabilities {
			g.imageVulnCount.WithLabelValues(sanitizeLabelValue(imageURI), sanitizeLabelValue(vuln.Repository), sanitizeLabelValue(vuln.Tag), sanitizeLabelValue(severity)).Set(float64(count))
		}
		if vuln.LastScanTime != nil {
			if scanTime, err := time.Parse("2006-01-02T15:04:05Z", *vuln.LastScanTime); err == nil {
				g.imageLastScan.WithLabelValues(sanitizeLabelValue(imageURI), sanitizeLabelValue(vuln.Repository), sanitizeLabelValue(vuln.Tag)).Set(float64(scanTime.Unix()))
			}
		}
	}

	if !lastCollectionTime.IsZero() {
		g.scanInfo.WithLabelValues("last_collection_timestamp").Set(float64(lastCollectionTime.Unix()))
	}
	g.scanInfo.WithLabelValues("documents_scanned").Set(float64(len(snapshot.Documents)))
	g.scanInfo.WithLabelValues("patterns_loaded").Set(float64(snapshot.PatternCount))
	g.scanInfo.WithLabelValues("patterns_invalid").Set(float64(snapshot.InvalidPatterns))
	g.scanInfo.WithLabelValues("images_monitored").Set(float64(len(snapshot.Images)))

	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// sanitizeLabelValue cleans strings for use as Prometheus labels
func sanitizeLabelValue(value string) string {
	if value == "" {
		return "unknown"
	}

	value = strings.ToValidUTF8(value, "\uFFFD")
	value = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(value)

	if len(value) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		value = value[:cut] + "..."
	}

	return strings.TrimSpace(value)
}

// CreateMetricsHandler creates a standard HTTP handler that can be used with http.ServeMux
func CreateMetricsHandler(provider SnapshotProvider, logger *logrus.Logger) http.HandlerFunc {
	return NewMetricsHandler(provider, logger).ServeHTTP
}
