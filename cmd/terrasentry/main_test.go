// ABOUTME: Tests for the terrasentry command tree.
// ABOUTME: Covers environment configuration, every subcommand in mock mode, and the HTTP surface.

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jfeddern/TerraSentry/internal/engine"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"PROJECT_ID", "TERRAFORM_DIR", "RESULTS_DIR", "OUTPUT_DIR", "CLOUD_PROVIDER",
	"KNOWLEDGE_BASE_FILE", "LLM_PROVIDER", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "AWS_REGION", "AWS_ECR_ACCOUNT_ID", "AWS_ECR_REGION",
	"PORT", "SCAN_INTERVAL", "MOCK_MODE", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const publicBucketTF = `resource "google_storage_bucket_iam_member" "public" {
  bucket = "assets"
  member = "allUsers"
}
`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROJECT_ID":         "demo-project",
		"TERRAFORM_DIR":      "/tf",
		"CLOUD_PROVIDER":     "aws",
		"LLM_PROVIDER":       "bedrock",
		"LLM_TEMPERATURE":    "0.4",
		"LLM_MAX_TOKENS":     "1024",
		"GOOGLE_API_KEY":     "google-key",
		"GEMINI_API_KEY":     "gemini-key",
		"AWS_ECR_ACCOUNT_ID": "123456789012",
		"AWS_ECR_REGION":     "eu-west-1",
		"PORT":               "8080",
		"SCAN_INTERVAL":      "10m",
		"MOCK_MODE":          "1",
	}
	config := engine.DefaultConfig()

	require.NoError(t, applyEnv(config, func(name string) string { return env[name] }))

	assert.Equal(t, "demo-project", config.ProjectID)
	assert.Equal(t, "/tf", config.TerraformDir)
	assert.Equal(t, "aws", config.CloudProvider)
	assert.Equal(t, "bedrock", config.LLMProvider)
	assert.Equal(t, 0.4, config.LLMTemperature)
	assert.Equal(t, 1024, config.LLMMaxTokens)
	assert.Equal(t, "gemini-key", config.APIKey)
	assert.Equal(t, "123456789012", config.ECRAccountID)
	assert.Equal(t, "eu-west-1", config.ECRRegion)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, 10*time.Minute, config.ScanInterval)
	assert.True(t, config.MockMode)
	assert.Equal(t, ".", config.OutputDir)
}

func TestApplyEnvInvalidValues(t *testing.T) {
	env := map[string]string{
		"PORT":            "not-a-port",
		"SCAN_INTERVAL":   "often",
		"LLM_TEMPERATURE": "warm",
	}
	config := engine.DefaultConfig()

	err := applyEnv(config, func(name string) string { return env[name] })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "SCAN_INTERVAL")
	assert.Contains(t, err.Error(), "LLM_TEMPERATURE")
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, 5*time.Minute, config.ScanInterval)
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(io.Discard, "text", false)
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.InfoLevel, logger.Level)

	logger = newLogger(io.Discard, "json", true)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.DebugLevel, logger.Level)
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.tf", publicBucketTF)

	out, err := execute(t, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "CRITICAL VULNERABILITIES (1 found)")
	assert.Contains(t, out, "[CRITICAL-01] Public Access Controls")

	out, err = execute(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)
}

func TestScanCommandConcat(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.tf", publicBucketTF)
	writeFile(t, dir, "main.tf", `resource "null_resource" "noop" {}`)

	out, err := execute(t, "scan", dir, "--concat", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "(combined)"`)
	assert.Contains(t, out, `"documents": 1`)
	assert.Contains(t, out, `"total": 1`)
	assert.NotContains(t, out, `"path": "`+filepath.ToSlash(filepath.Join(dir, "storage.tf"))+`"`)
}

func TestScanCommandFailOn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.tf", publicBucketTF)

	_, err := execute(t, "scan", dir, "--fail-on", "high")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at or above HIGH")

	clean := t.TempDir()
	writeFile(t, clean, "main.tf", `resource "null_resource" "noop" {}`)
	_, err = execute(t, "scan", clean, "--fail-on", "low")
	assert.NoError(t, err)

	_, err = execute(t, "scan", dir, "--fail-on", "urgent")
	assert.Error(t, err)
}

func TestScanCommandOutputFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.tf", publicBucketTF)
	output := filepath.Join(t.TempDir(), "scan.md")

	out, err := execute(t, "scan", dir, "--format", "markdown", "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "### [CRITICAL-01] Public Access Controls")
}

func TestScanCommandMockMode(t *testing.T) {
	out, err := execute(t, "--mock", "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "mock/storage.tf")
	assert.Contains(t, out, "IMMEDIATE ACTION REQUIRED")
}

func TestPatternsCommand(t *testing.T) {
	out, err := execute(t, "patterns", "--provider", "gcp")
	require.NoError(t, err)
	assert.Contains(t, out, "GCP-001")
	assert.Contains(t, out, "CRITICAL")

	out, err = execute(t, "patterns", "--validate")
	require.NoError(t, err)
	assert.Contains(t, out, "patterns compile")

	_, err = execute(t, "patterns", "--provider", "oracle")
	assert.Error(t, err)
}

func TestPatternsCommandInvalidKnowledgeBase(t *testing.T) {
	kb := writeFile(t, t.TempDir(), "kb.yaml", `provider: custom
patterns:
  - category: Broken
    pattern: "([unclosed"
    vulnerability: Never compiles
    severity: HIGH
  - category: Fine
    pattern: "roles/owner"
    vulnerability: Owner role
    severity: HIGH
`)

	out, err := execute(t, "patterns", "--kb-file", kb, "--validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 patterns are invalid")
	assert.Contains(t, out, "INVALID pattern #0 (Broken)")
}

func TestAnalyzeCommand(t *testing.T) {
	tfDir := t.TempDir()
	writeFile(t, tfDir, "storage.tf", publicBucketTF)
	outDir := filepath.Join(t.TempDir(), "reports")

	out, err := execute(t, "analyze", "demo-project", tfDir, "--llm-provider", "mock", "--output-dir", outDir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "security_analysis_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**Project:** demo-project")
	assert.Contains(t, string(data), "Mock Assessment")
	assert.Contains(t, string(data), "[CRITICAL-01]")
}

func TestAnalyzeCommandErrors(t *testing.T) {
	_, err := execute(t, "analyze", "--llm-provider", "mock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project ID is required")

	_, err = execute(t, "analyze", "demo-project", t.TempDir(), "--llm-provider", "gemini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestConsolidateCommand(t *testing.T) {
	resultsDir := t.TempDir()
	writeFile(t, resultsDir, "security_analysis_20250708_120000.md", "# Analysis\nPublic bucket found")
	writeFile(t, resultsDir, "trivy_results.json", `{"Results":[{"Target":"main.tf","Misconfigurations":[{"ID":"AVD-GCP-0001","Title":"Bucket public","Severity":"CRITICAL","Status":"FAIL"}]}]}`)
	outDir := t.TempDir()

	out, err := execute(t, "consolidate", "demo-project", resultsDir, "--llm-provider", "mock", "--output-dir", outDir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "final_security_report_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "security_analysis_20250708_120000.md")
	assert.Contains(t, string(data), "trivy_results.json")
}

func TestConsolidateCommandNoInputs(t *testing.T) {
	_, err := execute(t, "consolidate", "demo-project", t.TempDir(), "--llm-provider", "mock", "--output-dir", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNoAnalysisResults)
}

func newMockExporter(t *testing.T) *Exporter {
	t.Helper()
	config := engine.DefaultConfig()
	config.MockMode = true

	exporter, err := NewExporter(context.Background(), config, quietLogger())
	require.NoError(t, err)
	return exporter
}

func TestHealthHandler(t *testing.T) {
	exporter := newMockExporter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	exporter.healthHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","last_scan":null}`, w.Body.String())

	require.NoError(t, exporter.engine.Collect(context.Background()))
	w = httptest.NewRecorder()
	exporter.healthHandler(w, req)
	assert.Contains(t, w.Body.String(), `"last_scan":"`)
}

func TestSecurityMiddleware(t *testing.T) {
	exporter := &Exporter{config: &engine.Config{}, logger: quietLogger()}

	securedHandler := exporter.securityMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	})

	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
		{http.MethodPut, http.StatusMethodNotAllowed},
		{http.MethodDelete, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			w := httptest.NewRecorder()

			securedHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
			assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
		})
	}
}

func TestSecurityMiddlewareRequestLogging(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	hook := test.NewLocal(logger)

	exporter := &Exporter{config: &engine.Config{}, logger: logger}
	securedHandler := exporter.securityMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test-path", nil)
	req.Header.Set("User-Agent", "test-user-agent")
	securedHandler(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "HTTP request received", entry.Message)
	assert.Equal(t, "GET", entry.Data["method"])
	assert.Equal(t, "/test-path", entry.Data["path"])
	assert.Equal(t, "test-user-agent", entry.Data["user_agent"])
}

func TestRoutes(t *testing.T) {
	exporter := newMockExporter(t)
	require.NoError(t, exporter.engine.Collect(context.Background()))
	mux := exporter.routes()

	tests := []struct {
		method   string
		path     string
		status   int
		contains string
	}{
		{http.MethodGet, "/findings?severity=critical", http.StatusOK, `"file":"mock/storage.tf"`},
		{http.MethodGet, "/report", http.StatusOK, "[CRITICAL-01]"},
		{http.MethodGet, "/metrics", http.StatusOK, `terrasentry_scan_info{info_type="documents_scanned"} 4`},
		{http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{http.MethodPost, "/findings", http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}
