// ABOUTME: Consolidation of an LLM analysis report with third-party scanner output.
// ABOUTME: Parses Prowler or Trivy findings, falls back to raw text, and asks for one final report.

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/TerraSentry/internal/importers"
	"github.com/jfeddern/TerraSentry/internal/prompt"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

// ErrNoAnalysisResults is returned when neither an analysis report nor scanner output is available
var ErrNoAnalysisResults = errors.New("no security analysis results found")

// Consolidator merges an analysis report with third-party scanner output in one LLM call
type Consolidator struct {
	completer Completer
	config    *Config
	logger    *logrus.Logger
	now       func() time.Time
}

func NewConsolidator(completer Completer, config *Config, logger *logrus.Logger) *Consolidator {
	return &Consolidator{completer: completer, config: config, logger: logger, now: time.Now}
}

// Consolidate reads analysisFile and findingsFile (either may be empty) and asks for the final report.
// Scanner output that cannot be parsed is passed through as raw text.
func (c *Consolidator) Consolidate(ctx context.Context, analysisFile, findingsFile string) (*types.ConsolidationResult, error) {
	if analysisFile == "" && findingsFile == "" {
		return nil, ErrNoAnalysisResults
	}

	runID := uuid.NewString()
	logger := c.logger.WithFields(logrus.Fields{
		"operation": "consolidate",
		"run_id":    runID,
	})

	in := prompt.ConsolidationInput{
		Project: c.config.ProjectID,
		Date:    c.now(),
	}

	if analysisFile != "" {
		data, err := os.ReadFile(analysisFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read analysis report: %w", err)
		}
		in.Analysis = string(data)
		logger.WithFields(logrus.Fields{
			"file":  analysisFile,
			"chars": len(in.Analysis),
		}).Info("Loaded analysis report")
	}

	if findingsFile != "" {
		findings, err := importers.ParseFile(findingsFile)
		var parseErr *importers.ParseError
		switch {
		case errors.As(err, &parseErr):
			logger.WithError(parseErr.Err).WithField("file", findingsFile).Warn("Could not parse scanner findings, passing raw output")
			in.Raw = string(parseErr.Raw)
		case err != nil:
			return nil, fmt.Errorf("failed to read scanner findings: %w", err)
		default:
			in.Findings = findings
			in.ScannerParsed = true
			logger.WithFields(logrus.Fields{
				"file":     findingsFile,
				"findings": len(findings),
			}).Info("Loaded scanner findings")
		}
	}

	consolidationPrompt, err := prompt.Consolidation(in)
	if err != nil {
		return nil, err
	}

	logger.WithField("prompt_length", len(consolidationPrompt)).Info("Running consolidation analysis")
	response, err := c.completer.Complete(ctx, consolidationPrompt)
	if err != nil {
		return nil, fmt.Errorf("consolidation failed: %w", err)
	}

	return &types.ConsolidationResult{
		RunID:            runID,
		Project:          c.config.ProjectID,
		Model:            c.config.LLMModel,
		AnalysisFile:     analysisFile,
		FindingsFile:     findingsFile,
		ExternalFindings: in.Findings,
		Report:           response,
		GeneratedAt:      c.now(),
	}, nil
}
