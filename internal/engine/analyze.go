// ABOUTME: LLM security analysis of a scanned Terraform corpus.
// ABOUTME: Runs the main analysis prompt and the specialised follow-up queries concurrently.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/TerraSentry/internal/knowledge"
	"github.com/jfeddern/TerraSentry/internal/prompt"
	"github.com/jfeddern/TerraSentry/internal/scanner"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

const maxConcurrentQueries = 3

// Analyzer runs the pattern scan plus an LLM review of a Terraform corpus
type Analyzer struct {
	completer Completer
	config    *Config
	logger    *logrus.Logger
	now       func() time.Time
}

func NewAnalyzer(completer Completer, config *Config, logger *logrus.Logger) *Analyzer {
	return &Analyzer{completer: completer, config: config, logger: logger, now: time.Now}
}

// Analyze scans docs, asks the main analysis question, then runs the specialised
// follow-ups concurrently. Only a failed main query fails the run.
func (a *Analyzer) Analyze(ctx context.Context, docs []types.Document, table knowledge.Table) (*types.AnalysisResult, error) {
	if len(docs) == 0 {
		return nil, errors.New("no Terraform documents to analyze")
	}

	runID := uuid.NewString()
	logger := a.logger.WithFields(logrus.Fields{
		"operation": "analyze",
		"run_id":    runID,
		"llm":       a.completer.Name(),
	})

	reports := scanner.ScanDocuments(table.Patterns, docs)
	invalid := knowledge.Validate(table)
	for _, p := range invalid {
		logger.WithError(p.Err).WithField("pattern_index", p.Index).Warn("Skipping invalid knowledge base pattern")
	}

	result := &types.AnalysisResult{
		RunID:           runID,
		Project:         a.config.ProjectID,
		CloudProvider:   table.Provider,
		Model:           a.config.LLMModel,
		Temperature:     a.config.LLMTemperature,
		Documents:       reports,
		Patterns:        table.Patterns,
		InvalidPatterns: len(invalid),
	}
	for _, dr := range reports {
		result.Scan.Findings = append(result.Scan.Findings, dr.Report.Findings...)
	}

	logger.WithFields(logrus.Fields{
		"documents":       len(docs),
		"pattern_matches": result.Scan.Total(),
	}).Info("Pattern scan completed")

	mainPrompt, err := prompt.Analysis(a.config.ProjectID, docs, table.Patterns, reports)
	if err != nil {
		return nil, err
	}

	logger.Info("Running security analysis")
	analysis, err := a.completer.Complete(ctx, mainPrompt)
	if err != nil {
		return nil, fmt.Errorf("security analysis failed: %w", err)
	}
	result.Analysis = analysis

	logger.Info("Running specialized vulnerability queries")
	result.Queries = a.runQueries(ctx, mainPrompt, logger)
	result.GeneratedAt = a.now()

	return result, nil
}

// runQueries asks every specialised question with the corpus as context.
// Results keep the order of prompt.Specialized regardless of completion order.
func (a *Analyzer) runQueries(ctx context.Context, corpusPrompt string, logger *logrus.Entry) []types.QueryResult {
	queries := prompt.Specialized()
	results := make([]types.QueryResult, len(queries))

	semaphore := make(chan struct{}, maxConcurrentQueries)
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q prompt.Query) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = types.QueryResult{Title: q.Title, Query: q.Text}

			response, err := a.completer.Complete(ctx, corpusPrompt+"\n\nFOLLOW-UP QUESTION:\n"+q.Text)
			if err != nil {
				logger.WithError(err).WithField("query", q.Title).Error("Specialized query failed")
				results[i].Error = err.Error()
				return
			}
			results[i].Response = response
		}(i, q)
	}

	wg.Wait()
	return results
}
