// ABOUTME: Subcommands for pattern scanning, knowledge base listing, LLM analysis and consolidation.
// ABOUTME: Each command resolves its inputs from the shared options and writes reports to stdout or the output dir.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/TerraSentry/internal/engine"
	"github.com/jfeddern/TerraSentry/internal/knowledge"
	"github.com/jfeddern/TerraSentry/internal/providers"
	"github.com/jfeddern/TerraSentry/internal/providers/local"
	"github.com/jfeddern/TerraSentry/internal/report"
	"github.com/jfeddern/TerraSentry/internal/scanner"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// combinedCorpusPath names the single document scanned with --concat
const combinedCorpusPath = "(combined)"

func newScanCmd(opts *options) *cobra.Command {
	var format, output, failOn string
	var concat bool

	cmd := &cobra.Command{
		Use:   "scan [dir|file]",
		Short: "Run the pattern scanner over Terraform files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := opts.config
			if len(args) == 1 {
				config.TerraformDir = args[0]
			}
			if err := config.Validate(false); err != nil {
				return err
			}

			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			var threshold types.Severity
			if failOn != "" {
				sev, ok := types.ParseSeverity(failOn)
				if !ok {
					return fmt.Errorf("invalid --fail-on severity: %s", failOn)
				}
				threshold = sev
			}

			table, err := loadTable(config, opts.logger)
			if err != nil {
				return err
			}
			source, err := providers.CreateDocumentSource(providerConfig(config, config.LLMMaxTokens), opts.logger)
			if err != nil {
				return err
			}
			docs, err := source.Discover(cmd.Context())
			if err != nil {
				return err
			}
			if concat {
				docs = []types.Document{{Path: combinedCorpusPath, Content: local.Concat(docs)}}
			}

			scan := report.Scan{
				RunID:           uuid.NewString(),
				Provider:        table.Provider,
				PatternCount:    len(table.Patterns),
				InvalidPatterns: len(knowledge.Validate(table)),
				Documents:       scanner.ScanDocuments(table.Patterns, docs),
				GeneratedAt:     time.Now(),
			}
			summary := scan.Summary()
			opts.logger.WithFields(logrus.Fields{
				"run_id":    scan.RunID,
				"documents": summary.Documents,
				"findings":  summary.Total,
			}).Info("Pattern scan completed")

			if err := writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return report.New(f).Render(w, scan)
			}); err != nil {
				return err
			}

			if threshold != "" {
				var combined types.ScanReport
				for _, d := range scan.Documents {
					combined.Findings = append(combined.Findings, d.Report.Findings...)
				}
				if combined.HasAtLeast(threshold) {
					return fmt.Errorf("findings at or above %s severity detected", threshold)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero when any finding is at or above this severity")
	cmd.Flags().BoolVar(&concat, "concat", false, "Scan all files as one concatenated corpus")

	return cmd
}

func newPatternsCmd(opts *options) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the active knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(opts.config, opts.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if validate {
				invalid := knowledge.Validate(table)
				for _, p := range invalid {
					fmt.Fprintf(out, "INVALID %s\n", p.Error())
				}
				if len(invalid) > 0 {
					return fmt.Errorf("%d of %d patterns are invalid", len(invalid), len(table.Patterns))
				}
				fmt.Fprintf(out, "All %d patterns compile\n", len(table.Patterns))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tVULNERABILITY")
			for _, p := range table.Patterns {
				id := p.ID
				if id == "" {
					id = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, p.Severity, p.Category, p.Vulnerability)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Compile every pattern and report the invalid ones")

	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [project] [dir]",
		Short: "Scan Terraform and produce an LLM security analysis report",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := opts.config
			if len(args) > 0 {
				config.ProjectID = args[0]
			}
			if len(args) > 1 {
				config.TerraformDir = args[1]
			}
			if config.ProjectID == "" {
				return fmt.Errorf("project ID is required")
			}
			if err := config.Validate(true); err != nil {
				return err
			}

			ctx := cmd.Context()
			table, err := loadTable(config, opts.logger)
			if err != nil {
				return err
			}

			pc := providerConfig(config, config.LLMMaxTokens)
			source, err := providers.CreateDocumentSource(pc, opts.logger)
			if err != nil {
				return err
			}
			docs, err := source.Discover(ctx)
			if err != nil {
				return err
			}
			completer, err := providers.CreateCompleter(ctx, pc, opts.logger)
			if err != nil {
				return err
			}

			result, err := engine.NewAnalyzer(completer, config, opts.logger).Analyze(ctx, docs, table)
			if err != nil {
				return err
			}

			path, err := writeReport(config.OutputDir, report.FileName("security_analysis", result.GeneratedAt), func(w io.Writer) error {
				return report.WriteAnalysis(w, result)
			})
			if err != nil {
				return err
			}

			opts.logger.WithFields(logrus.Fields{
				"run_id":   result.RunID,
				"report":   path,
				"findings": result.Scan.Total(),
			}).Info("Security analysis completed")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConsolidateCmd(opts *options) *cobra.Command {
	var analysisFile, findingsFile string

	cmd := &cobra.Command{
		Use:   "consolidate [project] [results-dir]",
		Short: "Merge the latest analysis report with scanner findings into a final report",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := opts.config
			if len(args) > 0 {
				config.ProjectID = args[0]
			}
			if len(args) > 1 {
				config.ResultsDir = args[1]
			}
			if err := config.Validate(true); err != nil {
				return err
			}

			var err error
			if analysisFile == "" {
				if analysisFile, err = local.FindLatest(config.ResultsDir, local.AnalysisGlobs); err != nil {
					return err
				}
			}
			if findingsFile == "" {
				if findingsFile, err = local.FindLatest(config.ResultsDir, local.FindingsGlobs); err != nil {
					return err
				}
			}
			opts.logger.WithFields(logrus.Fields{
				"analysis_file": analysisFile,
				"findings_file": findingsFile,
			}).Info("Resolved consolidation inputs")

			ctx := cmd.Context()
			completer, err := providers.CreateCompleter(ctx, providerConfig(config, config.ConsolidationLimit), opts.logger)
			if err != nil {
				return err
			}

			result, err := engine.NewConsolidator(completer, config, opts.logger).Consolidate(ctx, analysisFile, findingsFile)
			if err != nil {
				return err
			}

			path, err := writeReport(config.OutputDir, report.FileName("final_security_report", result.GeneratedAt), func(w io.Writer) error {
				return report.WriteConsolidated(w, result)
			})
			if err != nil {
				return err
			}

			opts.logger.WithFields(logrus.Fields{
				"run_id": result.RunID,
				"report": path,
			}).Info("Consolidated report written")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisFile, "analysis-file", "", "Analysis report to consolidate (default: newest in the results dir)")
	cmd.Flags().StringVar(&findingsFile, "findings-file", "", "Prowler or Trivy JSON output (default: newest in the results dir)")
	cmd.Flags().StringVar(&opts.config.ResultsDir, "results-dir", opts.config.ResultsDir, "Directory searched for analysis and scanner results")

	return cmd
}

// writeOutput writes to path when set, otherwise to stdout
func writeOutput(stdout io.Writer, path string, render func(io.Writer) error) error {
	if path == "" {
		return render(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// writeReport writes a report named name into dir, creating dir when needed
func writeReport(dir, name string, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeOutput(nil, path, render); err != nil {
		return "", err
	}
	return path, nil
}
