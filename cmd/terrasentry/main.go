// ABOUTME: Entry point for the TerraSentry Terraform security scanner.
// ABOUTME: Builds the cobra command tree, resolves configuration from flags and environment, and sets up logging.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jfeddern/TerraSentry/internal/engine"
	"github.com/jfeddern/TerraSentry/internal/knowledge"
	"github.com/jfeddern/TerraSentry/internal/providers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// options is shared by every subcommand
type options struct {
	config    *engine.Config
	logFormat string
	debug     bool
	logger    *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{config: engine.DefaultConfig()}

	root := &cobra.Command{
		Use:          "terrasentry",
		Short:        "Scan Terraform for security misconfigurations and review them with an LLM",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(opts.config, os.Getenv); err != nil {
				return err
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.debug || os.Getenv("LOG_LEVEL") == "debug")
			return nil
		},
	}

	c := opts.config
	flags := root.PersistentFlags()
	flags.StringVar(&c.ProjectID, "project", c.ProjectID, "Project identifier used in reports")
	flags.StringVar(&c.CloudProvider, "provider", c.CloudProvider, "Built-in knowledge base: gcp, aws or azure")
	flags.StringVar(&c.KnowledgeBaseFile, "kb-file", c.KnowledgeBaseFile, "YAML or JSON knowledge base file (overrides --provider)")
	flags.StringSliceVar(&c.Extensions, "extensions", c.Extensions, "File extensions treated as Terraform documents")
	flags.BoolVar(&c.Recursive, "recursive", c.Recursive, "Descend into subdirectories")
	flags.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "Directory reports are written to")
	flags.StringVar(&c.LLMProvider, "llm-provider", c.LLMProvider, "LLM backend: gemini, bedrock or mock")
	flags.StringVar(&c.LLMModel, "llm-model", c.LLMModel, "LLM model identifier")
	flags.Float64Var(&c.LLMTemperature, "temperature", c.LLMTemperature, "Sampling temperature")
	flags.IntVar(&c.LLMMaxTokens, "max-tokens", c.LLMMaxTokens, "Maximum output tokens for analysis")
	flags.IntVar(&c.ConsolidationLimit, "consolidation-max-tokens", c.ConsolidationLimit, "Maximum output tokens for consolidation")
	flags.StringVar(&c.AWSRegion, "aws-region", c.AWSRegion, "AWS region for Bedrock")
	flags.StringVar(&c.ECRAccountID, "ecr-account-id", c.ECRAccountID, "AWS account ID for the ECR registry")
	flags.StringVar(&c.ECRRegion, "ecr-region", c.ECRRegion, "AWS region for the ECR registry")
	flags.BoolVar(&c.MockMode, "mock", c.MockMode, "Enable mock mode for local testing (no external API calls)")
	flags.StringVar(&opts.logFormat, "log-format", "json", "Log format: json or text")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newScanCmd(opts),
		newPatternsCmd(opts),
		newAnalyzeCmd(opts),
		newConsolidateCmd(opts),
		newServeCmd(opts),
	)

	return root
}

func newLogger(out io.Writer, format string, debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// applyEnv overrides config with environment variables when they are set
func applyEnv(config *engine.Config, getenv func(string) string) error {
	var errs []error

	strVars := map[string]*string{
		"PROJECT_ID":          &config.ProjectID,
		"TERRAFORM_DIR":       &config.TerraformDir,
		"RESULTS_DIR":         &config.ResultsDir,
		"OUTPUT_DIR":          &config.OutputDir,
		"CLOUD_PROVIDER":      &config.CloudProvider,
		"KNOWLEDGE_BASE_FILE": &config.KnowledgeBaseFile,
		"LLM_PROVIDER":        &config.LLMProvider,
		"LLM_MODEL":           &config.LLMModel,
		"AWS_REGION":          &config.AWSRegion,
		"AWS_ECR_ACCOUNT_ID":  &config.ECRAccountID,
		"AWS_ECR_REGION":      &config.ECRRegion,
	}
	for name, target := range strVars {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*target = v
		}
	}

	for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			config.APIKey = v
		}
	}

	if v := getenv("LLM_TEMPERATURE"); v != "" {
		temperature, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid LLM_TEMPERATURE environment variable: %s", v))
		} else {
			config.LLMTemperature = temperature
		}
	}
	if v := getenv("LLM_MAX_TOKENS"); v != "" {
		tokens, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid LLM_MAX_TOKENS environment variable: %s", v))
		} else {
			config.LLMMaxTokens = tokens
		}
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid PORT environment variable: %s", v))
		} else {
			config.Port = port
		}
	}
	if v := getenv("SCAN_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid SCAN_INTERVAL environment variable: %s", v))
		} else {
			config.ScanInterval = interval
		}
	}
	if v := getenv("MOCK_MODE"); v == "true" || v == "1" {
		config.MockMode = true
	}

	return errors.Join(errs...)
}

// loadTable returns the knowledge base file when configured, otherwise the built-in table
func loadTable(config *engine.Config, logger *logrus.Logger) (knowledge.Table, error) {
	var (
		table knowledge.Table
		err   error
	)
	if config.KnowledgeBaseFile != "" {
		table, err = knowledge.LoadFile(config.KnowledgeBaseFile)
	} else {
		table, err = knowledge.Builtin(config.CloudProvider)
	}
	if err != nil {
		return knowledge.Table{}, err
	}

	for _, p := range knowledge.Validate(table) {
		logger.WithError(p.Err).WithFields(logrus.Fields{
			"pattern_index": p.Index,
			"category":      p.Pattern.Category,
		}).Warn("Knowledge base pattern does not compile and will be skipped")
	}

	logger.WithFields(logrus.Fields{
		"provider": table.Provider,
		"patterns": len(table.Patterns),
	}).Debug("Loaded knowledge base")

	return table, nil
}

func providerConfig(config *engine.Config, maxTokens int) *providers.ProviderConfig {
	return &providers.ProviderConfig{
		TerraformDir:   config.TerraformDir,
		Extensions:     config.Extensions,
		Recursive:      config.Recursive,
		LLMProvider:    config.LLMProvider,
		LLMModel:       config.LLMModel,
		LLMTemperature: config.LLMTemperature,
		LLMMaxTokens:   maxTokens,
		APIKey:         config.APIKey,
		AWSRegion:      config.AWSRegion,
		ECRAccountID:   config.ECRAccountID,
		ECRRegion:      config.ECRRegion,
		MockMode:       config.MockMode,
	}
}
