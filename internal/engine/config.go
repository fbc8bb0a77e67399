// ABOUTME: Configuration shared by every TerraSentry command.
// ABOUTME: Holds defaults for the scanner, LLM backends and ECR lookups, and validates combinations.

package engine

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for every TerraSentry command
type Config struct {
	ProjectID         string
	TerraformDir      string
	ResultsDir        string
	OutputDir         string
	CloudProvider     string // gcp, aws, azure
	KnowledgeBaseFile string
	Extensions        []string
	Recursive         bool

	LLMProvider        string // gemini, bedrock, mock
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	ConsolidationLimit int // max output tokens for the consolidation call
	APIKey             string

	AWSRegion    string
	ECRAccountID string
	ECRRegion    string

	Port         int
	ScanInterval time.Duration
	MockMode     bool // Enable mock providers for local testing
}

// DefaultConfig returns the defaults used when no flag or environment variable is set
func DefaultConfig() *Config {
	return &Config{
		TerraformDir:       ".",
		ResultsDir:         ".",
		OutputDir:          ".",
		CloudProvider:      "gcp",
		Extensions:         []string{".tf", ".txt"},
		Recursive:          true,
		LLMProvider:        "gemini",
		LLMModel:           "gemini-2.0-flash",
		LLMTemperature:     0.1,
		LLMMaxTokens:       32000,
		ConsolidationLimit: 8000,
		Port:               9090,
		ScanInterval:       5 * time.Minute,
	}
}

// Validate checks the configuration. requireLLM is set by commands that call a model.
func (c *Config) Validate(requireLLM bool) error {
	var errs []error

	if requireLLM && !c.MockMode {
		switch c.LLMProvider {
		case "gemini":
			if c.APIKey == "" {
				errs = append(errs, errors.New("gemini API key is required (unless using mock mode)"))
			}
		case "bedrock":
			if c.AWSRegion == "" {
				errs = append(errs, errors.New("AWS region is required for the bedrock provider"))
			}
		case "mock":
		default:
			errs = append(errs, fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider))
		}
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.LLMTemperature))
	}
	if c.LLMMaxTokens <= 0 || c.ConsolidationLimit <= 0 {
		errs = append(errs, errors.New("max tokens must be positive"))
	}
	if c.ECRAccountID != "" && c.ECRRegion == "" {
		errs = append(errs, errors.New("ECR region is required when an ECR account ID is set"))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan interval must be positive, got %s", c.ScanInterval))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}

	return errors.Join(errs...)
}
