// ABOUTME: Factory for document sources, image sources, and LLM completers.
// ABOUTME: Mock mode takes precedence over every real backend.

package providers

import (
	"context"
	"fmt"

	"github.com/jfeddern/TerraSentry/internal/engine"
	"github.com/jfeddern/TerraSentry/internal/providers/aws"
	"github.com/jfeddern/TerraSentry/internal/providers/gemini"
	"github.com/jfeddern/TerraSentry/internal/providers/local"
	"github.com/jfeddern/TerraSentry/internal/providers/mock"
	"github.com/sirupsen/logrus"
)

// CreateDocumentSource creates the Terraform document source
func CreateDocumentSource(config *ProviderConfig, logger *logrus.Logger) (engine.DocumentSource, error) {
	if config.MockMode {
		logger.Info("Using mock Terraform source for testing")
		return mock.NewMockTerraformSource(logger), nil
	}

	if config.TerraformDir == "" {
		return nil, fmt.Errorf("terraform directory is required")
	}
	return local.NewLocalSource(config.TerraformDir, config.Extensions, config.Recursive, logger), nil
}

// CreateImageSource creates the registry source for images referenced by Terraform.
// It returns ErrImageSourceNotConfigured when no registry is set.
func CreateImageSource(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (engine.ImageSource, error) {
	if config.MockMode {
		logger.Info("Using mock image source for testing")
		return mock.NewMockECRSource(logger), nil
	}

	if config.ECRAccountID != "" && config.ECRRegion != "" {
		return aws.NewECRSource(ctx, config.ECRAccountID, config.ECRRegion, logger)
	}

	return nil, ErrImageSourceNotConfigured
}

// CreateCompleter creates the LLM backend named by config.LLMProvider
func CreateCompleter(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (engine.Completer, error) {
	if config.MockMode || config.LLMProvider == LLMMock {
		logger.Info("Using mock LLM for testing")
		return mock.NewMockCompleter(logger), nil
	}

	switch config.LLMProvider {
	case LLMGemini:
		return gemini.NewCompleter(ctx, config.APIKey, config.LLMModel, config.LLMTemperature, config.LLMMaxTokens, logger)
	case LLMBedrock:
		model := config.LLMModel
		if model == gemini.DefaultModel {
			model = aws.DefaultBedrockModel
		}
		return aws.NewBedrockCompleter(ctx, config.AWSRegion, model, config.LLMTemperature, config.LLMMaxTokens, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLMProvider)
	}
}
