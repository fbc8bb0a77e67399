// ABOUTME: Google Gemini completer used for Terraform security analysis and consolidation.
// ABOUTME: Wraps the genai SDK with the configured model, temperature, and output token limit.

package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultModel matches the model the analysis prompts were tuned against
const DefaultModel = "gemini-2.0-flash"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Completer sends single-turn prompts to Gemini
type Completer struct {
	models      generator
	model       string
	temperature float32
	maxTokens   int32
	logger      *logrus.Logger
}

// NewCompleter creates a Gemini API client authenticated with apiKey
func NewCompleter(ctx context.Context, apiKey, model string, temperature float64, maxTokens int, logger *logrus.Logger) (*Completer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newCompleter(client.Models, model, temperature, maxTokens, logger), nil
}

func newCompleter(models generator, model string, temperature float64, maxTokens int, logger *logrus.Logger) *Completer {
	if model == "" {
		model = DefaultModel
	}
	return &Completer{
		models:      models,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
		logger:      logger,
	}
}

func (c *Completer) Name() string {
	return "gemini"
}

// Complete returns the model's text answer. An empty answer is an error.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"model":         c.model,
		"prompt_length": len(prompt),
	})
	logger.Debug("Sending prompt to Gemini")

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}

	logger.WithField("response_length", len(text)).Debug("Gemini response received")
	return text, nil
}
