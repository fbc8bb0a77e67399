// ABOUTME: Amazon Bedrock completer that sends security prompts through the Converse API.
// ABOUTME: Shares AWS credential handling with the ECR source.

package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sirupsen/logrus"
)

// DefaultBedrockModel is used when no model is configured for the bedrock provider
const DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockCompleter implements the completer contract on top of Bedrock Converse
type BedrockCompleter struct {
	client      converseAPI
	model       string
	temperature float32
	maxTokens   int32
	logger      *logrus.Logger
}

// NewBedrockCompleter builds a Bedrock client for region
func NewBedrockCompleter(ctx context.Context, region, model string, temperature float64, maxTokens int, logger *logrus.Logger) (*BedrockCompleter, error) {
	cfg, err := LoadConfig(ctx, region, "", logger)
	if err != nil {
		return nil, err
	}
	return newBedrockCompleterWithClient(bedrockruntime.NewFromConfig(cfg), model, temperature, maxTokens, logger), nil
}

func newBedrockCompleterWithClient(client converseAPI, model string, temperature float64, maxTokens int, logger *logrus.Logger) *BedrockCompleter {
	if model == "" {
		model = DefaultBedrockModel
	}
	return &BedrockCompleter{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
		logger:      logger,
	}
}

func (b *BedrockCompleter) Name() string {
	return "aws-bedrock"
}

// Complete sends prompt as a single user turn and returns the concatenated text blocks
func (b *BedrockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	logger := b.logger.WithFields(logrus.Fields{
		"model":         b.model,
		"prompt_length": len(prompt),
	})
	logger.Debug("Sending prompt to Bedrock")

	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			Temperature: aws.Float32(b.temperature),
			MaxTokens:   aws.Int32(b.maxTokens),
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock returned no message output")
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("bedrock returned an empty response")
	}

	logger.WithField("stop_reason", string(out.StopReason)).Debug("Bedrock response received")
	return sb.String(), nil
}
