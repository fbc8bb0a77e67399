// ABOUTME: Tests for the Bedrock completer.
// ABOUTME: Uses a fake Converse client to check request building and reply text extraction.

package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	output *bedrockruntime.ConverseOutput
	err    error
	input  *bedrockruntime.ConverseInput
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.output, f.err
}

func textOutput(parts ...string) *bedrockruntime.ConverseOutput {
	var blocks []brtypes.ContentBlock
	for _, p := range parts {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: p})
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: blocks,
		}},
		StopReason: brtypes.StopReasonEndTurn,
	}
}

func TestBedrockComplete(t *testing.T) {
	fake := &fakeConverse{output: textOutput("## Executive Summary\n", "Two critical issues.")}
	completer := newBedrockCompleterWithClient(fake, "", 0.1, 8000, testLogger())

	out, err := completer.Complete(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "## Executive Summary\nTwo critical issues.", out)
	assert.Equal(t, "aws-bedrock", completer.Name())

	assert.Equal(t, DefaultBedrockModel, aws.ToString(fake.input.ModelId))
	require.Len(t, fake.input.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, fake.input.Messages[0].Role)
	assert.Equal(t, int32(8000), aws.ToInt32(fake.input.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.1, aws.ToFloat32(fake.input.InferenceConfig.Temperature), 0.0001)
}

func TestBedrockCompleteErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeConverse
		want string
	}{
		{name: "api error", fake: &fakeConverse{err: errors.New("ThrottlingException")}, want: "ThrottlingException"},
		{name: "empty text", fake: &fakeConverse{output: textOutput()}, want: "empty response"},
		{name: "no message", fake: &fakeConverse{output: &bedrockruntime.ConverseOutput{}}, want: "no message output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := newBedrockCompleterWithClient(tt.fake, "custom-model", 0.1, 100, testLogger())
			_, err := completer.Complete(context.Background(), "prompt")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
