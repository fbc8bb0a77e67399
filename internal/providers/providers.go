// ABOUTME: Provider configuration and names for document, image, and LLM backends.
// ABOUTME: The interfaces themselves live in the engine package, which consumes them.

package providers

import "errors"

// LLM backend names accepted by CreateCompleter
const (
	LLMGemini  = "gemini"
	LLMBedrock = "bedrock"
	LLMMock    = "mock"
)

// ErrImageSourceNotConfigured means no registry was configured; image lookups are skipped
var ErrImageSourceNotConfigured = errors.New("no image source configured")

// ProviderConfig holds configuration for creating providers
type ProviderConfig struct {
	TerraformDir string
	Extensions   []string
	Recursive    bool

	LLMProvider    string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	APIKey         string

	AWSRegion    string
	ECRAccountID string
	ECRRegion    string

	MockMode bool // Enable mock providers for local testing
}
