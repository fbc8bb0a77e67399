// ABOUTME: Mock LLM completer for local runs and tests.
// ABOUTME: Returns canned analysis text and records every prompt it receives.

package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// MockCompleter is a deterministic stand-in for an LLM. It records every prompt it sees.
type MockCompleter struct {
	logger *logrus.Logger

	mu      sync.Mutex
	prompts []string
	// Err, when set, is returned by every call
	Err error
}

func NewMockCompleter(logger *logrus.Logger) *MockCompleter {
	return &MockCompleter{logger: logger}
}

func (m *MockCompleter) Name() string {
	return "mock-llm"
}

// Complete echoes the first heading of the prompt and flags a few well-known risky values
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Mock Assessment\n\nReviewed %d characters of input.\n", len(prompt))

	for _, marker := range []string{"allUsers", "0.0.0.0/0", "roles/owner", "password"} {
		if strings.Contains(prompt, marker) {
			fmt.Fprintf(&sb, "- Risky value observed: `%s`\n", marker)
		}
	}

	m.logger.WithField("prompt_length", len(prompt)).Debug("Mock completion generated")
	return sb.String(), nil
}

// Prompts returns a copy of every prompt received so far, in call order
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
