// ABOUTME: Knowledge base selection, loading, and validation.
// ABOUTME: Tables come from the built-in set or from a YAML/JSON file supplied by the caller.

package knowledge

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/jfeddern/TerraSentry/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGCP   = "gcp"
	ProviderAWS   = "aws"
	ProviderAzure = "azure"
)

// Table is the active knowledge base for one run
type Table struct {
	Provider string                  `yaml:"provider" json:"provider"`
	Patterns []types.SecurityPattern `yaml:"patterns" json:"patterns"`
}

// InvalidPattern describes an entry whose regex does not compile
type InvalidPattern struct {
	Index   int
	Pattern types.SecurityPattern
	Err     error
}

func (p InvalidPattern) Error() string {
	name := p.Pattern.ID
	if name == "" {
		name = fmt.Sprintf("#%d", p.Index)
	}
	return fmt.Sprintf("pattern %s (%s): %v", name, p.Pattern.Category, p.Err)
}

// Providers lists the providers with a built-in table
func Providers() []string {
	names := make([]string, 0, len(builtinTables))
	for name := range builtinTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a copy of the built-in table for provider
func Builtin(provider string) (Table, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	patterns, ok := builtinTables[provider]
	if !ok {
		return Table{}, fmt.Errorf("unsupported provider: %s (supported: %s)", provider, strings.Join(Providers(), ", "))
	}

	return Table{
		Provider: provider,
		Patterns: append([]types.SecurityPattern(nil), patterns...),
	}, nil
}

// LoadFile reads a table from a YAML or JSON file. JSON is valid YAML, so a
// single decoder handles both.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read knowledge base file '%s': %w", path, err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("failed to parse knowledge base file '%s': %w", path, err)
	}

	if len(table.Patterns) == 0 {
		return Table{}, fmt.Errorf("knowledge base file '%s' contains no patterns", path)
	}

	for i := range table.Patterns {
		p := &table.Patterns[i]
		if strings.TrimSpace(p.Pattern) == "" {
			return Table{}, fmt.Errorf("pattern #%d (%s) has no regular expression", i, p.Category)
		}
		sev, ok := types.ParseSeverity(string(p.Severity))
		if !ok {
			return Table{}, fmt.Errorf("pattern #%d (%s) has unknown severity %q", i, p.Category, p.Severity)
		}
		p.Severity = sev
	}

	table.Provider = strings.ToLower(strings.TrimSpace(table.Provider))
	return table, nil
}

// Validate compiles every pattern the way the scanner does and reports the
// entries that fail. The scanner itself skips such entries silently.
func Validate(table Table) []InvalidPattern {
	var invalid []InvalidPattern
	for i, p := range table.Patterns {
		if _, err := regexp.Compile("(?im)" + p.Pattern); err != nil {
			invalid = append(invalid, InvalidPattern{Index: i, Pattern: p, Err: err})
		}
	}
	return invalid
}
