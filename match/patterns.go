package match

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PatternRule maps location tokens to the route set known to serve them.
// Matching is case-insensitive substring containment over the alert's
// location and free text.
type PatternRule struct {
	Tokens []string `yaml:"tokens" validate:"min=1"`
	Routes []string `yaml:"routes" validate:"min=1"`
}

// PatternTable is the versioned token→routes table. It is data, not code,
// so thresholds and mappings can be tuned without touching matching logic.
type PatternTable struct {
	Version int           `yaml:"version"`
	Rules   []PatternRule `yaml:"rules"`
}

//go:embed patterns.yml
var defaultPatternsYAML []byte

// LoadPatterns reads a pattern table from path, or the embedded default
// table when path is empty.
func LoadPatterns(path string) (PatternTable, error) {
	data := defaultPatternsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return PatternTable{}, fmt.Errorf("read pattern table: %w", err)
		}
		data = b
	}
	var table PatternTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return PatternTable{}, fmt.Errorf("parse pattern table: %w", err)
	}
	return table, nil
}
