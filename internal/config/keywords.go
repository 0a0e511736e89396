package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/decimal-labs/leakwatch/internal/common"
)

// KeywordList is the contents of a generic-sensitive keywords file. The file
// may be YAML or JSON, either a mapping with a terms key or a bare list.
type KeywordList struct {
	Terms []string `yaml:"terms"`
	// ReplaceDefaults drops the built-in keyword list.
	ReplaceDefaults bool `yaml:"replace_defaults"`
}

// LoadKeywords reads a keywords file from path.
func LoadKeywords(path string) (*KeywordList, error) {
	data, err := os.ReadFile(ExpandPath(path)) //nolint:gosec // path is operator configured
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return ParseKeywords(data)
}

// ParseKeywords decodes a keywords document. Blank and duplicate terms are
// dropped.
func ParseKeywords(data []byte) (*KeywordList, error) {
	var list KeywordList
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '-') {
		if err := yaml.Unmarshal(trimmed, &list.Terms); err != nil {
			return nil, fmt.Errorf("%w: keywords file: %w", common.ErrInvalidConfig, err)
		}
	} else if err := yaml.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: keywords file: %w", common.ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(list.Terms))
	terms := list.Terms[:0]
	for _, t := range list.Terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}
	list.Terms = terms
	return &list, nil
}
