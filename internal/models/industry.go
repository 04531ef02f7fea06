package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultIndustries is the built-in closed vocabulary of industry labels
var DefaultIndustries = []string{
	"Banking",
	"Insurance",
	"Mining",
	"Energy",
	"Utilities",
	"Real Estate",
	"Technology",
	"Telecommunications",
	"Healthcare",
	"Consumer Staples",
	"Consumer Discretionary",
	"Industrials",
	"Materials",
	"Transportation",
	"Agriculture",
	"Media & Entertainment",
}

// Vocabulary is a closed set of industry labels matched case-insensitively
type Vocabulary struct {
	labels []string
	index  map[string]string
}

// NewVocabulary builds a vocabulary, ignoring blank and duplicate labels
func NewVocabulary(labels []string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]string, len(labels))}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		key := strings.ToLower(label)
		if label == "" {
			continue
		}
		if _, exists := v.index[key]; exists {
			continue
		}
		v.index[key] = label
		v.labels = append(v.labels, label)
	}
	return v
}

// Labels returns the canonical labels in declaration order
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Canonical returns the canonical spelling of label and whether it is in the vocabulary
func (v *Vocabulary) Canonical(label string) (string, bool) {
	canonical, ok := v.index[strings.ToLower(strings.TrimSpace(label))]
	return canonical, ok
}

type vocabularyFile struct {
	Industries []string `yaml:"industries"`
}

// LoadVocabulary reads an industries YAML file. An empty path yields DefaultIndustries.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return NewVocabulary(DefaultIndustries), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}

	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	vocab := NewVocabulary(file.Industries)
	if len(vocab.labels) == 0 {
		return nil, fmt.Errorf("vocabulary file %s defines no industries", path)
	}
	return vocab, nil
}
