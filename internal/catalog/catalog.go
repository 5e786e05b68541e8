// Package catalog loads the fixed list of monitored topics.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pders01/research-collector/internal/models"
	"go.yaml.in/yaml/v3"
)

//go:embed default_topics.yaml
var defaultTopics []byte

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid catalog")

type file struct {
	Topics []models.Topic `yaml:"topics"`
}

// Default returns the built-in catalog
func Default() []models.Topic {
	topics, err := Parse(defaultTopics)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return topics
}

// DefaultYAML returns the raw built-in catalog, used by init
func DefaultYAML() []byte {
	out := make([]byte, len(defaultTopics))
	copy(out, defaultTopics)
	return out
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) ([]models.Topic, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	topics, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return topics, nil
}

// Parse decodes and validates YAML catalog data
func Parse(data []byte) ([]models.Topic, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i := range f.Topics {
		if f.Topics[i].Importance == "" {
			f.Topics[i].Importance = models.ImportanceMedium
		}
		if f.Topics[i].Name == "" {
			f.Topics[i].Name = f.Topics[i].ID
		}
	}
	if err := Validate(f.Topics); err != nil {
		return nil, err
	}
	return f.Topics, nil
}

// Validate checks ids are present and unique, tiers are known and queries
// are non-blank.
func Validate(topics []models.Topic) error {
	if len(topics) == 0 {
		return fmt.Errorf("%w: no topics", ErrInvalid)
	}
	seen := make(map[string]bool, len(topics))
	for i, t := range topics {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: topic %d has no id", ErrInvalid, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate topic id %q", ErrInvalid, t.ID)
		}
		seen[t.ID] = true

		if !t.Importance.Valid() {
			return fmt.Errorf("%w: topic %q has unknown importance %q", ErrInvalid, t.ID, t.Importance)
		}
		for _, q := range t.Queries {
			if strings.TrimSpace(q) == "" {
				return fmt.Errorf("%w: topic %q has a blank query", ErrInvalid, t.ID)
			}
		}
	}
	return nil
}

// Find returns the topic with id
func Find(topics []models.Topic, id string) (models.Topic, bool) {
	for _, t := range topics {
		if t.ID == id {
			return t, true
		}
	}
	return models.Topic{}, false
}
