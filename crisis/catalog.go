package crisis

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/lifeline/textnorm"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Category is a named, ordered set of trigger phrases.
type Category struct {
	Name    string   `yaml:"name" json:"name"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// Catalog holds every crisis category plus the short cross-category core
// signals that are re-tested with a looser tolerance. A Catalog is read-only
// once loaded.
type Catalog struct {
	Categories  []Category `yaml:"categories" json:"categories"`
	CoreSignals []string   `yaml:"core_signals" json:"core_signals"`
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
})

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every category is named, non-empty, and that no
// phrase normalizes to the empty string.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalidCatalog, i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, cat.Name)
		}
		seen[cat.Name] = true

		if len(cat.Phrases) == 0 {
			return fmt.Errorf("%w: category %q has no phrases", ErrInvalidCatalog, cat.Name)
		}
		for _, p := range cat.Phrases {
			if textnorm.Normalize(p) == "" {
				return fmt.Errorf("%w: category %q has a blank phrase", ErrInvalidCatalog, cat.Name)
			}
		}
	}

	for _, p := range c.CoreSignals {
		if textnorm.Normalize(p) == "" {
			return fmt.Errorf("%w: blank core signal", ErrInvalidCatalog)
		}
	}

	return nil
}

// Names returns the category names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}
