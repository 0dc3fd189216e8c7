package crisis

const (
	defaultCategoryTolerance = 1
	defaultCoreTolerance     = 2
)

// Config holds detector initialization parameters. Tolerances are pointers
// so that an explicit 0 (exact matching only) survives Merge.
type Config struct {
	CatalogPath       string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`
	CategoryTolerance *int   `json:"category_tolerance,omitempty" yaml:"category_tolerance,omitempty"`
	CoreTolerance     *int   `json:"core_tolerance,omitempty" yaml:"core_tolerance,omitempty"`
}

// DefaultConfig returns the embedded catalog with per-category tolerance 1
// and core-signal tolerance 2.
func DefaultConfig() Config {
	category, core := defaultCategoryTolerance, defaultCoreTolerance
	return Config{
		CategoryTolerance: &category,
		CoreTolerance:     &core,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.CatalogPath != "" {
		c.CatalogPath = source.CatalogPath
	}
	if source.CategoryTolerance != nil {
		v := *source.CategoryTolerance
		c.CategoryTolerance = &v
	}
	if source.CoreTolerance != nil {
		v := *source.CoreTolerance
		c.CoreTolerance = &v
	}
}

// New creates a Detector from configuration. An empty CatalogPath selects
// the embedded catalog.
func New(cfg *Config) (*Detector, error) {
	var (
		catalog *Catalog
		err     error
	)
	if cfg.CatalogPath != "" {
		catalog, err = LoadCatalog(cfg.CatalogPath)
	} else {
		catalog, err = DefaultCatalog()
	}
	if err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.CategoryTolerance != nil {
		opts = append(opts, WithCategoryTolerance(*cfg.CategoryTolerance))
	}
	if cfg.CoreTolerance != nil {
		opts = append(opts, WithCoreTolerance(*cfg.CoreTolerance))
	}

	return NewDetector(catalog, opts...), nil
}
