package pricing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps model names to token costs. Unknown models fall back to
// DefaultCost so a newly launched provider model never blocks job creation.
type Table struct {
	costs       map[string]int64
	defaultCost int64
}

// Config is the YAML shape of a pricing file.
type Config struct {
	ModelCosts  map[string]int64 `yaml:"model_costs"`
	DefaultCost int64            `yaml:"default_cost"`
}

// defaultConfig is the built-in price list, used when no pricing file is
// configured.
var defaultConfig = Config{
	DefaultCost: 10,
	ModelCosts: map[string]int64{
		// Video models
		"seedance-2.0":      0,
		"kling-3.0":         27,
		"kling-2.6-motion":  8,
		"kling-2.6":         65,
		"seedance-1.5-pro":  9,
		"seedance-1.0-pro":  21,
		"wan-2.6":           80,
		"wan-animate":       7,
		"grok-imagine":      6,
		"hailuo-02":         7,
		"sora-2":            30,
		"sora-2-pro":        100,
		"veo-3.1":           24,
		"veo-3.1-fast":      24,

		// Image models
		"nano-banana":       5,
		"nano-banana-2":     5,
		"nano-banana-pro":   10,
		"seedream-5.0-lite": 5,
		"seedream-4.5":      5,
		"gpt-image-1.5":     2,
		"gpt-4o-image":      4,
		"4o-image":          4,
		"z-image":           2,
		"flux-2":            6,
	},
}

// NewTable builds a Table from a Config. Model names are matched
// case-insensitively.
func NewTable(cfg Config) (*Table, error) {
	if cfg.DefaultCost < 0 {
		return nil, fmt.Errorf("default_cost must be >= 0, got %d", cfg.DefaultCost)
	}
	costs := make(map[string]int64, len(cfg.ModelCosts))
	for model, cost := range cfg.ModelCosts {
		if cost < 0 {
			return nil, fmt.Errorf("model %q: cost must be >= 0, got %d", model, cost)
		}
		costs[strings.ToLower(model)] = cost
	}
	return &Table{costs: costs, defaultCost: cfg.DefaultCost}, nil
}

// Default returns the built-in price table.
func Default() *Table {
	t, err := NewTable(defaultConfig)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a pricing YAML file. Models absent from the file inherit the
// file's default_cost.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse pricing file %q: %w", path, err)
	}
	return NewTable(cfg)
}

// Cost returns the token cost for a model, falling back to the default cost
// for unknown models.
func (t *Table) Cost(model string) int64 {
	if cost, ok := t.costs[strings.ToLower(model)]; ok {
		return cost
	}
	return t.defaultCost
}

// Known reports whether the model has an explicit price.
func (t *Table) Known(model string) bool {
	_, ok := t.costs[strings.ToLower(model)]
	return ok
}
