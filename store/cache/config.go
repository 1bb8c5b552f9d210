package cache

import "time"

// Config holds the process-wide cache configuration. It is immutable after
// the engine is constructed.
type Config struct {
	// MemoryBudget is the approximate memory ceiling in bytes for the
	// memory tier. Entry sizes are estimated from serialized length, not
	// exact byte accounting.
	MemoryBudget int64
	// DurableBudget is the durable tier budget in bytes. Informational
	// only; the durable tier is not evicted for size.
	DurableBudget int64
	// DefaultTTL applies to categories without an override.
	DefaultTTL time.Duration
	// CleanupInterval is the period of the background cleanup pass.
	CleanupInterval time.Duration
	// CategoryTTL overrides the default TTL per category.
	CategoryTTL map[Category]time.Duration
	// DurableEnabled turns the durable tier on.
	DurableEnabled bool
	// MetricsEnabled turns per-category hit/miss accounting on.
	MetricsEnabled bool
	// DurableCategories lists the categories written through to the
	// durable tier. Empty means DefaultDurableCategories.
	DurableCategories []Category
}

// DefaultDurableCategories are the categories worth surviving a restart:
// long-lived and expensive to recompute from the type model.
var DefaultDurableCategories = []Category{
	CategoryTypeInfo,
	CategoryPropertyPaths,
	CategoryChoiceTypes,
}

// avgEntrySize is the coarse per-entry heuristic used to derive the memory
// tier's entry capacity from the byte budget.
const avgEntrySize = 2048

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryBudget:    50 * 1024 * 1024,
		DurableBudget:   200 * 1024 * 1024,
		DefaultTTL:      30 * time.Minute,
		CleanupInterval: time.Minute,
		CategoryTTL: map[Category]time.Duration{
			CategoryTypeInfo:      time.Hour,
			CategoryPropertyPaths: time.Hour,
			CategoryChoiceTypes:   time.Hour,
			CategoryCompletions:   5 * time.Minute,
			CategoryValidations:   10 * time.Minute,
			CategoryHoverInfo:     10 * time.Minute,
			CategoryDefinitions:   30 * time.Minute,
			CategoryReferences:    5 * time.Minute,
		},
		DurableEnabled: false,
		MetricsEnabled: true,
	}
}

// TTLFor returns the TTL for a category, falling back to the default.
func (c *Config) TTLFor(category Category) time.Duration {
	if ttl, ok := c.CategoryTTL[category]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return 30 * time.Minute
}

// durableEligible reports whether a category is written through to the
// durable tier.
func (c *Config) durableEligible(category Category) bool {
	cats := c.DurableCategories
	if len(cats) == 0 {
		cats = DefaultDurableCategories
	}
	for _, dc := range cats {
		if dc == category {
			return true
		}
	}
	return false
}

// memoryCapacity derives the memory tier's entry capacity from the budget.
func (c *Config) memoryCapacity() int {
	if c.MemoryBudget <= 0 {
		return 1000
	}
	capacity := int(c.MemoryBudget / avgEntrySize)
	if capacity < 16 {
		capacity = 16
	}
	return capacity
}
