// Package cache implements the multi-tier type-resolution cache used by the
// language server: a bounded in-memory LRU tier in front of an optional
// durable tier, with category-scoped TTLs, dependency-based invalidation and
// aggregate statistics.
package cache

import (
	"time"
)

// Tier identifies the backing store holding an entry.
type Tier string

const (
	TierMemory  Tier = "memory"
	TierDurable Tier = "durable"
	// TierRemote is reserved for a future shared cache. Declared for the
	// record format, not implemented.
	TierRemote Tier = "remote"
)

// Category classifies cache entries. Each category has its own default TTL
// and durability policy.
type Category string

const (
	CategoryTypeInfo      Category = "type-info"
	CategoryPropertyPaths Category = "property-paths"
	CategoryChoiceTypes   Category = "choice-types"
	CategoryCompletions   Category = "completions"
	CategoryValidations   Category = "validations"
	CategoryHoverInfo     Category = "hover-info"
	CategoryDefinitions   Category = "definitions"
	CategoryReferences    Category = "references"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryTypeInfo,
	CategoryPropertyPaths,
	CategoryChoiceTypes,
	CategoryCompletions,
	CategoryValidations,
	CategoryHoverInfo,
	CategoryDefinitions,
	CategoryReferences,
}

// Entry is a cached value together with its lifecycle metadata. Values are
// JSON documents produced by the caller; the engine never inspects them.
type Entry struct {
	Data         []byte        `json:"data"`
	CreatedAt    time.Time     `json:"created_at"`
	AccessCount  int64         `json:"access_count"`
	TTL          time.Duration `json:"ttl"`
	Tier         Tier          `json:"tier"`
	Dependencies []string      `json:"dependencies,omitempty"`
	SizeEstimate int64         `json:"size_estimate"`
}

// Expired reports whether the entry's TTL has lapsed at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// clone returns an independent copy of the entry. Promotion between tiers
// must never share mutable state.
func (e *Entry) clone() *Entry {
	c := *e
	c.Data = append([]byte(nil), e.Data...)
	c.Dependencies = append([]string(nil), e.Dependencies...)
	return &c
}
