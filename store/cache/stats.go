package cache

// Stats is a read-only snapshot of the engine's aggregate state.
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	TotalSize    int64   `json:"total_size_bytes"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`

	// ByCategory holds per-category hit/miss counters. Empty when metrics
	// are disabled.
	ByCategory map[Category]CategoryStats `json:"by_category,omitempty"`
}

// CategoryStats holds hit/miss counters for one category.
type CategoryStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// MemoryUsage describes memory-tier pressure against the configured budget.
type MemoryUsage struct {
	Used       int64   `json:"used_bytes"`
	Limit      int64   `json:"limit_bytes"`
	Percentage float64 `json:"percentage"`
	Available  int64   `json:"available_bytes"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
