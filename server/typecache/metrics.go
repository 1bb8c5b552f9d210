package typecache

import (
	"sync"
	"time"
)

// Metrics is a read-only snapshot of per-query-kind counters. These are
// distinct from the engine's per-category statistics: the engine counts
// generic cache traffic, this counts domain queries.
type Metrics struct {
	TypeInfo     QueryMetrics `json:"type_info"`
	EnhancedType QueryMetrics `json:"enhanced_type"`
	PropertyPath QueryMetrics `json:"property_path"`
	ChoiceType   QueryMetrics `json:"choice_type"`
	Validation   QueryMetrics `json:"validation"`
}

// QueryMetrics holds hit/miss counts and running average latencies for one
// query kind.
type QueryMetrics struct {
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	AvgHitLatency  time.Duration `json:"avg_hit_latency_ns"`
	AvgMissLatency time.Duration `json:"avg_miss_latency_ns"`
}

type queryCounter struct {
	hits      int64
	misses    int64
	hitTotal  time.Duration
	missTotal time.Duration
}

func (q *queryCounter) snapshot() QueryMetrics {
	m := QueryMetrics{Hits: q.hits, Misses: q.misses}
	if q.hits > 0 {
		m.AvgHitLatency = q.hitTotal / time.Duration(q.hits)
	}
	if q.misses > 0 {
		m.AvgMissLatency = q.missTotal / time.Duration(q.misses)
	}
	return m
}

// metricsCollector accumulates counters for all query kinds.
type metricsCollector struct {
	mu           sync.Mutex
	typeInfo     queryCounter
	enhancedType queryCounter
	propertyPath queryCounter
	choiceType   queryCounter
	validation   queryCounter
}

func (c *metricsCollector) recordHit(q *queryCounter, elapsed time.Duration) {
	c.mu.Lock()
	q.hits++
	q.hitTotal += elapsed
	c.mu.Unlock()
}

func (c *metricsCollector) recordMiss(q *queryCounter, elapsed time.Duration) {
	c.mu.Lock()
	q.misses++
	q.missTotal += elapsed
	c.mu.Unlock()
}

func (c *metricsCollector) snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		TypeInfo:     c.typeInfo.snapshot(),
		EnhancedType: c.enhancedType.snapshot(),
		PropertyPath: c.propertyPath.snapshot(),
		ChoiceType:   c.choiceType.snapshot(),
		Validation:   c.validation.snapshot(),
	}
}
