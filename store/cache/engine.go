package cache

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DurableStore is the contract for the durable tier: a key→entry store on
// stable storage. A (nil, nil) return from Get is a miss. Implementations
// live under store/durable.
type DurableStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// SetOptions carries the optional parameters of Engine.Set. A zero TTL falls
// back to the category default.
type SetOptions struct {
	TTL          time.Duration
	Dependencies []string
}

// Engine orchestrates the memory and durable tiers: read-through with
// promotion, write-through for durable-eligible categories, dependency and
// pattern invalidation, periodic cleanup and statistics.
//
// The engine is the only mutator of the memory tier and the dependency
// graph. Storage faults never propagate to callers; every fault degrades to
// a miss or a silent no-op.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	durable DurableStore

	mu       sync.Mutex
	memory   *lruStore
	deps     map[string]map[string]struct{}
	hits     int64
	misses   int64
	catStats map[Category]*CategoryStats

	cleanupBusy atomic.Bool
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// Option customizes engine construction.
type Option func(*Engine)

// WithDurable attaches a durable tier. It is consulted only when the config
// enables it.
func WithDurable(store DurableStore) Option {
	return func(e *Engine) { e.durable = store }
}

// WithLogger sets the logger used for swallowed storage faults.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Tests use this to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine and starts its background cleanup loop.
// Callers own the lifecycle and must call Close on shutdown.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		deps:     make(map[string]map[string]struct{}),
		catStats: make(map[Category]*CategoryStats),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.memory = newLRUStore(cfg.memoryCapacity())

	if cfg.CleanupInterval > 0 {
		e.wg.Add(1)
		go e.cleanupLoop()
	}
	return e
}

// Get returns the cached value for key. The memory tier is consulted first;
// on a miss, a valid durable entry is promoted into memory and returned as a
// hit. An expired entry counts as a miss and is removed together with its
// dependency row.
func (e *Engine) Get(ctx context.Context, key string, category Category) ([]byte, bool) {
	e.mu.Lock()
	if entry, ok := e.memory.get(key); ok {
		if !entry.Expired(e.now()) {
			data := append([]byte(nil), entry.Data...)
			e.recordHit(category)
			e.mu.Unlock()
			return data, true
		}
		e.removeKeyLocked(key)
	}
	e.mu.Unlock()

	if entry, ok := e.durableGet(ctx, key); ok {
		promoted := entry.clone()
		promoted.Tier = TierMemory
		e.mu.Lock()
		for _, evicted := range e.memory.set(key, promoted) {
			delete(e.deps, evicted)
		}
		e.setDepsLocked(key, promoted.Dependencies)
		e.recordHit(category)
		e.mu.Unlock()
		return append([]byte(nil), promoted.Data...), true
	}

	e.mu.Lock()
	e.recordMiss(category)
	e.mu.Unlock()
	return nil, false
}

// Set stores data under key. The write always lands in the memory tier and,
// for durable-eligible categories, in the durable tier as well. Dependency
// edges replace any prior edge set for the key. Set never fails observably:
// persistence errors are logged and swallowed.
func (e *Engine) Set(ctx context.Context, key string, data []byte, category Category, opts SetOptions) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = e.cfg.TTLFor(category)
	}
	entry := &Entry{
		Data:         append([]byte(nil), data...),
		CreatedAt:    e.now(),
		TTL:          ttl,
		Tier:         TierMemory,
		Dependencies: append([]string(nil), opts.Dependencies...),
		SizeEstimate: int64(len(data) + len(key)),
	}

	e.mu.Lock()
	for _, evicted := range e.memory.set(key, entry) {
		delete(e.deps, evicted)
	}
	e.setDepsLocked(key, entry.Dependencies)
	e.mu.Unlock()

	if e.durableOn() && e.cfg.durableEligible(category) {
		durable := entry.clone()
		durable.Tier = TierDurable
		if err := e.durable.Set(ctx, key, durable); err != nil {
			e.logger.Warn("durable cache write failed", "key", key, "error", err)
		}
	}
}

// Invalidate removes entries matching pattern from both tiers and clears
// their dependency rows. A pattern without a trailing "*" is an exact key;
// with one it matches by prefix. The count reflects entries confirmed
// removed from memory.
func (e *Engine) Invalidate(ctx context.Context, pattern string) int {
	if !strings.HasSuffix(pattern, "*") {
		return e.invalidateExact(ctx, pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	return e.invalidateMatching(ctx, func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// InvalidateRegexp removes every entry whose key matches re, from both
// tiers. It returns the count removed from memory.
func (e *Engine) InvalidateRegexp(ctx context.Context, re *regexp.Regexp) int {
	return e.invalidateMatching(ctx, re.MatchString)
}

// InvalidateByDependency removes every key whose dependency set contains
// dependencyID, including durable copies, and returns the count removed.
func (e *Engine) InvalidateByDependency(ctx context.Context, dependencyID string) int {
	e.mu.Lock()
	var keys []string
	for key, set := range e.deps {
		if _, ok := set[dependencyID]; ok {
			keys = append(keys, key)
		}
	}
	count := 0
	for _, key := range keys {
		if e.removeKeyLocked(key) {
			count++
		}
	}
	e.mu.Unlock()

	e.durableDelete(ctx, keys)
	return count
}

// Cleanup eagerly removes expired memory entries, then relieves memory
// pressure: when usage still exceeds 80% of the budget it evicts the
// least-used ~20% of remaining entries (ascending access count, oldest
// creation first). Overlapping passes are skipped.
func (e *Engine) Cleanup(ctx context.Context) {
	if !e.cleanupBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.cleanupBusy.Store(false)

	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var expired []string
	e.memory.forEach(func(key string, entry *Entry) {
		if entry.Expired(now) {
			expired = append(expired, key)
		}
	})
	for _, key := range expired {
		e.removeKeyLocked(key)
	}

	if e.cfg.MemoryBudget <= 0 {
		return
	}
	usage := float64(e.memory.size()) / float64(e.cfg.MemoryBudget)
	if usage <= 0.8 || e.memory.len() == 0 {
		return
	}

	type candidate struct {
		key     string
		access  int64
		created time.Time
	}
	candidates := make([]candidate, 0, e.memory.len())
	e.memory.forEach(func(key string, entry *Entry) {
		candidates = append(candidates, candidate{key, entry.AccessCount, entry.CreatedAt})
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].access != candidates[j].access {
			return candidates[i].access < candidates[j].access
		}
		return candidates[i].created.Before(candidates[j].created)
	})

	evict := len(candidates) / 5
	if evict == 0 {
		evict = 1
	}
	for _, c := range candidates[:evict] {
		e.removeKeyLocked(c.key)
	}
}

// Stats returns a read-only snapshot of aggregate counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		TotalEntries: e.memory.len(),
		TotalSize:    e.memory.size(),
		Hits:         e.hits,
		Misses:       e.misses,
		HitRate:      hitRate(e.hits, e.misses),
	}
	if e.cfg.MetricsEnabled {
		stats.ByCategory = make(map[Category]CategoryStats, len(e.catStats))
		for cat, cs := range e.catStats {
			stats.ByCategory[cat] = CategoryStats{
				Hits:    cs.Hits,
				Misses:  cs.Misses,
				HitRate: hitRate(cs.Hits, cs.Misses),
			}
		}
	}
	return stats
}

// MemoryUsage returns memory-tier pressure against the configured budget.
func (e *Engine) MemoryUsage() MemoryUsage {
	e.mu.Lock()
	used := e.memory.size()
	e.mu.Unlock()

	usage := MemoryUsage{Used: used, Limit: e.cfg.MemoryBudget}
	if usage.Limit > 0 {
		usage.Percentage = float64(used) / float64(usage.Limit) * 100
		if avail := usage.Limit - used; avail > 0 {
			usage.Available = avail
		}
	}
	return usage
}

// Close stops the cleanup loop and closes the durable tier. Safe to call
// more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		if e.durable != nil {
			err = e.durable.Close()
		}
	})
	return err
}

func (e *Engine) cleanupLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.Cleanup(context.Background())
		}
	}
}

func (e *Engine) durableOn() bool {
	return e.durable != nil && e.cfg.DurableEnabled
}

// durableGet reads the durable tier, applying the same expiry check as
// memory. Expired records are proactively deleted. All faults degrade to a
// miss.
func (e *Engine) durableGet(ctx context.Context, key string) (*Entry, bool) {
	if !e.durableOn() {
		return nil, false
	}
	entry, err := e.durable.Get(ctx, key)
	if err != nil {
		e.logger.Warn("durable cache read failed", "key", key, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if entry.Expired(e.now()) {
		if err := e.durable.Delete(ctx, key); err != nil {
			e.logger.Warn("durable cache delete failed", "key", key, "error", err)
		}
		return nil, false
	}
	return entry, true
}

func (e *Engine) durableDelete(ctx context.Context, keys []string) {
	if !e.durableOn() {
		return
	}
	for _, key := range keys {
		if err := e.durable.Delete(ctx, key); err != nil {
			e.logger.Warn("durable cache delete failed", "key", key, "error", err)
		}
	}
}

func (e *Engine) invalidateExact(ctx context.Context, key string) int {
	e.mu.Lock()
	removed := e.removeKeyLocked(key)
	e.mu.Unlock()

	e.durableDelete(ctx, []string{key})
	if removed {
		return 1
	}
	return 0
}

func (e *Engine) invalidateMatching(ctx context.Context, match func(string) bool) int {
	e.mu.Lock()
	var keys []string
	for _, key := range e.memory.keys() {
		if match(key) {
			keys = append(keys, key)
		}
	}
	count := 0
	for _, key := range keys {
		if e.removeKeyLocked(key) {
			count++
		}
	}
	e.mu.Unlock()

	e.durableDelete(ctx, keys)

	// The durable tier may hold matching keys that are no longer in
	// memory. Best effort: enumeration faults leave them for TTL lapse.
	if e.durableOn() {
		durableKeys, err := e.durable.Keys(ctx)
		if err != nil {
			e.logger.Warn("durable cache enumeration failed", "error", err)
			return count
		}
		var stale []string
		for _, key := range durableKeys {
			if match(key) {
				stale = append(stale, key)
			}
		}
		e.durableDelete(ctx, stale)
	}
	return count
}

// removeKeyLocked removes a key from memory and drops its dependency row,
// preserving the no-dangling-rows invariant.
func (e *Engine) removeKeyLocked(key string) bool {
	delete(e.deps, key)
	return e.memory.remove(key)
}

// setDepsLocked replaces the dependency row for key. Keys without
// dependencies have no row.
func (e *Engine) setDepsLocked(key string, dependencies []string) {
	if len(dependencies) == 0 {
		delete(e.deps, key)
		return
	}
	set := make(map[string]struct{}, len(dependencies))
	for _, dep := range dependencies {
		set[dep] = struct{}{}
	}
	e.deps[key] = set
}

func (e *Engine) recordHit(category Category) {
	e.hits++
	if e.cfg.MetricsEnabled {
		e.categoryStatsLocked(category).Hits++
	}
}

func (e *Engine) recordMiss(category Category) {
	e.misses++
	if e.cfg.MetricsEnabled {
		e.categoryStatsLocked(category).Misses++
	}
}

func (e *Engine) categoryStatsLocked(category Category) *CategoryStats {
	cs, ok := e.catStats[category]
	if !ok {
		cs = &CategoryStats{}
		e.catStats[category] = cs
	}
	return cs
}
