package cache

import (
	"container/list"
)

// lruStore is the memory tier: a bounded key→entry store with access-ordered
// iteration. Reading a key repositions it as most-recently-used; inserting
// beyond capacity evicts the least-recently-used key first. Expiry is the
// engine's concern: the store only tracks recency, size, and access counts.
//
// The store is not safe for concurrent use on its own; the engine owns it and
// serializes access.
type lruStore struct {
	capacity int

	entries map[string]*list.Element
	order   *list.List // front = most recently used

	totalSize int64
}

type lruItem struct {
	key   string
	entry *Entry
}

func newLRUStore(capacity int) *lruStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lruStore{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get returns the entry for key, marking it most-recently-used and bumping
// its access count.
func (s *lruStore) get(key string) (*Entry, bool) {
	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*lruItem)
	item.entry.AccessCount++
	s.order.MoveToFront(el)
	return item.entry, true
}

// peek returns the entry without touching recency or access count. Used by
// cleanup and invalidation passes.
func (s *lruStore) peek(key string) (*Entry, bool) {
	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*lruItem).entry, true
}

// set inserts or replaces the entry for key, evicting from the LRU end when
// over capacity. It returns the keys evicted to make room.
func (s *lruStore) set(key string, entry *Entry) []string {
	if el, ok := s.entries[key]; ok {
		item := el.Value.(*lruItem)
		s.totalSize += entry.SizeEstimate - item.entry.SizeEstimate
		item.entry = entry
		s.order.MoveToFront(el)
		return nil
	}

	var evicted []string
	for len(s.entries) >= s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		k := oldest.Value.(*lruItem).key
		s.remove(k)
		evicted = append(evicted, k)
	}

	el := s.order.PushFront(&lruItem{key: key, entry: entry})
	s.entries[key] = el
	s.totalSize += entry.SizeEstimate
	return evicted
}

// remove deletes the entry for key. It reports whether the key was present.
func (s *lruStore) remove(key string) bool {
	el, ok := s.entries[key]
	if !ok {
		return false
	}
	s.totalSize -= el.Value.(*lruItem).entry.SizeEstimate
	s.order.Remove(el)
	delete(s.entries, key)
	return true
}

// forEach visits every entry without touching recency. The visit order is
// most- to least-recently-used.
func (s *lruStore) forEach(fn func(key string, entry *Entry)) {
	for el := s.order.Front(); el != nil; el = el.Next() {
		item := el.Value.(*lruItem)
		fn(item.key, item.entry)
	}
}

// keys returns all keys, most-recently-used first.
func (s *lruStore) keys() []string {
	out := make([]string, 0, len(s.entries))
	s.forEach(func(key string, _ *Entry) {
		out = append(out, key)
	})
	return out
}

func (s *lruStore) len() int { return len(s.entries) }

func (s *lruStore) size() int64 { return s.totalSize }

func (s *lruStore) clear() {
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.totalSize = 0
}
