package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(data string) *Entry {
	return &Entry{
		Data:         []byte(data),
		CreatedAt:    time.Now(),
		TTL:          time.Minute,
		Tier:         TierMemory,
		SizeEstimate: int64(len(data)),
	}
}

func TestLRUStore_BasicOperations(t *testing.T) {
	s := newLRUStore(100)

	t.Run("SetAndGet", func(t *testing.T) {
		s.set("key1", testEntry("value1"))

		entry, ok := s.get("key1")
		require.True(t, ok)
		assert.Equal(t, []byte("value1"), entry.Data)
		assert.Equal(t, int64(1), entry.AccessCount)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		entry, ok := s.get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, entry)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		s.set("key2", testEntry("original"))
		s.set("key2", testEntry("updated!"))

		entry, ok := s.get("key2")
		require.True(t, ok)
		assert.Equal(t, []byte("updated!"), entry.Data)
	})

	t.Run("SizeTracking", func(t *testing.T) {
		s := newLRUStore(100)
		s.set("a", testEntry("12345"))
		s.set("b", testEntry("1234567890"))
		assert.Equal(t, int64(15), s.size())

		s.set("a", testEntry("123"))
		assert.Equal(t, int64(13), s.size())

		s.remove("b")
		assert.Equal(t, int64(3), s.size())
	})
}

func TestLRUStore_Eviction(t *testing.T) {
	s := newLRUStore(3)

	s.set("k1", testEntry("v1"))
	s.set("k2", testEntry("v2"))
	s.set("k3", testEntry("v3"))

	// Touch k1 so k2 becomes least recently used.
	_, ok := s.get("k1")
	require.True(t, ok)

	evicted := s.set("k4", testEntry("v4"))
	assert.Equal(t, []string{"k2"}, evicted)

	_, ok = s.get("k1")
	assert.True(t, ok)
	_, ok = s.get("k2")
	assert.False(t, ok)
	_, ok = s.get("k3")
	assert.True(t, ok)
	_, ok = s.get("k4")
	assert.True(t, ok)
}

func TestLRUStore_Enumeration(t *testing.T) {
	s := newLRUStore(10)

	for i := 1; i <= 3; i++ {
		s.set(fmt.Sprintf("k%d", i), testEntry("v"))
	}

	// Most recently used first.
	assert.Equal(t, []string{"k3", "k2", "k1"}, s.keys())

	s.get("k1")
	assert.Equal(t, []string{"k1", "k3", "k2"}, s.keys())

	var visited int
	s.forEach(func(string, *Entry) { visited++ })
	assert.Equal(t, 3, visited)
}

func TestLRUStore_PeekDoesNotTouch(t *testing.T) {
	s := newLRUStore(10)

	s.set("k1", testEntry("v1"))
	s.set("k2", testEntry("v2"))

	entry, ok := s.peek("k1")
	require.True(t, ok)
	assert.Equal(t, int64(0), entry.AccessCount)
	assert.Equal(t, []string{"k2", "k1"}, s.keys())
}

func TestLRUStore_Clear(t *testing.T) {
	s := newLRUStore(10)

	s.set("k1", testEntry("v1"))
	s.set("k2", testEntry("v2"))
	s.clear()

	assert.Equal(t, 0, s.len())
	assert.Equal(t, int64(0), s.size())
	_, ok := s.get("k1")
	assert.False(t, ok)
}
