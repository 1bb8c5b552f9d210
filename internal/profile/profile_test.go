package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, int64(50*1024*1024), p.CacheMemoryBudget)
	assert.Equal(t, 30*time.Minute, p.CacheDefaultTTL)
	assert.Equal(t, time.Minute, p.CacheCleanupInterval)
	assert.False(t, p.CacheDurableEnabled)
	assert.True(t, p.CacheMetricsEnabled)
	assert.True(t, p.WarmupEnabled)
	assert.Equal(t, DefaultWarmupTypes, p.WarmupTypes)
	assert.Equal(t, "file", p.Driver)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FHIRPATH_CACHE_MEMORY_BUDGET", "1048576")
	t.Setenv("FHIRPATH_CACHE_DEFAULT_TTL", "5m")
	t.Setenv("FHIRPATH_CACHE_DURABLE_ENABLED", "true")
	t.Setenv("FHIRPATH_WARMUP_TYPES", "Patient, Observation")
	t.Setenv("FHIRPATH_CACHE_CATEGORY_TTL", "type-info=1h,completions=30s,broken")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, int64(1048576), p.CacheMemoryBudget)
	assert.Equal(t, 5*time.Minute, p.CacheDefaultTTL)
	assert.True(t, p.CacheDurableEnabled)
	assert.Equal(t, []string{"Patient", "Observation"}, p.WarmupTypes)
	assert.Equal(t, map[string]time.Duration{
		"type-info":   time.Hour,
		"completions": 30 * time.Second,
	}, p.CacheCategoryTTL)
}

func TestValidate(t *testing.T) {
	t.Run("UnknownDriver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("SQLiteDefaultDSN", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Data: dir, Driver: "sqlite"}
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "fhirpath_cache_dev.db")
	})

	t.Run("InvalidModeFallsBackToDemo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Data: t.TempDir(), Driver: "file"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})
}
