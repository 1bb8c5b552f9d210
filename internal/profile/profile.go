package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the language server backend.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for the admin HTTP server
	Addr string
	// Port is the binding port for the admin HTTP server
	Port int
	// Data is the data directory (durable cache records live under it)
	Data string
	// Driver selects the durable cache backend (file or sqlite)
	Driver string
	// DSN points to the sqlite database when Driver is "sqlite"
	DSN string
	// Version is the current version of the server
	Version string

	// Cache configuration
	CacheMemoryBudget    int64         // FHIRPATH_CACHE_MEMORY_BUDGET (bytes, default: 50MiB)
	CacheDurableBudget   int64         // FHIRPATH_CACHE_DURABLE_BUDGET (bytes, informational)
	CacheDefaultTTL      time.Duration // FHIRPATH_CACHE_DEFAULT_TTL (default: 30m)
	CacheCleanupInterval time.Duration // FHIRPATH_CACHE_CLEANUP_INTERVAL (default: 1m)
	CacheCategoryTTL     map[string]time.Duration
	CacheDurableEnabled  bool // FHIRPATH_CACHE_DURABLE_ENABLED (default: false)
	CacheMetricsEnabled  bool // FHIRPATH_CACHE_METRICS_ENABLED (default: true)

	// Warm-up configuration
	WarmupEnabled   bool     // FHIRPATH_WARMUP_ENABLED (default: true)
	WarmupOnStartup bool     // FHIRPATH_WARMUP_ON_STARTUP (default: true)
	WarmupTypes     []string // FHIRPATH_WARMUP_TYPES (comma-separated)
}

// DefaultWarmupTypes are the resource types most expressions are written
// against. Warm-up pre-resolves them so the first completions request does
// not pay for a cold type model.
var DefaultWarmupTypes = []string{
	"Patient",
	"Observation",
	"Condition",
	"Procedure",
	"Encounter",
	"MedicationRequest",
	"DiagnosticReport",
	"Bundle",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1"
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// FromEnv loads configuration from FHIRPATH_* environment variables.
func (p *Profile) FromEnv() {
	p.CacheMemoryBudget = getInt64Env("FHIRPATH_CACHE_MEMORY_BUDGET", 50*1024*1024)
	p.CacheDurableBudget = getInt64Env("FHIRPATH_CACHE_DURABLE_BUDGET", 200*1024*1024)
	p.CacheDefaultTTL = getDurationEnv("FHIRPATH_CACHE_DEFAULT_TTL", 30*time.Minute)
	p.CacheCleanupInterval = getDurationEnv("FHIRPATH_CACHE_CLEANUP_INTERVAL", time.Minute)
	p.CacheDurableEnabled = getBoolEnv("FHIRPATH_CACHE_DURABLE_ENABLED", false)
	p.CacheMetricsEnabled = getBoolEnv("FHIRPATH_CACHE_METRICS_ENABLED", true)
	p.CacheCategoryTTL = parseCategoryTTL(os.Getenv("FHIRPATH_CACHE_CATEGORY_TTL"))

	p.WarmupEnabled = getBoolEnv("FHIRPATH_WARMUP_ENABLED", true)
	p.WarmupOnStartup = getBoolEnv("FHIRPATH_WARMUP_ON_STARTUP", true)
	if types := os.Getenv("FHIRPATH_WARMUP_TYPES"); types != "" {
		p.WarmupTypes = splitList(types)
	} else {
		p.WarmupTypes = append([]string(nil), DefaultWarmupTypes...)
	}

	if p.Driver == "" {
		p.Driver = getEnvOrDefault("FHIRPATH_CACHE_DRIVER", "file")
	}
}

// parseCategoryTTL parses "type-info=1h,completions=5m" style overrides.
// Malformed items are skipped.
func parseCategoryTTL(raw string) map[string]time.Duration {
	if raw == "" {
		return nil
	}
	overrides := make(map[string]time.Duration)
	for _, item := range splitList(raw) {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			continue
		}
		overrides[strings.TrimSpace(name)] = d
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "file" && p.Driver != "sqlite" {
		return errors.Errorf("unknown cache driver %q: only 'file' and 'sqlite' are supported", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "fhirpath-ls")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/fhirpath-ls"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("fhirpath_cache_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
