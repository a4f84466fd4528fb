// Package config loads the engine's Options via environment variables or a
// YAML file, following the same env-var-with-typed-defaults idiom the
// teacher's Neo4j-compatible config loader used, repointed at spec §6.2's
// enumerated control-operation options instead of Neo4j/Bolt server
// settings.
//
// Configuration is loaded from environment variables with LoadFromEnv(), or
// from a YAML file with LoadFromFile(), and should be checked with
// Validate() before use.
//
// Example Usage:
//
//	opts := config.LoadFromEnv()
//	if err := opts.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	db, err := engine.Open(path, opts)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SyncMode mirrors pkg/wal.SyncMode without importing it, so config stays a
// leaf package; engine.Open converts between the two.
type SyncMode string

const (
	SyncFull   SyncMode = "full"
	SyncNormal SyncMode = "normal"
	SyncOff    SyncMode = "off"
)

// Options is the full enumerated set of control-operation options (spec
// §6.2): how the container is opened, how the WAL is sized and synced, the
// automatic checkpoint policy, and every cache's capacity limit.
type Options struct {
	// ReadOnly refuses every mutating transaction and schema op.
	ReadOnly bool `yaml:"readOnly"`
	// CreateIfMissing creates a fresh container at the path passed to
	// engine.Open if it does not already exist.
	CreateIfMissing bool `yaml:"createIfMissing"`
	// PageSize is the region-placement granularity in bytes (spec §4.1).
	PageSize uint32 `yaml:"pageSize"`
	// WalSize is the combined size in bytes of the two WAL regions,
	// split 75/25 primary/secondary by the container on creation.
	WalSize uint64 `yaml:"walSize"`

	// AutoCheckpoint enables the background policy that triggers a
	// checkpoint once WAL usage or delta size crosses CheckpointThreshold.
	AutoCheckpoint bool `yaml:"autoCheckpoint"`
	// CheckpointThreshold is a fraction in (0,1] of WalSize; exceeding it
	// in the active region (or 10% delta growth relative to snapshot
	// size) triggers an automatic checkpoint.
	CheckpointThreshold float64 `yaml:"checkpointThreshold"`
	// BackgroundCheckpoint runs the checkpoint procedure off the calling
	// goroutine instead of blocking the triggering commit.
	BackgroundCheckpoint bool `yaml:"backgroundCheckpoint"`

	// SyncMode controls fsync behavior on WAL commit (spec §4.6).
	SyncMode SyncMode `yaml:"syncMode"`

	// CacheEnabled toggles all four caches at once; a false value makes
	// every per-cache capacity below irrelevant.
	CacheEnabled bool `yaml:"cacheEnabled"`
	// CacheMaxNodeProps and CacheMaxEdgeProps size the property cache's
	// two sub-caches.
	CacheMaxNodeProps int `yaml:"cacheMaxNodeProps"`
	CacheMaxEdgeProps int `yaml:"cacheMaxEdgeProps"`
	// CacheMaxTraversalEntries sizes the traversal cache.
	CacheMaxTraversalEntries int `yaml:"cacheMaxTraversalEntries"`
	// CacheMaxQueryEntries and CacheQueryTtlMs size and expire the query
	// cache; 0 TTL means entries never expire on their own.
	CacheMaxQueryEntries int   `yaml:"cacheMaxQueryEntries"`
	CacheQueryTtlMs      int64 `yaml:"cacheQueryTtlMs"`
	// CacheMaxKeyLookup sizes the key-lookup cache.
	CacheMaxKeyLookup int `yaml:"cacheMaxKeyLookup"`
}

// Defaults returns the option set Open uses when neither LoadFromEnv nor
// LoadFromFile was called, matching the defaults documented in spec §4.1,
// §4.6, and §4.8.
func Defaults() *Options {
	return &Options{
		CreateIfMissing:          true,
		PageSize:                 4096,
		WalSize:                  1 << 20,
		AutoCheckpoint:           true,
		CheckpointThreshold:      0.8,
		BackgroundCheckpoint:     false,
		SyncMode:                 SyncFull,
		CacheEnabled:             true,
		CacheMaxNodeProps:        10000,
		CacheMaxEdgeProps:        10000,
		CacheMaxTraversalEntries: 2000,
		CacheMaxQueryEntries:     500,
		CacheQueryTtlMs:          0,
		CacheMaxKeyLookup:        5000,
	}
}

// LoadFromEnv returns an Options populated from NODAL_-prefixed environment
// variables, falling back to Defaults() for anything unset.
func LoadFromEnv() *Options {
	d := Defaults()
	return &Options{
		ReadOnly:                 getEnvBool("NODAL_READ_ONLY", d.ReadOnly),
		CreateIfMissing:          getEnvBool("NODAL_CREATE_IF_MISSING", d.CreateIfMissing),
		PageSize:                 uint32(getEnvInt("NODAL_PAGE_SIZE", int(d.PageSize))),
		WalSize:                  uint64(getEnvInt("NODAL_WAL_SIZE", int(d.WalSize))),
		AutoCheckpoint:           getEnvBool("NODAL_AUTO_CHECKPOINT", d.AutoCheckpoint),
		CheckpointThreshold:      getEnvFloat("NODAL_CHECKPOINT_THRESHOLD", d.CheckpointThreshold),
		BackgroundCheckpoint:     getEnvBool("NODAL_BACKGROUND_CHECKPOINT", d.BackgroundCheckpoint),
		SyncMode:                 SyncMode(getEnv("NODAL_SYNC_MODE", string(d.SyncMode))),
		CacheEnabled:             getEnvBool("NODAL_CACHE_ENABLED", d.CacheEnabled),
		CacheMaxNodeProps:        getEnvInt("NODAL_CACHE_MAX_NODE_PROPS", d.CacheMaxNodeProps),
		CacheMaxEdgeProps:        getEnvInt("NODAL_CACHE_MAX_EDGE_PROPS", d.CacheMaxEdgeProps),
		CacheMaxTraversalEntries: getEnvInt("NODAL_CACHE_MAX_TRAVERSAL_ENTRIES", d.CacheMaxTraversalEntries),
		CacheMaxQueryEntries:     getEnvInt("NODAL_CACHE_MAX_QUERY_ENTRIES", d.CacheMaxQueryEntries),
		CacheQueryTtlMs:          int64(getEnvInt("NODAL_CACHE_QUERY_TTL_MS", int(d.CacheQueryTtlMs))),
		CacheMaxKeyLookup:        getEnvInt("NODAL_CACHE_MAX_KEY_LOOKUP", d.CacheMaxKeyLookup),
	}
}

// LoadFromFile reads a YAML options file, starting from Defaults() so the
// file only needs to set the fields it wants to override.
func LoadFromFile(path string) (*Options, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	opts := Defaults()
	if err := yaml.Unmarshal(buf, opts); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks Options for logical errors before Open uses them.
func (o *Options) Validate() error {
	if o.PageSize == 0 {
		return fmt.Errorf("pageSize must be > 0")
	}
	if o.WalSize == 0 {
		return fmt.Errorf("walSize must be > 0")
	}
	if o.CheckpointThreshold <= 0 || o.CheckpointThreshold > 1 {
		return fmt.Errorf("checkpointThreshold must be in (0,1], got %v", o.CheckpointThreshold)
	}
	switch o.SyncMode {
	case SyncFull, SyncNormal, SyncOff:
	default:
		return fmt.Errorf("syncMode must be one of full|normal|off, got %q", o.SyncMode)
	}
	if o.ReadOnly && o.CreateIfMissing {
		return fmt.Errorf("readOnly and createIfMissing are mutually exclusive")
	}
	return nil
}

// String renders Options for startup logging.
func (o *Options) String() string {
	return fmt.Sprintf(
		"Options{readOnly: %v, pageSize: %d, walSize: %d, syncMode: %s, autoCheckpoint: %v}",
		o.ReadOnly, o.PageSize, o.WalSize, o.SyncMode, o.AutoCheckpoint,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
