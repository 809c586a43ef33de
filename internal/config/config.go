// Package config loads and resolves the single TOML configuration file
// described in spec.md §6: global defaults plus a `feeds.<id>` map. It
// replaces the teacher's per-file YAML glob (app/feed/config_cache.go) with
// a single-file load, but keeps that file's load-once, mutex-guarded cache
// shape.
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/feedgen/feedgen/internal/date"
)

const (
	defaultFetchInterval         = date.Duration(2 * time.Hour)
	defaultMaxInitialFetchSleep  = date.Duration(45 * time.Second)
)

// ExtractorConfig is one feed's `extractor` subtable. Kind discriminates
// which of the XPath-only or Lua-only fields below are meaningful.
type ExtractorConfig struct {
	Kind string `toml:"kind"`

	// kind = "xpath"
	Entry         string `toml:"entry"`
	ID            string `toml:"id"`
	Title         string `toml:"title"`
	Description   string `toml:"description"`
	URL           string `toml:"url"`
	Author        string `toml:"author"`
	PubDate       string `toml:"pub-date"`
	PubDateFormat string `toml:"pub-date-format"`

	// kind = "lua"
	Path string `toml:"path"`
}

// FeedConfig is one entry in the `feeds.<id>` map.
type FeedConfig struct {
	Enabled       *bool          `toml:"enabled"`
	RequestURL    string         `toml:"request-url"`
	FetchInterval *date.Duration `toml:"fetch-interval"`
	Extractor     ExtractorConfig `toml:"extractor"`
}

// IsEnabled defaults to true when unset.
func (f FeedConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// raw is the top-level TOML shape, decoded as-is before defaults are filled.
type raw struct {
	BindAddr             string                `toml:"bind-addr"`
	DBPath               string                `toml:"db-path"`
	CacheDir             string                `toml:"cache-dir"`
	FetchInterval        *date.Duration        `toml:"fetch-interval"`
	MaxInitialFetchSleep *date.Duration        `toml:"max-initial-fetch-sleep"`
	Feeds                map[string]FeedConfig `toml:"feeds"`
}

// Config is the fully resolved configuration: defaults filled in, paths
// resolved against the config file's directory (never the process CWD, per
// spec.md §9's config-file-relative-paths design note).
type Config struct {
	BindAddr             string
	DBPath               string
	CacheDir             string // empty means "no on-disk cache"
	FetchInterval        date.Duration
	MaxInitialFetchSleep date.Duration
	Feeds                map[string]FeedConfig
}

// FetchIntervalFor resolves a feed's effective fetch interval: its own
// override if set, else the global default.
func (c *Config) FetchIntervalFor(feed FeedConfig) date.Duration {
	if feed.FetchInterval != nil {
		return *feed.FetchInterval
	}
	return c.FetchInterval
}

// Load reads and resolves the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	var r raw
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %w", path, err)
	}

	if r.BindAddr == "" {
		return nil, fmt.Errorf("config: bind-addr is required")
	}
	if r.DBPath == "" {
		return nil, fmt.Errorf("config: db-path is required")
	}

	baseDir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" {
			return ""
		}
		return resolvePath(baseDir, p)
	}

	cfg := &Config{
		BindAddr:             r.BindAddr,
		DBPath:               resolve(r.DBPath),
		CacheDir:             resolve(r.CacheDir),
		FetchInterval:        defaultFetchInterval,
		MaxInitialFetchSleep: defaultMaxInitialFetchSleep,
		Feeds:                r.Feeds,
	}
	if r.FetchInterval != nil {
		cfg.FetchInterval = *r.FetchInterval
	}
	if r.MaxInitialFetchSleep != nil {
		cfg.MaxInitialFetchSleep = *r.MaxInitialFetchSleep
	}

	for id, feed := range cfg.Feeds {
		if feed.RequestURL == "" {
			return nil, fmt.Errorf("config: feeds.%s.request-url is required", id)
		}
		switch feed.Extractor.Kind {
		case "xpath":
			if err := validateXPathExtractor(id, feed.Extractor); err != nil {
				return nil, err
			}
		case "lua":
			if feed.Extractor.Path == "" {
				return nil, fmt.Errorf("config: feeds.%s.extractor.path is required for kind=lua", id)
			}
			feed.Extractor.Path = resolve(feed.Extractor.Path)
			cfg.Feeds[id] = feed
		case "":
			return nil, fmt.Errorf("config: feeds.%s.extractor.kind is required", id)
		default:
			return nil, fmt.Errorf("config: feeds.%s.extractor.kind %q is not one of xpath, lua", id, feed.Extractor.Kind)
		}
	}

	return cfg, nil
}

func validateXPathExtractor(id string, e ExtractorConfig) error {
	required := map[string]string{
		"entry":       e.Entry,
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"url":         e.URL,
	}
	for field, v := range required {
		if v == "" {
			return fmt.Errorf("config: feeds.%s.extractor.%s is required for kind=xpath", id, field)
		}
	}
	return nil
}

// Cache is a thread-safe, load-once holder for the resolved configuration,
// mirroring the teacher's config_cache.go shape (a mutex-guarded singleton
// read by many goroutines, written once at startup).
type Cache struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewCache loads path once and returns a Cache wrapping the result.
func NewCache(path string) (*Cache, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg}, nil
}

// Get returns the resolved configuration.
func (c *Cache) Get() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// WrapConfig builds a Cache around an already-resolved Config, bypassing
// file loading. Useful for tests and for callers that assemble a Config
// programmatically rather than from a TOML file.
func WrapConfig(cfg *Config) *Cache {
	return &Cache{cfg: cfg}
}
