package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "NEWSATLAS_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	nominatimURLEnv = "NOMINATIM_URL"
	peliasURLEnv    = "PELIAS_URL"
	logLevelEnv     = "NEWSATLAS_LOG_LEVEL"
)

// Validation errors.
var (
	ErrNoSources           = errors.New("at least one source is required")
	ErrSourceMissingKey    = errors.New("source key is required")
	ErrSourceMissingFeeds  = errors.New("source needs at least one feed URL")
	ErrInvalidConcurrency  = errors.New("scraper.max_concurrent_requests must be at least 1")
	ErrInvalidTimeout      = errors.New("scraper.request_timeout_sec must be at least 1")
	ErrInvalidMaxAttempts  = errors.New("scraper.retry.max_attempts must be at least 1")
	ErrInvalidThreshold    = errors.New("dedup similarity thresholds must be within (0, 1]")
	ErrInvalidWindow       = errors.New("dedup.time_proximity_window_min must be at least 1")
	ErrNoProviders         = errors.New("geo.provider_order needs at least one provider")
	ErrUnknownProvider     = errors.New("geo.provider_order contains an unknown provider")
)

// Config holds high-level settings required across the application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Geo      GeoConfig      `yaml:"geo"`
	Schedule ScheduleConfig `yaml:"scheduler"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sources  []SourceConfig `yaml:"sources"`
}

// DatabaseConfig describes the Postgres connection. An empty DSN switches the
// application to in-memory stores (single-shot runs, tests).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RetryConfig bounds transient-failure retries for item fetches.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
}

// InitialDelay returns the delay before the first retry.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// ScraperConfig bounds the ingestion orchestrator.
type ScraperConfig struct {
	MaxConcurrentRequests int         `yaml:"max_concurrent_requests"`
	RequestTimeoutSec     int         `yaml:"request_timeout_sec"`
	ScrapeDelayMS         int         `yaml:"scrape_delay_ms"`
	LimitPerSource        int         `yaml:"limit_per_source"`
	UserAgent             string      `yaml:"user_agent"`
	Retry                 RetryConfig `yaml:"retry"`
}

// RequestTimeout returns the per-request timeout.
func (s ScraperConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// ScrapeDelay returns the per-source delay between consecutive requests.
func (s ScraperConfig) ScrapeDelay() time.Duration {
	return time.Duration(s.ScrapeDelayMS) * time.Millisecond
}

// DedupConfig tunes the deduplication engine.
type DedupConfig struct {
	SimilarityThreshold      float64 `yaml:"similarity_threshold"`
	TitleSimilarityThreshold float64 `yaml:"title_similarity_threshold"`
	TimeProximityWindowMin   int     `yaml:"time_proximity_window_min"`
	BodyPrefixLength         int     `yaml:"body_prefix_length"`
	BatchSize                int     `yaml:"batch_size"`
}

// TimeProximityWindow returns the candidate window for near-duplicate search.
func (d DedupConfig) TimeProximityWindow() time.Duration {
	return time.Duration(d.TimeProximityWindowMin) * time.Minute
}

// GeoConfig wires the geocoding providers and their rate discipline.
type GeoConfig struct {
	ProviderOrder        []string `yaml:"provider_order"`
	NominatimURL         string   `yaml:"nominatim_url"`
	PeliasURL            string   `yaml:"pelias_url"`
	UserAgent            string   `yaml:"user_agent"`
	MinRequestIntervalMS int      `yaml:"min_request_interval_ms"`
	MaxAttempts          int      `yaml:"max_attempts"`
	BatchSize            int      `yaml:"batch_size"`
}

// MinRequestInterval returns the minimum spacing between provider calls.
func (g GeoConfig) MinRequestInterval() time.Duration {
	return time.Duration(g.MinRequestIntervalMS) * time.Millisecond
}

// ScheduleConfig defines the interval for the recurring full pass.
type ScheduleConfig struct {
	IntervalMin int `yaml:"interval_min"`
}

// Interval returns the pause between recurring pipeline runs.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMin) * time.Minute
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SelectorConfig holds per-source CSS selectors for article pages.
type SelectorConfig struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	Image string `yaml:"image"`
	Date  string `yaml:"date"`
}

// SourceConfig describes a single news source with its feeds and extraction rules.
type SourceConfig struct {
	Key       string         `yaml:"key"`
	Name      string         `yaml:"name"`
	BaseURL   string         `yaml:"base_url"`
	Scanner   string         `yaml:"scanner"`
	Priority  int            `yaml:"priority"`
	Feeds     []string       `yaml:"feeds"`
	Selectors SelectorConfig `yaml:"selectors"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, src := range c.Sources {
		if src.Key == "" {
			return ErrSourceMissingKey
		}
		if len(src.Feeds) == 0 {
			return fmt.Errorf("source %s: %w", src.Key, ErrSourceMissingFeeds)
		}
	}
	if c.Scraper.MaxConcurrentRequests < 1 {
		return ErrInvalidConcurrency
	}
	if c.Scraper.RequestTimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Scraper.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if !validThreshold(c.Dedup.SimilarityThreshold) || !validThreshold(c.Dedup.TitleSimilarityThreshold) {
		return ErrInvalidThreshold
	}
	if c.Dedup.TimeProximityWindowMin < 1 {
		return ErrInvalidWindow
	}
	if len(c.Geo.ProviderOrder) == 0 {
		return ErrNoProviders
	}
	for _, p := range c.Geo.ProviderOrder {
		if p != "nominatim" && p != "pelias" {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, p)
		}
	}
	return nil
}

func validThreshold(v float64) bool {
	return v > 0 && v <= 1
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(nominatimURLEnv); v != "" {
		c.Geo.NominatimURL = v
	}
	if v := os.Getenv(peliasURLEnv); v != "" {
		c.Geo.PeliasURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scraper.MaxConcurrentRequests != 0 {
		base.Scraper.MaxConcurrentRequests = override.Scraper.MaxConcurrentRequests
	}
	if override.Scraper.RequestTimeoutSec != 0 {
		base.Scraper.RequestTimeoutSec = override.Scraper.RequestTimeoutSec
	}
	if override.Scraper.ScrapeDelayMS != 0 {
		base.Scraper.ScrapeDelayMS = override.Scraper.ScrapeDelayMS
	}
	if override.Scraper.LimitPerSource != 0 {
		base.Scraper.LimitPerSource = override.Scraper.LimitPerSource
	}
	if override.Scraper.UserAgent != "" {
		base.Scraper.UserAgent = override.Scraper.UserAgent
	}
	if override.Scraper.Retry.MaxAttempts != 0 {
		base.Scraper.Retry.MaxAttempts = override.Scraper.Retry.MaxAttempts
	}
	if override.Scraper.Retry.InitialDelayMS != 0 {
		base.Scraper.Retry.InitialDelayMS = override.Scraper.Retry.InitialDelayMS
	}

	if override.Dedup.SimilarityThreshold != 0 {
		base.Dedup.SimilarityThreshold = override.Dedup.SimilarityThreshold
	}
	if override.Dedup.TitleSimilarityThreshold != 0 {
		base.Dedup.TitleSimilarityThreshold = override.Dedup.TitleSimilarityThreshold
	}
	if override.Dedup.TimeProximityWindowMin != 0 {
		base.Dedup.TimeProximityWindowMin = override.Dedup.TimeProximityWindowMin
	}
	if override.Dedup.BodyPrefixLength != 0 {
		base.Dedup.BodyPrefixLength = override.Dedup.BodyPrefixLength
	}
	if override.Dedup.BatchSize != 0 {
		base.Dedup.BatchSize = override.Dedup.BatchSize
	}

	if len(override.Geo.ProviderOrder) > 0 {
		base.Geo.ProviderOrder = override.Geo.ProviderOrder
	}
	if override.Geo.NominatimURL != "" {
		base.Geo.NominatimURL = override.Geo.NominatimURL
	}
	if override.Geo.PeliasURL != "" {
		base.Geo.PeliasURL = override.Geo.PeliasURL
	}
	if override.Geo.UserAgent != "" {
		base.Geo.UserAgent = override.Geo.UserAgent
	}
	if override.Geo.MinRequestIntervalMS != 0 {
		base.Geo.MinRequestIntervalMS = override.Geo.MinRequestIntervalMS
	}
	if override.Geo.MaxAttempts != 0 {
		base.Geo.MaxAttempts = override.Geo.MaxAttempts
	}
	if override.Geo.BatchSize != 0 {
		base.Geo.BatchSize = override.Geo.BatchSize
	}

	if override.Schedule.IntervalMin != 0 {
		base.Schedule.IntervalMin = override.Schedule.IntervalMin
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Scraper: ScraperConfig{
			MaxConcurrentRequests: 5,
			RequestTimeoutSec:     30,
			ScrapeDelayMS:         1000,
			LimitPerSource:        0,
			UserAgent:             "NewsAtlas/1.0",
			Retry:                 RetryConfig{MaxAttempts: 3, InitialDelayMS: 500},
		},
		Dedup: DedupConfig{
			SimilarityThreshold:      0.85,
			TitleSimilarityThreshold: 0.90,
			TimeProximityWindowMin:   2880,
			BodyPrefixLength:         400,
			BatchSize:                0,
		},
		Geo: GeoConfig{
			ProviderOrder:        []string{"nominatim", "pelias"},
			NominatimURL:         "https://nominatim.openstreetmap.org",
			PeliasURL:            "https://api.geocode.earth/v1",
			UserAgent:            "NewsAtlas/1.0",
			MinRequestIntervalMS: 1000,
			MaxAttempts:          2,
			BatchSize:            0,
		},
		Schedule: ScheduleConfig{IntervalMin: 60},
		Logging:  LoggingConfig{Level: "info"},
		Sources:  defaultSources(),
	}
}

func defaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Key:      "prothom_alo",
			Name:     "Prothom Alo",
			BaseURL:  "https://www.prothomalo.com",
			Scanner:  "rss",
			Priority: 1,
			Feeds: []string{
				"https://www.prothomalo.com/feed/",
				"https://www.prothomalo.com/bangladesh/feed/",
				"https://www.prothomalo.com/world/feed/",
			},
			Selectors: SelectorConfig{
				Title: "h1.title, h1.headline",
				Body:  ".story-element-text p, .article-content p",
				Image: ".story-element-image img, .article-image img",
				Date:  ".story-element-publish-date, .publish-date",
			},
		},
		{
			Key:      "daily_star",
			Name:     "The Daily Star",
			BaseURL:  "https://www.thedailystar.net",
			Scanner:  "rss",
			Priority: 2,
			Feeds: []string{
				"https://www.thedailystar.net/rss.xml",
				"https://www.thedailystar.net/bangladesh/rss.xml",
			},
			Selectors: SelectorConfig{
				Title: "h1.title, h1.headline",
				Body:  ".article-content p, .story-content p",
				Image: ".article-image img, .story-image img",
				Date:  ".publish-date, .article-date",
			},
		},
		{
			Key:      "bdnews24",
			Name:     "bdnews24.com",
			BaseURL:  "https://bdnews24.com",
			Scanner:  "rss",
			Priority: 3,
			Feeds: []string{
				"https://bdnews24.com/rss.xml",
				"https://bdnews24.com/bangladesh/rss.xml",
			},
			Selectors: SelectorConfig{
				Title: "h1.title, h1.headline",
				Body:  ".article-content p, .news-content p",
				Image: ".article-image img, .news-image img",
				Date:  ".publish-date, .news-date",
			},
		},
		{
			Key:      "dhaka_tribune",
			Name:     "Dhaka Tribune",
			BaseURL:  "https://www.dhakatribune.com",
			Scanner:  "rss",
			Priority: 4,
			Feeds: []string{
				"https://www.dhakatribune.com/feed",
				"https://www.dhakatribune.com/bangladesh/feed",
			},
			Selectors: SelectorConfig{
				Title: "h1.title, h1.headline",
				Body:  ".article-content p, .story-content p",
				Image: ".article-image img, .story-image img",
				Date:  ".publish-date, .article-date",
			},
		},
	}
}
