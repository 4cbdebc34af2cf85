package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Paths holds the data and log directories.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server configures the local HTTP API.
type Server struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// AniList contains configuration for the anime metadata graph.
type AniList struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MangaDex contains configuration for the optional cover-art source.
type MangaDex struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	UploadsURL     string `toml:"uploads_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the chapter lookup models.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	PrimaryModel   string `toml:"primary_model"`
	SecondaryModel string `toml:"secondary_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	// TimeoutSeconds bounds a single HTTP exchange with the provider.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// LookupTimeoutSeconds bounds one model tier, retries included.
	LookupTimeoutSeconds int `toml:"lookup_timeout_seconds"`
	MaxAttempts          int `toml:"max_attempts"`
}

// Resolution contains pipeline policy knobs.
type Resolution struct {
	// AIFailurePolicy is "error" (surface the failure) or "estimate" (fall back
	// to the pacing estimator).
	AIFailurePolicy string `toml:"ai_failure_policy"`
	DisableAI       bool   `toml:"disable_ai"`
}

// Cache bounds the SQLite volume cache and search history.
type Cache struct {
	VolumeTTLHours int `toml:"volume_ttl_hours"`
	HistoryLimit   int `toml:"history_limit"`
}

// Catalog points at an optional YAML overrides file for the built-in tables.
type Catalog struct {
	OverridesPath string `toml:"overrides_path"`
}

// Logging mirrors logging.Options plus file rotation.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config is the parsed config.toml. Each section maps to one subsystem; the
// LLM section configures both chapter lookup tiers.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Server     Server     `toml:"server"`
	AniList    AniList    `toml:"anilist"`
	MangaDex   MangaDex   `toml:"mangadex"`
	LLM        LLM        `toml:"llm"`
	Resolution Resolution `toml:"resolution"`
	Cache      Cache      `toml:"cache"`
	Catalog    Catalog    `toml:"catalog"`
	Logging    Logging    `toml:"logging"`
}

func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.DataDir, "cache.db")
}

// LockPath is the flock file that keeps a second API server from starting.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mangabridge.lock")
}

func (c *Config) VolumeTTL() time.Duration {
	return time.Duration(c.Cache.VolumeTTLHours) * time.Hour
}

// AIEnabled reports whether an API key is present and lookups are not switched off.
func (c *Config) AIEnabled() bool {
	return !c.Resolution.DisableAI && strings.TrimSpace(c.LLM.APIKey) != ""
}
