package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable. A missing LLM key is not an
// error: the pipeline then applies the AI failure policy without calling out.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateResolution(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEndpoints() error {
	endpoints := map[string]string{
		"anilist.base_url": c.AniList.BaseURL,
		"llm.base_url":     c.LLM.BaseURL,
	}
	if c.MangaDex.Enabled {
		endpoints["mangadex.base_url"] = c.MangaDex.BaseURL
		endpoints["mangadex.uploads_url"] = c.MangaDex.UploadsURL
	}
	for key, value := range endpoints {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"anilist.timeout_seconds":    c.AniList.TimeoutSeconds,
		"mangadex.timeout_seconds":   c.MangaDex.TimeoutSeconds,
		"llm.timeout_seconds":        c.LLM.TimeoutSeconds,
		"llm.lookup_timeout_seconds": c.LLM.LookupTimeoutSeconds,
	})
}

func (c *Config) validateResolution() error {
	switch c.Resolution.AIFailurePolicy {
	case PolicyError, PolicyEstimate:
		return nil
	default:
		return fmt.Errorf("resolution.ai_failure_policy must be %q or %q, got %q", PolicyError, PolicyEstimate, c.Resolution.AIFailurePolicy)
	}
}

func (c *Config) validateCache() error {
	return ensurePositiveMap(map[string]int{
		"cache.volume_ttl_hours": c.Cache.VolumeTTLHours,
		"cache.history_limit":    c.Cache.HistoryLimit,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation values must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
