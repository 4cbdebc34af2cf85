package config

import (
	"fmt"
	"os"
	"strings"
)

// llmKeyEnvVars are consulted in order; the first non-empty value wins over the file.
var llmKeyEnvVars = []string{"MANGABRIDGE_LLM_API_KEY", "OPENROUTER_API_KEY"}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeAniList()
	c.normalizeMangaDex()
	c.normalizeLLM()
	c.normalizeResolution()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Catalog.OverridesPath) != "" {
		if c.Catalog.OverridesPath, err = ExpandPath(c.Catalog.OverridesPath); err != nil {
			return fmt.Errorf("catalog.overrides_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if value, ok := os.LookupEnv("MANGABRIDGE_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Server.Token = strings.TrimSpace(value)
	}
	c.Server.Token = strings.TrimSpace(c.Server.Token)
}

func (c *Config) normalizeAniList() {
	c.AniList.BaseURL = strings.TrimSpace(c.AniList.BaseURL)
	if c.AniList.BaseURL == "" {
		c.AniList.BaseURL = defaultAniListBaseURL
	}
}

func (c *Config) normalizeMangaDex() {
	c.MangaDex.BaseURL = strings.TrimSpace(c.MangaDex.BaseURL)
	if c.MangaDex.BaseURL == "" {
		c.MangaDex.BaseURL = defaultMangaDexBaseURL
	}
	c.MangaDex.UploadsURL = strings.TrimSpace(c.MangaDex.UploadsURL)
	if c.MangaDex.UploadsURL == "" {
		c.MangaDex.UploadsURL = defaultMangaDexUploadsURL
	}
}

func (c *Config) normalizeLLM() {
	for _, name := range llmKeyEnvVars {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			c.LLM.APIKey = value
			break
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.PrimaryModel = strings.TrimSpace(c.LLM.PrimaryModel)
	if c.LLM.PrimaryModel == "" {
		c.LLM.PrimaryModel = defaultLLMPrimaryModel
	}
	c.LLM.SecondaryModel = strings.TrimSpace(c.LLM.SecondaryModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = defaultLLMMaxAttempts
	}
}

func (c *Config) normalizeResolution() {
	c.Resolution.AIFailurePolicy = strings.ToLower(strings.TrimSpace(c.Resolution.AIFailurePolicy))
	if c.Resolution.AIFailurePolicy == "" {
		c.Resolution.AIFailurePolicy = defaultAIFailurePolicy
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
