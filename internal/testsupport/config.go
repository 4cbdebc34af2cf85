package testsupport

import (
	"path/filepath"
	"testing"

	"mangabridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network endpoints point nowhere until an option wires a fake server, the AI
// is disabled and MangaDex is off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.AniList.BaseURL = "http://127.0.0.1:1/graphql"
	cfgVal.MangaDex.Enabled = false
	cfgVal.LLM.APIKey = ""
	cfgVal.Catalog.OverridesPath = filepath.Join(base, "catalog.yaml")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAniList points the AniList client at a fake server.
func WithAniList(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AniList.BaseURL = url
	}
}

// WithMangaDex enables MangaDex against a fake server serving both the API and
// the uploads host.
func WithMangaDex(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MangaDex.Enabled = true
		b.cfg.MangaDex.BaseURL = url
		b.cfg.MangaDex.UploadsURL = url
	}
}

// WithLLM enables the AI lookup against a fake chat completion server.
func WithLLM(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = "test-key"
		b.cfg.LLM.BaseURL = url
		b.cfg.LLM.PrimaryModel = PrimaryModel
		b.cfg.LLM.SecondaryModel = SecondaryModel
		b.cfg.LLM.LookupTimeoutSeconds = 5
	}
}

// WithPolicy sets the AI failure policy.
func WithPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolution.AIFailurePolicy = policy
	}
}

// WithServerToken requires bearer auth on the HTTP API.
func WithServerToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Token = token
	}
}
