package catalog

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"mangabridge/internal/logging"
)

const (
	// DefaultChaptersPerEpisode applies when no pacing row matches.
	DefaultChaptersPerEpisode = 2.0
	// DefaultVolumesPerChapter applies when a pacing row omits it.
	DefaultVolumesPerChapter = 1.0 / 9.0
)

// Source yields the tables a component should consult right now.
type Source interface {
	Snapshot() *Tables
}

// Catalog combines the builtin tables with a user-authored overrides file.
// The file is re-read whenever its modification time changes.
type Catalog struct {
	path   string
	logger *slog.Logger
	base   *Tables

	mu      sync.RWMutex
	loaded  time.Time
	current *Tables
}

// New constructs a catalog over the builtin tables. An empty path disables
// overrides.
func New(path string, logger *slog.Logger) (*Catalog, error) {
	base, err := Builtin()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Catalog{
		path:    strings.TrimSpace(path),
		logger:  logger,
		base:    base,
		current: base,
	}, nil
}

// Path returns the overrides file location.
func (c *Catalog) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Snapshot returns the current tables. A broken overrides file is logged and
// the last good snapshot keeps serving.
func (c *Catalog) Snapshot() *Tables {
	if c == nil {
		return nil
	}
	if err := c.Reload(); err != nil {
		logging.WarnWithContext(c.logger, "catalog overrides rejected", "catalog_overrides_invalid",
			logging.String("path", c.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the overrides file; builtin tables remain in use"),
		)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Reload re-reads the overrides file if it changed since the last load.
func (c *Catalog) Reload() error {
	if c == nil || c.path == "" {
		return nil
	}
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.reset()
			return nil
		}
		return err
	}

	c.mu.RLock()
	alreadyLoaded := !c.loaded.IsZero() && c.loaded.Equal(info.ModTime())
	c.mu.RUnlock()
	if alreadyLoaded {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	entries, err := Parse(data)
	if err != nil {
		return err
	}
	merged, err := Merge(c.base, entries)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.current = merged
	c.loaded = info.ModTime()
	c.mu.Unlock()
	c.logger.Info("loaded catalog overrides", logging.String("path", c.path), logging.Int("count", len(entries)))
	return nil
}

func (c *Catalog) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.base
	c.loaded = time.Time{}
}
