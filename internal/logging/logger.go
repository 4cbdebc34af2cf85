package logging

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"mangabridge/internal/config"
)

// LogFileName is the rotating log file created inside the configured log directory.
const LogFileName = "mangabridge.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Rotation    Rotation
	Development bool
}

// Rotation configures size/age based rotation for file outputs.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	writer, err := openWriters(opts.OutputPaths, opts.Rotation)
	if err != nil {
		return nil, err
	}
	handler, err := newHandler(opts.Format, writer, levelVar, opts.Development || levelVar.Level() <= slog.LevelDebug)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// NewFromConfig creates the process logger: the configured format on stderr
// plus a JSON copy in a rotating file under the log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(cfg.Logging.Level))
	addSource := levelVar.Level() <= slog.LevelDebug

	console, err := newHandler(cfg.Logging.Format, os.Stderr, levelVar, addSource)
	if err != nil {
		return nil, err
	}

	logDir := strings.TrimSpace(cfg.Paths.LogDir)
	if logDir == "" {
		return slog.New(console), nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file := newRotatingWriter(filepath.Join(logDir, LogFileName), Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	return slog.New(newMultiHandler(console, newJSONHandler(file, levelVar, addSource))), nil
}

func newHandler(format string, w io.Writer, lvl *slog.LevelVar, addSource bool) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newConsoleHandler(w, lvl, addSource), nil
	case "json":
		return newJSONHandler(w, lvl, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

// parseLevel accepts slog's level names in any case plus "warning".
// Unknown values log at info.
func parseLevel(name string) slog.Level {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openWriters maps "stdout", "stderr" and file paths to one writer. Files are
// rotated by lumberjack; duplicates are opened once.
func openWriters(paths []string, rotation Rotation) (io.Writer, error) {
	opened := map[string]bool{}
	var writers []io.Writer
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || opened[path] {
			continue
		}
		opened[path] = true
		w, err := openWriter(path, rotation)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		return os.Stderr, nil
	}
	return io.MultiWriter(writers...), nil
}

func openWriter(path string, rotation Rotation) (io.Writer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory for %s: %w", path, err)
	}
	return newRotatingWriter(path, rotation), nil
}

func newRotatingWriter(path string, rotation Rotation) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cmp.Or(max(rotation.MaxSizeMB, 0), 10),
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}
}
