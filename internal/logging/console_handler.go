package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO resolution: resolved chapter [req=1a2b3c4d stage=lookup] chapter=42
//
// component, stage and correlation id are lifted out of the key=value tail.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string // group path joined with dots, trailing dot included
	bound     []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = appendFields(append([]field(nil), h.bound...), h.prefix, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})

	var component, stage, correlation string
	var tail strings.Builder
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = plain(f.value)
		case FieldStage:
			stage = plain(f.value)
		case FieldCorrelationID:
			correlation = plain(f.value)
		default:
			fmt.Fprintf(&tail, " %s=%s", f.key, quoted(f.value))
		}
	}

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}
	var line strings.Builder
	line.WriteString(when.UTC().Format(time.RFC3339))
	line.WriteString(" " + levelName(record.Level) + " ")
	if component != "" {
		line.WriteString(component + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	if tag := requestTag(correlation, stage); tag != "" {
		line.WriteString(" [" + tag + "]")
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(tail.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

// appendFields flattens attrs, expanding groups into dotted keys.
func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner += attr.Key + "."
			}
			dst = appendFields(dst, inner, value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: value})
	}
	return dst
}

// requestTag keeps only the first eight characters of the correlation id.
func requestTag(correlation, stage string) string {
	var parts []string
	if correlation != "" {
		parts = append(parts, "req="+correlation[:min(len(correlation), 8)])
	}
	if stage != "" {
		parts = append(parts, "stage="+stage)
	}
	return strings.Join(parts, " ")
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func plain(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func quoted(v slog.Value) string {
	s := plain(v)
	if s == "" || strings.ContainsAny(s, " \t\n\r=\"") {
		return strconv.Quote(s)
	}
	return s
}
