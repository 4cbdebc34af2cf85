package logging

import (
	"context"
	"log/slog"
)

// Defaults filled into warnings that omit them.
const (
	defaultErrorHint = "check logs for details"
	defaultImpact    = "operation completed with warnings"
)

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Caller-supplied values win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	present := make(map[string]bool, len(attrs))
	for _, attr := range attrs {
		present[attr.Key] = true
	}
	for _, fallback := range []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
		String(FieldImpact, defaultImpact),
	} {
		if !present[fallback.Key] {
			attrs = append(attrs, fallback)
		}
	}
	logger.Warn(msg, Args(attrs...)...)
}

// Decision returns logger args describing a branch the pipeline took.
func Decision(kind, result, reason string, extra ...Attr) []any {
	attrs := append([]Attr{
		String(FieldDecisionType, kind),
		String(FieldDecisionResult, result),
		String(FieldDecisionReason, reason),
	}, extra...)
	return Args(attrs...)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
