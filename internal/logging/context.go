package logging

import (
	"context"
	"log/slog"

	"mangabridge/internal/services"
)

// Structured field keys shared by every package.
const (
	FieldComponent     = "component"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"

	FieldTitle    = "title"
	FieldEpisode  = "episode"
	FieldSeriesID = "series_id"

	// FieldEventType, FieldErrorHint and FieldImpact accompany every warning.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"

	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

// WithContext adds the request id and pipeline stage carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if stage, ok := services.StageFromContext(ctx); ok {
		args = append(args, slog.String(FieldStage, stage))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, slog.String(FieldCorrelationID, id))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
