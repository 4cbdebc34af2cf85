package services

import (
	"context"

	"github.com/google/uuid"
)

// Context keys.
type (
	stageCtxKey     struct{}
	requestIDCtxKey struct{}
)

// WithStage records the pipeline stage a request is in. Blank stages are ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageCtxKey{}, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageCtxKey{})
}

// WithRequestID attaches the correlation id used to tie log lines together.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDCtxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDCtxKey{})
}

// EnsureRequestID keeps an existing correlation id or stamps a new UUID.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

func withString(ctx context.Context, key any, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}
