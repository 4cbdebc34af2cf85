package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrEpisodeOutOfRange     = errors.New("episode out of range")
	ErrAILookupFailed        = errors.New("ai lookup failed")
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	ErrValidation            = errors.New("validation error")
	ErrConfiguration         = errors.New("configuration error")
	ErrTimeout               = errors.New("timeout")
	ErrTransient             = errors.New("transient failure")
)

// Kind identifies a failure class in the outbound error contract.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindEpisodeOutOfRange     Kind = "episode_out_of_range"
	KindAILookupFailed        Kind = "ai_lookup_failed"
	KindEnrichmentUnavailable Kind = "enrichment_unavailable"
	KindValidation            Kind = "validation"
	KindConfiguration         Kind = "configuration"
	KindTimeout               Kind = "timeout"
	KindTransient             Kind = "transient"
	KindInternal              Kind = "internal"
)

// Failure is the structured error returned to callers of the pipeline.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error chain onto the outbound failure kind.
func FailureKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEpisodeOutOfRange):
		return KindEpisodeOutOfRange
	case errors.Is(err, ErrAILookupFailed):
		return KindAILookupFailed
	case errors.Is(err, ErrEnrichmentUnavailable):
		return KindEnrichmentUnavailable
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// NewFailure converts err into the outbound failure payload. The message keeps
// the full error chain so provider causes stay visible to the caller.
func NewFailure(err error) Failure {
	if err == nil {
		return Failure{}
	}
	var existing Failure
	if errors.As(err, &existing) {
		return existing
	}
	return Failure{Kind: FailureKind(err), Message: err.Error()}
}

// HTTPStatus returns the HTTP status code used when surfacing err over the API.
func HTTPStatus(err error) int {
	switch FailureKind(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindEpisodeOutOfRange:
		return http.StatusUnprocessableEntity
	case KindAILookupFailed, KindTransient:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
