package episodecount

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mangabridge/internal/logging"
	"mangabridge/internal/services"
)

// OutOfRangeError reports an episode past the franchise total.
type OutOfRangeError struct {
	Title     string
	Total     int
	Requested int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s only has %d episodes", e.Title, e.Total)
}

func (e *OutOfRangeError) Unwrap() error {
	return services.ErrEpisodeOutOfRange
}

// ValidationResult is the gate's verdict for one request.
type ValidationResult struct {
	Valid         bool   `json:"valid"`
	TotalEpisodes int    `json:"total_episodes"`
	Error         string `json:"error,omitempty"`
	SeriesID      int    `json:"series_id,omitempty"`
	Title         string `json:"title,omitempty"`
	CoverImage    string `json:"cover_image,omitempty"`
	Unbounded     bool   `json:"unbounded,omitempty"`

	Identity SeriesIdentity `json:"-"`
}

// IdentityResolver resolves a title to its franchise.
type IdentityResolver interface {
	Resolve(ctx context.Context, title string) (SeriesIdentity, error)
}

// Gate rejects episodes that cannot exist before any expensive work runs.
type Gate struct {
	resolver IdentityResolver
	logger   *slog.Logger
}

// NewGate wraps resolver.
func NewGate(resolver IdentityResolver, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{resolver: resolver, logger: logger}
}

// Validate checks 1 <= episode <= total. An ongoing trailing season leaves the
// upper bound open.
func (g *Gate) Validate(ctx context.Context, title string, episode int) (ValidationResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		err := services.Wrap(services.ErrValidation, "validate", "", "title is required", nil)
		return ValidationResult{Error: err.Error()}, err
	}
	if episode < 1 {
		err := services.Wrap(services.ErrValidation, "validate", "", fmt.Sprintf("episode must be 1 or greater, got %d", episode), nil)
		return ValidationResult{Error: err.Error()}, err
	}

	identity, err := g.resolver.Resolve(ctx, title)
	if err != nil {
		return ValidationResult{Error: err.Error()}, err
	}

	result := ValidationResult{
		TotalEpisodes: identity.TotalEpisodes,
		SeriesID:      identity.ID,
		Title:         identity.Title,
		CoverImage:    identity.CoverImage,
		Unbounded:     identity.Ongoing(),
		Identity:      identity,
	}
	if episode > identity.TotalEpisodes && !result.Unbounded {
		rangeErr := &OutOfRangeError{Title: identity.Title, Total: identity.TotalEpisodes, Requested: episode}
		result.Error = rangeErr.Error()
		logging.WithContext(ctx, g.logger).Info("episode rejected",
			logging.String(logging.FieldTitle, identity.Title),
			logging.Int(logging.FieldEpisode, episode),
			logging.Int("total_episodes", identity.TotalEpisodes),
		)
		return result, rangeErr
	}
	result.Valid = true
	return result, nil
}
