package volumeinfo

import (
	"context"
	"errors"
	"log/slog"

	"mangabridge/internal/cachestore"
	"mangabridge/internal/logging"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/services"
)

// Volume sources recorded on a resolution.
const (
	SourceAuthoritative = "authoritative"
	SourceAI            = "AI"
)

// Info is the authoritative manga size for one anime series.
type Info struct {
	SeriesID   int    `json:"series_id"`
	MangaTitle string `json:"manga_title,omitempty"`
	Volumes    int    `json:"volumes,omitempty"`
	Chapters   int    `json:"chapters,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

// CrossCheck picks the volume to report. The authoritative count wins when
// it is known; agreement is also reported as authoritative.
func CrossCheck(aiVolume int, info *Info) (int, string) {
	if info == nil || info.Volumes <= 0 {
		return aiVolume, SourceAI
	}
	return info.Volumes, SourceAuthoritative
}

// Fetcher loads volume info from the metadata source.
type Fetcher interface {
	VolumeInfo(ctx context.Context, id int) (*anilist.VolumeInfo, error)
}

// Cache is the persisted view of previously fetched volume info.
type Cache interface {
	Volume(ctx context.Context, seriesID int) (cachestore.VolumeEntry, bool, error)
	PutVolume(ctx context.Context, entry cachestore.VolumeEntry) error
}

// Service serves volume info through the cache.
type Service struct {
	fetcher Fetcher
	cache   Cache
	logger  *slog.Logger
}

// NewService wires a Service. A nil cache always fetches.
func NewService(fetcher Fetcher, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{fetcher: fetcher, cache: cache, logger: logger}
}

// Lookup returns volume info for seriesID. Any failure is reported as
// ErrEnrichmentUnavailable and nothing is cached.
func (s *Service) Lookup(ctx context.Context, seriesID int) (*Info, error) {
	if seriesID <= 0 {
		return nil, services.Wrap(services.ErrEnrichmentUnavailable, "volumeinfo", "lookup", "series id unknown", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	if s.cache != nil {
		entry, ok, err := s.cache.Volume(ctx, seriesID)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "volume cache read failed", "volume_cache_read_failed",
				logging.Int(logging.FieldSeriesID, seriesID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'mangabridge cache clear' if the cache database is corrupt"),
				logging.String(logging.FieldImpact, "volume info fetched from AniList instead"),
			)
		case ok:
			return &Info{
				SeriesID:   entry.SeriesID,
				MangaTitle: entry.MangaTitle,
				Volumes:    entry.Volumes,
				Chapters:   entry.Chapters,
				Cached:     true,
			}, nil
		}
	}

	if s.fetcher == nil {
		return nil, services.Wrap(services.ErrEnrichmentUnavailable, "volumeinfo", "fetch", "metadata source unavailable", nil)
	}
	fetched, err := s.fetcher.VolumeInfo(ctx, seriesID)
	if err != nil {
		return nil, services.Wrap(services.ErrEnrichmentUnavailable, "volumeinfo", "fetch", "volume info unavailable", err)
	}
	if fetched == nil {
		return nil, services.Wrap(services.ErrEnrichmentUnavailable, "volumeinfo", "fetch", "volume info unavailable", errors.New("empty response"))
	}

	info := &Info{
		SeriesID:   seriesID,
		MangaTitle: fetched.MangaTitle,
		Volumes:    fetched.Volumes,
		Chapters:   fetched.Chapters,
	}
	if s.cache != nil {
		if err := s.cache.PutVolume(ctx, cachestore.VolumeEntry{
			SeriesID:   seriesID,
			MangaID:    fetched.MangaID,
			MangaTitle: fetched.MangaTitle,
			Volumes:    fetched.Volumes,
			Chapters:   fetched.Chapters,
		}); err != nil {
			logging.WarnWithContext(logger, "volume cache write failed", "volume_cache_write_failed",
				logging.Int(logging.FieldSeriesID, seriesID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the data directory"),
				logging.String(logging.FieldImpact, "volume info will be fetched again next time"),
			)
		}
	}
	logger.Debug("volume info fetched",
		logging.Int(logging.FieldSeriesID, seriesID),
		logging.String("manga_title", info.MangaTitle),
		logging.Int("volumes", info.Volumes),
		logging.Int("chapters", info.Chapters),
	)
	return info, nil
}
