package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mangabridge/internal/cachestore"
	"mangabridge/internal/catalog"
	"mangabridge/internal/chapterlookup"
	"mangabridge/internal/config"
	"mangabridge/internal/episodecount"
	"mangabridge/internal/logging"
	"mangabridge/internal/pacing"
	"mangabridge/internal/services"
	"mangabridge/internal/volumeinfo"
)

const stageName = "resolution"

// Answer sources.
const (
	SourceAI       = "ai"
	SourceEstimate = "estimate"
)

// Cover sources.
const (
	CoverMangaDex = "mangadex"
	CoverAniList  = "anilist"
)

// ConfidenceHigh marks answers that came from a model.
const ConfidenceHigh = "high"

// Validator gates episode numbers.
type Validator interface {
	Validate(ctx context.Context, title string, episode int) (episodecount.ValidationResult, error)
}

// FillerChecker reports non-canon episodes.
type FillerChecker interface {
	IsFiller(title string, episode int) bool
}

// Estimator produces the pacing-ratio fallback.
type Estimator interface {
	Estimate(title string, episode int) pacing.Estimate
}

// ChapterLookup asks a model for the chapter an episode ends on.
type ChapterLookup interface {
	Lookup(ctx context.Context, req chapterlookup.Request) (chapterlookup.Answer, error)
}

// VolumeLookup returns authoritative volume counts.
type VolumeLookup interface {
	Lookup(ctx context.Context, seriesID int) (*volumeinfo.Info, error)
}

// CoverFinder locates a volume cover.
type CoverFinder interface {
	CoverURL(ctx context.Context, title string, volume int) (string, bool, error)
}

// HistoryRecorder remembers completed resolutions.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, entry cachestore.HistoryEntry) error
}

// Deps are the collaborators of a Pipeline. Validator is required; the rest
// may be nil, which disables that step.
type Deps struct {
	Validator Validator
	Fillers   FillerChecker
	Catalog   catalog.Source
	Estimator Estimator
	AI        ChapterLookup
	Volumes   VolumeLookup
	Covers    CoverFinder
	History   HistoryRecorder
	Logger    *slog.Logger
}

// Request is one episode to resolve.
type Request struct {
	Title   string `json:"title"`
	Episode int    `json:"episode"`
	Season  string `json:"season,omitempty"`
	// Policy overrides the configured AI failure policy when set.
	Policy string `json:"policy,omitempty"`
}

// Result is the answer returned to CLI and API callers.
type Result struct {
	Title         string `json:"title"`
	Episode       int    `json:"episode"`
	Chapter       int    `json:"chapter,omitempty"`
	Volume        int    `json:"volume,omitempty"`
	Context       string `json:"context,omitempty"`
	Source        string `json:"source,omitempty"`
	Confidence    string `json:"confidence,omitempty"`
	VolumeSource  string `json:"volume_source,omitempty"`
	IsFiller      bool   `json:"is_filler"`
	Arc           string `json:"arc,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
	CoverSource   string `json:"cover_source,omitempty"`
	Season        string `json:"season,omitempty"`
	TotalEpisodes int    `json:"total_episodes"`
	Unbounded     bool   `json:"unbounded,omitempty"`
	Model         string `json:"model,omitempty"`
	Note          string `json:"note,omitempty"`
}

// Pipeline turns (title, episode) into a chapter and volume.
type Pipeline struct {
	deps   Deps
	policy string
	logger *slog.Logger
}

// New builds a pipeline using policy when the AI lookup fails. Unknown
// policies behave like config.PolicyError.
func New(deps Deps, policy string) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		deps:   deps,
		policy: normalizePolicy(policy),
		logger: logging.NewComponentLogger(logger, stageName),
	}
}

// Policy reports the configured AI failure policy.
func (p *Pipeline) Policy() string {
	return p.policy
}

func normalizePolicy(policy string) string {
	if strings.EqualFold(strings.TrimSpace(policy), config.PolicyEstimate) {
		return config.PolicyEstimate
	}
	return config.PolicyError
}

// Resolve runs validation, the filler check, the concurrent AI and volume
// lookups, the cross-check and the cover fetch, in that order.
func (p *Pipeline) Resolve(ctx context.Context, req Request) (Result, error) {
	if p == nil || p.deps.Validator == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "resolve", "pipeline not configured", nil)
	}
	ctx, _ = services.EnsureRequestID(ctx)
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	req.Title = strings.TrimSpace(req.Title)
	req.Season = strings.TrimSpace(req.Season)
	policy := p.policy
	if req.Policy != "" {
		policy = normalizePolicy(req.Policy)
	}

	validation, err := p.deps.Validator.Validate(ctx, req.Title, req.Episode)
	if err != nil {
		logger.Info("resolution rejected",
			logging.String(logging.FieldTitle, req.Title),
			logging.Int(logging.FieldEpisode, req.Episode),
			logging.String("failure_kind", string(services.FailureKind(err))),
			logging.Error(err),
		)
		return Result{}, err
	}

	result := Result{
		Title:         firstNonEmpty(validation.Title, req.Title),
		Episode:       req.Episode,
		TotalEpisodes: validation.TotalEpisodes,
		Unbounded:     validation.Unbounded,
	}
	if season, ok := validation.Identity.SeasonFor(req.Episode); ok {
		result.Season = season.DisplayName
	}
	titles := lookupTitles(req.Title, validation.Title)
	result.Arc = p.arcFor(titles, req.Episode)

	if p.isFiller(titles, req.Episode) {
		result.IsFiller = true
		result.Note = fmt.Sprintf("Episode %d is anime-only filler; no manga chapter corresponds to it.", req.Episode)
		result.CoverURL = validation.CoverImage
		if result.CoverURL != "" {
			result.CoverSource = CoverAniList
		}
		logger.Info("filler episode detected", logging.Decision("filler", "filler", "catalog lists the episode as filler")...)
		p.recordHistory(ctx, logger, result)
		return result, nil
	}

	info, answer, aiErr := p.lookupConcurrently(ctx, logger, req, validation)

	if aiErr == nil {
		volume, volumeSource := volumeinfo.CrossCheck(answer.Volume, info)
		result.Chapter = answer.Chapter
		result.Volume = volume
		result.Context = answer.Context
		result.Source = SourceAI
		result.Confidence = ConfidenceHigh
		result.VolumeSource = volumeSource
		result.Model = answer.Model
		reason := "no authoritative volume count"
		if volumeSource == volumeinfo.SourceAuthoritative {
			reason = fmt.Sprintf("authoritative count %d, model guessed %d", info.Volumes, answer.Volume)
		}
		logger.Info("volume source decided", logging.Decision("volume_source", volumeSource, reason)...)
	} else {
		if policy != config.PolicyEstimate {
			logger.Info("ai lookup failed; surfacing error", logging.Decision("ai_fallback", config.PolicyError, "estimate fallback not enabled",
				logging.Error(aiErr),
			)...)
			return Result{}, aiErr
		}
		estimate := p.estimate(titles, req.Episode)
		result.Chapter = estimate.Chapter
		result.Volume = estimate.Volume
		result.Context = estimate.Reasoning
		result.Source = SourceEstimate
		result.Confidence = estimate.Confidence
		result.VolumeSource = SourceEstimate
		result.Note = estimate.Note
		logger.Info("ai lookup failed; using pacing estimate", logging.Decision("ai_fallback", config.PolicyEstimate, "estimate fallback enabled",
			logging.Error(aiErr),
		)...)
	}

	if result.Unbounded && req.Episode > result.TotalEpisodes {
		result.Note = joinNotes(result.Note, "This series is still airing; the episode count is not final.")
	}

	result.CoverURL, result.CoverSource = p.cover(ctx, logger, info, validation, result.Volume)
	p.recordHistory(ctx, logger, result)

	logger.Info("resolution complete",
		logging.String(logging.FieldTitle, result.Title),
		logging.Int(logging.FieldEpisode, result.Episode),
		logging.Int("chapter", result.Chapter),
		logging.Int("volume", result.Volume),
		logging.String("source", result.Source),
		logging.String("volume_source", result.VolumeSource),
		logging.String("cover_source", result.CoverSource),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// lookupConcurrently runs the volume lookup and the AI call side by side.
// Volume failures are absorbed as a nil Info.
func (p *Pipeline) lookupConcurrently(ctx context.Context, logger *slog.Logger, req Request, validation episodecount.ValidationResult) (*volumeinfo.Info, chapterlookup.Answer, error) {
	var (
		info   *volumeinfo.Info
		answer chapterlookup.Answer
		aiErr  error
	)
	g, gctx := errgroup.WithContext(ctx)

	if p.deps.Volumes != nil && validation.SeriesID > 0 {
		g.Go(func() error {
			fetched, err := p.deps.Volumes.Lookup(gctx, validation.SeriesID)
			if err != nil {
				logger.Debug("volume enrichment skipped",
					logging.Int(logging.FieldSeriesID, validation.SeriesID),
					logging.Error(err),
				)
				return nil
			}
			info = fetched
			return nil
		})
	}

	g.Go(func() error {
		if p.deps.AI == nil {
			aiErr = &chapterlookup.LookupError{}
			return nil
		}
		answer, aiErr = p.deps.AI.Lookup(gctx, chapterlookup.Request{
			Title:   req.Title,
			Episode: req.Episode,
			Season:  req.Season,
		})
		return nil
	})

	_ = g.Wait()
	if aiErr != nil && !errors.Is(aiErr, services.ErrAILookupFailed) {
		aiErr = services.Wrap(services.ErrAILookupFailed, stageName, "ai lookup", "model lookup failed", aiErr)
	}
	return info, answer, aiErr
}

func (p *Pipeline) cover(ctx context.Context, logger *slog.Logger, info *volumeinfo.Info, validation episodecount.ValidationResult, volume int) (string, string) {
	if p.deps.Covers != nil && volume > 0 {
		mangaTitle := validation.Title
		if info != nil && info.MangaTitle != "" {
			mangaTitle = info.MangaTitle
		}
		url, ok, err := p.deps.Covers.CoverURL(ctx, mangaTitle, volume)
		switch {
		case err != nil:
			logger.Debug("volume cover unavailable", logging.String("manga_title", mangaTitle), logging.Error(err))
		case ok:
			return url, CoverMangaDex
		}
	}
	if validation.CoverImage != "" {
		return validation.CoverImage, CoverAniList
	}
	return "", ""
}

func (p *Pipeline) recordHistory(ctx context.Context, logger *slog.Logger, result Result) {
	if p.deps.History == nil {
		return
	}
	err := p.deps.History.RecordSearch(ctx, cachestore.HistoryEntry{
		Title:    result.Title,
		Episode:  result.Episode,
		Chapter:  result.Chapter,
		Volume:   result.Volume,
		CoverURL: result.CoverURL,
		Source:   result.Source,
		IsFiller: result.IsFiller,
	})
	if err != nil {
		logging.WarnWithContext(logger, "search history not recorded", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the data directory"),
			logging.String(logging.FieldImpact, "this search will not appear in history"),
		)
	}
}

func (p *Pipeline) isFiller(titles []string, episode int) bool {
	if p.deps.Fillers == nil {
		return false
	}
	for _, title := range titles {
		if p.deps.Fillers.IsFiller(title, episode) {
			return true
		}
	}
	return false
}

func (p *Pipeline) arcFor(titles []string, episode int) string {
	if p.deps.Catalog == nil {
		return ""
	}
	tables := p.deps.Catalog.Snapshot()
	for _, title := range titles {
		if arc, ok := tables.ArcFor(title, episode); ok {
			return arc.Name
		}
	}
	return ""
}

func (p *Pipeline) estimate(titles []string, episode int) pacing.Estimate {
	if p.deps.Estimator == nil {
		return (*pacing.Estimator)(nil).Estimate(titles[0], episode)
	}
	best := p.deps.Estimator.Estimate(titles[0], episode)
	for _, title := range titles[1:] {
		if best.MatchedTitle != "" {
			break
		}
		best = p.deps.Estimator.Estimate(title, episode)
	}
	return best
}

// lookupTitles lists the user's title first, then the canonical one when it
// differs, for catalog lookups.
func lookupTitles(requested, canonical string) []string {
	titles := []string{requested}
	if canonical != "" && !strings.EqualFold(strings.TrimSpace(canonical), requested) {
		titles = append(titles, canonical)
	}
	return titles
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinNotes(notes ...string) string {
	var parts []string
	for _, note := range notes {
		if note = strings.TrimSpace(note); note != "" {
			parts = append(parts, note)
		}
	}
	return strings.Join(parts, " ")
}
