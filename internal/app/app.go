package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mangabridge/internal/cachestore"
	"mangabridge/internal/catalog"
	"mangabridge/internal/chapterlookup"
	"mangabridge/internal/config"
	"mangabridge/internal/episodecount"
	"mangabridge/internal/filler"
	"mangabridge/internal/logging"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/metadata/mangadex"
	"mangabridge/internal/pacing"
	"mangabridge/internal/resolution"
	"mangabridge/internal/services/llm"
	"mangabridge/internal/volumeinfo"
)

// App holds every component built from one configuration. CLI commands and
// the HTTP API share it.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Catalog   *catalog.Catalog
	AniList   *anilist.Client
	MangaDex  *mangadex.Client
	LLM       *llm.Client
	Lookup    *chapterlookup.Client
	Store     *cachestore.Store
	Resolver  *episodecount.Resolver
	Gate      *episodecount.Gate
	Fillers   *filler.Classifier
	Estimator *pacing.Estimator
	Volumes   *volumeinfo.Service
	Pipeline  *resolution.Pipeline
}

// Options adjusts how the App is assembled.
type Options struct {
	// Policy overrides resolution.ai_failure_policy when set.
	Policy string
	// Now overrides the clock used in prompts and cache freshness checks.
	Now func() time.Time
}

// New wires the application. Close releases the cache database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}

	tables, err := catalog.New(cfg.Catalog.OverridesPath, logging.NewComponentLogger(logger, "catalog"))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.Catalog = tables

	a.AniList, err = anilist.New(cfg.AniList.BaseURL, seconds(cfg.AniList.TimeoutSeconds))
	if err != nil {
		return nil, fmt.Errorf("anilist client: %w", err)
	}
	if cfg.MangaDex.Enabled {
		a.MangaDex, err = mangadex.New(cfg.MangaDex.BaseURL, cfg.MangaDex.UploadsURL, seconds(cfg.MangaDex.TimeoutSeconds))
		if err != nil {
			return nil, fmt.Errorf("mangadex client: %w", err)
		}
	}

	var storeOpts []cachestore.Option
	storeOpts = append(storeOpts,
		cachestore.WithVolumeTTL(cfg.VolumeTTL()),
		cachestore.WithHistoryLimit(cfg.Cache.HistoryLimit),
	)
	if opts.Now != nil {
		storeOpts = append(storeOpts, cachestore.WithClock(opts.Now))
	}
	a.Store, err = cachestore.Open(ctx, cfg.CacheDBPath(), storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	a.Fillers = filler.New(a.Catalog)
	a.Estimator = pacing.New(a.Catalog, a.Fillers)
	a.Resolver = episodecount.NewResolver(a.AniList, a.Catalog, logging.NewComponentLogger(logger, "episodecount"))
	a.Gate = episodecount.NewGate(a.Resolver, logging.NewComponentLogger(logger, "gate"))
	a.Volumes = volumeinfo.NewService(a.AniList, a.Store, logging.NewComponentLogger(logger, "volumeinfo"))

	deps := resolution.Deps{
		Validator: a.Gate,
		Fillers:   a.Fillers,
		Catalog:   a.Catalog,
		Estimator: a.Estimator,
		Volumes:   a.Volumes,
		History:   a.Store,
		Logger:    logger,
	}
	if a.MangaDex != nil {
		deps.Covers = a.MangaDex
	}
	if cfg.AIEnabled() {
		a.LLM = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.PrimaryModel,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			MaxAttempts:    cfg.LLM.MaxAttempts,
		})
		lookupOpts := []chapterlookup.Option{chapterlookup.WithLogger(logging.NewComponentLogger(logger, "chapterlookup"))}
		if opts.Now != nil {
			lookupOpts = append(lookupOpts, chapterlookup.WithClock(opts.Now))
		}
		a.Lookup = chapterlookup.New(a.LLM, chapterlookup.Config{
			PrimaryModel:   cfg.LLM.PrimaryModel,
			SecondaryModel: cfg.LLM.SecondaryModel,
			TierTimeout:    seconds(cfg.LLM.LookupTimeoutSeconds),
		}, lookupOpts...)
		deps.AI = a.Lookup
	} else {
		logger.Info("chapter lookup models disabled",
			logging.String("reason", disabledReason(cfg)),
			logging.String("ai_failure_policy", cfg.Resolution.AIFailurePolicy),
		)
	}

	policy := cfg.Resolution.AIFailurePolicy
	if opts.Policy != "" {
		policy = opts.Policy
	}
	a.Pipeline = resolution.New(deps, policy)
	return a, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.Store.Close()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func disabledReason(cfg *config.Config) string {
	if cfg.Resolution.DisableAI {
		return "resolution.disable_ai is set"
	}
	return "no llm api key configured"
}
