package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mangabridge/internal/app"
	"mangabridge/internal/chapterlookup"
	"mangabridge/internal/config"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/resolution"
	"mangabridge/internal/services"
	"mangabridge/internal/testsupport"
)

type harness struct {
	aniList  *testsupport.FakeAniList
	llm      *testsupport.FakeLLM
	mangaDex *testsupport.FakeMangaDex
	app      *app.App
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	h := &harness{
		aniList: testsupport.NewFakeAniList(t),
		llm:     testsupport.NewFakeLLM(t),
		mangaDex: testsupport.NewFakeMangaDex(t, testsupport.FakeManga{
			ID:    "md-naruto",
			Title: "NARUTO",
			Covers: []testsupport.FakeCover{
				{Volume: "1", FileName: "naruto-1.jpg"},
				{Volume: "72", FileName: "naruto-72.jpg"},
			},
		}),
	}
	h.aniList.AddMedia(anilist.Media{ID: 900, Type: anilist.TypeManga, Title: anilist.Title{Romaji: "NARUTO"}, Volumes: 72, Chapters: 700})
	h.aniList.AddMedia(anilist.Media{
		ID:         20,
		Format:     anilist.FormatTV,
		Status:     "FINISHED",
		Title:      anilist.Title{Romaji: "NARUTO", English: "Naruto"},
		Episodes:   220,
		SeasonYear: 2002,
		CoverImage: anilist.CoverImage{Large: "https://img.example/naruto.jpg"},
	}, testsupport.Edge{RelationType: anilist.RelationSource, To: 900})

	cfg := testsupport.NewConfig(t,
		testsupport.WithAniList(h.aniList.URL()),
		testsupport.WithLLM(h.llm.URL()),
		testsupport.WithMangaDex(h.mangaDex.URL()),
		testsupport.WithPolicy(policy),
	)
	now := func() time.Time { return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC) }
	a, err := app.New(context.Background(), cfg, nil, app.Options{Now: now})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	h.app = a
	return h
}

func TestScenarioNarutoEpisodeFive(t *testing.T) {
	h := newHarness(t, config.PolicyError)
	h.llm.Reply(testsupport.PrimaryModel, `{"chapter": 9, "volume": 1, "context": "Kakashi's bell test", "source": "ai"}`)

	result, err := h.app.Pipeline.Resolve(context.Background(), resolution.Request{Title: "Naruto", Episode: 5})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.IsFiller || result.Chapter < 1 || result.TotalEpisodes != 220 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Volume != 72 || result.VolumeSource != "authoritative" {
		t.Fatalf("expected AniList volume count to win, got %d from %q", result.Volume, result.VolumeSource)
	}
	if !strings.HasSuffix(result.CoverURL, "/covers/md-naruto/naruto-72.jpg.256.jpg") || result.CoverSource != resolution.CoverMangaDex {
		t.Fatalf("unexpected cover %q from %q", result.CoverURL, result.CoverSource)
	}

	history, err := h.app.Store.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Chapter != 9 {
		t.Fatalf("expected the search in history, got %+v", history)
	}
	if _, ok, err := h.app.Store.Volume(context.Background(), 20); err != nil || !ok {
		t.Fatalf("expected volume info cached under the series id, ok=%v err=%v", ok, err)
	}
}

func TestScenarioNarutoEpisodeFiveEstimated(t *testing.T) {
	h := newHarness(t, config.PolicyEstimate)

	result, err := h.app.Pipeline.Resolve(context.Background(), resolution.Request{Title: "Naruto", Episode: 5})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Source != resolution.SourceEstimate || result.Chapter < 1 {
		t.Fatalf("expected an estimated chapter, got %+v", result)
	}
}

func TestScenarioEpisodePastCatalogTotal(t *testing.T) {
	tests := []struct {
		title   string
		episode int
		total   string
	}{
		{"Naruto", 221, "220"},
		{"One Piece", 1101, "1100"},
	}
	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			h := newHarness(t, config.PolicyEstimate)
			_, err := h.app.Pipeline.Resolve(context.Background(), resolution.Request{Title: tc.title, Episode: tc.episode})
			if !errors.Is(err, services.ErrEpisodeOutOfRange) {
				t.Fatalf("expected ErrEpisodeOutOfRange, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.total) {
				t.Fatalf("error should cite %s, got %q", tc.total, err.Error())
			}
			if h.llm.Calls(testsupport.PrimaryModel) != 0 {
				t.Fatal("rejected episodes must not reach the models")
			}
		})
	}
}

func TestScenarioBothModelsMalformed(t *testing.T) {
	h := newHarness(t, config.PolicyError)
	h.llm.Reply(testsupport.PrimaryModel, "Sure! The episode ends around chapter nine.")
	h.llm.Reply(testsupport.SecondaryModel, "```json\n{\"chapter\": \"nine\"}\n```")

	result, err := h.app.Pipeline.Resolve(context.Background(), resolution.Request{Title: "Naruto", Episode: 5})
	if !errors.Is(err, services.ErrAILookupFailed) {
		t.Fatalf("expected ErrAILookupFailed, got %v", err)
	}
	var lookupErr *chapterlookup.LookupError
	if !errors.As(err, &lookupErr) || len(lookupErr.Attempts) != 2 {
		t.Fatalf("expected both tiers recorded, got %#v", err)
	}
	if result.Chapter != 0 || result.Source != "" {
		t.Fatalf("no guess may be substituted, got %+v", result)
	}
	if h.llm.Calls(testsupport.PrimaryModel) != 1 || h.llm.Calls(testsupport.SecondaryModel) != 1 {
		t.Fatalf("each tier should be called once")
	}
	if history, _ := h.app.Store.History(context.Background()); len(history) != 0 {
		t.Fatalf("failed resolution must not be remembered, got %+v", history)
	}
}

func TestNewWithoutAPIKeyDisablesModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.New(context.Background(), cfg, nil, app.Options{Policy: config.PolicyEstimate})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	defer a.Close()
	if a.LLM != nil || a.Lookup != nil || a.MangaDex != nil {
		t.Fatal("expected models and MangaDex disabled")
	}
	if a.Pipeline.Policy() != config.PolicyEstimate {
		t.Fatalf("policy override ignored, got %q", a.Pipeline.Policy())
	}

	filler, err := a.Pipeline.Resolve(context.Background(), resolution.Request{Title: "Naruto", Episode: 106})
	if err != nil {
		t.Fatalf("Resolve filler: %v", err)
	}
	if !filler.IsFiller || filler.Chapter != 0 {
		t.Fatalf("expected filler result without a chapter, got %+v", filler)
	}

	canon, err := a.Pipeline.Resolve(context.Background(), resolution.Request{Title: "Naruto", Episode: 50})
	if err != nil {
		t.Fatalf("Resolve canon: %v", err)
	}
	if canon.Source != resolution.SourceEstimate || canon.Chapter < 1 {
		t.Fatalf("expected a pacing estimate, got %+v", canon)
	}
}
