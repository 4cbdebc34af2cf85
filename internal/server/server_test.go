package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mangabridge/internal/app"
	"mangabridge/internal/cachestore"
	"mangabridge/internal/episodecount"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/resolution"
	"mangabridge/internal/server"
	"mangabridge/internal/services"
	"mangabridge/internal/testsupport"
)

func newServer(t *testing.T, opts ...testsupport.ConfigOption) (*server.Server, *app.App, *testsupport.FakeAniList) {
	t.Helper()
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{
		ID:         20,
		Format:     anilist.FormatTV,
		Status:     "FINISHED",
		Title:      anilist.Title{Romaji: "NARUTO", English: "Naruto"},
		Episodes:   220,
		SeasonYear: 2002,
	})
	fake.AddMedia(anilist.Media{ID: 50, Format: anilist.FormatTV, Status: "FINISHED", Title: anilist.Title{Romaji: "Sousou no Frieren", English: "Frieren"}, Episodes: 28, SeasonYear: 2023})
	fake.AddMedia(anilist.Media{ID: 51, Format: anilist.FormatTV, Status: "FINISHED", Title: anilist.Title{Romaji: "Sousou no Frieren 2nd Season"}, Episodes: 12, SeasonYear: 2026})
	fake.SetSearchList(50, 51, 20)
	fake.SetTrending(51)

	opts = append([]testsupport.ConfigOption{testsupport.WithAniList(fake.URL())}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	a, err := app.New(context.Background(), cfg, nil, app.Options{})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	srv, err := server.New(a, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv, a, fake
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestResolveOutOfRangeReturnsFailure(t *testing.T) {
	srv, _, _ := newServer(t)

	w := do(t, srv.Handler(), http.MethodPost, "/api/resolve", `{"title":"Naruto","episode":221}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	failure := decode[services.Failure](t, w)
	if failure.Kind != services.KindEpisodeOutOfRange || !strings.Contains(failure.Message, "220") {
		t.Fatalf("unexpected failure %+v", failure)
	}
}

func TestResolveWithoutModelsUsesRequestPolicy(t *testing.T) {
	srv, a, _ := newServer(t)

	w := do(t, srv.Handler(), http.MethodPost, "/api/resolve", `{"title":"Naruto","episode":5}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 under the error policy, got %d: %s", w.Code, w.Body.String())
	}
	if failure := decode[services.Failure](t, w); failure.Kind != services.KindAILookupFailed {
		t.Fatalf("unexpected failure %+v", failure)
	}

	w = do(t, srv.Handler(), http.MethodPost, "/api/resolve", `{"title":"Naruto","episode":5,"policy":"estimate"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decode[resolution.Result](t, w)
	if result.Source != resolution.SourceEstimate || result.Chapter < 1 || result.TotalEpisodes != 220 {
		t.Fatalf("unexpected result %+v", result)
	}

	history, err := a.Store.History(context.Background())
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one history entry, got %+v (err=%v)", history, err)
	}
}

func TestResolveRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newServer(t)

	for _, body := range []string{`{"title":`, `{"title":"Naruto","episode":"five"}`, `{"title":"Naruto","episode":5,"extra":true}`} {
		w := do(t, srv.Handler(), http.MethodPost, "/api/resolve", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
	if w := do(t, srv.Handler(), http.MethodGet, "/api/resolve", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestValidateReportsTotals(t *testing.T) {
	srv, _, _ := newServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/api/validate?title=Naruto&episode=221", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := decode[episodecount.ValidationResult](t, w)
	if result.Valid || result.TotalEpisodes != 220 || !strings.Contains(result.Error, "220") {
		t.Fatalf("unexpected validation %+v", result)
	}

	w = do(t, srv.Handler(), http.MethodGet, "/api/validate?title=Naruto&episode=12", "")
	if result := decode[episodecount.ValidationResult](t, w); !result.Valid {
		t.Fatalf("episode 12 should be valid: %+v", result)
	}

	if w := do(t, srv.Handler(), http.MethodGet, "/api/validate?title=Naruto&episode=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric episode, got %d", w.Code)
	}
	if w := do(t, srv.Handler(), http.MethodGet, "/api/validate?title=&episode=3", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", w.Code)
	}
}

func TestSeasonsArcsAndSearch(t *testing.T) {
	srv, _, _ := newServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/api/seasons?title=Naruto", "")
	if identity := decode[episodecount.SeriesIdentity](t, w); identity.TotalEpisodes != 220 {
		t.Fatalf("unexpected identity %+v", identity)
	}

	w = do(t, srv.Handler(), http.MethodGet, "/api/arcs?title=Naruto", "")
	arcs := decode[server.ArcsResponse](t, w)
	if len(arcs.Arcs) == 0 || arcs.Arcs[0].Name != "Introduction Arc" {
		t.Fatalf("unexpected arcs %+v", arcs)
	}
	if w := do(t, srv.Handler(), http.MethodGet, "/api/arcs?title=Nothing%20Known", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown arcs, got %d", w.Code)
	}

	w = do(t, srv.Handler(), http.MethodGet, "/api/search?q=fri", "")
	results := decode[[]anilist.Media](t, w)
	if len(results) != 2 || results[0].ID != 50 || results[1].ID != 20 {
		t.Fatalf("expected sequel collapsed into its franchise, got %+v", results)
	}

	w = do(t, srv.Handler(), http.MethodGet, "/api/search?q=f", "")
	if results := decode[[]anilist.Media](t, w); len(results) != 0 {
		t.Fatalf("short queries return nothing, got %+v", results)
	}

	w = do(t, srv.Handler(), http.MethodGet, "/api/trending", "")
	if trending := decode[[]anilist.Media](t, w); len(trending) != 1 || trending[0].ID != 51 {
		t.Fatalf("unexpected trending %+v", trending)
	}
}

func TestHistoryListAndClear(t *testing.T) {
	srv, a, _ := newServer(t)
	if err := a.Store.RecordSearch(context.Background(), cachestore.HistoryEntry{Title: "Naruto", Episode: 5, Chapter: 9}); err != nil {
		t.Fatalf("RecordSearch: %v", err)
	}

	w := do(t, srv.Handler(), http.MethodGet, "/api/history", "")
	if entries := decode[[]cachestore.HistoryEntry](t, w); len(entries) != 1 || entries[0].Chapter != 9 {
		t.Fatalf("unexpected history %+v", entries)
	}
	if w := do(t, srv.Handler(), http.MethodDelete, "/api/history", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = do(t, srv.Handler(), http.MethodGet, "/api/history", "")
	if entries := decode[[]cachestore.HistoryEntry](t, w); len(entries) != 0 {
		t.Fatalf("expected empty history, got %+v", entries)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	srv, _, _ := newServer(t, testsupport.WithServerToken("s3cret"))

	if w := do(t, srv.Handler(), http.MethodGet, "/api/health", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	health := decode[server.HealthResponse](t, w)
	if health.Status != "ok" || health.AIEnabled || health.Policy != "error" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestStartHoldsInstanceLock(t *testing.T) {
	srv, a, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	second, err := server.New(a, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		second.Stop()
		t.Fatalf("expected lock contention, got %v", err)
	}
}
