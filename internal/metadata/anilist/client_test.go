package anilist_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/testsupport"
)

func newClient(t *testing.T, url string) *anilist.Client {
	t.Helper()
	client, err := anilist.New(url, time.Second)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := anilist.New(" ", time.Second); err == nil {
		t.Fatal("expected error when endpoint missing")
	}
}

func TestSearchReturnsMedia(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{ID: 20, Format: anilist.FormatTV, Title: anilist.Title{Romaji: "NARUTO", English: "Naruto"}, Episodes: 220})

	media, err := newClient(t, fake.URL()).Search(context.Background(), "naruto")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if media.ID != 20 || media.Episodes != 220 {
		t.Fatalf("unexpected media %+v", media)
	}
	if media.Title.Display() != "Naruto" || media.Title.Canonical() != "NARUTO" {
		t.Fatalf("unexpected titles %+v", media.Title)
	}
}

func TestSearchNotFound(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	_, err := newClient(t, fake.URL()).Search(context.Background(), "No Such Show")
	if !errors.Is(err, anilist.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMediaIncludesRelations(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{ID: 1, Title: anilist.Title{Romaji: "Show"}}, testsupport.Edge{RelationType: anilist.RelationSequel, To: 2})
	fake.AddMedia(anilist.Media{ID: 2, Format: anilist.FormatTV, Title: anilist.Title{Romaji: "Show 2nd Season"}, Episodes: 12})

	media, err := newClient(t, fake.URL()).Media(context.Background(), 1)
	if err != nil {
		t.Fatalf("Media returned error: %v", err)
	}
	if media.Relations == nil || len(media.Relations.Edges) != 1 {
		t.Fatalf("expected one relation edge, got %+v", media.Relations)
	}
	edge := media.Relations.Edges[0]
	if edge.RelationType != anilist.RelationSequel || edge.Node.ID != 2 || edge.Node.Episodes != 12 {
		t.Fatalf("unexpected edge %+v", edge)
	}
}

func TestMediaSurfacesStatusErrors(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.FailID(5, http.StatusTooManyRequests)

	_, err := newClient(t, fake.URL()).Media(context.Background(), 5)
	var statusErr *anilist.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status error, got %v", err)
	}
}

func TestVolumeInfoPrefersSourceManga(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{ID: 10, Title: anilist.Title{Romaji: "Anime"}},
		testsupport.Edge{RelationType: anilist.RelationAdaptation, To: 12},
		testsupport.Edge{RelationType: anilist.RelationSource, To: 11},
	)
	fake.AddMedia(anilist.Media{ID: 11, Type: anilist.TypeManga, Title: anilist.Title{Romaji: "Source Manga"}, Volumes: 72, Chapters: 700})
	fake.AddMedia(anilist.Media{ID: 12, Type: anilist.TypeManga, Title: anilist.Title{Romaji: "Spin-off"}, Volumes: 3})

	info, err := newClient(t, fake.URL()).VolumeInfo(context.Background(), 10)
	if err != nil {
		t.Fatalf("VolumeInfo returned error: %v", err)
	}
	if info.MangaID != 11 || info.Volumes != 72 || info.Chapters != 700 || info.MangaTitle != "Source Manga" {
		t.Fatalf("unexpected volume info %+v", info)
	}
}

func TestVolumeInfoFallsBackToOwnCounts(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{ID: 30, Title: anilist.Title{Romaji: "Original"}})

	info, err := newClient(t, fake.URL()).VolumeInfo(context.Background(), 30)
	if err != nil {
		t.Fatalf("VolumeInfo returned error: %v", err)
	}
	if info.MangaID != 0 || info.Volumes != 0 || info.MangaTitle != "Original" {
		t.Fatalf("unexpected volume info %+v", info)
	}
}

func TestSearchListDropsSequelsAndCaps(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	ids := []int{}
	add := func(id int, romaji string) {
		fake.AddMedia(anilist.Media{ID: id, Title: anilist.Title{Romaji: romaji}})
		ids = append(ids, id)
	}
	add(1, "Shingeki no Kyojin")
	add(2, "Shingeki no Kyojin 2nd Season")
	add(3, "Shingeki no Kyojin: The Final Season")
	for i := 0; i < 12; i++ {
		add(100+i, "Show "+string(rune('A'+i)))
	}
	fake.SetSearchList(ids...)

	client := newClient(t, fake.URL())
	results, err := client.SearchList(context.Background(), "shingeki")
	if err != nil {
		t.Fatalf("SearchList returned error: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	if results[0].ID != 1 || results[1].ID != 100 {
		t.Fatalf("expected sequels removed, got ids %d, %d", results[0].ID, results[1].ID)
	}

	short, err := client.SearchList(context.Background(), "s")
	if err != nil || len(short) != 0 {
		t.Fatalf("expected empty result for short query, got %v err=%v", short, err)
	}
	if fake.Calls("list") != 1 {
		t.Fatalf("short query should not reach AniList, got %d calls", fake.Calls("list"))
	}
}

func TestBaseTitle(t *testing.T) {
	cases := map[string]string{
		"Kimetsu no Yaiba":                 "kimetsu no yaiba",
		"Jujutsu Kaisen 2nd Season":        "jujutsu kaisen",
		"Boku no Hero Academia Season 5":   "boku no hero academia 5",
		"Shingeki no Kyojin: Final Season": "shingeki no kyojin",
	}
	for input, want := range cases {
		if got := anilist.BaseTitle(input); got != want {
			t.Fatalf("BaseTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTrendingIncludesNextEpisode(t *testing.T) {
	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{
		ID:                7,
		Status:            anilist.StatusReleasing,
		Title:             anilist.Title{Romaji: "Airing"},
		NextAiringEpisode: &anilist.AiringEpisode{Episode: 8, TimeUntilAiring: 3600},
	})
	fake.SetTrending(7)

	results, err := newClient(t, fake.URL()).Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending returned error: %v", err)
	}
	if len(results) != 1 || results[0].NextAiringEpisode == nil || results[0].NextAiringEpisode.Episode != 8 {
		t.Fatalf("unexpected trending payload %+v", results)
	}
}

func TestGraphQLErrorsAreReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Invalid query","status":400}]}`))
	}))
	t.Cleanup(server.Close)

	_, err := newClient(t, server.URL).Trending(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Invalid query") {
		t.Fatalf("expected GraphQL error message, got %v", err)
	}
}
