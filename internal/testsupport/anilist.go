package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/textutil"
)

// Edge links two fake AniList entries.
type Edge struct {
	RelationType string
	To           int
}

// FakeAniList is an in-memory GraphQL endpoint answering the queries issued by
// the anilist client.
type FakeAniList struct {
	Server *httptest.Server

	mu       sync.Mutex
	media    map[int]anilist.Media
	edges    map[int][]Edge
	searches map[string]int
	list     []int
	trending []int
	failIDs  map[int]int
	calls    map[string]int
}

// NewFakeAniList starts a fake server that is closed with the test.
func NewFakeAniList(t testing.TB) *FakeAniList {
	t.Helper()
	fake := &FakeAniList{
		media:    make(map[int]anilist.Media),
		edges:    make(map[int][]Edge),
		searches: make(map[string]int),
		failIDs:  make(map[int]int),
		calls:    make(map[string]int),
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the GraphQL endpoint.
func (f *FakeAniList) URL() string {
	return f.Server.URL
}

// AddMedia registers an entry and makes it searchable by its titles.
func (f *FakeAniList) AddMedia(media anilist.Media, edges ...Edge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if media.Type == "" {
		media.Type = anilist.TypeAnime
	}
	f.media[media.ID] = media
	f.edges[media.ID] = append(f.edges[media.ID], edges...)
	if media.Type == anilist.TypeAnime {
		for _, title := range []string{media.Title.Romaji, media.Title.English} {
			if key := textutil.NormalizeTitle(title); key != "" {
				if _, taken := f.searches[key]; !taken {
					f.searches[key] = media.ID
				}
			}
		}
	}
}

// AddSearch routes an arbitrary search string to id.
func (f *FakeAniList) AddSearch(query string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[textutil.NormalizeTitle(query)] = id
}

// SetSearchList fixes the ids returned for autocomplete queries.
func (f *FakeAniList) SetSearchList(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = ids
}

// SetTrending fixes the ids returned by the trending feed.
func (f *FakeAniList) SetTrending(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trending = ids
}

// FailID makes by-id fetches for id answer with status.
func (f *FakeAniList) FailID(id, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIDs[id] = status
}

// Calls reports how many requests of a kind ("search", "media", "volume",
// "list", "trending") were served.
func (f *FakeAniList) Calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type fakeGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (f *FakeAniList) serve(w http.ResponseWriter, r *http.Request) {
	var req fakeGraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(req.Query, "TRENDING_DESC"):
		f.calls["trending"]++
		writeData(w, map[string]any{"Page": map[string]any{"media": f.collect(f.trending)}})
	case strings.Contains(req.Query, "Page("):
		f.calls["list"]++
		writeData(w, map[string]any{"Page": map[string]any{"media": f.collect(f.list)}})
	case req.Variables["search"] != nil:
		f.calls["search"]++
		query, _ := req.Variables["search"].(string)
		id, ok := f.searches[textutil.NormalizeTitle(query)]
		if !ok {
			writeNotFound(w)
			return
		}
		media := f.media[id]
		media.Relations = nil
		writeData(w, map[string]any{"Media": media})
	default:
		kind := "media"
		if strings.Contains(req.Query, "volumes") {
			kind = "volume"
		}
		f.calls[kind]++
		rawID, _ := req.Variables["id"].(float64)
		id := int(rawID)
		if status, fail := f.failIDs[id]; fail {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"errors": []any{map[string]any{"message": "forced failure", "status": status}}})
			return
		}
		media, ok := f.media[id]
		if !ok {
			writeNotFound(w)
			return
		}
		media.Relations = &anilist.Relations{}
		for _, edge := range f.edges[id] {
			node, ok := f.media[edge.To]
			if !ok {
				continue
			}
			node.Relations = nil
			media.Relations.Edges = append(media.Relations.Edges, anilist.RelationEdge{RelationType: edge.RelationType, Node: node})
		}
		writeData(w, map[string]any{"Media": media})
	}
}

func (f *FakeAniList) collect(ids []int) []anilist.Media {
	out := make([]anilist.Media, 0, len(ids))
	for _, id := range ids {
		if media, ok := f.media[id]; ok {
			media.Relations = nil
			out = append(out, media)
		}
	}
	return out
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":   map[string]any{"Media": nil},
		"errors": []any{map[string]any{"message": "Not Found.", "status": 404}},
	})
}
