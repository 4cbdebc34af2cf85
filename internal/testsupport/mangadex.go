package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeManga is one MangaDex manga with its covers keyed by volume label. An
// empty label stands for a cover without a volume.
type FakeManga struct {
	ID     string
	Title  string
	Covers []FakeCover
}

// FakeCover is a single cover entry.
type FakeCover struct {
	Volume   string
	FileName string
}

// FakeMangaDex serves /manga and /cover like the MangaDex API.
type FakeMangaDex struct {
	Server *httptest.Server

	mu     sync.Mutex
	manga  []FakeManga
	status int
}

// NewFakeMangaDex starts a fake server that is closed with the test.
func NewFakeMangaDex(t testing.TB, manga ...FakeManga) *FakeMangaDex {
	t.Helper()
	fake := &FakeMangaDex{manga: manga}
	mux := http.NewServeMux()
	mux.HandleFunc("/manga", fake.serveManga)
	mux.HandleFunc("/cover", fake.serveCovers)
	fake.Server = httptest.NewServer(mux)
	t.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the base URL for both the API and uploads hosts.
func (f *FakeMangaDex) URL() string {
	return f.Server.URL
}

// FailWith makes every request answer with status.
func (f *FakeMangaDex) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *FakeMangaDex) serveManga(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	data := make([]any, 0, len(f.manga))
	for _, m := range f.manga {
		data = append(data, map[string]any{
			"id": m.ID,
			"attributes": map[string]any{
				"title":     map[string]string{"en": m.Title},
				"altTitles": []map[string]string{},
			},
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": "ok", "data": data})
}

func (f *FakeMangaDex) serveCovers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	id := r.URL.Query().Get("manga[]")
	data := []any{}
	for _, m := range f.manga {
		if m.ID != id {
			continue
		}
		for _, cover := range m.Covers {
			var volume any
			if cover.Volume != "" {
				volume = cover.Volume
			}
			data = append(data, map[string]any{
				"id":         m.ID + "-" + cover.FileName,
				"attributes": map[string]any{"volume": volume, "fileName": cover.FileName},
			})
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": "ok", "data": data})
}
