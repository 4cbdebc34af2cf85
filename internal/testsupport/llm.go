package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Model names configured by WithLLM.
const (
	PrimaryModel   = "test/primary"
	SecondaryModel = "test/secondary"
)

type fakeReply struct {
	status  int
	content string
}

// FakeLLM is a chat-completions endpoint with canned replies per model.
// Models without a reply answer 404.
type FakeLLM struct {
	Server *httptest.Server

	mu       sync.Mutex
	replies  map[string]fakeReply
	calls    map[string]int
	prompts  []string
	blocking map[string]chan struct{}
}

// NewFakeLLM starts a fake server that is closed with the test.
func NewFakeLLM(t testing.TB) *FakeLLM {
	t.Helper()
	fake := &FakeLLM{
		replies:  make(map[string]fakeReply),
		calls:    make(map[string]int),
		blocking: make(map[string]chan struct{}),
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(func() {
		fake.mu.Lock()
		for _, ch := range fake.blocking {
			close(ch)
		}
		fake.blocking = map[string]chan struct{}{}
		fake.mu.Unlock()
		fake.Server.Close()
	})
	return fake
}

// URL returns the completions endpoint.
func (f *FakeLLM) URL() string {
	return f.Server.URL
}

// Reply makes model answer with content.
func (f *FakeLLM) Reply(model, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[model] = fakeReply{status: http.StatusOK, content: content}
}

// Fail makes model answer with an HTTP error status.
func (f *FakeLLM) Fail(model string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[model] = fakeReply{status: status}
}

// Hang makes requests for model block until the client gives up.
func (f *FakeLLM) Hang(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocking[model]; !ok {
		f.blocking[model] = make(chan struct{})
	}
}

// Calls reports how many requests named model.
func (f *FakeLLM) Calls(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

// Prompts returns the user prompts received so far.
func (f *FakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *FakeLLM) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Model]++
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			f.prompts = append(f.prompts, msg.Content)
		}
	}
	reply, ok := f.replies[req.Model]
	block := f.blocking[req.Model]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "unknown model " + req.Model}})
		return
	}
	if reply.status != http.StatusOK {
		w.WriteHeader(reply.status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": http.StatusText(reply.status)}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{
			"message":       map[string]any{"content": reply.content},
			"finish_reason": "stop",
		}},
	})
}
