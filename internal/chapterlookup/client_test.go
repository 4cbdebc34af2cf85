package chapterlookup_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"mangabridge/internal/chapterlookup"
	"mangabridge/internal/services"
	"mangabridge/internal/services/llm"
	"mangabridge/internal/testsupport"
)

var fixedNow = func() time.Time { return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC) }

func newLookup(t *testing.T, fake *testsupport.FakeLLM, timeout time.Duration) *chapterlookup.Client {
	t.Helper()
	completer := llm.NewClient(llm.Config{APIKey: "test-key", BaseURL: fake.URL(), Model: testsupport.PrimaryModel})
	return chapterlookup.New(completer, chapterlookup.Config{
		PrimaryModel:   testsupport.PrimaryModel,
		SecondaryModel: testsupport.SecondaryModel,
		TierTimeout:    timeout,
	}, chapterlookup.WithClock(fixedNow))
}

func TestLookupUsesPrimaryAnswer(t *testing.T) {
	fake := testsupport.NewFakeLLM(t)
	fake.Reply(testsupport.PrimaryModel, "```json\n{\"chapter\": 63, \"volume\": 8, \"context\": \"Shibuya arc begins\", \"source\": \"ai\"}\n```")

	answer, err := newLookup(t, fake, time.Second).Lookup(context.Background(), chapterlookup.Request{Title: "Jujutsu Kaisen", Episode: 24})
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if answer.Chapter != 63 || answer.Volume != 8 || answer.Tier != chapterlookup.TierPrimary || answer.Model != testsupport.PrimaryModel {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if fake.Calls(testsupport.SecondaryModel) != 0 {
		t.Fatal("secondary tier should not run after a primary answer")
	}
}

func TestLookupFallsThroughEveryFailureClass(t *testing.T) {
	cases := []struct {
		name    string
		primary func(*testsupport.FakeLLM)
	}{
		{"http error", func(f *testsupport.FakeLLM) { f.Fail(testsupport.PrimaryModel, http.StatusBadGateway) }},
		{"client error", func(f *testsupport.FakeLLM) { f.Fail(testsupport.PrimaryModel, http.StatusBadRequest) }},
		{"malformed", func(f *testsupport.FakeLLM) { f.Reply(testsupport.PrimaryModel, "Chapter sixty, probably.") }},
		{"refusal", func(f *testsupport.FakeLLM) {
			f.Reply(testsupport.PrimaryModel, `{"error": "Could not find accurate mapping for this anime/episode", "source": "ai"}`)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := testsupport.NewFakeLLM(t)
			tc.primary(fake)
			fake.Reply(testsupport.SecondaryModel, `{"chapter": 60, "volume": 7, "context": "Fight ends"}`)

			answer, err := newLookup(t, fake, time.Second).Lookup(context.Background(), chapterlookup.Request{Title: "Jujutsu Kaisen", Episode: 24})
			if err != nil {
				t.Fatalf("Lookup returned error: %v", err)
			}
			if answer.Tier != chapterlookup.TierSecondary || answer.Chapter != 60 || answer.Source != chapterlookup.DefaultSource {
				t.Fatalf("unexpected answer %+v", answer)
			}
			if fake.Calls(testsupport.PrimaryModel) != 1 {
				t.Fatalf("primary should be tried exactly once, got %d", fake.Calls(testsupport.PrimaryModel))
			}
		})
	}
}

func TestLookupBothTiersMalformed(t *testing.T) {
	fake := testsupport.NewFakeLLM(t)
	fake.Reply(testsupport.PrimaryModel, "I think it's around chapter 40?")
	fake.Reply(testsupport.SecondaryModel, `{"chapter": "forty", "volume": 5}`)

	answer, err := newLookup(t, fake, time.Second).Lookup(context.Background(), chapterlookup.Request{Title: "Naruto", Episode: 5})
	if !errors.Is(err, services.ErrAILookupFailed) {
		t.Fatalf("expected ErrAILookupFailed, got %v", err)
	}
	if answer != (chapterlookup.Answer{}) {
		t.Fatalf("failed lookup must not return a partial answer, got %+v", answer)
	}
	var lookupErr *chapterlookup.LookupError
	if !errors.As(err, &lookupErr) || len(lookupErr.Attempts) != 2 {
		t.Fatalf("expected two recorded attempts, got %#v", err)
	}
	var parseErr *chapterlookup.ParseError
	for _, attempt := range lookupErr.Attempts {
		if !errors.As(attempt.Err, &parseErr) {
			t.Fatalf("attempt %s should be a parse failure, got %v", attempt.Tier, attempt.Err)
		}
	}
	msg := err.Error()
	if !strings.Contains(msg, "primary") || !strings.Contains(msg, "secondary") || !strings.Contains(msg, "chapter") {
		t.Fatalf("error should name each tier and cause, got %q", msg)
	}
	if services.FailureKind(err) != services.KindAILookupFailed {
		t.Fatalf("unexpected failure kind %q", services.FailureKind(err))
	}
}

func TestLookupTierTimeout(t *testing.T) {
	fake := testsupport.NewFakeLLM(t)
	fake.Hang(testsupport.PrimaryModel)
	fake.Reply(testsupport.SecondaryModel, `{"chapter": 3, "volume": 1}`)

	started := time.Now()
	answer, err := newLookup(t, fake, 100*time.Millisecond).Lookup(context.Background(), chapterlookup.Request{Title: "Naruto", Episode: 2})
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if answer.Tier != chapterlookup.TierSecondary {
		t.Fatalf("expected secondary answer after timeout, got %+v", answer)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("tier timeout not enforced, took %s", elapsed)
	}
}

func TestLookupWithoutCompleter(t *testing.T) {
	client := chapterlookup.New(nil, chapterlookup.Config{PrimaryModel: "a"})
	_, err := client.Lookup(context.Background(), chapterlookup.Request{Title: "Naruto", Episode: 1})
	if !errors.Is(err, services.ErrAILookupFailed) {
		t.Fatalf("expected ErrAILookupFailed, got %v", err)
	}
}

func TestLookupRejectsInvalidRequest(t *testing.T) {
	fake := testsupport.NewFakeLLM(t)
	_, err := newLookup(t, fake, time.Second).Lookup(context.Background(), chapterlookup.Request{Title: "Naruto"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if fake.Calls(testsupport.PrimaryModel) != 0 {
		t.Fatal("invalid request must not reach the model")
	}
}

func TestLookupSendsDeterministicPrompt(t *testing.T) {
	fake := testsupport.NewFakeLLM(t)
	fake.Reply(testsupport.PrimaryModel, `{"chapter": 10, "volume": 2}`)
	client := newLookup(t, fake, time.Second)
	req := chapterlookup.Request{Title: "Bleach", Episode: 12, Season: "Season 1"}
	for range 2 {
		if _, err := client.Lookup(context.Background(), req); err != nil {
			t.Fatalf("Lookup returned error: %v", err)
		}
	}
	prompts := fake.Prompts()
	if len(prompts) != 2 || prompts[0] != prompts[1] {
		t.Fatalf("prompts differ between identical requests")
	}
	if prompts[0] != chapterlookup.BuildPrompt(req, fixedNow()) {
		t.Fatal("sent prompt differs from BuildPrompt output")
	}
}
