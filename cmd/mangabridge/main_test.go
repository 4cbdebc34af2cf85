package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mangabridge/internal/config"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/resolution"
	"mangabridge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	aniList    *testsupport.FakeAniList
	llm        *testsupport.FakeLLM
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("MANGABRIDGE_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("MANGABRIDGE_API_TOKEN", "")

	fake := testsupport.NewFakeAniList(t)
	fake.AddMedia(anilist.Media{ID: 900, Type: anilist.TypeManga, Title: anilist.Title{Romaji: "NARUTO"}, Volumes: 72, Chapters: 700})
	fake.AddMedia(anilist.Media{
		ID:         20,
		Format:     anilist.FormatTV,
		Status:     "FINISHED",
		Title:      anilist.Title{Romaji: "NARUTO", English: "Naruto"},
		Episodes:   220,
		SeasonYear: 2002,
	}, testsupport.Edge{RelationType: anilist.RelationSource, To: 900})
	fake.SetSearchList(20)
	llmFake := testsupport.NewFakeLLM(t)

	cfg := testsupport.NewConfig(t, testsupport.WithAniList(fake.URL()), testsupport.WithLLM(llmFake.URL()))
	cfg.Logging.Level = "error"

	configPath := filepath.Join(home, ".config", "mangabridge", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, aniList: fake, llm: llmFake, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestResolveCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llm.Reply(testsupport.PrimaryModel, `{"chapter": 9, "volume": 1, "context": "bell test", "source": "ai"}`)

	out, _, err := runCLI(t, env.configPath, "resolve", "Naruto", "5", "--json")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var result resolution.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Chapter != 9 || result.Volume != 72 || result.Arc != "Introduction Arc" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestResolveCommandHumanOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "resolve", "Naruto", "5", "--estimate")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireContains(t, out, "Naruto episode 5")
	requireContains(t, out, "(estimate")

	out, _, err = runCLI(t, env.configPath, "resolve", "Naruto", "150")
	if err != nil {
		t.Fatalf("resolve filler: %v", err)
	}
	requireContains(t, out, "Filler episode")
	if env.llm.Calls(testsupport.PrimaryModel) != 1 {
		t.Fatalf("filler lookups must not reach the models; primary saw %d calls", env.llm.Calls(testsupport.PrimaryModel))
	}
}

func TestResolveCommandRejectsImpossibleEpisode(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "resolve", "Naruto", "221")
	if err == nil {
		t.Fatal("expected an error")
	}
	requireContains(t, err.Error(), "220")

	_, _, err = runCLI(t, env.configPath, "resolve", "Naruto", "five")
	if err == nil {
		t.Fatal("expected an error for a non-numeric episode")
	}
	requireContains(t, err.Error(), "episode must be an integer")
}

func TestResolveCommandSurfacesModelFailureAsJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llm.Reply(testsupport.PrimaryModel, "no idea")
	env.llm.Reply(testsupport.SecondaryModel, "{}")

	out, _, err := runCLI(t, env.configPath, "resolve", "Naruto", "5", "--json")
	if err == nil {
		t.Fatal("expected an error under the default policy")
	}
	requireContains(t, out, `"kind": "ai_lookup_failed"`)
}

func TestValidateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "validate", "Naruto", "12")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "Total episodes: 220")
	requireContains(t, out, "Valid:          yes")

	out, _, err = runCLI(t, env.configPath, "validate", "Naruto", "300")
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
	requireContains(t, out, "Valid:          no")
}

func TestHistoryAndCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llm.Reply(testsupport.PrimaryModel, `{"chapter": 9, "volume": 1, "source": "ai"}`)

	if _, _, err := runCLI(t, env.configPath, "resolve", "Naruto", "5"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "Naruto\t5\t9\t72\tai")

	out, _, err = runCLI(t, env.configPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "20\tNARUTO\t72\t700")
	requireContains(t, out, "fresh")

	out, _, err = runCLI(t, env.configPath, "cache", "prune")
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 stale entries")

	out, _, err = runCLI(t, env.configPath, "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 search from history")

	out, _, err = runCLI(t, env.configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No searches yet")

	out, _, err = runCLI(t, env.configPath, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 cached entry")
}

func TestArcsSeasonsAndSearchCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "arcs", "naruto")
	if err != nil {
		t.Fatalf("arcs: %v", err)
	}
	requireContains(t, out, "Introduction Arc\t1\t5")

	out, _, err = runCLI(t, env.configPath, "seasons", "Naruto")
	if err != nil {
		t.Fatalf("seasons: %v", err)
	}
	requireContains(t, out, "220 episodes")

	out, _, err = runCLI(t, env.configPath, "search", "naru")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "20\tNaruto\tTV\t220\t2002")

	if _, _, err := runCLI(t, env.configPath, "arcs", "Unknown", "Show"); err == nil {
		t.Fatal("expected not found for unknown arcs")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Chapter lookup models: yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite without --overwrite")
	}
}

func TestConfigCheckLLM(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llm.Reply(testsupport.PrimaryModel, `{"ok": true}`)
	env.llm.Fail(testsupport.SecondaryModel, 401)

	out, _, err := runCLI(t, env.configPath, "config", "check-llm")
	if err == nil {
		t.Fatal("expected failure when a model is unusable")
	}
	requireContains(t, out, testsupport.PrimaryModel+": ok")
	requireContains(t, out, testsupport.SecondaryModel+": FAILED")
}

func TestTitleAndEpisode(t *testing.T) {
	tests := []struct {
		args    []string
		title   string
		episode int
		wantErr bool
	}{
		{args: []string{"Naruto", "5"}, title: "Naruto", episode: 5},
		{args: []string{"One", "Piece", "1000"}, title: "One Piece", episode: 1000},
		{args: []string{"Naruto"}, wantErr: true},
		{args: []string{"Naruto", "x"}, wantErr: true},
	}
	for _, tc := range tests {
		title, episode, err := titleAndEpisode(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%v: expected error", tc.args)
			}
			continue
		}
		if err != nil || title != tc.title || episode != tc.episode {
			t.Fatalf("%v: got %q %d %v", tc.args, title, episode, err)
		}
	}
}
