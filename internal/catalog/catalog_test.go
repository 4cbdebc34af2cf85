package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuiltinEpisodeTotalsRequireExactMatch(t *testing.T) {
	tables := MustBuiltin()

	cases := []struct {
		title string
		want  int
		ok    bool
	}{
		{"Naruto", 220, true},
		{"  NARUTO ", 220, true},
		{"Naruto Shippuden", 500, true},
		{"Shingeki no Kyojin", 87, true},
		{"One Piece", 1100, true},
		{"One Piece Film Red", 0, false},
		{"Dragon Ball Z", 0, false},
	}
	for _, tc := range cases {
		got, _, ok := tables.EpisodeTotal(tc.title)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("EpisodeTotal(%q) = %d,%v want %d,%v", tc.title, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPacingPrefersLongestContainedKey(t *testing.T) {
	tables := MustBuiltin()

	pacing, name, ok := tables.Pacing("Naruto Shippuden Season 2")
	if !ok || name != "Naruto Shippuden" {
		t.Fatalf("expected shippuden pacing, got %q ok=%v", name, ok)
	}
	if pacing.Offset != 244 {
		t.Fatalf("unexpected offset %v", pacing.Offset)
	}

	_, name, ok = tables.Pacing("Jujutsu Kaisen 2nd Season")
	if !ok || name != "Jujutsu Kaisen" {
		t.Fatalf("expected contained match, got %q ok=%v", name, ok)
	}
	pacing, _, _ = tables.Pacing("Demon Slayer")
	if pacing.VolumesPerChapter != DefaultVolumesPerChapter {
		t.Fatalf("expected default volumes per chapter, got %v", pacing.VolumesPerChapter)
	}

	if _, _, ok := tables.Pacing("Frieren"); ok {
		t.Fatal("expected no pacing for unknown title")
	}
}

func TestArcForHandlesOngoingArcs(t *testing.T) {
	tables := MustBuiltin()

	arc, ok := tables.ArcFor("One Piece", 1120)
	if !ok || arc.Name != "Final Saga" || arc.End != nil {
		t.Fatalf("expected ongoing final saga, got %+v ok=%v", arc, ok)
	}
	arc, ok = tables.ArcFor("Naruto", 5)
	if !ok || arc.Name != "Introduction Arc" {
		t.Fatalf("unexpected arc %+v", arc)
	}
	arc, ok = tables.ArcFor("Bleach", 366)
	if !ok || arc.Name != "Fullbring Arc" {
		t.Fatalf("expected Bleach finale in Fullbring Arc, got %+v ok=%v", arc, ok)
	}
	if _, ok := tables.ArcFor("Fairy Tail", 25); ok {
		t.Fatal("episode between arcs should not match")
	}
}

func TestParseSpan(t *testing.T) {
	span, err := ParseSpan(" 136-220 ")
	if err != nil || span.Start != 136 || span.End != 220 {
		t.Fatalf("unexpected span %+v err=%v", span, err)
	}
	span, err = ParseSpan("26")
	if err != nil || span.Start != 26 || span.End != 26 {
		t.Fatalf("unexpected span %+v err=%v", span, err)
	}
	for _, bad := range []string{"", "x", "10-5", "0", "3-y"} {
		if _, err := ParseSpan(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	_, err := Parse([]byte("titles:\n  - name: Broken\n    pacing:\n      chapters_per_episode: 0\n"))
	if err == nil || !strings.Contains(err.Error(), "chapters_per_episode") {
		t.Fatalf("expected pacing error, got %v", err)
	}
	_, err = Parse([]byte("titles:\n  - name: Broken\n    unknown: 1\n"))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
	_, err = Parse([]byte("titles:\n  - name: Broken\n    arcs:\n      - {name: A, start: 10, end: 2}\n"))
	if err == nil || !strings.Contains(err.Error(), "ends before") {
		t.Fatalf("expected arc error, got %v", err)
	}
	_, err = Parse([]byte("titles:\n  - name: Broken\n    episode_total: 10\n    arcs:\n      - {name: Later, start: 11}\n"))
	if err == nil || !strings.Contains(err.Error(), "starts after episode_total") {
		t.Fatalf("expected unreachable arc error, got %v", err)
	}
}

func TestMergeLayersOverrides(t *testing.T) {
	base := MustBuiltin()
	overrides, err := Parse([]byte(`
titles:
  - name: naruto
    aliases: [Naruto Classic]
    episode_total: 221
  - name: Frieren
    episode_total: 28
    fillers: ["29"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	merged, err := Merge(base, overrides)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if total, _, _ := merged.EpisodeTotal("Naruto Classic"); total != 221 {
		t.Fatalf("expected alias override, got %d", total)
	}
	if _, _, ok := merged.Fillers("Naruto"); !ok {
		t.Fatal("unset override fields must keep base fillers")
	}
	if total, _, _ := merged.EpisodeTotal("Frieren"); total != 28 {
		t.Fatalf("expected new title, got %d", total)
	}
	if total, _, _ := base.EpisodeTotal("Naruto"); total != 220 {
		t.Fatalf("base tables must not change, got %d", total)
	}
}

func TestMergeRejectsConflictingAliases(t *testing.T) {
	overrides, err := Parse([]byte("titles:\n  - name: Other\n    aliases: [Naruto]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Merge(MustBuiltin(), overrides); err == nil {
		t.Fatal("expected alias conflict error")
	}
}

func TestCatalogReloadsOnModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	cat, err := New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if total, _, _ := cat.Snapshot().EpisodeTotal("Naruto"); total != 220 {
		t.Fatalf("expected builtin total without overrides file, got %d", total)
	}

	if err := os.WriteFile(path, []byte("titles:\n  - name: Naruto\n    episode_total: 230\n"), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	if total, _, _ := cat.Snapshot().EpisodeTotal("Naruto"); total != 230 {
		t.Fatalf("expected override total, got %d", total)
	}

	if err := os.WriteFile(path, []byte("titles: [oops"), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := cat.Reload(); err == nil {
		t.Fatal("expected reload error for invalid YAML")
	}
	if total, _, _ := cat.Snapshot().EpisodeTotal("Naruto"); total != 230 {
		t.Fatalf("expected last good snapshot to remain, got %d", total)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove overrides: %v", err)
	}
	if total, _, _ := cat.Snapshot().EpisodeTotal("Naruto"); total != 220 {
		t.Fatalf("expected builtin total after removal, got %d", total)
	}
}
