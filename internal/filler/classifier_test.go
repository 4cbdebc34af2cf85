package filler_test

import (
	"testing"

	"mangabridge/internal/catalog"
	"mangabridge/internal/filler"
)

func TestIsFillerUsesSinglesAndRanges(t *testing.T) {
	c := filler.New(catalog.MustBuiltin())

	cases := []struct {
		title   string
		episode int
		want    bool
	}{
		{"Naruto", 5, false},
		{"Naruto", 26, true},
		{"Naruto", 136, true},
		{"Naruto", 220, true},
		{"Naruto", 135, false},
		{"One Piece", 1030, true},
		{"One Piece", 1031, false},
		{"Frieren", 10, false},
	}
	for _, tc := range cases {
		if got := c.IsFiller(tc.title, tc.episode); got != tc.want {
			t.Fatalf("IsFiller(%q, %d) = %v, want %v", tc.title, tc.episode, got, tc.want)
		}
	}
}

func TestCountIsInclusiveAndDeduplicated(t *testing.T) {
	c := filler.New(catalog.MustBuiltin())

	if got := c.Count("Naruto", 25); got != 0 {
		t.Fatalf("expected no fillers before 26, got %d", got)
	}
	// 26, 97, 101-106
	if got := c.Count("Naruto", 106); got != 8 {
		t.Fatalf("expected 8 fillers through 106, got %d", got)
	}
	if got := c.Count("Naruto", 0); got != 0 {
		t.Fatalf("expected zero for empty range, got %d", got)
	}

	overrides, err := catalog.Parse([]byte("titles:\n  - name: Overlap\n    fillers: [\"1-5\", \"3-7\"]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tables, err := catalog.Merge(nil, overrides)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := filler.New(tables).Count("Overlap", 10); got != 7 {
		t.Fatalf("expected overlapping spans counted once, got %d", got)
	}
}

func TestNilClassifierIsSafe(t *testing.T) {
	var c *filler.Classifier
	if c.IsFiller("Naruto", 26) {
		t.Fatal("nil classifier should report no filler")
	}
}
