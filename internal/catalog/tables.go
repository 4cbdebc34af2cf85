package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mangabridge/internal/textutil"
)

// Pacing describes how quickly an adaptation moves through its source.
type Pacing struct {
	ChaptersPerEpisode float64 `yaml:"chapters_per_episode" json:"chapters_per_episode"`
	VolumesPerChapter  float64 `yaml:"volumes_per_chapter" json:"volumes_per_chapter"`
	Offset             float64 `yaml:"offset" json:"offset"`
}

// Span is an inclusive episode range. A single episode has Start == End.
type Span struct {
	Start int
	End   int
}

// Contains reports whether episode falls inside the span.
func (s Span) Contains(episode int) bool {
	return episode >= s.Start && episode <= s.End
}

// UnmarshalYAML accepts "26", 26 or "101-106".
func (s *Span) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseSpan(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML renders the span in the same compact form it is read from.
func (s Span) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s Span) String() string {
	if s.Start == s.End {
		return strconv.Itoa(s.Start)
	}
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// ParseSpan parses a single episode or an inclusive "start-end" range.
func ParseSpan(raw string) (Span, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Span{}, fmt.Errorf("empty filler span")
	}
	startRaw, endRaw, isRange := strings.Cut(value, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startRaw))
	if err != nil {
		return Span{}, fmt.Errorf("invalid filler span %q", raw)
	}
	end := start
	if isRange {
		end, err = strconv.Atoi(strings.TrimSpace(endRaw))
		if err != nil {
			return Span{}, fmt.Errorf("invalid filler span %q", raw)
		}
	}
	if start < 1 || end < start {
		return Span{}, fmt.Errorf("invalid filler span %q", raw)
	}
	return Span{Start: start, End: end}, nil
}

// Arc is a named narrative span. End is nil while the arc is still airing.
type Arc struct {
	Name  string `yaml:"name" json:"name"`
	Start int    `yaml:"start" json:"start"`
	End   *int   `yaml:"end,omitempty" json:"end,omitempty"`
}

// Contains reports whether episode belongs to the arc.
func (a Arc) Contains(episode int) bool {
	if episode < a.Start {
		return false
	}
	return a.End == nil || episode <= *a.End
}

// Entry is one title's row across every table.
type Entry struct {
	Name         string   `yaml:"name" json:"name"`
	Aliases      []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	EpisodeTotal int      `yaml:"episode_total,omitempty" json:"episode_total,omitempty"`
	Pacing       *Pacing  `yaml:"pacing,omitempty" json:"pacing,omitempty"`
	Fillers      []Span   `yaml:"fillers,omitempty" json:"-"`
	Arcs         []Arc    `yaml:"arcs,omitempty" json:"arcs,omitempty"`
}

func (e *Entry) keys() []string {
	keys := make([]string, 0, len(e.Aliases)+1)
	if key := textutil.NormalizeTitle(e.Name); key != "" {
		keys = append(keys, key)
	}
	for _, alias := range e.Aliases {
		if key := textutil.NormalizeTitle(alias); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Tables is an immutable snapshot of the title tables. Lookups never mutate it
// so a snapshot can be shared across goroutines.
type Tables struct {
	entries []Entry
	index   map[string]int
}

// Snapshot lets a fixed Tables value stand in wherever a reloading Catalog is
// accepted.
func (t *Tables) Snapshot() *Tables {
	return t
}

// Entries returns a copy of every entry, ordered by name.
func (t *Tables) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// EpisodeTotal returns the curated total for title. Only exact normalized
// matches on the name or an alias count.
func (t *Tables) EpisodeTotal(title string) (int, string, bool) {
	if t == nil {
		return 0, "", false
	}
	idx, ok := t.index[textutil.NormalizeTitle(title)]
	if !ok {
		return 0, "", false
	}
	entry := t.entries[idx]
	if entry.EpisodeTotal <= 0 {
		return 0, "", false
	}
	return entry.EpisodeTotal, entry.Name, true
}

// Pacing returns the pacing ratios for the best matching title.
func (t *Tables) Pacing(title string) (Pacing, string, bool) {
	entry, ok := t.match(title, func(e *Entry) bool { return e.Pacing != nil })
	if !ok {
		return Pacing{}, "", false
	}
	return *entry.Pacing, entry.Name, true
}

// Fillers returns the filler spans for the best matching title.
func (t *Tables) Fillers(title string) ([]Span, string, bool) {
	entry, ok := t.match(title, func(e *Entry) bool { return len(e.Fillers) > 0 })
	if !ok {
		return nil, "", false
	}
	return append([]Span(nil), entry.Fillers...), entry.Name, true
}

// Arcs returns the ordered arc list for the best matching title.
func (t *Tables) Arcs(title string) ([]Arc, string, bool) {
	entry, ok := t.match(title, func(e *Entry) bool { return len(e.Arcs) > 0 })
	if !ok {
		return nil, "", false
	}
	return append([]Arc(nil), entry.Arcs...), entry.Name, true
}

// ArcFor returns the arc containing episode, if any.
func (t *Tables) ArcFor(title string, episode int) (Arc, bool) {
	arcs, _, ok := t.Arcs(title)
	if !ok {
		return Arc{}, false
	}
	for _, arc := range arcs {
		if arc.Contains(episode) {
			return arc, true
		}
	}
	return Arc{}, false
}

// match prefers an exact key and otherwise picks the longest key contained in
// the title, so "Naruto Shippuden" never resolves to "Naruto" when both exist.
func (t *Tables) match(title string, has func(*Entry) bool) (*Entry, bool) {
	if t == nil {
		return nil, false
	}
	key := textutil.NormalizeTitle(title)
	if key == "" {
		return nil, false
	}
	if idx, ok := t.index[key]; ok && has(&t.entries[idx]) {
		return &t.entries[idx], true
	}
	bestIdx := -1
	bestKey := ""
	for candidate, idx := range t.index {
		if !has(&t.entries[idx]) || len(candidate) < len(bestKey) {
			continue
		}
		if len(candidate) == len(bestKey) && candidate >= bestKey {
			continue
		}
		if textutil.ContainsPhrase(key, candidate) {
			bestIdx = idx
			bestKey = candidate
		}
	}
	if bestIdx < 0 {
		return nil, false
	}
	return &t.entries[bestIdx], true
}
