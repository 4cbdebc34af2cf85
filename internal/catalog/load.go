package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"mangabridge/internal/textutil"
)

//go:embed tables.yaml
var builtinTables []byte

type document struct {
	Titles []Entry `yaml:"titles"`
}

// Builtin returns the tables shipped with the binary.
func Builtin() (*Tables, error) {
	entries, err := Parse(builtinTables)
	if err != nil {
		return nil, fmt.Errorf("parse builtin tables: %w", err)
	}
	return build(entries)
}

// MustBuiltin is Builtin for wiring code and tests.
func MustBuiltin() *Tables {
	tables, err := Builtin()
	if err != nil {
		panic(err)
	}
	return tables
}

// Parse decodes a tables document and validates each entry.
func Parse(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	var problems []error
	for i := range doc.Titles {
		doc.Titles[i].normalize()
		if err := doc.Titles[i].validate(); err != nil {
			problems = append(problems, fmt.Errorf("titles[%d]: %w", i, err))
		}
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return doc.Titles, nil
}

// Merge layers overrides on top of base. Entries are matched by normalized
// name; set fields replace, aliases accumulate, new titles are appended.
func Merge(base *Tables, overrides []Entry) (*Tables, error) {
	var merged []Entry
	if base != nil {
		merged = make([]Entry, len(base.entries))
		copy(merged, base.entries)
	}
	positions := make(map[string]int, len(merged))
	for i := range merged {
		positions[textutil.NormalizeTitle(merged[i].Name)] = i
	}
	for _, override := range overrides {
		key := textutil.NormalizeTitle(override.Name)
		idx, ok := positions[key]
		if !ok {
			positions[key] = len(merged)
			merged = append(merged, override)
			continue
		}
		merged[idx] = mergeEntry(merged[idx], override)
	}
	return build(merged)
}

func mergeEntry(base, override Entry) Entry {
	out := base
	out.Aliases = append(append([]string(nil), base.Aliases...), override.Aliases...)
	if override.EpisodeTotal > 0 {
		out.EpisodeTotal = override.EpisodeTotal
	}
	if override.Pacing != nil {
		pacing := *override.Pacing
		out.Pacing = &pacing
	}
	if len(override.Fillers) > 0 {
		out.Fillers = override.Fillers
	}
	if len(override.Arcs) > 0 {
		out.Arcs = override.Arcs
	}
	return out
}

func build(entries []Entry) (*Tables, error) {
	tables := &Tables{
		entries: entries,
		index:   make(map[string]int, len(entries)*2),
	}
	for i := range entries {
		for _, key := range entries[i].keys() {
			if owner, exists := tables.index[key]; exists && owner != i {
				return nil, fmt.Errorf("title key %q claimed by both %q and %q", key, entries[owner].Name, entries[i].Name)
			}
			tables.index[key] = i
		}
	}
	return tables, nil
}

func (e *Entry) normalize() {
	e.Name = strings.TrimSpace(e.Name)
	aliases := make([]string, 0, len(e.Aliases))
	for _, alias := range e.Aliases {
		if trimmed := strings.TrimSpace(alias); trimmed != "" {
			aliases = append(aliases, trimmed)
		}
	}
	e.Aliases = aliases
	if e.Pacing != nil && e.Pacing.VolumesPerChapter == 0 {
		e.Pacing.VolumesPerChapter = DefaultVolumesPerChapter
	}
	for i := range e.Arcs {
		e.Arcs[i].Name = strings.TrimSpace(e.Arcs[i].Name)
	}
}

func (e *Entry) validate() error {
	if textutil.NormalizeTitle(e.Name) == "" {
		return errors.New("name is required")
	}
	if e.EpisodeTotal < 0 {
		return fmt.Errorf("%s: episode_total must be positive", e.Name)
	}
	if e.Pacing != nil {
		if e.Pacing.ChaptersPerEpisode <= 0 {
			return fmt.Errorf("%s: pacing.chapters_per_episode must be positive", e.Name)
		}
		if e.Pacing.VolumesPerChapter <= 0 {
			return fmt.Errorf("%s: pacing.volumes_per_chapter must be positive", e.Name)
		}
		if e.Pacing.Offset < 0 {
			return fmt.Errorf("%s: pacing.offset must be non-negative", e.Name)
		}
	}
	for _, arc := range e.Arcs {
		if arc.Name == "" {
			return fmt.Errorf("%s: arc name is required", e.Name)
		}
		if arc.Start < 1 {
			return fmt.Errorf("%s: arc %q must start at episode 1 or later", e.Name, arc.Name)
		}
		if arc.End != nil && *arc.End < arc.Start {
			return fmt.Errorf("%s: arc %q ends before it starts", e.Name, arc.Name)
		}
		if e.EpisodeTotal > 0 && arc.Start > e.EpisodeTotal {
			return fmt.Errorf("%s: arc %q starts after episode_total %d", e.Name, arc.Name, e.EpisodeTotal)
		}
	}
	return nil
}
