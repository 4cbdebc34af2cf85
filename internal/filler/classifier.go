// Package filler answers whether an anime episode is anime-original filler.
package filler

import (
	"mangabridge/internal/catalog"
)

// Classifier consults the filler table of a catalog source.
type Classifier struct {
	source catalog.Source
}

// New returns a classifier over source.
func New(source catalog.Source) *Classifier {
	return &Classifier{source: source}
}

// IsFiller reports whether episode is listed as filler for title. Unknown
// titles are never filler.
func (c *Classifier) IsFiller(title string, episode int) bool {
	for _, span := range c.spans(title) {
		if span.Contains(episode) {
			return true
		}
	}
	return false
}

// Count returns how many filler episodes fall in [1, upTo].
func (c *Classifier) Count(title string, upTo int) int {
	if upTo < 1 {
		return 0
	}
	// Spans may overlap in user overrides; count each episode once.
	seen := make(map[int]struct{})
	for _, span := range c.spans(title) {
		end := min(span.End, upTo)
		for ep := max(span.Start, 1); ep <= end; ep++ {
			seen[ep] = struct{}{}
		}
	}
	return len(seen)
}

func (c *Classifier) spans(title string) []catalog.Span {
	if c == nil || c.source == nil {
		return nil
	}
	spans, _, ok := c.source.Snapshot().Fillers(title)
	if !ok {
		return nil
	}
	return spans
}
