// Package pacing derives an approximate manga position from an episode number
// using per-title chapter ratios. It is the fallback when no AI answer is
// available.
package pacing

import (
	"fmt"
	"math"

	"mangabridge/internal/catalog"
)

const (
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// volumeEpsilon absorbs float error so 18 chapters at 1/9 stays volume 2.
const volumeEpsilon = 1e-9

// maxPosition caps chapter and volume before the int conversion so absurd
// episode numbers saturate instead of wrapping.
const maxPosition = 1 << 31

// FillerCounter reports how many filler episodes precede a point.
type FillerCounter interface {
	Count(title string, upTo int) int
}

// Estimate is a heuristic chapter/volume position.
type Estimate struct {
	Chapter       int     `json:"chapter"`
	Volume        int     `json:"volume"`
	CanonEpisodes int     `json:"canon_episodes"`
	Ratio         float64 `json:"chapters_per_episode"`
	Confidence    string  `json:"confidence"`
	MatchedTitle  string  `json:"matched_title,omitempty"`
	Reasoning     string  `json:"reasoning"`
	Note          string  `json:"note"`
}

// Estimator combines pacing ratios with filler counts.
type Estimator struct {
	source  catalog.Source
	fillers FillerCounter
}

// New returns an estimator. fillers may be nil when filler data is unavailable.
func New(source catalog.Source, fillers FillerCounter) *Estimator {
	return &Estimator{source: source, fillers: fillers}
}

// Estimate never fails. The result is non-decreasing in episode for a given
// title. A nil Estimator uses the generic ratio with no filler data.
func (e *Estimator) Estimate(title string, episode int) Estimate {
	episode = max(episode, 0)

	filler := 0
	if e != nil && e.fillers != nil {
		filler = e.fillers.Count(title, episode)
	}
	canon := max(episode-filler, 0)

	pacing := catalog.Pacing{
		ChaptersPerEpisode: catalog.DefaultChaptersPerEpisode,
		VolumesPerChapter:  catalog.DefaultVolumesPerChapter,
	}
	confidence := ConfidenceLow
	matched := ""
	if e != nil && e.source != nil {
		if row, name, ok := e.source.Snapshot().Pacing(title); ok {
			pacing = row
			confidence = ConfidenceMedium
			matched = name
		}
	}

	chapter := clampPosition(math.Round(float64(canon)*pacing.ChaptersPerEpisode + pacing.Offset))
	volume := clampPosition(math.Ceil(float64(chapter)*pacing.VolumesPerChapter - volumeEpsilon))

	reasoning := fmt.Sprintf("%d canon episodes (%d filler skipped) at %.2f chapters per episode", canon, filler, pacing.ChaptersPerEpisode)
	if pacing.Offset > 0 {
		reasoning += fmt.Sprintf(" starting after chapter %.0f", pacing.Offset)
	}
	note := "Estimated from average adaptation pacing; verify against the manga before reading on."
	if confidence == ConfidenceLow {
		note = "No pacing data for this title; a generic ratio was used, so treat the chapter as a rough guide."
	}

	return Estimate{
		Chapter:       chapter,
		Volume:        volume,
		CanonEpisodes: canon,
		Ratio:         pacing.ChaptersPerEpisode,
		Confidence:    confidence,
		MatchedTitle:  matched,
		Reasoning:     reasoning,
		Note:          note,
	}
}

func clampPosition(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	return int(math.Min(v, maxPosition))
}
