package anilist

import "strings"

// Media types, formats, statuses and relation types used by the resolver.
const (
	TypeAnime = "ANIME"
	TypeManga = "MANGA"

	FormatTV      = "TV"
	FormatTVShort = "TV_SHORT"
	FormatONA     = "ONA"
	FormatSpecial = "SPECIAL"
	FormatMovie   = "MOVIE"

	StatusReleasing      = "RELEASING"
	StatusNotYetReleased = "NOT_YET_RELEASED"
	StatusCancelled      = "CANCELLED"

	RelationSequel     = "SEQUEL"
	RelationSource     = "SOURCE"
	RelationAdaptation = "ADAPTATION"
)

// Title holds the localized names of a media entry.
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
}

// Display prefers the English title and falls back to romaji.
func (t Title) Display() string {
	if english := strings.TrimSpace(t.English); english != "" {
		return english
	}
	return strings.TrimSpace(t.Romaji)
}

// Canonical prefers romaji, which is what the catalog and prompts key on.
func (t Title) Canonical() string {
	if romaji := strings.TrimSpace(t.Romaji); romaji != "" {
		return romaji
	}
	return strings.TrimSpace(t.English)
}

// CoverImage lists the available cover sizes.
type CoverImage struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

// Best returns the largest available cover URL.
func (c CoverImage) Best() string {
	if c.Large != "" {
		return c.Large
	}
	return c.Medium
}

// AiringEpisode describes the next scheduled broadcast.
type AiringEpisode struct {
	Episode         int   `json:"episode"`
	TimeUntilAiring int64 `json:"timeUntilAiring"`
}

// Media is a single AniList anime or manga entry. Absent numeric fields
// decode as zero.
type Media struct {
	ID                int            `json:"id"`
	Type              string         `json:"type"`
	Format            string         `json:"format"`
	Status            string         `json:"status"`
	Title             Title          `json:"title"`
	Episodes          int            `json:"episodes"`
	Chapters          int            `json:"chapters"`
	Volumes           int            `json:"volumes"`
	Season            string         `json:"season"`
	SeasonYear        int            `json:"seasonYear"`
	CoverImage        CoverImage     `json:"coverImage"`
	BannerImage       string         `json:"bannerImage"`
	NextAiringEpisode *AiringEpisode `json:"nextAiringEpisode"`
	Relations         *Relations     `json:"relations,omitempty"`
}

// Relations is the edge list attached to a media entry.
type Relations struct {
	Edges []RelationEdge `json:"edges"`
}

// RelationEdge links a media entry to a related one.
type RelationEdge struct {
	RelationType string `json:"relationType"`
	Node         Media  `json:"node"`
}

// VolumeInfo is the authoritative manga size for an anime series.
type VolumeInfo struct {
	SeriesID   int    `json:"series_id"`
	MangaID    int    `json:"manga_id,omitempty"`
	MangaTitle string `json:"manga_title"`
	Volumes    int    `json:"volumes"`
	Chapters   int    `json:"chapters"`
}
