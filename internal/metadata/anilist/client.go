package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when AniList has no media for a query or id.
var ErrNotFound = errors.New("anilist: media not found")

// StatusError reports a non-200 response from the GraphQL endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("anilist returned %d", e.StatusCode)
	}
	return fmt.Sprintf("anilist returned %d: %s", e.StatusCode, e.Message)
}

// API lists the AniList operations used by the pipeline.
type API interface {
	Search(ctx context.Context, title string) (*Media, error)
	Media(ctx context.Context, id int) (*Media, error)
	VolumeInfo(ctx context.Context, id int) (*VolumeInfo, error)
	SearchList(ctx context.Context, query string) ([]Media, error)
	Trending(ctx context.Context) ([]Media, error)
}

// Client talks to the AniList GraphQL API.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an AniList client.
func New(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("anilist endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

const mediaFields = `
  id
  type
  format
  status
  title { romaji english }
  episodes
  season
  seasonYear
  coverImage { large medium }
`

const searchQuery = `query ($search: String) {
  Media(search: $search, type: ANIME, sort: POPULARITY_DESC) {` + mediaFields + `  }
}`

const mediaQuery = `query ($id: Int) {
  Media(id: $id) {` + mediaFields + `
    relations {
      edges {
        relationType
        node { id type format status episodes seasonYear title { romaji english } }
      }
    }
  }
}`

const volumeQuery = `query ($id: Int) {
  Media(id: $id) {
    id
    title { romaji english }
    volumes
    chapters
    relations {
      edges {
        relationType
        node { id type format title { romaji english } volumes chapters }
      }
    }
  }
}`

const searchListQuery = `query ($search: String) {
  Page(page: 1, perPage: 20) {
    media(search: $search, type: ANIME, sort: POPULARITY_DESC) {` + mediaFields + `    }
  }
}`

const trendingQuery = `query {
  Page(page: 1, perPage: 10) {
    media(type: ANIME, sort: TRENDING_DESC, status: RELEASING, isAdult: false) {` + mediaFields + `
      bannerImage
      nextAiringEpisode { episode timeUntilAiring }
    }
  }
}`

// Search returns the most popular anime matching title.
func (c *Client) Search(ctx context.Context, title string) (*Media, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("query must not be empty")
	}
	var payload struct {
		Media *Media `json:"Media"`
	}
	if err := c.do(ctx, "search", searchQuery, map[string]any{"search": title}, &payload); err != nil {
		return nil, err
	}
	if payload.Media == nil {
		return nil, ErrNotFound
	}
	return payload.Media, nil
}

// Media fetches one entry by id with its direct relation edges.
func (c *Client) Media(ctx context.Context, id int) (*Media, error) {
	if id <= 0 {
		return nil, errors.New("media id must be positive")
	}
	var payload struct {
		Media *Media `json:"Media"`
	}
	if err := c.do(ctx, "media", mediaQuery, map[string]any{"id": id}, &payload); err != nil {
		return nil, err
	}
	if payload.Media == nil {
		return nil, ErrNotFound
	}
	return payload.Media, nil
}

// VolumeInfo returns the manga volume and chapter counts for an anime id. The
// SOURCE or ADAPTATION manga relation wins; otherwise the media's own counts
// are used.
func (c *Client) VolumeInfo(ctx context.Context, id int) (*VolumeInfo, error) {
	if id <= 0 {
		return nil, errors.New("media id must be positive")
	}
	var payload struct {
		Media *Media `json:"Media"`
	}
	if err := c.do(ctx, "volume info", volumeQuery, map[string]any{"id": id}, &payload); err != nil {
		return nil, err
	}
	if payload.Media == nil {
		return nil, ErrNotFound
	}
	return volumeInfoFromMedia(payload.Media), nil
}

func volumeInfoFromMedia(media *Media) *VolumeInfo {
	info := &VolumeInfo{
		SeriesID:   media.ID,
		MangaTitle: media.Title.Canonical(),
		Volumes:    media.Volumes,
		Chapters:   media.Chapters,
	}
	if media.Relations == nil {
		return info
	}
	for _, preferred := range []string{RelationSource, RelationAdaptation} {
		for _, edge := range media.Relations.Edges {
			if edge.RelationType != preferred || edge.Node.Type != TypeManga {
				continue
			}
			info.MangaID = edge.Node.ID
			info.MangaTitle = edge.Node.Title.Canonical()
			info.Volumes = edge.Node.Volumes
			info.Chapters = edge.Node.Chapters
			return info
		}
	}
	return info
}

var seasonMarker = regexp.MustCompile(`(?i)\s*(?:2nd|3rd|4th|5th|Season|Part|Final|S[0-9]|:\s*.*Season.*)`)

// BaseTitle strips season and part markers so sequels collapse onto their
// franchise name.
func BaseTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(seasonMarker.ReplaceAllString(title, "")))
}

// SearchList powers autocomplete: up to ten anime, one per franchise.
func (c *Client) SearchList(ctx context.Context, query string) ([]Media, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return []Media{}, nil
	}
	var payload struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	}
	if err := c.do(ctx, "search list", searchListQuery, map[string]any{"search": query}, &payload); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(payload.Page.Media))
	results := make([]Media, 0, 10)
	for _, media := range payload.Page.Media {
		base := BaseTitle(media.Title.Canonical())
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		results = append(results, media)
		if len(results) == 10 {
			break
		}
	}
	return results, nil
}

// Trending returns currently airing, non-adult anime ordered by trend score.
func (c *Client) Trending(ctx context.Context) ([]Media, error) {
	var payload struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	}
	if err := c.do(ctx, "trending", trendingQuery, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Page.Media == nil {
		return []Media{}, nil
	}
	return payload.Page.Media, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, query string, variables map[string]any, out any) error {
	encoded, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode anilist %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute anilist %s (latency=%v): %w", op, latency, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read anilist %s response: %w", op, err)
	}

	var envelope graphQLResponse
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		message := ""
		if decodeErr == nil && len(envelope.Errors) > 0 {
			message = envelope.Errors[0].Message
		}
		return fmt.Errorf("anilist %s (latency=%v): %w", op, latency, &StatusError{StatusCode: resp.StatusCode, Message: message})
	}
	if decodeErr != nil {
		return fmt.Errorf("decode anilist %s response: %w", op, decodeErr)
	}
	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		if first.Status == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("anilist %s: %s", op, first.Message)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode anilist %s data: %w", op, err)
	}
	return nil
}
