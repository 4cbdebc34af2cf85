// Package mangadex looks up manga volume cover art on MangaDex.
package mangadex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangabridge/internal/textutil"
)

const searchLimit = 5

// Client queries the MangaDex API and builds cover URLs on the uploads host.
type Client struct {
	baseURL    string
	uploadsURL string
	httpClient *http.Client
}

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

// New creates a MangaDex client.
func New(baseURL, uploadsURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mangadex base url required")
	}
	uploadsURL = strings.TrimRight(strings.TrimSpace(uploadsURL), "/")
	if uploadsURL == "" {
		return nil, errors.New("mangadex uploads url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
		uploadsURL: uploadsURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Manga is the subset of a MangaDex manga record used for matching.
type Manga struct {
	ID         string
	Titles     []string
	Similarity float64
}

type mangaListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title     map[string]string   `json:"title"`
			AltTitles []map[string]string `json:"altTitles"`
		} `json:"attributes"`
	} `json:"data"`
}

type coverListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Volume   *string `json:"volume"`
			FileName string  `json:"fileName"`
		} `json:"attributes"`
	} `json:"data"`
}

// FindManga returns the search hit whose titles best match title. ok is false
// when MangaDex has no candidates.
func (c *Client) FindManga(ctx context.Context, title string) (Manga, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Manga{}, false, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("title", title)
	params.Set("limit", strconv.Itoa(searchLimit))

	var payload mangaListResponse
	if err := c.get(ctx, "/manga", params, &payload); err != nil {
		return Manga{}, false, fmt.Errorf("mangadex search: %w", err)
	}

	var best Manga
	found := false
	for _, entry := range payload.Data {
		candidate := Manga{ID: entry.ID}
		for _, value := range entry.Attributes.Title {
			candidate.Titles = append(candidate.Titles, value)
		}
		for _, alt := range entry.Attributes.AltTitles {
			for _, value := range alt {
				candidate.Titles = append(candidate.Titles, value)
			}
		}
		for _, name := range candidate.Titles {
			candidate.Similarity = max(candidate.Similarity, textutil.TitleSimilarity(title, name))
		}
		// Ties keep MangaDex's relevance order.
		if !found || candidate.Similarity > best.Similarity {
			best = candidate
			found = true
		}
	}
	return best, found, nil
}

// CoverURL returns the 256px cover for volume of the manga best matching
// title, falling back to the first listed cover. ok is false when nothing is
// available; that is not an error.
func (c *Client) CoverURL(ctx context.Context, title string, volume int) (string, bool, error) {
	manga, found, err := c.FindManga(ctx, title)
	if err != nil || !found {
		return "", false, err
	}

	params := url.Values{}
	params.Add("manga[]", manga.ID)
	params.Set("limit", "10")
	var payload coverListResponse
	if err := c.get(ctx, "/cover", params, &payload); err != nil {
		return "", false, fmt.Errorf("mangadex covers: %w", err)
	}
	if len(payload.Data) == 0 {
		return "", false, nil
	}

	want := strconv.Itoa(volume)
	fileName := payload.Data[0].Attributes.FileName
	for _, cover := range payload.Data {
		if cover.Attributes.Volume != nil && strings.TrimSpace(*cover.Attributes.Volume) == want {
			fileName = cover.Attributes.FileName
			break
		}
	}
	if strings.TrimSpace(fileName) == "" {
		return "", false, nil
	}
	return fmt.Sprintf("%s/covers/%s/%s.256.jpg", c.uploadsURL, manga.ID, fileName), true, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
