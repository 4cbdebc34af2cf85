package episodecount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"mangabridge/internal/catalog"
	"mangabridge/internal/logging"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/services"
)

const stageName = "episodecount"

// MetadataSource is the slice of the AniList client the resolver walks.
type MetadataSource interface {
	Search(ctx context.Context, title string) (*anilist.Media, error)
	Media(ctx context.Context, id int) (*anilist.Media, error)
}

// Season is one broadcast unit mapped onto franchise-wide episode numbers.
type Season struct {
	DisplayName  string `json:"display_name"`
	SourceTitle  string `json:"source_title"`
	SeriesID     int    `json:"series_id,omitempty"`
	Start        int    `json:"start"`
	End          *int   `json:"end,omitempty"`
	EpisodeCount int    `json:"episode_count"`
	Format       string `json:"format,omitempty"`
	Year         int    `json:"year,omitempty"`
}

// Ongoing reports whether the season has no known end.
func (s Season) Ongoing() bool {
	return s.End == nil
}

// Contains reports whether the franchise-wide episode falls in the season.
func (s Season) Contains(episode int) bool {
	if episode < s.Start {
		return false
	}
	return s.End == nil || episode <= *s.End
}

// SeriesIdentity is the resolved franchise: canonical title, contiguous
// seasons and the total they add up to.
type SeriesIdentity struct {
	ID            int      `json:"id,omitempty"`
	Title         string   `json:"title"`
	CoverImage    string   `json:"cover_image,omitempty"`
	Seasons       []Season `json:"seasons"`
	TotalEpisodes int      `json:"total_episodes"`
	FromOverride  bool     `json:"from_override"`
	Partial       bool     `json:"partial,omitempty"`
}

// Ongoing reports whether the trailing season is still airing with an
// unknown length, which leaves the total unbounded.
func (s SeriesIdentity) Ongoing() bool {
	return len(s.Seasons) > 0 && s.Seasons[len(s.Seasons)-1].Ongoing()
}

// SeasonFor returns the season containing episode.
func (s SeriesIdentity) SeasonFor(episode int) (Season, bool) {
	for _, season := range s.Seasons {
		if season.Contains(episode) {
			return season, true
		}
	}
	return Season{}, false
}

// Resolver computes franchise-wide episode totals.
type Resolver struct {
	source  MetadataSource
	catalog catalog.Source
	logger  *slog.Logger
}

// NewResolver wires a resolver. A nil logger discards output.
func NewResolver(source MetadataSource, tables catalog.Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{source: source, catalog: tables, logger: logger}
}

// Resolve returns the SeriesIdentity for title. Curated totals win over the
// metadata graph; otherwise the SEQUEL chain from the best search hit is
// walked and summed.
func (r *Resolver) Resolve(ctx context.Context, title string) (SeriesIdentity, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return SeriesIdentity{}, services.Wrap(services.ErrValidation, stageName, "resolve", "title is required", nil)
	}
	logger := logging.WithContext(ctx, r.logger)

	if r.catalog != nil {
		if total, name, ok := r.catalog.Snapshot().EpisodeTotal(title); ok {
			identity := overrideIdentity(name, total)
			r.attachRoot(ctx, logger, title, &identity)
			logger.Debug("episode total from catalog",
				logging.String(logging.FieldTitle, name),
				logging.Int("total_episodes", total),
			)
			return identity, nil
		}
	}

	if r.source == nil {
		return SeriesIdentity{}, services.Wrap(services.ErrConfiguration, stageName, "resolve", "metadata source unavailable", nil)
	}
	root, err := r.source.Search(ctx, title)
	if err != nil {
		return SeriesIdentity{}, classifyFetchError(err, "search", fmt.Sprintf("could not find anime %q", title))
	}

	chain, partial, err := r.walkSequels(ctx, logger, root)
	if err != nil {
		return SeriesIdentity{}, err
	}
	identity := buildIdentity(root, chain)
	identity.Partial = partial
	logger.Debug("episode total from metadata graph",
		logging.String(logging.FieldTitle, identity.Title),
		logging.Int(logging.FieldSeriesID, identity.ID),
		logging.Int("seasons", len(identity.Seasons)),
		logging.Int("total_episodes", identity.TotalEpisodes),
		logging.Bool("ongoing", identity.Ongoing()),
	)
	return identity, nil
}

// attachRoot fills id and cover for catalog hits so enrichment can still key
// on the series id. Failures leave the identity untouched.
func (r *Resolver) attachRoot(ctx context.Context, logger *slog.Logger, title string, identity *SeriesIdentity) {
	if r.source == nil {
		return
	}
	root, err := r.source.Search(ctx, title)
	if err != nil {
		logger.Debug("catalog title not enriched", logging.String(logging.FieldTitle, title), logging.Error(err))
		return
	}
	identity.ID = root.ID
	identity.CoverImage = root.CoverImage.Best()
	identity.Seasons[0].SeriesID = root.ID
}

func overrideIdentity(name string, total int) SeriesIdentity {
	end := total
	return SeriesIdentity{
		Title: name,
		Seasons: []Season{{
			DisplayName:  name,
			SourceTitle:  name,
			Start:        1,
			End:          &end,
			EpisodeCount: total,
		}},
		TotalEpisodes: total,
		FromOverride:  true,
	}
}

// walkSequels runs a depth-first traversal over qualifying SEQUEL edges. Each
// node is fetched by id so its own relations are visible. A failed fetch after
// the root stops the walk and marks the result partial.
func (r *Resolver) walkSequels(ctx context.Context, logger *slog.Logger, root *anilist.Media) ([]anilist.Media, bool, error) {
	visited := map[int]bool{}
	var chain []anilist.Media
	partial := false

	stack := []int{root.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		media, err := r.source.Media(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, services.Wrap(services.ErrTimeout, stageName, "walk sequels", "request cancelled", ctx.Err())
			}
			if len(chain) == 0 {
				// The root is already known from search; keep it without relations.
				chain = append(chain, *root)
			}
			partial = true
			logging.WarnWithContext(logger, "sequel traversal incomplete", "sequel_traversal_partial",
				logging.Int(logging.FieldSeriesID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add an episode_total to the catalog overrides for this title"),
				logging.String(logging.FieldImpact, "episode total counts only the seasons already collected"),
			)
			break
		}
		chain = append(chain, *media)

		// Push in reverse so the first listed sequel is explored first.
		next := qualifyingSequels(media)
		for i := len(next) - 1; i >= 0; i-- {
			if !visited[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}
	return chain, partial, nil
}

var seriesFormats = []string{anilist.FormatTV, anilist.FormatONA, anilist.FormatTVShort, anilist.FormatSpecial}

func qualifyingSequels(media *anilist.Media) []int {
	if media.Relations == nil {
		return nil
	}
	var ids []int
	for _, edge := range media.Relations.Edges {
		node := edge.Node
		if edge.RelationType != anilist.RelationSequel || node.Type != anilist.TypeAnime {
			continue
		}
		if !slices.Contains(seriesFormats, node.Format) {
			continue
		}
		if node.Status == anilist.StatusNotYetReleased || node.Status == anilist.StatusCancelled {
			continue
		}
		ids = append(ids, node.ID)
	}
	return ids
}

func buildIdentity(root *anilist.Media, chain []anilist.Media) SeriesIdentity {
	identity := SeriesIdentity{
		ID:         root.ID,
		Title:      root.Title.Canonical(),
		CoverImage: root.CoverImage.Best(),
	}
	offset := 0
	for i, media := range chain {
		count := max(media.Episodes, 0)
		trailing := i == len(chain)-1
		if count == 0 && !trailing {
			continue
		}
		season := Season{
			DisplayName:  seasonDisplayName(media, i+1),
			SourceTitle:  media.Title.Canonical(),
			SeriesID:     media.ID,
			Start:        offset + 1,
			EpisodeCount: count,
			Format:       media.Format,
			Year:         media.SeasonYear,
		}
		if count > 0 {
			end := offset + count
			season.End = &end
		}
		offset += count
		identity.Seasons = append(identity.Seasons, season)
	}
	identity.TotalEpisodes = offset
	return identity
}

var seasonInfo = regexp.MustCompile(`(?i)Season|Part|Cour`)

func seasonDisplayName(media anilist.Media, position int) string {
	title := media.Title.Display()
	year := "?"
	if media.SeasonYear > 0 {
		year = strconv.Itoa(media.SeasonYear)
	}
	switch {
	case media.Format == anilist.FormatSpecial || media.Format == anilist.FormatTVShort || media.Format == anilist.FormatMovie:
		return "Special: " + title
	case !seasonInfo.MatchString(title):
		return fmt.Sprintf("Season %d: %s (%s)", position, title, year)
	default:
		return fmt.Sprintf("%s (%s)", title, year)
	}
}

func classifyFetchError(err error, operation, message string) error {
	switch {
	case errors.Is(err, anilist.ErrNotFound):
		return services.Wrap(services.ErrNotFound, stageName, operation, message, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrTimeout, stageName, operation, message, err)
	default:
		return services.Wrap(services.ErrTransient, stageName, operation, message, err)
	}
}
