package chapterlookup

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout renders the date context the model treats as "today".
const dateLayout = "January 2, 2006"

// lookupPromptTemplate asks for the chapter and volume an episode ends on.
// Placeholders: date, title, episode line(s), episode.
const lookupPromptTemplate = `You are a precise anime-to-manga mapping expert. Given an anime title and episode number, provide the EXACT manga chapter and volume where that episode ends, along with brief context.

Date Context: Today is %s. Treat this as the current date for all airing information.

ANIME: %q
%s
Respond in this EXACT JSON format (no markdown, just raw JSON):
{
  "chapter": <number>,
  "volume": <number>,
  "context": "<1-2 sentence description of what happens in this chapter>",
  "source": "ai"
}

CRITICAL RULES:
1. Provide EXACT chapter/volume numbers based on actual anime-manga correspondence
2. If the anime adapts multiple chapters per episode, give the ENDING chapter of episode %d
3. For popular anime (Jujutsu Kaisen, Demon Slayer, etc), use well-documented episode-chapter mappings
4. Context should mention key events/arc name in that chapter
5. Return ONLY valid JSON, no extra text

If you cannot find accurate information, respond with:
{
  "error": "Could not find accurate mapping for this anime/episode",
  "source": "ai"
}`

// BuildPrompt renders the lookup prompt. The output depends only on the
// request and the calendar date of now.
func BuildPrompt(req Request, now time.Time) string {
	var episodeLines strings.Builder
	fmt.Fprintf(&episodeLines, "EPISODE: %d\n", req.Episode)
	if season := strings.TrimSpace(req.Season); season != "" {
		fmt.Fprintf(&episodeLines, "SEASON: %s (episode number counts from the first season)\n", season)
	}
	return fmt.Sprintf(lookupPromptTemplate, now.Format(dateLayout), strings.TrimSpace(req.Title), episodeLines.String(), req.Episode)
}
