// Package episodecount resolves an anime title to its franchise-wide episode
// numbering and gates requested episodes against it.
//
// The Resolver consults curated totals first. Otherwise it searches AniList,
// walks SEQUEL relations depth-first (TV, ONA, TV_SHORT and SPECIAL entries
// that have aired), and lays the seasons end to end. A trailing season with no
// known length stays open-ended, which the Gate treats as an unbounded total.
package episodecount
