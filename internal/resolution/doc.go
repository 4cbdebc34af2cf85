// Package resolution answers "which manga chapter does this anime episode end
// on?".
//
// A Pipeline validates the episode against the franchise total, returns early
// for filler, then asks the chapter lookup models while fetching AniList's
// volume count in parallel. The model's volume is cross-checked against the
// authoritative count, a cover is chosen (MangaDex volume art, else the series
// cover) and the search is remembered. When the models fail the configured
// policy decides between surfacing the failure and a pacing estimate.
package resolution
