// Package cachestore keeps mangabridge's local state in a SQLite database:
// manga volume info keyed by AniList series id, and the recent search history.
//
// Volume rows expire after a TTL (24 hours by default) and are read as misses
// once stale. Writes use INSERT OR REPLACE so concurrent fetches of the same
// series settle on the last writer.
package cachestore
