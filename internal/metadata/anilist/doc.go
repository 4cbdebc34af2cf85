// Package anilist wraps the AniList GraphQL API.
//
// It covers the queries the resolver needs: popularity-ranked title search,
// per-id media with relation edges for walking sequel chains, manga volume
// counts through SOURCE/ADAPTATION relations, autocomplete listings and the
// trending feed. Transport errors are returned wrapped; an absent entry is
// reported as ErrNotFound.
package anilist
