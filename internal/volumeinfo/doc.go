// Package volumeinfo reconciles the model's volume guess with AniList's
// curated manga volume count, caching the counts per series id.
package volumeinfo
