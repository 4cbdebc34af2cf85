// Package server exposes the resolution pipeline and its supporting lookups
// over a small JSON HTTP API.
//
// Only one server may run per data directory; Start takes an exclusive file
// lock and fails fast when another instance holds it.
package server
