// Package catalog holds the curated per-title tables: manual episode totals,
// pacing ratios, filler episode lists and narrative arcs.
//
// The builtin tables ship embedded in the binary. A user overrides file in the
// same YAML shape is layered on top and reloaded when it changes on disk.
// Episode totals require an exact match on a normalized title or alias; the
// other tables fall back to the longest table key contained in the title.
package catalog
