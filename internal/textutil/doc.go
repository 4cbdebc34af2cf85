// Package textutil provides title normalization and similarity helpers.
//
// The primary use cases are:
//   - Building the normalized key used to match user-entered titles against
//     the static catalog and the metadata source
//   - Creating token-based fingerprints from titles for comparison
//   - Ranking cover-art search hits by cosine similarity to the series title
//
// Normalization applies compatibility decomposition, strips combining marks,
// case-folds via golang.org/x/text, and collapses punctuation to spaces.
package textutil
