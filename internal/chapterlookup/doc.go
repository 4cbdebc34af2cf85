// Package chapterlookup asks a generative model which manga chapter and volume
// an anime episode ends on.
//
// Two model tiers are tried in order. Transport errors, HTTP failures,
// malformed JSON and explicit refusals all fall through to the next tier, and
// each tier runs under its own deadline. When every tier fails the caller
// receives a *LookupError listing each cause.
package chapterlookup
