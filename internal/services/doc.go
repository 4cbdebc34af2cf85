// Package services defines shared utilities consumed by the resolution
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp stage names and correlation identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper, and the FailureKind /
//     Failure mapping that turns an error chain into the outbound contract
//     ({kind, message}) used by the CLI and HTTP API.
//
// Use these helpers when wiring new pipeline steps so error classification and
// observability stay uniform.
package services
