// Package llm provides a chat completion client for OpenRouter and other
// OpenAI-compatible gateways.
//
// The client sends JSON-mode prompts and returns the model's raw content.
// Each Prompt may name its own model, which lets callers run a primary and a
// secondary model tier through one client. Decoding helpers tolerate code
// fences and prose around a JSON payload.
//
// # Retry Behaviour
//
// By default each call makes one attempt. When MaxAttempts is raised the
// client retries HTTP 408/429/5xx responses, empty content and network
// timeouts with exponential backoff (base 1s, max 10s), honouring
// Retry-After. Context cancellation aborts retries immediately.
package llm
