// Package llm provides an OpenRouter-compatible chat client used for all text
// generation in the pipeline: Hebrew article drafts, English translations,
// social copy, podcast scripts, and SEO rewrites.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: free-form text completion.
// Client.CompleteJSON / Client.GenerateJSON: JSON-only completion, optionally
// decoded into a caller struct.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). Context cancellation aborts retries immediately.
//
// Text generation is synchronous; the submit/poll job contract in
// services/generation is reserved for media and audio generation.
package llm
