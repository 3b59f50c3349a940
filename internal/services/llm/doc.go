// Package llm provides an OpenRouter-compatible chat completion client used
// as the narration text generator.
//
// # Configuration
//
// Requires api_key and model; base_url defaults to OpenRouter. Referer and
// title are forwarded as the attribution headers OpenRouter expects.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send system/user prompts, receive plain text.
// Client.HealthCheck: verify API key and model availability.
//
// # Failure Classification
//
// Each call is a single attempt; the caller owns retries. HTTP 408/429/5xx,
// network timeouts, and empty completions are tagged services.ErrTransient
// (or ErrTimeout) and carry any Retry-After hint. Authentication failures are
// tagged ErrConfiguration and other 4xx responses ErrValidation.
package llm
