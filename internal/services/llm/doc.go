// Package llm provides an OpenAI-compatible chat client used to translate
// transcripts.
//
// # Translation
//
// Translate sends the transcript with a system prompt that requests a JSON
// object {"translation": "..."}. Transcripts longer than a single request
// allows are split on sentence boundaries and translated in order.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title, timeout.
// The default endpoint is OpenRouter.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.Translate: translate text into a target language.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). Context cancellation aborts retries immediately.
package llm
