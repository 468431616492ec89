// Package textgen provides an OpenRouter-style chat client used by the bulk
// prompt generator.
//
// # Behaviour
//
// The client sends a system/user prompt pair with response_format set to
// json_object and returns the raw JSON payload plus token accounting. Payload
// sanitization tolerates common model quirks (code fences, leading prose).
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
package textgen
