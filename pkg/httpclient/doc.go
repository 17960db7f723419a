// Package httpclient provides a unified HTTP client factory with consistent
// timeout, retry, and observability behavior for dashboard traffic.
//
// The package creates HTTP clients with sensible, secure defaults including:
//   - Automatic retry with exponential backoff and jitter
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID injection for matching requests to upstream logs
//   - TLS 1.2 minimum (TLS 1.3 preferred)
//   - Connection pooling for performance
//
// # Usage
//
// Create a client with default settings:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("https://opensearch-dashboard.example.com/api/status")
//
// Customize configuration:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "spyglass/2.0"
//	cfg.Timeout = 60 * time.Second
//	cfg.InsecureSkipVerify = true // self-signed internal cluster
//	client, err := httpclient.New(cfg)
//
// # Retry Behavior
//
// The client automatically retries transient errors with exponential backoff:
//   - Retries HTTP 5xx server errors
//   - Retries HTTP 429 (rate limit) with Retry-After header support
//   - Retries HTTP 408 (request timeout)
//   - Retries network errors (connection refused, reset, temporary DNS failures)
//   - Does NOT retry 4xx client errors (except 408, 429)
//   - Only retries idempotent methods (GET, HEAD, OPTIONS) by default
//
// Search POSTs are intentionally excluded from automatic retry: the one
// permitted replay after re-authentication belongs to the search
// executor, and double-submitting heavy aggregations to a cluster is
// worse than failing fast.
//
// # Security
//
// The package includes security features:
//   - Sensitive query parameters (token, cookie, session, etc.) are redacted from logs
//   - Cookie and Authorization headers are never logged
//   - TLS 1.2 minimum with certificate validation enabled unless a
//     cluster explicitly opts out
//   - Connection pooling limits prevent resource exhaustion
//
// # Observability
//
// All requests emit structured logs via log/slog:
//   - Debug level: successful requests (2xx status)
//   - Warn level: failed requests (4xx/5xx status, errors)
//   - Fields: method, url (sanitized), correlation_id, status, duration_ms, error
package httpclient
