package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRetryTransport(t *testing.T, mutate func(*Config)) *retryTransport {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RetryBackoff = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	return newRetryTransport(http.DefaultTransport, cfg)
}

func countingServer(t *testing.T, attempts *int32, handler func(attempt int32, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(atomic.AddInt32(attempts, 1), w)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRetryTransport_SuccessOnFirstAttempt(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, nil)
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryTransport_RetriesServerErrorsOnGet(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(attempt int32, w http.ResponseWriter) {
		if attempt < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, nil)
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryTransport_RetriesOn429(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(attempt int32, w http.ResponseWriter) {
		if attempt < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, nil)
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryTransport_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
	})

	transport := newTestRetryTransport(t, nil)
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryTransport_MaxAttemptsExhausted(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	transport := newTestRetryTransport(t, func(cfg *Config) {
		cfg.RetryAttempts = 2
	})
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
	// 1 initial + 2 retries.
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryTransport_RespectsRetryAfterHeader(t *testing.T) {
	var attempts int32
	var lastAttempt time.Time
	var betweenAttempts time.Duration

	server := countingServer(t, &attempts, func(attempt int32, w http.ResponseWriter) {
		now := time.Now()
		if attempt > 1 {
			betweenAttempts = now.Sub(lastAttempt)
		}
		lastAttempt = now

		if attempt < 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, func(cfg *Config) {
		cfg.RetryBackoff = 100 * time.Millisecond
	})
	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	// The smaller of Retry-After and the calculated backoff wins, so
	// the wait should be at least roughly one backoff interval.
	if betweenAttempts < 90*time.Millisecond {
		t.Errorf("expected at least 90ms between attempts, got %v", betweenAttempts)
	}
}

// The search executor owns replaying its POSTs after a credential
// refresh; the transport must never add replays of its own.
func TestRetryTransport_OnlyRetriesIdempotentMethods(t *testing.T) {
	tests := []struct {
		method   string
		attempts int32
	}{
		{"GET", 3},
		{"HEAD", 3},
		{"OPTIONS", 3},
		{"POST", 1},
		{"PUT", 1},
		{"PATCH", 1},
		{"DELETE", 1},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var attempts int32
			server := countingServer(t, &attempts, func(_ int32, w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			transport := newTestRetryTransport(t, func(cfg *Config) {
				cfg.RetryAttempts = 2
			})
			resp, err := transport.RoundTrip(mustRequest(t, tt.method, server.URL))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if attempts != tt.attempts {
				t.Errorf("expected %d attempts for %s, got %d", tt.attempts, tt.method, attempts)
			}
		})
	}
}

func TestRetryTransport_AllowNonIdempotentRetry(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(attempt int32, w http.ResponseWriter) {
		if attempt < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, func(cfg *Config) {
		cfg.AllowNonIdempotentRetry = true
	})
	resp, err := transport.RoundTrip(mustRequest(t, "POST", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("expected 3 attempts with AllowNonIdempotentRetry, got %d", attempts)
	}
}

func TestRetryTransport_ContextCancellation(t *testing.T) {
	var attempts int32
	server := countingServer(t, &attempts, func(_ int32, w http.ResponseWriter) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	transport := newTestRetryTransport(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if _, err := transport.RoundTrip(req); err == nil {
		t.Fatal("expected error due to context cancellation")
	} else if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}

	if atomic.LoadInt32(&attempts) > 1 {
		t.Errorf("expected 1 attempt, got %d", atomic.LoadInt32(&attempts))
	}
}

func TestCalculateBackoff(t *testing.T) {
	transport := newTestRetryTransport(t, func(cfg *Config) {
		cfg.RetryBackoff = 100 * time.Millisecond
		cfg.MaxBackoff = 10 * time.Second
	})

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, 80 * time.Millisecond, 140 * time.Millisecond},
		{2, 160 * time.Millisecond, 280 * time.Millisecond},
		{3, 320 * time.Millisecond, 560 * time.Millisecond},
		{10, 8 * time.Second, 12 * time.Second}, // capped, ± jitter
	}

	for _, tt := range tests {
		backoff := transport.calculateBackoff(tt.attempt)
		if backoff < tt.min || backoff > tt.max {
			t.Errorf("attempt %d: backoff %v not in range [%v, %v]", tt.attempt, backoff, tt.min, tt.max)
		}
	}
}

func mustRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}
