package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// roundTripCapturing sends one request through a logging transport and
// returns the named request header as the server saw it.
func roundTripCapturing(t *testing.T, header string, prepare func(*http.Request)) string {
	t.Helper()

	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Get(header)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0")

	req := mustRequest(t, "GET", server.URL)
	if prepare != nil {
		prepare(req)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	return captured
}

func TestLoggingTransport_SetsUserAgent(t *testing.T) {
	got := roundTripCapturing(t, "User-Agent", nil)
	if got != "test-agent/1.0" {
		t.Errorf("expected User-Agent %q, got %q", "test-agent/1.0", got)
	}
}

func TestLoggingTransport_PreservesExistingUserAgent(t *testing.T) {
	got := roundTripCapturing(t, "User-Agent", func(req *http.Request) {
		req.Header.Set("User-Agent", "custom-agent/2.0")
	})
	if got != "custom-agent/2.0" {
		t.Errorf("expected User-Agent %q, got %q", "custom-agent/2.0", got)
	}
}

func TestLoggingTransport_GeneratesCorrelationID(t *testing.T) {
	got := roundTripCapturing(t, "X-Correlation-ID", nil)
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("expected a UUID correlation ID, got %q", got)
	}
}

func TestLoggingTransport_PreservesExistingCorrelationID(t *testing.T) {
	got := roundTripCapturing(t, "X-Correlation-ID", func(req *http.Request) {
		req.Header.Set("X-Correlation-ID", "preset-id")
	})
	if got != "preset-id" {
		t.Errorf("expected correlation ID %q, got %q", "preset-id", got)
	}
}

func TestLoggingTransport_TransparentRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0")

	resp, err := transport.RoundTrip(mustRequest(t, "GET", server.URL))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", resp.StatusCode)
	}
}
