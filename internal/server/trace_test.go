package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tube-curator/internal/observability/logging"
)

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := traceMiddlewareWithGenerator(nil, func() string { return "generated-id" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = logging.TraceIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "generated-id" {
		t.Fatalf("expected generated trace id in context, got %q", seen)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != "generated-id" {
		t.Fatalf("expected trace header to echo generated id, got %q", got)
	}
}

func TestTraceMiddlewareExemptsOperationalPaths(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		generated := false
		handler := traceMiddlewareWithGenerator(nil, func() string { generated = true; return "probe-id" },
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id, ok := logging.TraceIDFromContext(r.Context()); ok {
					t.Fatalf("%s: probe context should carry no trace id, got %q", path, id)
				}
				w.WriteHeader(http.StatusOK)
			}))

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Trace-Id", "inbound-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if generated {
			t.Fatalf("%s: generator must not run for probes", path)
		}
		if got := rec.Header().Get("X-Trace-Id"); got != "" {
			t.Fatalf("%s: probes must not echo trace headers, got %q", path, got)
		}
	}
}

func TestTraceMiddlewareHeaderPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		requestID string
		traceID   string
		want      string
	}{
		{name: "legacy header wins", requestID: "legacy-123", traceID: "trace-456", want: "legacy-123"},
		{name: "trace header used when no legacy", traceID: "trace-456", want: "trace-456"},
		{name: "blank headers fall back to generator", requestID: "  ", traceID: "", want: "fallback"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			handler := traceMiddlewareWithGenerator(nil, func() string { return "fallback" },
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
			if tc.requestID != "" {
				req.Header.Set("X-Request-Id", tc.requestID)
			}
			if tc.traceID != "" {
				req.Header.Set("X-Trace-Id", tc.traceID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("X-Trace-Id"); got != tc.want {
				t.Fatalf("expected outbound trace id %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClientKeyIncludesCredentialFingerprint(t *testing.T) {
	t.Parallel()

	bare := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	bare.RemoteAddr = "10.1.2.3:4444"
	if got := clientKey(bare); got != "10.1.2.3" {
		t.Fatalf("expected bare ip key, got %q", got)
	}

	authed := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	authed.RemoteAddr = "10.1.2.3:4444"
	authed.Header.Set("Authorization", "Bearer super-secret-token")
	key := clientKey(authed)
	if key == "10.1.2.3" {
		t.Fatal("expected fingerprint suffix for authenticated client")
	}
	if len(key) != len("10.1.2.3")+1+16 {
		t.Fatalf("unexpected key shape %q", key)
	}
	if strings.Contains(key, "super-secret-token") {
		t.Fatal("client key must never embed the raw credential")
	}

	other := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	other.RemoteAddr = "10.1.2.3:4444"
	other.Header.Set("Authorization", "Bearer another-token")
	if clientKey(other) == key {
		t.Fatal("different credentials must map to different keys")
	}
}
