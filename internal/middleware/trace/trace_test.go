package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"fintrack/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if !regexp.MustCompile(`^req_[0-9a-f]{16}$`).MatchString(seen) {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	tests := []struct {
		incoming string
		keep     bool
	}{
		{"abc-123_DEF", true},
		{"has space", false},
		{strings.Repeat("a", 65), false},
		{"<script>", false},
	}

	for _, tt := range tests {
		t.Run(tt.incoming, func(t *testing.T) {
			var seen string
			h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if (seen == tt.incoming) != tt.keep {
				t.Fatalf("seen = %q, keep = %v", seen, tt.keep)
			}
		})
	}
}

func TestMiddlewareLogsStatusAndCountsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.9" })
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/transactions/x", nil))

	out := buf.String()
	for _, want := range []string{`"status_code":404`, `"level":"WARN"`, `"client_ip":"203.0.113.9"`, `"path":"/api/transactions/x"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d, want 1", got)
	}
}
