package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "subtrack/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated", "", false},
		{"reused", "abc-123", true},
		{"rejected", "bad id with spaces", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewMiddleware(nil, applog.New(applog.Config{Format: "json", Output: &buf}))

			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Header().Get(HeaderRequestID) != seen {
				t.Errorf("response header %q != context id %q", rec.Header().Get(HeaderRequestID), seen)
			}
			if tt.reuse && seen != tt.incoming {
				t.Errorf("request id = %q, want %q", seen, tt.incoming)
			}
			if !tt.reuse && !strings.HasPrefix(seen, "req_") {
				t.Errorf("request id = %q, want generated", seen)
			}
			if !strings.Contains(buf.String(), `"status_code":418`) {
				t.Errorf("completion log missing status: %s", buf.String())
			}
			if m.TotalRequests() != 1 {
				t.Errorf("TotalRequests() = %d", m.TotalRequests())
			}
		})
	}
}
