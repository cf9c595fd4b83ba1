package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"subtrack/internal/cache"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestInstrumentHandler_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/subscriptions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/abc", nil))

	out := scrape(t)
	want := `subtrack_http_requests_total{method="GET",route="/api/v1/subscriptions/{id}",status="404"}`
	if !strings.Contains(out, want) {
		t.Errorf("scrape missing %s", want)
	}
}

func TestRecorders(t *testing.T) {
	RecordSubscriptionWrite("create", true)
	RecordReminderDispatch(false)
	RecordReminderDelivery("")
	RecordSheetsSync(0, true)

	out := scrape(t)
	for _, want := range []string{
		`subtrack_subscriptions_writes_total{operation="create",success="true"}`,
		`subtrack_reminders_dispatched_total{success="false"}`,
		`subtrack_reminders_deliveries_total{result="unknown"}`,
		`subtrack_sheets_syncs_total{success="true"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %s", want)
		}
	}
}

func TestRegisterCacheStats(t *testing.T) {
	lru := cache.NewLRUCache[int](4, time.Minute)
	lru.Set("a", 1)
	lru.Get("a")
	lru.Get("b")

	if err := RegisterCacheStats("test_lists", lru.Stats); err != nil {
		t.Fatalf("RegisterCacheStats() error = %v", err)
	}
	if err := RegisterCacheStats("test_lists", lru.Stats); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	out := scrape(t)
	if !strings.Contains(out, `subtrack_cache_hits{cache="test_lists"} 1`) {
		t.Errorf("hits gauge missing:\n%s", out)
	}
	if !strings.Contains(out, `subtrack_cache_entries{cache="test_lists"} 1`) {
		t.Errorf("entries gauge missing")
	}
}
