package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subtrack/internal/cache"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/services"
	"subtrack/internal/store/cached"
	"subtrack/internal/store/memory"
)

func newTestServer(t *testing.T, cfg Config, ready func(context.Context) error) *Server {
	t.Helper()
	st := cached.New(memory.New(), 16, time.Minute)
	scheduler := notify.NewScheduler(notify.NewMemoryStore(), 0)

	srv := NewServer(cfg, Deps{
		Subscriptions: services.NewSubscriptionService(st, scheduler, nil),
		Reminders:     scheduler,
		Preferences:   preferences.NewService(preferences.NewMemoryKV()),
		Ready:         ready,
		Caches:        []cache.Cleaner{st.Cache()},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	down := newTestServer(t, Config{}, func(context.Context) error { return errors.New("db down") })
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rr.Code)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/v1/subscriptions",
		`{"name":" Netflix ","amount":15.99,"billing_frequency":"monthly","start_date":"2024-01-15","category":"entertainment"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rr.Code, rr.Body.String())
	}
	created := decode[subscriptionResponse](t, rr)
	if created.Name != "Netflix" || created.Amount != "15.99" || created.Category != "Entertainment" {
		t.Errorf("created = %+v", created)
	}
	if created.NextRenewal == "" {
		t.Error("next_renewal should be projected")
	}
	if rr.Header().Get("Location") != "/api/v1/subscriptions/"+created.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodPatch, "/api/v1/subscriptions/"+created.ID, `{"amount":"17,99"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rr.Code, rr.Body.String())
	}
	if updated := decode[subscriptionResponse](t, rr); updated.Amount != "17.99" || updated.Name != "Netflix" {
		t.Errorf("updated = %+v", updated)
	}

	list := decode[[]subscriptionResponse](t, do(t, srv, http.MethodGet, "/api/v1/subscriptions", ""))
	if len(list) != 1 || list[0].Amount != "17.99" {
		t.Errorf("list after update = %+v", list)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/v1/subscriptions/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/subscriptions/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
	list = decode[[]subscriptionResponse](t, do(t, srv, http.MethodGet, "/api/v1/subscriptions", ""))
	if len(list) != 0 {
		t.Errorf("list after delete = %+v", list)
	}
}

func TestCreateSubscription_Validation(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing amount", `{"name":"Spotify","billing_frequency":"monthly"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"name":"Spotify","amount":"-1","billing_frequency":"monthly"}`, http.StatusUnprocessableEntity},
		{"missing name", `{"amount":"9.99","billing_frequency":"monthly"}`, http.StatusUnprocessableEntity},
		{"missing frequency", `{"name":"Spotify","amount":"9.99"}`, http.StatusUnprocessableEntity},
		{"weekly frequency", `{"name":"Spotify","amount":"9.99","billing_frequency":"weekly"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"name":"Spotify","amount":"9.99","billing_frequency":"monthly","category":"Gym"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"name":"Spotify","amount":"9.99","billing_frequency":"monthly","start_date":"31/01/2024"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"name":`, http.StatusBadRequest},
		{"form body", `name=Spotify&amount=9.99&billing_frequency=monthly&category=music`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/v1/subscriptions", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestUsersAreIsolated(t *testing.T) {
	srv := newTestServer(t, Config{DefaultUserID: "alice"}, nil)

	rr := do(t, srv, http.MethodPost, "/api/v1/subscriptions",
		`{"name":"Disney+","amount":"7.99","billing_frequency":"monthly"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	id := decode[subscriptionResponse](t, rr).ID

	if list := decode[[]subscriptionResponse](t, do(t, srv, http.MethodGet, "/api/v1/subscriptions", "", HeaderUserID, "bob")); len(list) != 0 {
		t.Errorf("bob sees %d subscriptions", len(list))
	}
	if rr := do(t, srv, http.MethodDelete, "/api/v1/subscriptions/"+id, "", HeaderUserID, "bob"); rr.Code != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want 404", rr.Code)
	}
	if list := decode[[]subscriptionResponse](t, do(t, srv, http.MethodGet, "/api/v1/subscriptions", "", HeaderUserID, "alice")); len(list) != 1 {
		t.Errorf("alice sees %d subscriptions", len(list))
	}
}

func TestSummaryAndAnalytics(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	for _, body := range []string{
		`{"name":"Netflix","amount":"15.99","billing_frequency":"monthly","category":"Entertainment","start_date":"2024-01-10"}`,
		`{"name":"Prime","amount":"120","billing_frequency":"annually","category":"Shopping","start_date":"2024-03-01"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/v1/subscriptions", body); rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d body = %s", rr.Code, rr.Body.String())
		}
	}

	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/v1/summary", ""))
	if summary.MonthlyTotal != "25.99" || summary.AnnualTotal != "311.88" || summary.Count != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Formatted.Annual != "$311.88" {
		t.Errorf("formatted annual = %q", summary.Formatted.Annual)
	}

	cats := decode[[]categoryResponse](t, do(t, srv, http.MethodGet, "/api/v1/analytics/categories", ""))
	if len(cats) != 2 || cats[0].Category != "Entertainment" || cats[0].Amount != "15.99" || cats[1].Amount != "10.00" {
		t.Errorf("categories = %+v", cats)
	}

	trend := decode[trendResponse](t, do(t, srv, http.MethodGet, "/api/v1/analytics/trend?range=6m", ""))
	if len(trend.Points) != 6 {
		t.Fatalf("trend points = %d, want 6", len(trend.Points))
	}
	for _, p := range trend.Points {
		if p.Total != "25.99" {
			t.Errorf("point %s total = %s, want 25.99", p.Label, p.Total)
		}
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/analytics/trend?range=2w", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want 400", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/renewals?days=-1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("negative days status = %d, want 400", rr.Code)
	}

	renewals := decode[[]renewalResponse](t, do(t, srv, http.MethodGet, "/api/v1/renewals?days=400", ""))
	if len(renewals) != 2 {
		t.Errorf("renewals within 400 days = %d, want 2", len(renewals))
	}
}

func TestReminderRoutes(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/v1/subscriptions",
		`{"name":"iCloud","amount":"2.99","billing_frequency":"monthly","category":"Utilities"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rr.Code, rr.Body.String())
	}
	subID := decode[subscriptionResponse](t, rr).ID

	pending := decode[[]reminderResponse](t, do(t, srv, http.MethodGet, "/api/v1/reminders", ""))
	if len(pending) != 1 || pending[0].SubscriptionID != subID {
		t.Fatalf("pending after create = %+v", pending)
	}
	if pending[0].Title != "Subscription Renewal Reminder" {
		t.Errorf("title = %q", pending[0].Title)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/subscriptions/"+subID+"/reminders", `{"lead_days":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("schedule status = %d body = %s", rr.Code, rr.Body.String())
	}
	rescheduled := decode[reminderResponse](t, rr)

	pending = decode[[]reminderResponse](t, do(t, srv, http.MethodGet, "/api/v1/reminders", ""))
	if len(pending) != 1 || pending[0].ID != rescheduled.ID {
		t.Errorf("rescheduling should replace the pending reminder: %+v", pending)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/v1/reminders/"+rescheduled.ID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/v1/reminders/"+rescheduled.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", rr.Code)
	}

	do(t, srv, http.MethodPost, "/api/v1/subscriptions/"+subID+"/reminders", "")
	canceled := decode[map[string]int](t, do(t, srv, http.MethodDelete, "/api/v1/reminders", ""))
	if canceled["canceled"] != 1 {
		t.Errorf("cancel all = %v, want 1", canceled)
	}
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	prefs := decode[preferencesResponse](t, do(t, srv, http.MethodGet, "/api/v1/preferences", ""))
	if prefs.Theme != "light" || !prefs.NotificationsEnabled || prefs.HasPushToken {
		t.Errorf("defaults = %+v", prefs)
	}

	rr := do(t, srv, http.MethodPut, "/api/v1/preferences", `{"theme":"dark","push_token":"ExponentPushToken[x]"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d body = %s", rr.Code, rr.Body.String())
	}
	prefs = decode[preferencesResponse](t, do(t, srv, http.MethodGet, "/api/v1/preferences", ""))
	if prefs.Theme != "dark" || !prefs.HasPushToken {
		t.Errorf("after put = %+v", prefs)
	}

	if rr := do(t, srv, http.MethodPut, "/api/v1/preferences", `{"theme":"sepia"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid theme status = %d, want 422", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/v1/preferences", `{"colour":"red"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rr.Code)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	do(t, srv, http.MethodPost, "/api/v1/subscriptions",
		`{"name":"Spotify","amount":"9.99","billing_frequency":"monthly","category":"Music"}`)

	rr := do(t, srv, http.MethodGet, "/api/v1/export?format=csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "subscription-tracker-export-") || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rr.Body.String(), "Spotify") {
		t.Errorf("csv body missing record: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/export", "")
	var dump struct {
		ExportDate    string           `json:"exportDate"`
		Subscriptions []map[string]any `json:"subscriptions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &dump); err != nil {
		t.Fatalf("json export: %v", err)
	}
	if dump.ExportDate == "" || len(dump.Subscriptions) != 1 {
		t.Errorf("dump = %+v", dump)
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/export?format=xlsx", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("unsupported format status = %d, want 400", rr.Code)
	}
}

func TestRateLimitAndHeaders(t *testing.T) {
	srv := newTestServer(t, Config{RateLimitPerMinute: 1}, nil)

	first := do(t, srv, http.MethodGet, "/api/v1/subscriptions", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if first.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/subscriptions", ""); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rr.Code)
	}
	// probes are not rate limited
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Config{MetricsEnabled: true}, nil)
	do(t, srv, http.MethodGet, "/api/v1/subscriptions", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "subtrack_http_requests_total") {
		t.Error("metrics output missing request counter")
	}

	if rr := do(t, newTestServer(t, Config{}, nil), http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("/metrics with metrics disabled status = %d, want 404", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.1.1.1:80", "10.0.0.9"},
		{"remote", nil, "1.1.1.1:80", "1.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
