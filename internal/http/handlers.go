package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
	"subtrack/internal/export"
	applog "subtrack/internal/log"
	"subtrack/internal/preferences"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.List(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now()
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, newSubscriptionResponse(sub, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Get(r.Context(), userFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub, s.now()))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := parseSubscription(p, core.Subscription{}, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub.UserID = userFrom(r)

	created, err := s.subs.Create(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/subscriptions/"+created.ID)
	writeJSON(w, http.StatusCreated, newSubscriptionResponse(created, s.now()))
}

// handleUpdateSubscription applies the fields present in the body to the
// stored record, so PUT and PATCH behave the same.
func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	existing, err := s.subs.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := parseSubscription(p, existing, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.subs.Update(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(updated, s.now()))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subs.Delete(r.Context(), userFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) windowDays(r *http.Request) (int, error) {
	return queryInt(r.URL.Query(), "days", s.cfg.RenewalWindowDays)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	days, err := s.windowDays(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.subs.Summary(r.Context(), userFrom(r), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(summary))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.List(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponses(analytics.CategoryBreakdown(subs)))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tr, err := analytics.ParseTimeRange(q.Get("range"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	historical := false
	if v := q.Get("historical"); v != "" {
		if historical, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, fmt.Errorf("%w: historical must be a boolean", errBadRequest))
			return
		}
	}

	subs, err := s.subs.List(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	series := analytics.MonthlySeries
	if historical {
		series = analytics.HistoricalSeries
	}
	writeJSON(w, http.StatusOK, newTrendResponse(tr, historical, series(subs, tr.Months(), s.now())))
}

func (s *Server) handleRenewals(w http.ResponseWriter, r *http.Request) {
	days, err := s.windowDays(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := s.subs.List(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRenewalResponses(analytics.UpcomingRenewals(subs, days, s.now())))
}

func (s *Server) requireReminders(w http.ResponseWriter) bool {
	if s.reminders == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "reminders are not enabled"})
		return false
	}
	return true
}

// handleScheduleReminder (re)schedules the renewal reminder of one
// subscription. lead_days overrides the configured lead time.
func (s *Server) handleScheduleReminder(w http.ResponseWriter, r *http.Request) {
	if !s.requireReminders(w) {
		return
	}
	sub, err := s.subs.Get(r.Context(), userFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	var lead time.Duration
	if raw := p.Get("lead_days", "leadDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, r, fmt.Errorf("%w: lead_days must be a non-negative integer", errBadRequest))
			return
		}
		lead = time.Duration(days) * 24 * time.Hour
	}

	id, ok, err := s.reminders.Schedule(r.Context(), sub, lead)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "subscription has no upcoming renewal"})
		return
	}

	pending, err := s.reminders.Pending(r.Context(), sub.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, rem := range pending {
		if rem.ID == id {
			writeJSON(w, http.StatusCreated, newReminderResponse(rem))
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	if !s.requireReminders(w) {
		return
	}
	pending, err := s.reminders.Pending(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reminderResponse, 0, len(pending))
	for _, rem := range pending {
		out = append(out, newReminderResponse(rem))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	if !s.requireReminders(w) {
		return
	}
	if err := s.reminders.Cancel(r.Context(), userFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelAllReminders(w http.ResponseWriter, r *http.Request) {
	if !s.requireReminders(w) {
		return
	}
	n, err := s.reminders.CancelAll(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"canceled": n})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	settings, err := s.prefs.Load(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreferencesResponse(settings))
}

type preferencesRequest struct {
	Theme                *string `json:"theme"`
	PushToken            *string `json:"push_token"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	BudgetAlertsEnabled  *bool   `json:"budget_alerts_enabled"`
}

// handleUpdatePreferences merges the supplied fields into the stored
// settings. An empty push_token unregisters the device.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	userID := userFrom(r)
	settings, err := s.prefs.Load(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Theme != nil {
		theme, err := preferences.ParseTheme(*req.Theme)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		settings.Theme = theme
	}
	if req.PushToken != nil {
		settings.PushToken = sanitizeInput(*req.PushToken)
	}
	if req.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.BudgetAlertsEnabled != nil {
		settings.BudgetAlertsEnabled = *req.BudgetAlertsEnabled
	}

	if err := s.prefs.Save(r.Context(), userID, settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreferencesResponse(settings))
}

// handleExport streams the user's subscriptions as a download. The body is
// rendered to a buffer first so a failure can still produce a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	userID := userFrom(r)
	subs, err := s.subs.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, subs, now); err != nil {
		writeError(w, r, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Subscriptions exported",
		applog.FieldOperation, applog.OpExport, "format", format, "count", len(subs))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(now, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
