package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
	applog "subtrack/internal/log"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Validation failures are 422,
// malformed requests 400, missing records 404; anything else is logged and
// reported as 500 without the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case core.IsValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, notify.ErrReminderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type subscriptionResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Amount           string `json:"amount"`
	BillingFrequency string `json:"billing_frequency"`
	StartDate        string `json:"start_date"`
	Category         string `json:"category"`
	MonthlyAmount    string `json:"monthly_amount"`
	NextRenewal      string `json:"next_renewal,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newSubscriptionResponse(s core.Subscription, now time.Time) subscriptionResponse {
	resp := subscriptionResponse{
		ID:               s.ID,
		Name:             s.Name,
		Amount:           money(s.Amount.Decimal()),
		BillingFrequency: string(s.Frequency),
		StartDate:        s.StartDate.String(),
		Category:         string(s.Category.Normalize()),
		MonthlyAmount:    money(analytics.MonthlyEquivalent(s)),
		CreatedAt:        timestamp(s.CreatedAt),
		UpdatedAt:        timestamp(s.UpdatedAt),
	}
	if next, ok := analytics.NextRenewal(s, now); ok {
		resp.NextRenewal = next.String()
	}
	return resp
}

type categoryResponse struct {
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Percentage string `json:"percentage"`
}

func newCategoryResponses(rows []analytics.CategorySpend) []categoryResponse {
	out := make([]categoryResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, categoryResponse{
			Category:   string(c.Category),
			Amount:     money(c.Amount),
			Percentage: c.Percentage.StringFixed(2),
		})
	}
	return out
}

type renewalResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	RenewsOn       string `json:"renews_on"`
	DaysUntil      int    `json:"days_until"`
}

func newRenewalResponses(rows []analytics.Renewal) []renewalResponse {
	out := make([]renewalResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, renewalResponse{
			SubscriptionID: r.Subscription.ID,
			Name:           r.Subscription.Name,
			Amount:         money(r.Subscription.Amount.Decimal()),
			RenewsOn:       r.RenewsOn.String(),
			DaysUntil:      r.DaysUntil,
		})
	}
	return out
}

type summaryResponse struct {
	MonthlyTotal string             `json:"monthly_total"`
	AnnualTotal  string             `json:"annual_total"`
	Formatted    formattedTotals    `json:"formatted"`
	Count        int                `json:"count"`
	Categories   []categoryResponse `json:"categories"`
	Upcoming     []renewalResponse  `json:"upcoming"`
}

type formattedTotals struct {
	Monthly string `json:"monthly"`
	Annual  string `json:"annual"`
}

func newSummaryResponse(s analytics.Summary) summaryResponse {
	return summaryResponse{
		MonthlyTotal: money(s.MonthlyTotal),
		AnnualTotal:  money(s.AnnualTotal),
		Formatted: formattedTotals{
			Monthly: core.FormatUSD(s.MonthlyTotal),
			Annual:  core.FormatUSD(s.AnnualTotal),
		},
		Count:      s.Count,
		Categories: newCategoryResponses(s.Categories),
		Upcoming:   newRenewalResponses(s.Upcoming),
	}
}

type monthPointResponse struct {
	Label string `json:"label"`
	Month string `json:"month"`
	Total string `json:"total"`
}

type trendResponse struct {
	Range      string               `json:"range"`
	Historical bool                 `json:"historical"`
	Points     []monthPointResponse `json:"points"`
}

func newTrendResponse(r analytics.TimeRange, historical bool, points []analytics.MonthPoint) trendResponse {
	out := trendResponse{Range: string(r), Historical: historical, Points: make([]monthPointResponse, 0, len(points))}
	for _, p := range points {
		out.Points = append(out.Points, monthPointResponse{
			Label: p.Label,
			Month: p.Month.Format("2006-01"),
			Total: money(p.Total),
		})
	}
	return out
}

type reminderResponse struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	NotifyAt       string `json:"notify_at"`
	RenewsOn       string `json:"renews_on"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Status         string `json:"status"`
}

func newReminderResponse(r notify.Reminder) reminderResponse {
	return reminderResponse{
		ID:             r.ID,
		SubscriptionID: r.SubscriptionID,
		NotifyAt:       timestamp(r.NotifyAt),
		RenewsOn:       r.RenewsOn.String(),
		Title:          r.Title,
		Body:           r.Body,
		Status:         string(r.Status),
	}
}

type preferencesResponse struct {
	Theme                string `json:"theme"`
	HasPushToken         bool   `json:"has_push_token"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	BudgetAlertsEnabled  bool   `json:"budget_alerts_enabled"`
}

func newPreferencesResponse(s preferences.Settings) preferencesResponse {
	return preferencesResponse{
		Theme:                string(s.Theme),
		HasPushToken:         s.PushToken != "",
		NotificationsEnabled: s.NotificationsEnabled,
		BudgetAlertsEnabled:  s.BudgetAlertsEnabled,
	}
}
