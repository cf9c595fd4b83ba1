// Package http serves the subscription JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"subtrack/internal/analytics"
	"subtrack/internal/cache"
	applog "subtrack/internal/log"
	"subtrack/internal/metrics"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/middleware/security"
	"subtrack/internal/middleware/trace"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/services"
)

// HeaderUserID selects the user whose data a request reads and writes.
const HeaderUserID = "X-User-ID"

type Config struct {
	Addr               string
	DefaultUserID      string
	RateLimitPerMinute int
	MetricsEnabled     bool
	RenewalWindowDays  int
	CacheCleanup       time.Duration
}

// Deps are the services behind the API. Reminders may be nil, in which case
// the reminder routes answer 503.
type Deps struct {
	Subscriptions *services.SubscriptionService
	Reminders     *notify.Scheduler
	Preferences   *preferences.Service
	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// Caches are swept for expired entries while the server runs.
	Caches []cache.Cleaner
	Logger *applog.Logger
}

type Server struct {
	http.Server

	subs      *services.SubscriptionService
	reminders *notify.Scheduler
	prefs     *preferences.Service
	ready     func(ctx context.Context) error

	cfg     Config
	logger  *applog.Logger
	limiter *ratelimit.Limiter
	caches  *cache.Manager
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "default"
	}
	if cfg.RenewalWindowDays <= 0 {
		cfg.RenewalWindowDays = analytics.DefaultRenewalWindowDays
	}
	if cfg.CacheCleanup <= 0 {
		cfg.CacheCleanup = 10 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		subs:      deps.Subscriptions,
		reminders: deps.Reminders,
		prefs:     deps.Preferences,
		ready:     deps.Ready,
		cfg:       cfg,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		caches:    cache.NewManager(),
		now:       time.Now,
	}
	for _, c := range deps.Caches {
		s.caches.Register(c)
	}
	s.caches.StartCleanup(cfg.CacheCleanup)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(clientIP, s.logger)
	r.Use(chimw.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(applog.Middleware(s.logger, trace.RequestIDFromRequest))
	if s.cfg.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
	}
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		}))
		r.Use(s.withUser)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", s.handleListSubscriptions)
			r.Post("/", s.handleCreateSubscription)
			r.Get("/{id}", s.handleGetSubscription)
			r.Put("/{id}", s.handleUpdateSubscription)
			r.Patch("/{id}", s.handleUpdateSubscription)
			r.Delete("/{id}", s.handleDeleteSubscription)
			r.Post("/{id}/reminders", s.handleScheduleReminder)
		})

		r.Get("/summary", s.handleSummary)
		r.Get("/analytics/categories", s.handleCategories)
		r.Get("/analytics/trend", s.handleTrend)
		r.Get("/renewals", s.handleRenewals)

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", s.handleListReminders)
			r.Delete("/", s.handleCancelAllReminders)
			r.Delete("/{id}", s.handleCancelReminder)
		})

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleUpdatePreferences)

		r.Get("/export", s.handleExport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type userKey struct{}

// withUser resolves the acting user from X-User-ID, falling back to the
// configured default user.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := sanitizeInput(r.Header.Get(HeaderUserID))
		if userID == "" {
			userID = s.cfg.DefaultUserID
		}
		if len(userID) > 128 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user id too long"})
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, userID)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address without port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
