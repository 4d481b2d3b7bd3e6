package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/email"
	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/payments"
	"coursedash.app/cloud/internal/ratelimit"
	"coursedash.app/cloud/internal/storage"
	"coursedash.app/cloud/internal/telemetry"
)

type Options struct {
	Store           storage.Storage
	Dashboard       *dashboard.Service
	Payments        payments.Provider
	Mailer          email.Sender
	Auth            *auth.Middleware
	CheckoutLimiter ratelimit.Limiter
	CheckoutWindow  time.Duration
	WebhookSecret   string
	AllowedOrigins  []string
	Version         string
}

type Server struct {
	Router chi.Router

	store         storage.Storage
	dashboard     *dashboard.Service
	payments      payments.Provider
	mailer        email.Sender
	webhookSecret string
	version       string
	now           func() time.Time
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewServer(opts Options) *Server {
	s := &Server{
		store:         opts.Store,
		dashboard:     opts.Dashboard,
		payments:      opts.Payments,
		mailer:        opts.Mailer,
		webhookSecret: opts.WebhookSecret,
		version:       opts.Version,
		now:           time.Now,
	}
	if s.mailer == nil {
		s.mailer = email.Discard{}
	}
	if s.version == "" {
		s.version = "dev"
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	window := opts.CheckoutWindow
	if window <= 0 {
		window = time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.Middleware)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.Health)
	r.Handle("/metrics", telemetry.Handler())
	r.Post("/api/v1/webhooks/stripe", s.StripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)

		r.Get("/api/v1/dashboard/enrollments", s.ListItems)
		r.Get("/api/v1/dashboard/enrollments/{enrollmentID}", s.GetItem)
		r.Get("/dashboard", s.DashboardPage)
		r.Get("/dashboard/enrollments/{enrollmentID}", s.EnrollmentPage)

		r.Group(func(r chi.Router) {
			if opts.CheckoutLimiter != nil {
				r.Use(ratelimit.Middleware(opts.CheckoutLimiter, window, userKey))
			}
			r.Post("/api/v1/enrollments/{enrollmentID}/products/{productID}/checkout", s.Checkout)
		})
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: s.now().UTC(),
	})
}

// writeError is the service's error boundary: expected conditions map to
// client errors, everything else is logged, reported and answered with 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var relErr *dashboard.MissingRelationshipError

	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Enrollment not found")
		return
	case errors.As(err, &relErr):
		logger.Error("Enrollment violates course relationship", map[string]interface{}{
			"enrollment_id": relErr.EnrollmentID,
			"course_run_id": relErr.CourseRunID,
			"request_id":    middleware.GetReqID(r.Context()),
		})
	default:
		logger.Error("Request failed", map[string]interface{}{
			"error":      err.Error(),
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		})
	}

	hubFor(r).CaptureException(err)
	writeJSONError(w, http.StatusInternalServerError, "Internal server error")
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.Error("Recovered from panic", map[string]interface{}{
				"panic":      fmt.Sprint(rec),
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
			})
			hubFor(r).RecoverWithContext(r.Context(), rec)
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

func hubFor(r *http.Request) *sentry.Hub {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func userKey(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		return "user:" + user
	}
	return "addr:" + ratelimit.ClientAddr(r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
