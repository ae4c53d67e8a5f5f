// Package handler exposes the portal pages and their actions over HTTP.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruit-portal/internal/common/auth"
	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/models"
	"recruit-portal/internal/session"
	"recruit-portal/internal/views"
)

// Authenticator signs users in and up against the identity provider.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) (*models.Session, error)
}

type Config struct {
	CORSAllowedOrigin string
	CookieSecure      bool

	// AuthWait bounds how long a request waits for its session to resolve.
	AuthWait time.Duration

	// MaxUploadBytes bounds multipart resume uploads.
	MaxUploadBytes int64
	RateLimit      RateLimitConfig
}

func DefaultConfig() Config {
	return Config{
		AuthWait:       3 * time.Second,
		MaxUploadBytes: 10 << 20,
		RateLimit:      DefaultRateLimitConfig(),
	}
}

func (c Config) Validate() error {
	if c.AuthWait <= 0 {
		return fmt.Errorf("auth wait must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Views    *views.Service
	Auth     Authenticator
	Sessions *session.Registry

	// GetJobs serves /functions/get-jobs.
	GetJobs http.Handler

	// Ready reports whether the portal can serve traffic.
	Ready func(ctx context.Context) error
}

type Handler struct {
	views    *views.Service
	auth     Authenticator
	sessions *session.Registry
	getJobs  http.Handler
	ready    func(ctx context.Context) error
	limiter  *RateLimiter
	errors   *errors.ErrorHandler
	config   Config
	logger   logger.Logger
}

func New(deps Deps, cfg Config, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handler config: %w", err)
	}
	log = log.WithFields(map[string]interface{}{"component": "http"})
	return &Handler{
		views:    deps.Views,
		auth:     deps.Auth,
		sessions: deps.Sessions,
		getJobs:  deps.GetJobs,
		ready:    deps.Ready,
		limiter:  NewRateLimiter(cfg.RateLimit, log),
		errors:   errors.NewErrorHandler(log),
		config:   cfg,
		logger:   log,
	}, nil
}

// Close stops background work.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// Routes builds the router. Operational endpoints sit outside the session
// and role gate; every page route goes through both.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(recoverer(h.logger, h.errors))
	r.NotFound(h.notFound)

	r.Get("/health", h.health)
	r.Get("/ready", h.readiness)
	r.Handle("/metrics", promhttp.Handler())
	if h.getJobs != nil {
		r.Handle("/functions/get-jobs", h.getJobs)
	}

	r.With(h.limiter.Middleware).Get("/status", h.status)

	r.Group(func(r chi.Router) {
		r.Use(cors(h.config.CORSAllowedOrigin))
		r.Use(h.resolveSession)

		r.Post("/logout", h.signOut)

		r.Group(func(r chi.Router) {
			r.Use(h.gate)

			r.Get("/", h.index)
			r.Get("/login", h.loginPage)
			r.Post("/login", h.signIn)
			r.Get("/signup", h.signupPage)
			r.Post("/signup", h.signUp)

			r.Route("/hr", func(r chi.Router) {
				r.Get("/", h.hrOverview)
				r.Get("/approvals", h.hrApprovals)
				r.Post("/approvals/{interviewId}/approve", h.hrApprove)
				r.Get("/shortlists", h.hrShortlists)
				r.Get("/jobs", h.hrJobs)
				r.Post("/jobs", h.hrCreateJob)
				r.Get("/jobs/{jobId}/candidates", h.hrCandidates)
				r.Post("/jobs/{jobId}/candidates", h.hrUploadCandidate)
				r.Post("/jobs/{jobId}/candidates/{candidateId}/reject", h.hrReject)
				r.Get("/candidates/{candidateId}/analysis", h.hrAnalysis)
				r.Get("/candidates/{candidateId}/exams", h.hrExamResults)
				r.Get("/analytics", h.hrAnalytics)
				r.Post("/analytics/chat", h.hrAsk)
			})

			r.Route("/candidate", func(r chi.Router) {
				r.Get("/", h.candidateHome)
				r.Get("/jobs", h.candidateJobs)
				r.Post("/jobs/{jobId}/apply", h.candidateApply)
				r.Get("/status", h.candidateStatus)
			})

			r.Route("/exam/{token}", func(r chi.Router) {
				r.Use(h.limiter.Middleware)
				r.Get("/", h.examPage)
				r.Post("/submit", h.examSubmit)
			})
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WithError(err).Warn("Readiness check failed", nil)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
