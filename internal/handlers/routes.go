package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"kiwilearn/internal/metrics"
	"kiwilearn/internal/security"
)

// Handlers bundles everything the router serves
type Handlers struct {
	Middleware   *Middleware
	RateLimiter  *security.RateLimiter
	Auth         *AuthHandler
	Practice     *PracticeHandler
	Pets         *PetHandler
	Achievements *AchievementHandler
	Links        *LinkHandler
	Health       *HealthHandler
}

// Routes builds the HTTP router
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover)
	r.Use(Logging)
	r.Use(metrics.InstrumentHandler)
	r.Use(h.Middleware.CORS)

	r.Get("/healthz", h.Health.Healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/user", h.protect(h.Auth.GetUser))

		r.Post("/practice-sessions", h.protect(h.Practice.StartSession))
		r.Get("/practice-sessions/recent", h.protect(h.Practice.RecentSessions))
		r.Get("/practice-sessions/all", h.protect(h.Practice.AllSessions))
		r.Post("/practice-sessions/{sessionId}/complete", h.protect(h.Practice.CompleteSession))

		r.Post("/questions/generate", h.protect(h.Practice.GenerateQuestion))
		r.Post("/questions/validate", h.protect(h.Practice.ValidateAnswer))

		r.Get("/pets", h.protect(h.Pets.GetPet))
		r.Post("/pets", h.protect(h.Pets.AdoptPet))
		r.Post("/pets/feed", h.protect(h.Pets.FeedPet))

		r.Get("/achievements", h.protect(h.Achievements.ListAchievements))
		r.Get("/achievements/user", h.protect(h.Achievements.ListUserAchievements))

		r.Post("/student-links", h.protect(h.Links.CreateLink))
		r.Get("/student-links", h.protect(h.Links.ListLinks))
		r.Post("/student-links/{linkId}/approve", h.protect(h.Links.ApproveLink))
		r.Post("/student-links/{linkId}/reject", h.protect(h.Links.RejectLink))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorBody{Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
	})

	return r
}

// StartupRoutes serves /healthz with initialization progress while the
// service is still starting. Every other path gets 503.
func StartupRoutes(health *HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover)
	r.Use(Logging)

	r.Get("/healthz", health.Healthz)
	r.Handle("/metrics", metrics.Handler())

	starting := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Message: "Server is starting"})
	}
	r.NotFound(starting)
	r.MethodNotAllowed(starting)
	return r
}

// HandlerSwitch serves one handler until Switch installs another
type HandlerSwitch struct {
	current atomic.Pointer[http.Handler]
}

// NewHandlerSwitch creates a switch serving initial
func NewHandlerSwitch(initial http.Handler) *HandlerSwitch {
	s := &HandlerSwitch{}
	s.Switch(initial)
	return s
}

// Switch replaces the served handler for all subsequent requests
func (s *HandlerSwitch) Switch(next http.Handler) {
	s.current.Store(&next)
}

func (s *HandlerSwitch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.current.Load()).ServeHTTP(w, r)
}

// protect runs next behind the auth gate, the per-caller rate limit and
// account provisioning, in that order.
func (h *Handlers) protect(next http.HandlerFunc) http.HandlerFunc {
	var inner http.Handler = h.Middleware.Provision(next)
	if h.RateLimiter != nil {
		inner = h.RateLimiter.Handler(inner)
	}
	return h.Middleware.RequireAuth(inner.ServeHTTP)
}
