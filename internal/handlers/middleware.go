package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/auth"
	"kiwilearn/internal/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey ContextKey = "identity"
	UserContextKey     ContextKey = "user"
)

// AccessTokenHeader carries an optional OAuth access token alongside the ID
// token in Authorization. It is only forwarded to the userinfo endpoint.
const AccessTokenHeader = "X-Access-Token"

// TokenVerifier checks a raw bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Identity, error)
}

// UserProvisioner loads or creates the account behind an identity
type UserProvisioner interface {
	Provision(ctx context.Context, identity *models.Identity, accessToken string) (*models.User, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier    TokenVerifier
	users       UserProvisioner
	allowOrigin string
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(verifier TokenVerifier, users UserProvisioner, allowOrigin string) *Middleware {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Middleware{
		verifier:    verifier,
		users:       users,
		allowOrigin: allowOrigin,
	}
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// never calls next for them. On success the identity is stored in the
// request context and next runs exactly once.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		identity, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		logger := zerolog.Ctx(ctx).With().Str("user_id", identity.Subject).Logger()
		ctx = logger.WithContext(ctx)
		next(w, r.WithContext(ctx))
	}
}

// Provision loads the caller's account, creating it on first sight. It must
// run inside RequireAuth.
func (m *Middleware) Provision(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			respondWithError(w, r, auth.ErrMissingToken)
			return
		}

		user, err := m.users.Provision(r.Context(), identity, r.Header.Get(AccessTokenHeader))
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// CORS sets the cross-origin headers and answers preflight requests
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", m.allowOrigin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, "+AccessTokenHeader)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging attaches a request-scoped logger and logs each request on completion
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info().
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

// Recover turns a handler panic into a 500 response
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zerolog.Ctx(r.Context()).Error().Interface("panic", rec).Msg("Panic recovered")
				respondJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the verified caller, or nil outside RequireAuth
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(IdentityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// RateLimitKey charges authenticated requests to the caller's subject id
func RateLimitKey(r *http.Request) string {
	if identity := IdentityFromContext(r.Context()); identity != nil {
		return identity.Subject
	}
	return ""
}
