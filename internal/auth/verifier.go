package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/models"
)

var (
	ErrMissingToken      = apperrors.New(apperrors.KindAuth, "Missing Authorization header")
	ErrMalformedHeader   = apperrors.New(apperrors.KindAuth, "Authorization header must be in the form: Bearer <token>")
	ErrInvalidToken      = apperrors.New(apperrors.KindAuth, "Invalid or expired token")
	ErrKeyNotFound       = apperrors.New(apperrors.KindAuth, "Unable to find appropriate signing key")
	ErrKeySetUnavailable = apperrors.New(apperrors.KindAuth, "Unable to verify token")
)

const (
	defaultCacheTTL   = time.Hour
	defaultMissingTTL = 5 * time.Minute
	defaultRefreshGap = 10 * time.Second
	clockLeeway       = 30 * time.Second
)

// Config configures token verification
type Config struct {
	Issuer    string
	Audience  string
	JWKSURL   string
	RoleClaim string
	// CacheTTL bounds how long a fetched signing key is trusted
	CacheTTL time.Duration
	// MissingKeyTTL bounds how long an unknown key id is remembered as absent
	MissingKeyTTL time.Duration
	// RefreshInterval is the minimum gap between key set fetches once the burst is spent
	RefreshInterval time.Duration
	HTTPClient      *http.Client
}

// Verifier validates RS256 bearer tokens against the issuer's published keys
type Verifier struct {
	keys      *KeySet
	parser    *jwt.Parser
	roleClaim string
}

// NewVerifier creates a verifier with an empty key cache
func NewVerifier(cfg Config) *Verifier {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.MissingKeyTTL <= 0 {
		cfg.MissingKeyTTL = defaultMissingTTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshGap
	}

	return &Verifier{
		keys: NewKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL, cfg.MissingKeyTTL, cfg.RefreshInterval),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(cfg.Audience),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockLeeway),
		),
		roleClaim: cfg.RoleClaim,
	}
}

// Verify checks the token signature, expiry, audience and issuer and returns
// the caller's identity.
func (v *Verifier) Verify(ctx context.Context, raw string) (*models.Identity, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotFound):
			return nil, ErrKeyNotFound
		case errors.Is(err, ErrKeySetUnavailable):
			return nil, ErrKeySetUnavailable
		}
		log.Debug().Err(err).Msg("Token rejected")
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}

	return &models.Identity{
		Subject: subject,
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name"),
		Role:    v.role(claims),
		Claims:  claims,
	}, nil
}

func (v *Verifier) role(claims jwt.MapClaims) models.Role {
	for _, name := range []string{v.roleClaim, "role"} {
		if name == "" {
			continue
		}
		if role := models.Role(strings.ToLower(stringClaim(claims, name))); role.Valid() {
			return role
		}
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, name string) string {
	value, _ := claims[name].(string)
	return value
}

// ParseBearer extracts the token from an Authorization header value
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}
