package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"kiwilearn/internal/metrics"
)

const (
	maxCachedKeys   = 64
	maxJWKSBodySize = 1 << 20
	fetchTimeout    = 10 * time.Second
	// refreshBurst allows a cold start plus a rotation before the interval applies
	refreshBurst = 3
)

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet caches the identity provider's RSA signing keys by key id. Entries
// expire after the configured TTL. Unknown key ids trigger at most one fetch
// per missing-key TTL, and fetches across all key ids are rate limited so a
// stream of distinct unknown ids cannot drive outbound requests.
type KeySet struct {
	url     string
	client  *http.Client
	keys    *expirable.LRU[string, *rsa.PublicKey]
	missing *expirable.LRU[string, struct{}]
	refresh *rate.Limiter
	group   singleflight.Group
}

// NewKeySet creates an empty key set backed by the JWKS document at url.
// After the initial burst, the set is fetched at most once per refreshInterval.
func NewKeySet(url string, client *http.Client, ttl, missingTTL, refreshInterval time.Duration) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &KeySet{
		url:     url,
		client:  client,
		keys:    expirable.NewLRU[string, *rsa.PublicKey](maxCachedKeys, nil, ttl),
		missing: expirable.NewLRU[string, struct{}](maxCachedKeys, nil, missingTTL),
		refresh: rate.NewLimiter(rate.Every(refreshInterval), refreshBurst),
	}
}

// Key returns the public key for kid, refreshing the set on a miss
func (s *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := s.keys.Get(kid); ok {
		return key, nil
	}
	if s.missing.Contains(kid) {
		return nil, ErrKeyNotFound
	}

	// The fetch is shared by every waiter, so one caller's cancellation must not abort it.
	v, err, _ := s.group.Do(kid, func() (interface{}, error) {
		if key, ok := s.keys.Get(kid); ok {
			return key, nil
		}
		if s.missing.Contains(kid) {
			return nil, ErrKeyNotFound
		}

		if !s.refresh.Allow() {
			log.Debug().Str("kid", kid).Msg("Key set refresh throttled")
			return nil, ErrKeyNotFound
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		if err := s.reload(fetchCtx); err != nil {
			return nil, err
		}

		if key, ok := s.keys.Get(kid); ok {
			return key, nil
		}
		s.missing.Add(kid, struct{}{})
		return nil, ErrKeyNotFound
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

func (s *KeySet) reload(ctx context.Context) error {
	keys, err := s.fetch(ctx)
	metrics.RecordJWKSRefresh(err == nil)
	if err != nil {
		log.Error().Err(err).Str("url", s.url).Msg("Failed to refresh signing keys")
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}

	for kid, key := range keys {
		s.keys.Add(kid, key)
		s.missing.Remove(kid)
	}
	log.Debug().Int("keys", len(keys)).Msg("Refreshed signing keys")
	return nil
}

func (s *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from key set endpoint", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return nil, err
	}

	var set jwkSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, key := range set.Keys {
		if key.Kid == "" || key.Kty != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		pub, err := rsaPublicKey(key)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("Skipping malformed signing key")
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable RSA keys")
	}
	return keys, nil
}

func rsaPublicKey(key jwk) (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}
	if len(modulusBytes) == 0 || len(exponentBytes) == 0 || len(exponentBytes) > 4 {
		return nil, errors.New("key parameters out of range")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent*256 + int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}
