package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiwilearn/internal/models"
)

const (
	testIssuer   = "https://kiwilearn.test/"
	testAudience = "kiwilearn-client"
)

type jwksServer struct {
	*httptest.Server
	mu    sync.Mutex
	keys  map[string]*rsa.PublicKey
	hits  atomic.Int32
	delay time.Duration
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: map[string]*rsa.PublicKey{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		set := jwkSet{}
		for kid, key := range s.keys {
			set.Keys = append(set.Keys, jwk{
				Kid: kid,
				Kty: "RSA",
				Alg: "RS256",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) publish(kid string, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = key
}

func (s *jwksServer) replace(kid string, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = map[string]*rsa.PublicKey{kid: key}
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                        "auth0|student-1",
		"iss":                        testIssuer,
		"aud":                        testAudience,
		"exp":                        time.Now().Add(time.Hour).Unix(),
		"iat":                        time.Now().Unix(),
		"email":                      "kid@example.com",
		"name":                       "Mere",
		"https://kiwilearn.app/role": "Student",
	}
}

func newTestVerifier(srv *jwksServer, ttl time.Duration) *Verifier {
	return NewVerifier(Config{
		Issuer:    testIssuer,
		Audience:  testAudience,
		JWKSURL:   srv.URL,
		RoleClaim: "https://kiwilearn.app/role",
		CacheTTL:  ttl,
	})
}

func TestVerifyValidToken(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, time.Hour)

	identity, err := v.Verify(context.Background(), signToken(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|student-1", identity.Subject)
	assert.Equal(t, "kid@example.com", identity.Email)
	assert.Equal(t, "Mere", identity.Name)
	assert.Equal(t, models.RoleStudent, identity.Role)

	// Second verification is served from the cache.
	_, err = v.Verify(context.Background(), signToken(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	other := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, time.Hour)

	with := func(mutate func(jwt.MapClaims)) jwt.MapClaims {
		claims := validClaims()
		mutate(claims)
		return claims
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", signToken(t, key, "k1", with(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() })), ErrInvalidToken},
		{"no expiry", signToken(t, key, "k1", with(func(c jwt.MapClaims) { delete(c, "exp") })), ErrInvalidToken},
		{"wrong audience", signToken(t, key, "k1", with(func(c jwt.MapClaims) { c["aud"] = "someone-else" })), ErrInvalidToken},
		{"wrong issuer", signToken(t, key, "k1", with(func(c jwt.MapClaims) { c["iss"] = "https://evil.test/" })), ErrInvalidToken},
		{"missing subject", signToken(t, key, "k1", with(func(c jwt.MapClaims) { delete(c, "sub") })), ErrInvalidToken},
		{"wrong signature", signToken(t, other, "k1", validClaims()), ErrInvalidToken},
		{"missing kid", signToken(t, key, "", validClaims()), ErrInvalidToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"unknown kid", signToken(t, key, "k404", validClaims()), ErrKeyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(context.Background(), tt.token)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyRejectsHS256(t *testing.T) {
	srv := newJWKSServer(t)
	v := newTestVerifier(srv, time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestUnknownKidFetchedOnce(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, time.Hour)

	token := signToken(t, key, "k2", validClaims())
	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	}
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestForgedKidFloodIsThrottled(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, time.Hour)

	first := signToken(t, key, "forged-0", validClaims())
	_, err := v.Verify(context.Background(), first)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	for i := 1; i <= 100; i++ {
		_, err := v.Verify(context.Background(), signToken(t, key, fmt.Sprintf("forged-%d", i), validClaims()))
		assert.ErrorIs(t, err, ErrKeyNotFound)
	}

	_, err = v.Verify(context.Background(), first)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.LessOrEqual(t, srv.hits.Load(), int32(refreshBurst))

	// Keys already fetched keep verifying while refreshes are throttled.
	_, err = v.Verify(context.Background(), signToken(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.LessOrEqual(t, srv.hits.Load(), int32(refreshBurst))
}

func TestThrottledRefreshRecovers(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	rotated := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := NewVerifier(Config{
		Issuer:          testIssuer,
		Audience:        testAudience,
		JWKSURL:         srv.URL,
		RoleClaim:       "https://kiwilearn.app/role",
		RefreshInterval: 50 * time.Millisecond,
	})

	for i := 0; i < 10; i++ {
		_, _ = v.Verify(context.Background(), signToken(t, key, fmt.Sprintf("forged-%d", i), validClaims()))
	}

	srv.publish("k2", &rotated.PublicKey)
	time.Sleep(120 * time.Millisecond)

	identity, err := v.Verify(context.Background(), signToken(t, rotated, "k2", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|student-1", identity.Subject)
}

func TestKeyRotationRefetches(t *testing.T) {
	srv := newJWKSServer(t)
	oldKey := newKey(t)
	rotated := newKey(t)
	srv.publish("old", &oldKey.PublicKey)
	v := newTestVerifier(srv, time.Hour)

	_, err := v.Verify(context.Background(), signToken(t, oldKey, "old", validClaims()))
	require.NoError(t, err)

	srv.replace("new", &rotated.PublicKey)
	identity, err := v.Verify(context.Background(), signToken(t, rotated, "new", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|student-1", identity.Subject)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestCachedKeysExpire(t *testing.T) {
	srv := newJWKSServer(t)
	key := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, 50*time.Millisecond)

	token := signToken(t, key, "k1", validClaims())
	_, err := v.Verify(context.Background(), token)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestConcurrentColdCacheFetchesOnce(t *testing.T) {
	srv := newJWKSServer(t)
	srv.delay = 50 * time.Millisecond
	key := newKey(t)
	srv.publish("k1", &key.PublicKey)
	v := newTestVerifier(srv, time.Hour)
	token := signToken(t, key, "k1", validClaims())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestKeySetUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewVerifier(Config{Issuer: testIssuer, Audience: testAudience, JWKSURL: srv.URL})
	_, err := v.Verify(context.Background(), signToken(t, newKey(t), "k1", validClaims()))
	assert.ErrorIs(t, err, ErrKeySetUnavailable)
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Bearer", "", ErrMalformedHeader},
		{"Basic dXNlcjpwYXNz", "", ErrMalformedHeader},
		{"Bearer a b", "", ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseBearer(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
