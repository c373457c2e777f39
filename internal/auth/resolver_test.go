package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/gateway/internal/logger"
	redisstore "github.com/loomworks/gateway/internal/store/redis"
)

var testSecret = []byte("test-secret")

const (
	testIssuer   = "loomworks"
	testAudience = "loomworks-api"
)

func signToken(t *testing.T, mutate func(*Claims)) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			Subject:   "user-42",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "reader@example.com",
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

type testEnv struct {
	resolver *Resolver
	store    *redisstore.Store
	mr       *miniredis.Miniredis
	calls    *atomic.Int64
}

func newTestEnv(t *testing.T, profile Profile, profileStatus int) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client)

	var calls atomic.Int64
	userSvc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if profileStatus != http.StatusOK {
			w.WriteHeader(profileStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(userSvc.Close)

	resolver := NewResolver(Options{
		Secret:     testSecret,
		Issuer:     testIssuer,
		Audience:   testAudience,
		Blacklist:  store,
		Cache:      store,
		CacheTTL:   time.Minute,
		ProfileURL: func() (string, bool) { return userSvc.URL + "/api/users/me", true },
	}, logger.New("error", true))

	return &testEnv{resolver: resolver, store: store, mr: mr, calls: &calls}
}

func request(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestResolveValidToken(t *testing.T) {
	env := newTestEnv(t, Profile{
		UserID:        "user-42",
		Email:         "reader@example.com",
		Roles:         []string{"moderator"},
		EmailVerified: true,
	}, http.StatusOK)

	ac, err := env.resolver.Resolve(context.Background(), request(signToken(t, nil)))
	require.NoError(t, err)
	assert.True(t, ac.IsAuthenticated)
	assert.Equal(t, "user-42", ac.UserID)
	assert.Equal(t, "reader@example.com", ac.Email)
	assert.True(t, ac.IsModerator, "role from enrichment")
	assert.True(t, ac.EmailVerified)
	assert.False(t, ac.IsAdmin)
}

func TestResolveUsesProfileCache(t *testing.T) {
	env := newTestEnv(t, Profile{UserID: "user-42", Roles: []string{"admin"}}, http.StatusOK)
	ctx := context.Background()
	token := signToken(t, nil)

	// First resolve hits the user service; second is served from cache.
	ac, err := env.resolver.Resolve(ctx, request(token))
	require.NoError(t, err)
	assert.True(t, ac.IsAdmin)
	require.Equal(t, int64(1), env.calls.Load())

	ac, err = env.resolver.Resolve(ctx, request(token))
	require.NoError(t, err)
	assert.True(t, ac.IsAdmin)
	assert.Equal(t, int64(1), env.calls.Load(), "cache hit must not call the user service")
}

func TestResolveNoToken(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusOK)

	ac, err := env.resolver.Resolve(context.Background(), request(""))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, ac.IsAuthenticated)
	assert.Empty(t, ac.UserID)
	assert.Zero(t, env.calls.Load(), "anonymous request must not reach the user service")
}

func TestResolveExpiredToken(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusOK)
	token := signToken(t, func(c *Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})

	ac, err := env.resolver.Resolve(context.Background(), request(token))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, ac.IsAuthenticated)
}

func TestResolveWrongIssuer(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusOK)
	token := signToken(t, func(c *Claims) { c.Issuer = "someone-else" })

	_, err := env.resolver.Resolve(context.Background(), request(token))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveWrongSignature(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusOK)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = env.resolver.Resolve(context.Background(), request(token))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRevokedToken(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusOK)
	require.NoError(t, env.mr.Set(redisstore.BlacklistKey("jti-1"), "revoked"))

	ac, err := env.resolver.Resolve(context.Background(), request(signToken(t, nil)))
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.False(t, ac.IsAuthenticated)
}

// Enrichment is best-effort: an unreachable user service degrades to
// the token-derived identity, never to a failure.
func TestResolveEnrichmentDegrades(t *testing.T) {
	env := newTestEnv(t, Profile{}, http.StatusInternalServerError)
	token := signToken(t, func(c *Claims) { c.EmailVerified = true })

	ac, err := env.resolver.Resolve(context.Background(), request(token))
	require.NoError(t, err)
	assert.True(t, ac.IsAuthenticated)
	assert.Equal(t, "user-42", ac.UserID)
	assert.True(t, ac.EmailVerified, "claim-derived flag survives")
	assert.False(t, ac.IsAdmin)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), Context{UserID: "u", IsAuthenticated: true})
	ac := FromContext(ctx)
	assert.Equal(t, "u", ac.UserID)
	assert.True(t, ac.IsAuthenticated)

	anon := FromContext(context.Background())
	assert.False(t, anon.IsAuthenticated)
	assert.Empty(t, anon.UserID)
}
