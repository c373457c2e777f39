package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/utils"
)

// Primary-path failures. Anything else the resolver hits (cache,
// blacklist store, user service) is absorbed and degrades the context
// instead of erroring.
var (
	ErrNoToken      = errors.New("no bearer token presented")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims are the token claims the gateway understands.
type Claims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// Profile is the enriched identity served by the user service and
// cached in the shared store, keyed by user ID.
type Profile struct {
	UserID        string   `json:"id"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	EmailVerified bool     `json:"email_verified"`
}

// Blacklist checks the shared revocation list.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// ProfileCache is the shared get/set-with-expiry profile cache.
type ProfileCache interface {
	GetCachedProfile(ctx context.Context, userID string) ([]byte, error)
	CacheProfile(ctx context.Context, userID string, data []byte, ttl time.Duration) error
}

// Options configures a Resolver.
type Options struct {
	Secret   []byte
	Issuer   string
	Audience string

	Blacklist Blacklist
	Cache     ProfileCache
	CacheTTL  time.Duration

	// ProfileURL resolves the user service's profile endpoint through
	// the registry; it returns false when the user service is not
	// registered.
	ProfileURL func() (string, bool)

	// HTTPTimeout bounds the enrichment call to the user service.
	HTTPTimeout time.Duration
}

// Resolver validates bearer tokens and enriches requests with user
// identity. Authentication (signature, claims, revocation) is strict;
// enrichment is best-effort.
type Resolver struct {
	opts   Options
	parser *jwt.Parser
	client *http.Client
	logger logger.Logger
}

func NewResolver(opts Options, log logger.Logger) *Resolver {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Resolver{
		opts: opts,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithAudience(opts.Audience),
			jwt.WithExpirationRequired(),
		),
		client: &http.Client{Timeout: opts.HTTPTimeout},
		logger: log,
	}
}

// Resolve extracts and verifies the request's bearer token and returns
// the enriched auth context. It returns ErrNoToken, ErrInvalidToken or
// ErrTokenRevoked on authentication failure; the caller decides whether
// that rejects the request (required routes) or downgrades it to
// anonymous (optional routes). The user service is called at most once
// per request, only on a profile cache miss.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (Context, error) {
	token := bearerToken(req)
	if token == "" {
		return Anonymous(), ErrNoToken
	}

	claims := &Claims{}
	if _, err := r.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.opts.Secret, nil
	}); err != nil {
		return Anonymous(), fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Anonymous(), fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	revoked, err := r.opts.Blacklist.IsBlacklisted(ctx, tokenID(claims, token))
	if err != nil {
		// Revocation store unreachable: absorb and continue with the
		// token-derived identity rather than failing the request.
		r.logger.Warn("blacklist check failed, continuing",
			logger.String("user_id", claims.Subject),
			logger.Error(err))
	} else if revoked {
		return Anonymous(), ErrTokenRevoked
	}

	ac := Context{
		UserID:          claims.Subject,
		Email:           claims.Email,
		EmailVerified:   claims.EmailVerified,
		IsAuthenticated: true,
	}
	applyRoles(&ac, claims.Roles)

	r.enrich(ctx, &ac, token)
	return ac, nil
}

// enrich upgrades the token-derived context with the cached profile,
// falling back to one user-service call on a miss. Any failure leaves
// the context as derived from the token.
func (r *Resolver) enrich(ctx context.Context, ac *Context, token string) {
	data, err := r.opts.Cache.GetCachedProfile(ctx, ac.UserID)
	if err != nil {
		r.logger.Warn("profile cache lookup failed",
			logger.String("user_id", ac.UserID),
			logger.Error(err))
	}
	if data != nil {
		var p Profile
		if err := json.Unmarshal(data, &p); err == nil {
			applyProfile(ac, p)
			return
		}
		r.logger.Warn("dropping malformed cached profile",
			logger.String("user_id", ac.UserID))
	}

	p, ok := r.fetchProfile(ctx, token)
	if !ok {
		return
	}
	applyProfile(ac, p)

	if data, err := json.Marshal(p); err == nil {
		if err := r.opts.Cache.CacheProfile(ctx, ac.UserID, data, r.opts.CacheTTL); err != nil {
			r.logger.Warn("failed to cache profile",
				logger.String("user_id", ac.UserID),
				logger.Error(err))
		}
	}
}

func (r *Resolver) fetchProfile(ctx context.Context, token string) (Profile, bool) {
	endpoint, ok := r.opts.ProfileURL()
	if !ok {
		r.logger.Debug("user service not registered, skipping enrichment")
		return Profile{}, false
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.opts.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("profile enrichment call failed", logger.Error(err))
		return Profile{}, false
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("profile enrichment rejected",
			logger.Int("status", resp.StatusCode))
		return Profile{}, false
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		r.logger.Warn("failed to decode profile response", logger.Error(err))
		return Profile{}, false
	}
	return p, true
}

func applyProfile(ac *Context, p Profile) {
	if p.Email != "" {
		ac.Email = p.Email
	}
	ac.EmailVerified = ac.EmailVerified || p.EmailVerified
	applyRoles(ac, p.Roles)
}

func applyRoles(ac *Context, roles []string) {
	for _, role := range roles {
		switch role {
		case "admin":
			ac.IsAdmin = true
		case "moderator":
			ac.IsModerator = true
		}
	}
}

// tokenID returns the revocation-list key material: the jti claim when
// present, else a hash of the raw token.
func tokenID(claims *Claims, raw string) string {
	if claims.ID != "" {
		return claims.ID
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
