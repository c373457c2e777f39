package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// CategoryLimit is one rate-limit rule: at most Limit requests per Window.
type CategoryLimit struct {
	Limit  int64
	Window time.Duration
}

type Config struct {
	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	RegistryFile           string        // path to the services registry YAML file
	RegistryReloadInterval time.Duration // interval between automatic registry reloads

	// Health monitoring
	HealthInterval         time.Duration // delay between health sweeps (default: 30s)
	HealthTimeout          time.Duration // per-check HTTP timeout
	HealthFailureThreshold int           // consecutive failures before unhealthy
	HealthSuccessThreshold int           // consecutive successes before healthy again

	// Proxy behavior
	ProxyTimeout time.Duration // default backend timeout when an entry sets none
	ProxyRetries int           // retries per backend call for bodyless requests (default: 0)

	// Token verification
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Auth enrichment
	UserServiceName string        // registry name of the user service
	UserProfilePath string        // profile endpoint on the user service
	ProfileCacheTTL time.Duration // how long enriched profiles stay cached

	// Rate limiting, per category
	RateLimits         map[string]CategoryLimit
	VerifiedExempt     []string // categories verified users are exempt from
	GenerationPrefixes []string // path prefixes billed against the generation quota
	AuthPrefixes       []string // path prefixes billed against the auth-endpoint quota

	// Route protection
	RequiredAuthPrefixes []string // path prefixes rejecting anonymous requests
	AdminPrefixes        []string // path prefixes requiring the admin role

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	TrustProxy bool // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Rate-limit category names. Every inbound request is billed against
// exactly one of these.
const (
	CategoryAnonymous     = "anonymous"
	CategoryAuthenticated = "authenticated"
	CategoryGeneration    = "generation"
	CategoryAuth          = "auth"
)

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("GATEWAY_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: mustDuration("GATEWAY_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("GATEWAY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GATEWAY_PRETTY_LOG", false),

		// Registry
		RegistryFile:           requireEnv("GATEWAY_REGISTRY_FILE"),
		RegistryReloadInterval: mustDuration("GATEWAY_REGISTRY_RELOAD_INTERVAL", 5*time.Minute),

		// Health monitoring
		HealthInterval:         mustDuration("GATEWAY_HEALTH_INTERVAL", 30*time.Second),
		HealthTimeout:          mustDuration("GATEWAY_HEALTH_TIMEOUT", 5*time.Second),
		HealthFailureThreshold: getenvInt("GATEWAY_HEALTH_FAILURE_THRESHOLD", 3),
		HealthSuccessThreshold: getenvInt("GATEWAY_HEALTH_SUCCESS_THRESHOLD", 2),

		// Proxy
		ProxyTimeout: mustDuration("GATEWAY_PROXY_TIMEOUT", 30*time.Second),
		ProxyRetries: getenvInt("GATEWAY_PROXY_RETRIES", 0),

		// Tokens
		JWTSecret:   requireEnv("GATEWAY_JWT_SECRET"),
		JWTIssuer:   getenv("GATEWAY_JWT_ISSUER", "loomworks"),
		JWTAudience: getenv("GATEWAY_JWT_AUDIENCE", "loomworks-api"),

		// Enrichment
		UserServiceName: getenv("GATEWAY_USER_SERVICE", "user"),
		UserProfilePath: getenv("GATEWAY_USER_PROFILE_PATH", "/api/users/me"),
		ProfileCacheTTL: mustDuration("GATEWAY_PROFILE_CACHE_TTL", 5*time.Minute),

		// Rate limiting
		RateLimits: map[string]CategoryLimit{
			CategoryAnonymous: {
				Limit:  int64(getenvInt("GATEWAY_RATE_ANONYMOUS_LIMIT", 100)),
				Window: mustDuration("GATEWAY_RATE_ANONYMOUS_WINDOW", 15*time.Minute),
			},
			CategoryAuthenticated: {
				Limit:  int64(getenvInt("GATEWAY_RATE_AUTHENTICATED_LIMIT", 1000)),
				Window: mustDuration("GATEWAY_RATE_AUTHENTICATED_WINDOW", 15*time.Minute),
			},
			CategoryGeneration: {
				Limit:  int64(getenvInt("GATEWAY_RATE_GENERATION_LIMIT", 20)),
				Window: mustDuration("GATEWAY_RATE_GENERATION_WINDOW", 15*time.Minute),
			},
			CategoryAuth: {
				Limit:  int64(getenvInt("GATEWAY_RATE_AUTH_LIMIT", 10)),
				Window: mustDuration("GATEWAY_RATE_AUTH_WINDOW", 15*time.Minute),
			},
		},
		VerifiedExempt:     splitAndTrim(getenv("GATEWAY_RATE_VERIFIED_EXEMPT", CategoryGeneration)),
		GenerationPrefixes: splitAndTrim(getenv("GATEWAY_GENERATION_PREFIXES", "/api/generate,/api/media")),
		AuthPrefixes:       splitAndTrim(getenv("GATEWAY_AUTH_PREFIXES", "/api/auth")),

		// Route protection
		RequiredAuthPrefixes: splitAndTrim(getenv("GATEWAY_REQUIRED_AUTH_PREFIXES", "/api/history,/api/generate,/api/media")),
		AdminPrefixes:        splitAndTrim(getenv("GATEWAY_ADMIN_PREFIXES", "/api/moderation,/admin")),

		// Redis settings
		RedisAddr:             requireEnv("GATEWAY_REDIS_ADDR"),
		RedisUser:             getenv("GATEWAY_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("GATEWAY_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("GATEWAY_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("GATEWAY_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		TrustProxy: mustBool("GATEWAY_TRUST_PROXY", true),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: GATEWAY_REDIS_PASSWORD is required when GATEWAY_REDIS_PASSWORD_REQUIRED=true")
	}

	if cfg.HealthFailureThreshold < 1 || cfg.HealthSuccessThreshold < 1 {
		panic("❌ FATAL: health damping thresholds must be >= 1")
	}

	for name, rl := range cfg.RateLimits {
		if rl.Limit < 1 || rl.Window <= 0 {
			panic(fmt.Sprintf("❌ FATAL: invalid rate limit for category %s: %d/%v", name, rl.Limit, rl.Window))
		}
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.JWTSecret = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid duration value for %s: %s", key, v))
	}
	return d
}

func mustBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid boolean value for %s: %s", key, v))
	}
	return b
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
