package deps

import (
	"time"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/health"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/proxy"
	"github.com/loomworks/gateway/internal/ratelimit"
	"github.com/loomworks/gateway/internal/registry"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Registry   *registry.Registry
	Health     *health.Monitor
	Limiter    *ratelimit.Limiter
	Classifier *ratelimit.Classifier
	Resolver   *auth.Resolver
	Forwarder  *proxy.Forwarder

	RequiredAuthPrefixes []string      // paths rejecting anonymous requests
	AdminPrefixes        []string      // paths requiring the admin role
	TrustProxy           bool          // trust forwarded-for headers for client IPs
	ReloadTrigger        chan struct{} // channel to trigger manual registry reload
}
