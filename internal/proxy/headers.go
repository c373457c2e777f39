package proxy

// Headers the gateway injects on dispatch and relay.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderUserID        = "X-User-Id"
	HeaderUserEmail     = "X-User-Email"
	HeaderGateway       = "X-Gateway"
	HeaderGatewaySource = "X-Gateway-Source"
	HeaderResponseTime  = "X-Response-Time"

	// GatewayName marks requests and responses that passed through
	// this gateway.
	GatewayName = "loomworks-gateway"
)

// hop-by-hop headers are connection-scoped and never forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}
