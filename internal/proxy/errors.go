package proxy

import (
	"fmt"
	"net/http"
	"time"
)

// Kind classifies every error the gateway itself generates. Backend
// errors are never wrapped in a Kind; they are relayed verbatim.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required" // 401
	KindAuthorizationDenied    Kind = "authorization_denied"    // 403
	KindRateLimited            Kind = "rate_limited"            // 429
	KindRouteNotFound          Kind = "route_not_found"         // 404
	KindServiceUnavailable     Kind = "service_unavailable"     // 503
	KindInternal               Kind = "internal_error"          // 500
)

// GatewayError is a gateway-generated failure on the primary request
// path. It is surfaced immediately in the standard envelope and never
// silently retried.
type GatewayError struct {
	Kind       Kind
	Message    string
	Service    string        // target service, when applicable
	RetryAfter time.Duration // positive for rate-limit denials
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Status maps the error kind to its HTTP status code.
func (e *GatewayError) Status() int {
	switch e.Kind {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func AuthRequired(message string, err error) *GatewayError {
	return &GatewayError{Kind: KindAuthenticationRequired, Message: message, Err: err}
}

func Forbidden(message string) *GatewayError {
	return &GatewayError{Kind: KindAuthorizationDenied, Message: message}
}

func RateLimited(retryAfter time.Duration) *GatewayError {
	return &GatewayError{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

func RouteNotFound(path string) *GatewayError {
	return &GatewayError{Kind: KindRouteNotFound, Message: fmt.Sprintf("no service handles %s", path)}
}

func Unavailable(service, message string, err error) *GatewayError {
	return &GatewayError{Kind: KindServiceUnavailable, Service: service, Message: message, Err: err}
}

func Internal(err error) *GatewayError {
	return &GatewayError{Kind: KindInternal, Message: "internal gateway error", Err: err}
}
