package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/registry"
	"github.com/loomworks/gateway/internal/utils"
)

// Forwarder dispatches a matched request to its backend and relays the
// response verbatim. Each call is bounded by the service's configured
// timeout; there are no retries unless configured, and never for
// requests carrying a body (duplicate side effects on non-idempotent
// endpoints).
type Forwarder struct {
	client  *http.Client
	retries int
	logger  logger.Logger
}

func NewForwarder(retries int, log logger.Logger) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			// Redirects are the backend's business; relay them as-is.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retries: retries,
		logger:  log,
	}
}

// Forward proxies r to the matched backend. On success the backend's
// status, headers and body are relayed untouched, with the gateway's
// relay headers added. The returned error is always a *GatewayError.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, m registry.Match, requestID string, start time.Time) *GatewayError {
	target := *m.BaseURL
	target.Path = m.TargetPath
	target.RawQuery = r.URL.RawQuery

	ctx, cancel := context.WithTimeout(r.Context(), m.Timeout)
	defer cancel()

	resp, err := f.dispatch(ctx, r, target.String(), requestID)
	if err != nil {
		return Unavailable(m.Service, "backend call failed", err)
	}
	defer utils.Close(resp.Body)

	f.relay(w, resp, start)
	return nil
}

func (f *Forwarder) dispatch(ctx context.Context, r *http.Request, target, requestID string) (*http.Response, error) {
	attempts := 1
	if f.retries > 0 && (r.Body == nil || r.Body == http.NoBody) {
		attempts += f.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to build backend request: %w", err)
		}
		copyForwardHeaders(out.Header, r.Header)

		out.Header.Set(HeaderRequestID, requestID)
		out.Header.Set(HeaderGateway, GatewayName)
		if ac := auth.FromContext(r.Context()); ac.IsAuthenticated {
			out.Header.Set(HeaderUserID, ac.UserID)
			out.Header.Set(HeaderUserEmail, ac.Email)
		}

		resp, err := f.client.Do(out)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt+1 < attempts {
			f.logger.Warn("backend call failed, retrying",
				logger.String("request_id", requestID),
				logger.Int("attempt", attempt+1),
				logger.Error(err))
		}
	}
	return nil, lastErr
}

func (f *Forwarder) relay(w http.ResponseWriter, resp *http.Response, start time.Time) {
	h := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			h.Add(key, v)
		}
	}
	for _, key := range hopByHopHeaders {
		h.Del(key)
	}
	h.Set(HeaderGatewaySource, GatewayName)
	h.Set(HeaderResponseTime, fmt.Sprintf("%dms", time.Since(start).Milliseconds()))

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Client went away or backend stream broke mid-body; status is
		// already written, nothing left to do but log.
		f.logger.Debug("response relay interrupted", logger.Error(err))
	}
}

// copyForwardHeaders copies client headers onto the backend request,
// dropping hop-by-hop headers and any identity headers the client may
// have tried to spoof.
func copyForwardHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
	dst.Del(HeaderUserID)
	dst.Del(HeaderUserEmail)
	dst.Del(HeaderGateway)
}
