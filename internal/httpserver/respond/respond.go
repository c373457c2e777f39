package respond

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/loomworks/gateway/internal/proxy"
)

// Envelope is the standard body for every gateway-generated error.
// Backend responses never pass through here; they are relayed verbatim.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a gateway-generated error in the standard envelope.
func Error(w http.ResponseWriter, status int, message, requestID string) {
	JSON(w, status, Envelope{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	})
}

// GatewayError writes a typed gateway error, adding the retry hint
// headers for rate-limit denials.
func GatewayError(w http.ResponseWriter, gerr *proxy.GatewayError, requestID string) {
	if gerr.Kind == proxy.KindRateLimited && gerr.RetryAfter > 0 {
		seconds := int(math.Ceil(gerr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	Error(w, gerr.Status(), gerr.Message, requestID)
}
