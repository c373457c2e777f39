package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/registry"
)

func testMatch(t *testing.T, backendURL, targetPath string, timeout time.Duration) registry.Match {
	t.Helper()
	u, err := url.Parse(backendURL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	return registry.Match{
		Service:    "catalog",
		TargetPath: targetPath,
		BaseURL:    u,
		Timeout:    timeout,
	}
}

func TestForwardInjectsGatewayHeaders(t *testing.T) {
	var got http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	f := NewForwarder(0, logger.New("error", true))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items?page=2", nil)
	req = req.WithContext(auth.WithContext(req.Context(), auth.Context{
		UserID:          "user-42",
		Email:           "reader@example.com",
		IsAuthenticated: true,
	}))
	// Spoofed identity headers from the client must not reach the backend.
	req.Header.Set(HeaderUserID, "spoofed")
	req.Header.Set(HeaderGateway, "spoofed")
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	if gerr := f.Forward(rec, req, testMatch(t, backend.URL, "/items", time.Second), "req-1", time.Now()); gerr != nil {
		t.Fatalf("Forward() error = %v", gerr)
	}

	if v := got.Get(HeaderRequestID); v != "req-1" {
		t.Errorf("%s = %q, want req-1", HeaderRequestID, v)
	}
	if v := got.Get(HeaderGateway); v != GatewayName {
		t.Errorf("%s = %q, want %q", HeaderGateway, v, GatewayName)
	}
	if v := got.Get(HeaderUserID); v != "user-42" {
		t.Errorf("%s = %q, want user-42", HeaderUserID, v)
	}
	if v := got.Get(HeaderUserEmail); v != "reader@example.com" {
		t.Errorf("%s = %q, want reader@example.com", HeaderUserEmail, v)
	}
	if v := got.Get("Accept"); v != "application/json" {
		t.Errorf("Accept = %q, client headers should pass through", v)
	}
}

func TestForwardAnonymousOmitsIdentityHeaders(t *testing.T) {
	var got http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer backend.Close()

	f := NewForwarder(0, logger.New("error", true))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items", nil)
	req.Header.Set(HeaderUserID, "spoofed")

	rec := httptest.NewRecorder()
	if gerr := f.Forward(rec, req, testMatch(t, backend.URL, "/items", time.Second), "req-2", time.Now()); gerr != nil {
		t.Fatalf("Forward() error = %v", gerr)
	}

	if _, ok := got[HeaderUserID]; ok {
		t.Errorf("%s forwarded for anonymous request: %q", HeaderUserID, got.Get(HeaderUserID))
	}
}

func TestForwardRelaysResponseVerbatim(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/7" {
			t.Errorf("backend path = %q, want /items/7", r.URL.Path)
		}
		if r.URL.RawQuery != "fields=title" {
			t.Errorf("backend query = %q, want fields=title", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend-Version", "3")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer backend.Close()

	f := NewForwarder(0, logger.New("error", true))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items/7?fields=title", nil)
	rec := httptest.NewRecorder()

	if gerr := f.Forward(rec, req, testMatch(t, backend.URL, "/items/7", time.Second), "req-3", time.Now()); gerr != nil {
		t.Fatalf("Forward() error = %v", gerr)
	}

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if body := rec.Body.String(); body != `{"id":7}` {
		t.Errorf("body = %q", body)
	}
	if v := rec.Header().Get("X-Backend-Version"); v != "3" {
		t.Errorf("X-Backend-Version = %q, backend headers should relay", v)
	}
	if v := rec.Header().Get(HeaderGatewaySource); v != GatewayName {
		t.Errorf("%s = %q, want %q", HeaderGatewaySource, v, GatewayName)
	}
	if rec.Header().Get(HeaderResponseTime) == "" {
		t.Errorf("%s missing on relayed response", HeaderResponseTime)
	}
}

func TestForwardBodyPassthrough(t *testing.T) {
	var gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()

	f := NewForwarder(2, logger.New("error", true))
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/items", strings.NewReader(`{"title":"dune"}`))
	rec := httptest.NewRecorder()

	if gerr := f.Forward(rec, req, testMatch(t, backend.URL, "/items", time.Second), "req-4", time.Now()); gerr != nil {
		t.Fatalf("Forward() error = %v", gerr)
	}
	if gotBody != `{"title":"dune"}` {
		t.Errorf("backend body = %q", gotBody)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestForwardTimeoutReturnsUnavailable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer backend.Close()

	f := NewForwarder(0, logger.New("error", true))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items", nil)
	rec := httptest.NewRecorder()

	gerr := f.Forward(rec, req, testMatch(t, backend.URL, "/items", 30*time.Millisecond), "req-5", time.Now())
	if gerr == nil {
		t.Fatal("Forward() expected error on backend timeout")
	}
	if gerr.Kind != KindServiceUnavailable {
		t.Errorf("Kind = %v, want KindServiceUnavailable", gerr.Kind)
	}
	if gerr.Status() != http.StatusServiceUnavailable {
		t.Errorf("Status() = %d, want 503", gerr.Status())
	}
	if gerr.Service != "catalog" {
		t.Errorf("Service = %q, want catalog", gerr.Service)
	}
}

func TestForwardUnreachableBackend(t *testing.T) {
	// Reserve a port, then close it so nothing is listening.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	f := NewForwarder(0, logger.New("error", true))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items", nil)
	rec := httptest.NewRecorder()

	gerr := f.Forward(rec, req, testMatch(t, deadURL, "/items", time.Second), "req-6", time.Now())
	if gerr == nil {
		t.Fatal("Forward() expected error for unreachable backend")
	}
	if gerr.Kind != KindServiceUnavailable {
		t.Errorf("Kind = %v, want KindServiceUnavailable", gerr.Kind)
	}
}
