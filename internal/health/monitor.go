package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/registry"
	"github.com/loomworks/gateway/internal/utils"
)

// Status is a service's health as seen by the monitor.
type Status string

const (
	StatusUnknown   Status = "unknown" // pre-first-check; routable with caution
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// State is the per-service record maintained exclusively by the
// monitor loop.
type State struct {
	Status               Status        `json:"status"`
	URL                  string        `json:"url"`
	LastChecked          time.Time     `json:"last_checked"`
	LastLatency          time.Duration `json:"last_latency"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
}

// Config tunes the monitor loop and its flap damping.
type Config struct {
	Interval         time.Duration // delay between sweeps
	Timeout          time.Duration // per-check HTTP timeout
	FailureThreshold int           // consecutive failures before unhealthy
	SuccessThreshold int           // consecutive successes before healthy again
}

// Monitor polls every registered service's health endpoint on a fixed
// interval, independent of request traffic. It is the single writer of
// health state; request handlers only read snapshots.
type Monitor struct {
	cfg     Config
	entries func() []registry.Entry

	// checkFunc performs one health probe; injectable for tests.
	checkFunc func(ctx context.Context, url string) error

	mu     sync.RWMutex
	states map[string]*State

	stopCh chan struct{}
	wg     sync.WaitGroup
	logger logger.Logger
}

// NewMonitor creates a monitor over the services returned by entries,
// which is consulted every sweep so registry reloads are picked up.
func NewMonitor(cfg Config, entries func() []registry.Entry, log logger.Logger) *Monitor {
	client := &http.Client{Timeout: cfg.Timeout}
	m := &Monitor{
		cfg:     cfg,
		entries: entries,
		states:  make(map[string]*State),
		stopCh:  make(chan struct{}),
		logger:  log,
	}
	m.checkFunc = func(ctx context.Context, url string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer utils.Close(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
	return m
}

// Start runs the first sweep immediately, then re-sweeps every
// interval until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.sweep(ctx)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the monitor loop and waits for in-flight checks.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// IsHealthy reports whether the router may dispatch to the service.
// Unknown (not yet checked) counts as routable; only a damped
// unhealthy verdict closes the circuit.
func (m *Monitor) IsHealthy(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[name]
	if !ok {
		return true
	}
	return st.Status != StatusUnhealthy
}

// ServiceState returns the state for one service.
func (m *Monitor) ServiceState(name string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[name]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Snapshot returns a copy of every service's state.
func (m *Monitor) Snapshot() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.states))
	for name, st := range m.states {
		out[name] = *st
	}
	return out
}

// sweep checks every registered service concurrently and prunes state
// for services removed by a registry reload.
func (m *Monitor) sweep(ctx context.Context) {
	entries := m.entries()

	current := make(map[string]bool, len(entries))
	var wg sync.WaitGroup
	for _, e := range entries {
		current[e.Name] = true
		wg.Add(1)
		go func(e registry.Entry) {
			defer wg.Done()
			m.check(ctx, e)
		}(e)
	}
	wg.Wait()

	m.mu.Lock()
	for name := range m.states {
		if !current[name] {
			delete(m.states, name)
			m.logger.Info("service removed from health monitoring",
				logger.String("service", name))
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) check(ctx context.Context, e registry.Entry) {
	url := e.BaseURL + e.HealthPath

	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	start := time.Now()
	err := m.checkFunc(checkCtx, url)
	latency := time.Since(start)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[e.Name]
	if !ok {
		st = &State{Status: StatusUnknown, URL: url}
		m.states[e.Name] = st
	}
	st.URL = url
	st.LastChecked = time.Now()
	st.LastLatency = latency

	if err != nil {
		st.ConsecutiveSuccesses = 0
		st.ConsecutiveFailures++
		if st.Status != StatusUnhealthy && st.ConsecutiveFailures >= m.cfg.FailureThreshold {
			st.Status = StatusUnhealthy
			m.logger.Warn("service marked unhealthy",
				logger.String("service", e.Name),
				logger.Int("consecutive_failures", st.ConsecutiveFailures),
				logger.Error(err))
		}
		return
	}

	st.ConsecutiveFailures = 0
	st.ConsecutiveSuccesses++
	switch st.Status {
	case StatusUnknown:
		// First successful check; no damping needed on the way up.
		st.Status = StatusHealthy
		m.logger.Info("service healthy",
			logger.String("service", e.Name),
			logger.Duration("latency", latency))
	case StatusUnhealthy:
		if st.ConsecutiveSuccesses >= m.cfg.SuccessThreshold {
			st.Status = StatusHealthy
			m.logger.Info("service recovered",
				logger.String("service", e.Name),
				logger.Int("consecutive_successes", st.ConsecutiveSuccesses))
		}
	}
}
