package registry

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// RouteRule maps one inbound path shape to a target path on the backend.
//
// Path forms:
//   - exact:    "/api/scenarios"           (literal match)
//   - params:   "/api/scenarios/{id}"      (named single segments)
//   - wildcard: "/api/auth/*"              (trailing prefix match)
//
// Target is the rewritten backend path. Empty means "forward unchanged".
// For param rules the target may reference the same names
// ("/internal/scenarios/{id}"); for wildcard rules it must end with "/*"
// and the matched remainder is appended.
type RouteRule struct {
	Path   string `yaml:"path"`
	Target string `yaml:"target,omitempty"`
}

// Entry describes one backend service. Loaded from configuration,
// never mutated by request handling.
type Entry struct {
	Name       string        `yaml:"name"`
	BaseURL    string        `yaml:"base_url"`
	Routes     []RouteRule   `yaml:"routes"`
	Timeout    time.Duration `yaml:"-"`
	HealthPath string        `yaml:"health_path"`
}

// Match is the result of resolving an inbound path.
type Match struct {
	Service    string
	TargetPath string
	BaseURL    *url.URL
	Timeout    time.Duration
}

type pattern struct {
	segments []string // raw pattern segments; "{name}" entries bind params
	wildcard bool     // trailing /* prefix match
	service  string
	target   string // raw target template ("" = forward unchanged)
}

type exactRoute struct {
	service string
	target  string
}

// snapshot is an immutable resolved view of the registry. Reload builds
// a fresh snapshot and swaps the pointer, so readers never see a
// half-updated table.
type snapshot struct {
	entries  map[string]Entry
	baseURLs map[string]*url.URL
	exact    map[string]exactRoute
	patterns []pattern
	loadedAt time.Time
}

// Registry maps inbound paths to backend services. Safe for concurrent
// use; Resolve is lock-free via an atomic snapshot pointer.
type Registry struct {
	snap           atomic.Pointer[snapshot]
	defaultTimeout time.Duration
}

// New builds a registry from validated entries. defaultTimeout applies
// to entries that configure none.
func New(entries []Entry, defaultTimeout time.Duration) (*Registry, error) {
	r := &Registry{defaultTimeout: defaultTimeout}
	if err := r.Swap(entries); err != nil {
		return nil, err
	}
	return r, nil
}

// Swap atomically replaces the routing table. In-flight requests keep
// the snapshot they already resolved against.
func (r *Registry) Swap(entries []Entry) error {
	snap, err := build(entries, r.defaultTimeout)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// Resolve matches path against the current snapshot: exact table first,
// then the ordered pattern list, first match wins. Pure per snapshot.
func (r *Registry) Resolve(path string) (Match, bool) {
	snap := r.snap.Load()

	if er, ok := snap.exact[path]; ok {
		target := er.target
		if target == "" {
			target = path
		}
		return snap.match(er.service, target), true
	}

	segs := splitPath(path)
	for _, p := range snap.patterns {
		target, ok := p.resolve(path, segs)
		if !ok {
			continue
		}
		return snap.match(p.service, target), true
	}
	return Match{}, false
}

// Entry returns the entry for a service name from the current snapshot.
func (r *Registry) Entry(name string) (Entry, bool) {
	e, ok := r.snap.Load().entries[name]
	return e, ok
}

// BaseURL returns the parsed base URL for a service name.
func (r *Registry) BaseURL(name string) (*url.URL, bool) {
	u, ok := r.snap.Load().baseURLs[name]
	return u, ok
}

// Entries returns all entries in the current snapshot.
func (r *Registry) Entries() []Entry {
	snap := r.snap.Load()
	out := make([]Entry, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, e)
	}
	return out
}

// LastReload reports when the current snapshot was built.
func (r *Registry) LastReload() time.Time {
	return r.snap.Load().loadedAt
}

func (s *snapshot) match(service, targetPath string) Match {
	e := s.entries[service]
	return Match{
		Service:    service,
		TargetPath: targetPath,
		BaseURL:    s.baseURLs[service],
		Timeout:    e.Timeout,
	}
}

func build(entries []Entry, defaultTimeout time.Duration) (*snapshot, error) {
	snap := &snapshot{
		entries:  make(map[string]Entry, len(entries)),
		baseURLs: make(map[string]*url.URL, len(entries)),
		exact:    make(map[string]exactRoute),
		loadedAt: time.Now(),
	}

	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("registry: entry with empty name")
		}
		if _, dup := snap.entries[e.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate service name %q", e.Name)
		}
		u, err := url.Parse(e.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("registry: service %q has invalid base_url %q", e.Name, e.BaseURL)
		}
		if len(e.Routes) == 0 {
			return nil, fmt.Errorf("registry: service %q has no routes", e.Name)
		}
		if e.HealthPath == "" || !strings.HasPrefix(e.HealthPath, "/") {
			return nil, fmt.Errorf("registry: service %q has invalid health_path %q", e.Name, e.HealthPath)
		}
		if e.Timeout <= 0 {
			e.Timeout = defaultTimeout
		}

		for _, rule := range e.Routes {
			if err := snap.addRule(e.Name, rule); err != nil {
				return nil, err
			}
		}

		snap.entries[e.Name] = e
		snap.baseURLs[e.Name] = u
	}

	return snap, nil
}

func (s *snapshot) addRule(service string, rule RouteRule) error {
	if !strings.HasPrefix(rule.Path, "/") {
		return fmt.Errorf("registry: service %q route %q must start with /", service, rule.Path)
	}
	if rule.Target != "" && !strings.HasPrefix(rule.Target, "/") {
		return fmt.Errorf("registry: service %q target %q must start with /", service, rule.Target)
	}

	switch {
	case strings.HasSuffix(rule.Path, "/*"):
		if rule.Target != "" && !strings.HasSuffix(rule.Target, "/*") {
			return fmt.Errorf("registry: service %q wildcard route %q needs a wildcard target, got %q",
				service, rule.Path, rule.Target)
		}
		s.patterns = append(s.patterns, pattern{
			segments: splitPath(strings.TrimSuffix(rule.Path, "/*")),
			wildcard: true,
			service:  service,
			target:   rule.Target,
		})

	case strings.Contains(rule.Path, "{"):
		segs := splitPath(rule.Path)
		params := make(map[string]bool)
		for _, seg := range segs {
			if name, ok := paramName(seg); ok {
				params[name] = true
			}
		}
		for _, seg := range splitPath(rule.Target) {
			if name, ok := paramName(seg); ok && !params[name] {
				return fmt.Errorf("registry: service %q target %q references unknown param {%s}",
					service, rule.Target, name)
			}
		}
		s.patterns = append(s.patterns, pattern{
			segments: segs,
			service:  service,
			target:   rule.Target,
		})

	default:
		if _, dup := s.exact[rule.Path]; dup {
			return fmt.Errorf("registry: duplicate exact route %q", rule.Path)
		}
		s.exact[rule.Path] = exactRoute{service: service, target: rule.Target}
	}
	return nil
}

// resolve reports whether path matches this pattern and the rewritten
// target path when it does.
func (p *pattern) resolve(path string, segs []string) (string, bool) {
	if p.wildcard {
		if len(segs) < len(p.segments) {
			return "", false
		}
		for i, want := range p.segments {
			if segs[i] != want {
				return "", false
			}
		}
		if p.target == "" {
			return path, true
		}
		prefix := strings.TrimSuffix(p.target, "/*")
		remainder := strings.Join(segs[len(p.segments):], "/")
		if remainder == "" {
			return prefix, true
		}
		return prefix + "/" + remainder, true
	}

	if len(segs) != len(p.segments) {
		return "", false
	}
	var params map[string]string
	for i, want := range p.segments {
		if name, ok := paramName(want); ok {
			if segs[i] == "" {
				return "", false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = segs[i]
			continue
		}
		if segs[i] != want {
			return "", false
		}
	}
	if p.target == "" {
		return path, true
	}
	out := make([]string, 0, 8)
	for _, seg := range splitPath(p.target) {
		if name, ok := paramName(seg); ok {
			seg = params[name]
		}
		out = append(out, seg)
	}
	return "/" + strings.Join(out, "/"), true
}

func paramName(seg string) (string, bool) {
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
