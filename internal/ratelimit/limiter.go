package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/gateway/internal/config"
)

// CounterStore is the shared atomic increment-with-expiry the limiter
// needs. Implemented by the Redis store.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, category, identity string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration // positive when denied: time until the window expires
}

// Limiter enforces fixed-window quotas per (category, identity) on a
// shared counter store. Fixed windows admit up to 2x the nominal limit
// across a window boundary; that burst is an accepted tradeoff for a
// single atomic increment per request.
type Limiter struct {
	store  CounterStore
	rules  map[string]config.CategoryLimit
	exempt map[string]bool
}

// New creates a limiter. exemptCategories lists categories that
// verified identities skip entirely.
func New(store CounterStore, rules map[string]config.CategoryLimit, exemptCategories []string) *Limiter {
	exempt := make(map[string]bool, len(exemptCategories))
	for _, c := range exemptCategories {
		exempt[c] = true
	}
	return &Limiter{store: store, rules: rules, exempt: exempt}
}

// Allow bills one request against (category, identity). The counter is
// incremented before the limit comparison, so a denial has no side
// effect beyond that single increment.
func (l *Limiter) Allow(ctx context.Context, category, identity string) (Decision, error) {
	rule, ok := l.rules[category]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown category %q", category)
	}

	count, ttl, err := l.store.IncrWithTTL(ctx, category, identity, rule.Window)
	if err != nil {
		return Decision{}, err
	}

	if count > rule.Limit {
		return Decision{
			Allowed:    false,
			Limit:      rule.Limit,
			Remaining:  0,
			RetryAfter: ttl,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: rule.Limit - count,
	}, nil
}

// VerifiedExempt reports whether verified identities skip this category.
func (l *Limiter) VerifiedExempt(category string) bool {
	return l.exempt[category]
}
