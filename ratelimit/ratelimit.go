// Package ratelimit implements a per-identity cooldown gate backed by the shared kv store.
//
// A successful check always writes the mark, so a caller that is allowed through and then
// fails later (bad credentials, upstream error) still waits out the cooldown. When the
// store is missing or failing the limiter allows every request.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

const (
	DefaultCooldown = 120 * time.Second
	MinCooldown     = 5 * time.Second
	MaxCooldown     = 600 * time.Second
)

// Decision is the outcome of CheckAndMark.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter gates one namespace ("data_requests", "suggestions", ...).
type Limiter struct {
	Store     kvstore.Store
	Namespace string
	Hasher    *crypto.Hasher
	Now       func() time.Time
}

// New returns a limiter for namespace. store may be nil.
func New(store kvstore.Store, namespace string, hasher *crypto.Hasher) *Limiter {
	return &Limiter{Store: store, Namespace: namespace, Hasher: hasher, Now: time.Now}
}

// Key returns the storage key for identity. Raw identities are never stored.
func (l *Limiter) Key(identity string) string {
	return "rl:" + l.Namespace + ":" + l.Hasher.Hash(identity)
}

// ClampCooldown bounds d to [MinCooldown, MaxCooldown]; zero selects the default.
func ClampCooldown(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultCooldown
	case d < MinCooldown:
		return MinCooldown
	case d > MaxCooldown:
		return MaxCooldown
	}
	return d
}

// CheckAndMark reports whether identity may proceed and, if so, starts its cooldown.
func (l *Limiter) CheckAndMark(ctx context.Context, identity string, cooldown time.Duration) Decision {
	cooldown = ClampCooldown(cooldown)
	if l == nil || l.Store == nil {
		return Decision{Allowed: true}
	}
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "ratelimit"), slog.String("scope", l.Namespace))
	key := l.Key(identity)

	_, found, err := l.Store.Get(ctx, key)
	if err != nil {
		logger.Warn("rate limit lookup failed, allowing request", slog.Any("err", err))
		return Decision{Allowed: true}
	}
	if found {
		telemetry.Inc(telemetry.RateLimited, l.Namespace)
		logger.Info("rate limited", slog.String("identity", crypto.Short(l.Hasher.Hash(identity))))
		return Decision{Allowed: false, RetryAfter: cooldown}
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	if err := l.Store.Put(ctx, key, now().UTC().Format(time.RFC3339), cooldown); err != nil {
		logger.Warn("rate limit mark write failed", slog.Any("err", err))
	}
	return Decision{Allowed: true}
}
