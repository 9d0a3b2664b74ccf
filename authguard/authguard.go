// Package authguard checks HTTP Basic admin credentials and locks out identities that
// keep failing them.
//
// Failures are counted per hashed identity under "authfail:<digest>" with a rolling TTL
// equal to the window. Once the count reaches MaxAttempts the identity is rejected before
// its credentials are even looked at, until the window lapses.
package authguard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/flyingwithjoel/fwj-api/config"
	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// Status is the outcome of Check.
type Status int

const (
	Authorized Status = iota
	Unauthorized
	Locked
	NotConfigured
)

func (s Status) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	case Locked:
		return "locked"
	case NotConfigured:
		return "not_configured"
	}
	return "unknown"
}

// Result is returned by Check. RetryAfter is set only for Locked.
type Result struct {
	Status     Status
	RetryAfter time.Duration
}

// FailureResult is returned by RecordFailure.
type FailureResult struct {
	Blocked    bool
	Attempts   int
	Window     time.Duration
	RetryAfter time.Duration
}

type counter struct {
	Attempts     int       `json:"attempts"`
	UpdatedAtUtc time.Time `json:"updatedAtUtc"`
}

// Guard holds the lockout policy. A nil Store disables lockout; credentials are still
// required.
type Guard struct {
	Store       kvstore.Store
	Window      time.Duration
	MaxAttempts int
	Hasher      *crypto.Hasher
	Now         func() time.Time
}

// New builds a guard from the configured window and attempt limit.
func New(store kvstore.Store, cfg *config.Config, hasher *crypto.Hasher) *Guard {
	return &Guard{
		Store:       store,
		Window:      cfg.AuthFailWindow,
		MaxAttempts: cfg.AuthFailMaxAttempts,
		Hasher:      hasher,
		Now:         time.Now,
	}
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Guard) key(identity string) string { return "authfail:" + g.Hasher.Hash(identity) }

// Authorize compares supplied credentials with want. Comparisons are constant time;
// a want password starting with "$2" is treated as a bcrypt hash.
func Authorize(username, password string, want config.Credentials) bool {
	if !want.Configured() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(want.Username)) == 1
	var passOK bool
	if strings.HasPrefix(want.Password, "$2") {
		passOK = bcrypt.CompareHashAndPassword([]byte(want.Password), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(want.Password)) == 1
	}
	return userOK && passOK
}

// load returns the stored counter. err is set only when the store could not be read;
// a missing or corrupt counter reads as zero.
func (g *Guard) load(ctx context.Context, identity string) (counter, bool, error) {
	if g.Store == nil {
		return counter{}, false, nil
	}
	raw, found, err := g.Store.Get(ctx, g.key(identity))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("auth failure counter read failed", slog.Any("err", err), slog.String("component", "authguard"))
		return counter{}, false, err
	}
	if !found {
		return counter{}, false, nil
	}
	var c counter
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return counter{}, false, nil
	}
	return c, true, nil
}

func (g *Guard) remaining(c counter) time.Duration {
	left := c.UpdatedAtUtc.Add(g.Window).Sub(g.now())
	if left < time.Second {
		left = time.Second
	}
	return left.Round(time.Second)
}

// Blocked reports whether identity has exhausted its attempts and how long remains.
func (g *Guard) Blocked(ctx context.Context, identity string) (bool, time.Duration) {
	c, ok, _ := g.load(ctx, identity)
	if !ok || c.Attempts < g.MaxAttempts {
		return false, 0
	}
	return true, g.remaining(c)
}

// RecordFailure counts a failed attempt. An identity that is already blocked is not
// incremented further. When the counter cannot be read nothing is written, so an
// existing lockout is never replaced by a fresh count.
func (g *Guard) RecordFailure(ctx context.Context, identity string) FailureResult {
	res := FailureResult{Window: g.Window}
	c, _, err := g.load(ctx, identity)
	if err != nil {
		return res
	}
	if c.Attempts >= g.MaxAttempts {
		res.Blocked, res.Attempts, res.RetryAfter = true, c.Attempts, g.remaining(c)
		return res
	}
	c.Attempts++
	c.UpdatedAtUtc = g.now()
	res.Attempts = c.Attempts
	if g.Store != nil {
		b, _ := json.Marshal(c)
		if err := g.Store.Put(ctx, g.key(identity), string(b), g.Window); err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("auth failure counter write failed", slog.Any("err", err), slog.String("component", "authguard"))
		}
	}
	if c.Attempts >= g.MaxAttempts {
		res.Blocked, res.RetryAfter = true, g.Window
	}
	return res
}

// Check authenticates r against want on behalf of identity.
func (g *Guard) Check(ctx context.Context, r *http.Request, identity string, want config.Credentials) Result {
	if !want.Configured() {
		return Result{Status: NotConfigured}
	}
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "authguard"), slog.String("path", r.URL.Path))
	if blocked, retry := g.Blocked(ctx, identity); blocked {
		telemetry.IncLockout()
		logger.Warn("admin request rejected: locked out", slog.String("identity", crypto.Short(g.Hasher.Hash(identity))))
		return Result{Status: Locked, RetryAfter: retry}
	}
	if user, pass, ok := r.BasicAuth(); ok && Authorize(user, pass, want) {
		return Result{Status: Authorized}
	}
	telemetry.Inc(telemetry.AuthFailures, r.URL.Path)
	fr := g.RecordFailure(ctx, identity)
	logger.Warn("admin auth failed", slog.Int("attempts", fr.Attempts), slog.String("identity", crypto.Short(g.Hasher.Hash(identity))))
	if fr.Blocked {
		telemetry.IncLockout()
		return Result{Status: Locked, RetryAfter: fr.RetryAfter}
	}
	return Result{Status: Unauthorized}
}
