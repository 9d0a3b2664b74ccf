// Package datarequest implements the data access/deletion request workflow.
//
// A submission stores a pending record under "dsar:<token>" for 24 hours and emails a
// confirmation link. Visiting the link sends the result email and, only if that
// succeeds, rewrites the record in minimised form (no email address, just a keyed hash)
// for 30 days. Revisiting a processed link is a no-op.
package datarequest

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/notify"
	"github.com/flyingwithjoel/fwj-api/ratelimit"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// KeyPrefix namespaces data request records in the kv store.
const KeyPrefix = "dsar:"

const (
	tokenBytes   = 32
	pendingTTL   = 24 * time.Hour
	processedTTL = 30 * 24 * time.Hour
)

// Action is what the requester asked for.
type Action string

const (
	ActionAccess Action = "access"
	ActionDelete Action = "delete"
)

// ParseAction accepts the two known actions, case-insensitively.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionAccess:
		return ActionAccess, true
	case ActionDelete:
		return ActionDelete, true
	}
	return "", false
}

// Outcome of a successful Confirm.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeAlreadyProcessed
)

// Record is the stored state of one request. Email is only present while pending;
// EmailHash only once processed.
type Record struct {
	Email          string     `json:"email,omitempty"`
	EmailHash      string     `json:"emailHash,omitempty"`
	Action         Action     `json:"action"`
	CreatedAtUtc   time.Time  `json:"createdAtUtc"`
	ConfirmedAtUtc *time.Time `json:"confirmedAtUtc"`
	ProcessedAtUtc *time.Time `json:"processedAtUtc"`
}

// Workflow wires the collaborators. Sealer may be nil (emails stored as plaintext
// while pending).
type Workflow struct {
	KV         kvstore.Store
	Mailer     notify.Mailer
	Limiter    *ratelimit.Limiter
	Cooldown   time.Duration
	Sealer     *crypto.Sealer
	Hasher     *crypto.Hasher
	ConfirmURL string // e.g. https://flyingwithjoel.co.uk/api/data-requests/confirm
	Now        func() time.Time
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

// Link returns the confirmation URL carrying token.
func (w *Workflow) Link(token string) string {
	return w.ConfirmURL + "?token=" + url.QueryEscape(token)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// validToken rejects anything that could not have come from newToken.
func validToken(t string) bool {
	if t == "" || len(t) > 128 {
		return false
	}
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Submit validates the request, applies the per-identity cooldown, stores a pending
// record and sends the confirmation email. If the email cannot be sent the pending
// record is removed and ErrDeliveryFailed is returned.
func (w *Workflow) Submit(ctx context.Context, identity, email, action string) error {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "datarequest"))
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return &ValidationError{Field: "email", Message: "Please enter a valid email address."}
	}
	act, ok := ParseAction(action)
	if !ok {
		return &ValidationError{Field: "action", Message: "action must be one of: access, delete."}
	}
	if w.KV == nil || w.Mailer == nil {
		return ErrNotConfigured
	}
	if d := w.Limiter.CheckAndMark(ctx, identity, w.Cooldown); !d.Allowed {
		telemetry.Inc(telemetry.DataRequests, string(act), "rate_limited")
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	stored, err := w.Sealer.Seal(email)
	if err != nil {
		return fmt.Errorf("seal email: %w", err)
	}
	rec := Record{Email: stored, Action: act, CreatedAtUtc: w.now()}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode data request: %w", err)
	}
	key := KeyPrefix + token
	if err := w.KV.Put(ctx, key, string(b), pendingTTL); err != nil {
		return fmt.Errorf("store data request: %w", err)
	}

	if err := w.Mailer.Send(ctx, confirmationEmail(email, act, w.Link(token))); err != nil {
		if derr := w.KV.Delete(ctx, key); derr != nil {
			logger.Warn("could not remove undeliverable data request", slog.Any("err", derr))
		}
		telemetry.Inc(telemetry.DataRequests, string(act), "delivery_failed")
		logger.Error("confirmation email failed", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	telemetry.Inc(telemetry.DataRequests, string(act), "submitted")
	logger.Info("data request submitted", slog.String("action", string(act)), slog.String("email", crypto.Short(w.Hasher.HashEmail(email))))
	return nil
}

// Confirm processes the request behind token. Confirming an already processed token
// returns OutcomeAlreadyProcessed without sending anything.
func (w *Workflow) Confirm(ctx context.Context, token string) (Outcome, error) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "datarequest"))
	token = strings.TrimSpace(token)
	if !validToken(token) {
		return 0, ErrInvalidToken
	}
	if w.KV == nil || w.Mailer == nil {
		return 0, ErrNotConfigured
	}
	key := KeyPrefix + token
	raw, found, err := w.KV.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load data request: %w", err)
	}
	if !found {
		return 0, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Warn("corrupt data request record", slog.Any("err", err))
		return 0, ErrNotFound
	}
	if rec.ProcessedAtUtc != nil {
		telemetry.Inc(telemetry.DataRequests, string(rec.Action), "already_processed")
		return OutcomeAlreadyProcessed, nil
	}

	email, err := w.Sealer.Open(rec.Email)
	if err != nil {
		return 0, fmt.Errorf("open stored email: %w", err)
	}
	confirmedAt := w.now()
	if err := w.Mailer.Send(ctx, resultEmail(email, rec.Action)); err != nil {
		telemetry.Inc(telemetry.DataRequests, string(rec.Action), "delivery_failed")
		logger.Error("result email failed; request left pending", slog.Any("err", err))
		return 0, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	processedAt := w.now()

	minimised := Record{
		EmailHash:      w.Hasher.HashEmail(email),
		Action:         rec.Action,
		CreatedAtUtc:   rec.CreatedAtUtc,
		ConfirmedAtUtc: &confirmedAt,
		ProcessedAtUtc: &processedAt,
	}
	b, err := json.Marshal(minimised)
	if err != nil {
		return 0, fmt.Errorf("encode data request: %w", err)
	}
	if err := w.KV.Put(ctx, key, string(b), processedTTL); err != nil {
		// the result email has gone out; report success and leave the pending record to expire
		logger.Error("could not store processed data request", slog.Any("err", err))
	}
	telemetry.Inc(telemetry.DataRequests, string(rec.Action), "processed")
	logger.Info("data request processed", slog.String("action", string(rec.Action)), slog.String("email", crypto.Short(minimised.EmailHash)))
	return OutcomeConfirmed, nil
}
