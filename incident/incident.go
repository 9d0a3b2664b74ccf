// Package incident stores the public incident notice banner and announces changes to it.
package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/notify"
	"github.com/flyingwithjoel/fwj-api/telemetry"
	"github.com/flyingwithjoel/fwj-api/textutil"
)

const (
	storeKey       = "incident_notice_v1"
	MaxTitleLen    = 80
	MaxMessageLen  = 220
	maxStoredBytes = 8000
)

// ErrNotConfigured is returned by Set when no store is available.
var ErrNotConfigured = errors.New("incident notice store not configured")

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Notice is the public banner state. Title and Message are null when empty.
type Notice struct {
	Enabled      bool       `json:"enabled"`
	Title        *string    `json:"title"`
	Message      *string    `json:"message"`
	UpdatedAtUtc *time.Time `json:"updatedAtUtc"`
}

// TitleText returns the title or "".
func (n Notice) TitleText() string { return deref(n.Title) }

// MessageText returns the message or "".
func (n Notice) MessageText() string { return deref(n.Message) }

// Input is an operator's requested update.
type Input struct {
	Enabled bool   `json:"enabled"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Transition classifies a write relative to the previous state.
type Transition string

const (
	Noop     Transition = "noop"
	Enabled  Transition = "enabled"
	Disabled Transition = "disabled"
	Updated  Transition = "updated"
)

// Classify compares the observable fields of two notices.
func Classify(prev, next Notice) Transition {
	switch {
	case !prev.Enabled && next.Enabled:
		return Enabled
	case prev.Enabled && !next.Enabled:
		return Disabled
	case prev.TitleText() != next.TitleText() || prev.MessageText() != next.MessageText():
		return Updated
	}
	return Noop
}

// Store persists the notice in the kv store and fans out change notifications.
type Store struct {
	KV            kvstore.Store
	Dispatcher    *notify.Dispatcher
	Webhook       notify.Poster
	Mailer        notify.Mailer
	AlertTo       string
	StatusPageURL string
	Now           func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the current notice, or a disabled notice if none is stored or it
// cannot be read.
func (s *Store) Get(ctx context.Context) Notice {
	if s.KV == nil {
		return Notice{}
	}
	raw, found, err := s.KV.Get(ctx, storeKey)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("incident notice read failed", slog.Any("err", err), slog.String("component", "incident"))
		return Notice{}
	}
	if !found {
		return Notice{}
	}
	var n Notice
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return Notice{}
	}
	// normalise anything written by hand
	n.Title = optional(strings.TrimSpace(deref(n.Title)))
	n.Message = optional(strings.TrimSpace(deref(n.Message)))
	return n
}

// Validate cleans in and checks the length and required-when-enabled rules.
func Validate(in Input) (title, message string, err error) {
	title = textutil.Plain(in.Title)
	message = textutil.Plain(in.Message)
	if textutil.Len(title) > MaxTitleLen {
		return "", "", &ValidationError{Field: "title", Message: fmt.Sprintf("title must be 0-%d characters.", MaxTitleLen)}
	}
	if textutil.Len(message) > MaxMessageLen {
		return "", "", &ValidationError{Field: "message", Message: fmt.Sprintf("message must be 0-%d characters.", MaxMessageLen)}
	}
	if in.Enabled && title == "" {
		return "", "", &ValidationError{Field: "title", Message: "When enabled, title and message are required (title is missing)."}
	}
	if in.Enabled && message == "" {
		return "", "", &ValidationError{Field: "message", Message: "When enabled, title and message are required (message is missing)."}
	}
	return title, message, nil
}

// Set validates and stores in, then schedules notifications for a real change. The
// notifications never delay or fail the write.
func (s *Store) Set(ctx context.Context, in Input) (Notice, Transition, error) {
	title, message, err := Validate(in)
	if err != nil {
		return Notice{}, Noop, err
	}
	if s.KV == nil {
		return Notice{}, Noop, ErrNotConfigured
	}

	prev := s.Get(ctx)
	now := s.now()
	next := Notice{Enabled: in.Enabled, Title: optional(title), Message: optional(message), UpdatedAtUtc: &now}

	b, err := json.Marshal(next)
	if err != nil {
		return Notice{}, Noop, fmt.Errorf("encode incident notice: %w", err)
	}
	if len(b) > maxStoredBytes {
		return Notice{}, Noop, &ValidationError{Field: "body", Message: "Payload too large."}
	}
	if err := s.KV.Put(ctx, storeKey, string(b), 0); err != nil {
		return Notice{}, Noop, fmt.Errorf("save incident notice: %w", err)
	}

	kind := Classify(prev, next)
	telemetry.Inc(telemetry.IncidentTransitions, string(kind))
	telemetry.LoggerWithCorr(ctx).Info("incident notice saved", slog.String("component", "incident"), slog.String("transition", string(kind)), slog.Bool("enabled", next.Enabled))
	if kind != Noop {
		s.announce(ctx, kind, next)
	}
	return next, kind, nil
}

func (s *Store) announce(ctx context.Context, kind Transition, n Notice) {
	if s.Webhook != nil {
		msg := webhookMessage(kind, n, s.StatusPageURL)
		s.Dispatcher.Go(ctx, "webhook", func(ctx context.Context) error {
			return s.Webhook.Post(ctx, msg)
		})
	}
	if s.Mailer != nil && s.AlertTo != "" {
		e := alertEmail(kind, n, s.AlertTo, s.StatusPageURL)
		s.Dispatcher.Go(ctx, "email", func(ctx context.Context) error {
			return s.Mailer.Send(ctx, e)
		})
	}
}

func status(n Notice) string {
	if n.Enabled {
		return "Enabled"
	}
	return "Disabled"
}

func webhookMessage(kind Transition, n Notice, statusURL string) notify.DiscordMessage {
	color := 0xF1C40F
	switch kind {
	case Enabled:
		color = 0xE74C3C
	case Disabled:
		color = 0x2ECC71
	}
	return notify.DiscordMessage{
		Username: "Flying With Joel status",
		Embeds: []notify.DiscordEmbed{{
			Title: "Incident notice " + string(kind),
			URL:   statusURL,
			Color: color,
			Fields: []notify.DiscordEmbedField{
				notify.Field("Status", status(n), true),
				notify.Field("Title", n.TitleText(), false),
				notify.Field("Message", n.MessageText(), false),
				notify.Field("Status page", statusURL, false),
			},
			Timestamp: n.UpdatedAtUtc.Format(time.RFC3339),
		}},
	}
}

func alertEmail(kind Transition, n Notice, to, statusURL string) notify.Email {
	subject := "[Flying With Joel] Incident notice " + string(kind)
	if t := n.TitleText(); t != "" {
		subject += ": " + t
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The public incident notice was %s.\n\n", kind)
	fmt.Fprintf(&b, "Status: %s\n", status(n))
	fmt.Fprintf(&b, "Title: %s\n", orDash(n.TitleText()))
	fmt.Fprintf(&b, "Message: %s\n", orDash(n.MessageText()))
	fmt.Fprintf(&b, "Updated: %s\n\n", n.UpdatedAtUtc.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status page: %s\n", statusURL)
	return notify.Email{To: to, Subject: subject, Text: b.String()}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
