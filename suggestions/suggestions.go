// Package suggestions forwards viewer flight suggestions to the Discord channel.
package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/flyingwithjoel/fwj-api/notify"
	"github.com/flyingwithjoel/fwj-api/ratelimit"
	"github.com/flyingwithjoel/fwj-api/telemetry"
	"github.com/flyingwithjoel/fwj-api/textutil"
)

var (
	ErrNotConfigured = errors.New("suggestions webhook not configured")
	ErrUpstream      = errors.New("upstream delivery failed")
)

// ValidationError is a user-fixable problem with the submission.
type ValidationError struct {
	Field   string
	Message string
	cause   error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.cause }

// RateLimitedError carries how long the caller should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many submissions, retry after %s", e.RetryAfter)
}

// field limits, in runes
var limits = []struct {
	name string
	max  int
}{
	{"flightDate", 40}, {"flightNumber", 30}, {"callsign", 30}, {"aircraft", 40},
	{"departure", 60}, {"arrival", 60}, {"route", 200}, {"flightRadarLink", 300},
	{"flightTime", 20}, {"flightLength", 20}, {"name", 60}, {"twitchHandle", 40},
	{"timestamp", 40},
}

var required = []string{"flightNumber", "callsign", "aircraft", "departure", "arrival", "route", "flightTime", "flightLength", "name"}

// Suggestion is a cleaned submission.
type Suggestion map[string]string

// Clean trims, strips markup from and clamps every known field. Non-string values
// are treated as empty.
func Clean(payload map[string]any, now time.Time) Suggestion {
	s := make(Suggestion, len(limits))
	for _, l := range limits {
		v, _ := payload[l.name].(string)
		s[l.name] = textutil.Clamp(v, l.max)
	}
	if s["timestamp"] == "" {
		s["timestamp"] = now.UTC().Format(time.RFC3339)
	}
	return s
}

// Validate checks required fields and the FlightRadar24 link.
func (s Suggestion) Validate() error {
	for _, k := range required {
		if s[k] == "" {
			return &ValidationError{Field: k, Message: "Missing required field: " + k}
		}
	}
	link := s["flightRadarLink"]
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: "flightRadarLink", Message: "FlightRadar24 link is not a valid URL."}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "flightRadarLink", Message: "FlightRadar24 link must start with https://"}
	}
	if !strings.Contains(strings.ToLower(u.Hostname()), "flightradar24.com") {
		return &ValidationError{Field: "flightRadarLink", Message: "Please use a FlightRadar24 link (flightradar24.com)."}
	}
	return nil
}

// Forwarder runs the submission pipeline: cooldown, Turnstile, validation, Discord.
type Forwarder struct {
	Webhook   notify.Poster
	Limiter   *ratelimit.Limiter
	Cooldown  time.Duration
	Turnstile *Turnstile
	Now       func() time.Time
}

// Submit forwards payload synchronously; the caller's response depends on Discord
// accepting the message.
func (f *Forwarder) Submit(ctx context.Context, identity string, payload map[string]any) error {
	if f.Webhook == nil {
		return ErrNotConfigured
	}
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "suggestions"))
	if d := f.Limiter.CheckAndMark(ctx, identity, f.Cooldown); !d.Allowed {
		telemetry.Inc(telemetry.Suggestions, "rate_limited")
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}
	token, _ := payload["turnstileToken"].(string)
	if err := f.Turnstile.Verify(ctx, token, identity); err != nil {
		telemetry.Inc(telemetry.Suggestions, "turnstile_rejected")
		logger.Info("turnstile verification failed", slog.Any("err", err))
		return err
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	s := Clean(payload, now())
	if err := s.Validate(); err != nil {
		telemetry.Inc(telemetry.Suggestions, "invalid")
		return err
	}
	if err := f.Webhook.Post(ctx, DiscordMessage(s)); err != nil {
		telemetry.Inc(telemetry.Suggestions, "upstream_failed")
		logger.Error("discord forward failed", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	telemetry.Inc(telemetry.Suggestions, "forwarded")
	logger.Info("flight suggestion forwarded", slog.String("flight", s["flightNumber"]))
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func submittedText(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format("02/01/2006, 15:04:05") + " UTC"
	}
	return ts
}

// DiscordMessage renders s as the embed posted to the channel.
func DiscordMessage(s Suggestion) notify.DiscordMessage {
	return notify.DiscordMessage{
		Content: fmt.Sprintf("✈️ **New Flight Suggestion from %s**", s["name"]),
		Embeds: []notify.DiscordEmbed{{
			Title:       "✈️ Flight Suggestion Received",
			Description: fmt.Sprintf("%s - %s to %s", s["flightNumber"], s["departure"], s["arrival"]),
			Color:       0xFF8C42,
			Fields: []notify.DiscordEmbedField{
				notify.Field("✈️ Flight Number", s["flightNumber"], true),
				notify.Field("📡 Callsign", s["callsign"], true),
				notify.Field("🛩️ Aircraft", s["aircraft"], true),
				notify.Field("🛫 Departure", s["departure"], true),
				notify.Field("🛬 Arrival", s["arrival"], true),
				notify.Field("📍 Route", s["route"], false),
				notify.Field("🔗 FlightRadar24 Link", orDefault(s["flightRadarLink"], "Not provided"), false),
				notify.Field("⏱️ Flight Time", s["flightTime"], true),
				notify.Field("📊 Flight Length", s["flightLength"], true),
				notify.Field("📅 Date of Flight", orDefault(s["flightDate"], "Not specified"), true),
				notify.Field("👤 Suggested By", s["name"], true),
				notify.Field("🎥 Twitch Handle", orDefault(s["twitchHandle"], "Not provided"), true),
				notify.Field("⏰ Submitted", submittedText(s["timestamp"]), false),
			},
			Footer: &notify.DiscordEmbedFooter{Text: "From: flyingwithjoel.co.uk"},
		}},
	}
}
