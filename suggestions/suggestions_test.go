package suggestions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/notify"
	"github.com/flyingwithjoel/fwj-api/ratelimit"
	"github.com/flyingwithjoel/fwj-api/testutil"
)

func validPayload() map[string]any {
	return map[string]any{
		"flightNumber":    "BA117",
		"callsign":        "SPEEDBIRD 117",
		"aircraft":        "B777-300ER",
		"departure":       "EGLL",
		"arrival":         "KJFK",
		"route":           "CPT3F CPT UL9 KENET",
		"flightRadarLink": "https://www.flightradar24.com/data/flights/ba117",
		"flightTime":      "7h 50m",
		"flightLength":    "Long haul",
		"name":            "Sam",
		"timestamp":       "2026-01-24T11:00:00Z",
	}
}

func newForwarder(t *testing.T) (*Forwarder, *testutil.FakeWebhook, *testutil.Clock) {
	t.Helper()
	kv, clock := testutil.NewMemoryStore()
	lim := ratelimit.New(kv, "suggestions", crypto.NewHasher("k"))
	lim.Now = clock.Now
	wh := &testutil.FakeWebhook{}
	return &Forwarder{Webhook: wh, Limiter: lim, Cooldown: 120 * time.Second, Now: clock.Now}, wh, clock
}

func TestSubmitForwardsEmbed(t *testing.T) {
	f, wh, _ := newForwarder(t)
	require.NoError(t, f.Submit(context.Background(), "203.0.113.9", validPayload()))

	require.Len(t, wh.Payloads(), 1)
	msg := wh.Payloads()[0].(notify.DiscordMessage)
	assert.Contains(t, msg.Content, "Sam")
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "BA117 - EGLL to KJFK", msg.Embeds[0].Description)
	fields := map[string]string{}
	for _, fl := range msg.Embeds[0].Fields {
		fields[fl.Name] = fl.Value
	}
	assert.Equal(t, "Not provided", fields["🎥 Twitch Handle"])
	assert.Equal(t, "24/01/2026, 11:00:00 UTC", fields["⏰ Submitted"])
}

func TestSubmitRateLimited(t *testing.T) {
	f, wh, clock := newForwarder(t)
	ctx := context.Background()
	require.NoError(t, f.Submit(ctx, "ip", validPayload()))

	err := f.Submit(ctx, "ip", validPayload())
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 120*time.Second, rl.RetryAfter)

	clock.Advance(2 * time.Minute)
	require.NoError(t, f.Submit(ctx, "ip", validPayload()))
	assert.Len(t, wh.Payloads(), 2)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(p map[string]any)
		field string
		msg   string
	}{
		{"missing callsign", func(p map[string]any) { delete(p, "callsign") }, "callsign", "Missing required field: callsign"},
		{"non-string is empty", func(p map[string]any) { p["route"] = 42 }, "route", ""},
		{"markup only", func(p map[string]any) { p["name"] = "<img src=x>" }, "name", ""},
		{"http link", func(p map[string]any) { p["flightRadarLink"] = "http://www.flightradar24.com/x" }, "flightRadarLink", "must start with https://"},
		{"other host", func(p map[string]any) { p["flightRadarLink"] = "https://evil.example.com/x" }, "flightRadarLink", "flightradar24.com"},
		{"not a url", func(p map[string]any) { p["flightRadarLink"] = "flightradar24" }, "flightRadarLink", "not a valid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, wh, _ := newForwarder(t)
			p := validPayload()
			tt.mut(p)
			err := f.Submit(context.Background(), "ip", p)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Message, tt.msg)
			assert.Empty(t, wh.Payloads())
		})
	}
}

func TestCleanClampsFields(t *testing.T) {
	now := time.Date(2026, 1, 24, 11, 0, 0, 0, time.UTC)
	s := Clean(map[string]any{
		"flightNumber": "  " + strings.Repeat("9", 50) + "  ",
		"route":        "<b>DCT</b>",
	}, now)
	assert.Equal(t, strings.Repeat("9", 30), s["flightNumber"])
	assert.Equal(t, "DCT", s["route"])
	assert.Equal(t, "2026-01-24T11:00:00Z", s["timestamp"])
}

func TestUpstreamFailure(t *testing.T) {
	f, wh, _ := newForwarder(t)
	wh.Err = errors.New("discord 500")
	err := f.Submit(context.Background(), "ip", validPayload())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestNotConfigured(t *testing.T) {
	f := &Forwarder{}
	assert.ErrorIs(t, f.Submit(context.Background(), "ip", validPayload()), ErrNotConfigured)
}

func TestTurnstile(t *testing.T) {
	var gotSecret, gotIP string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotSecret, gotIP = r.PostFormValue("secret"), r.PostFormValue("remoteip")
		if r.PostFormValue("response") == "good" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	ts := NewTurnstile("shh")
	ts.URL = srv.URL
	ctx := context.Background()

	require.NoError(t, ts.Verify(ctx, "good", "203.0.113.9"))
	assert.Equal(t, "shh", gotSecret)
	assert.Equal(t, "203.0.113.9", gotIP)

	var ve *ValidationError
	require.True(t, errors.As(ts.Verify(ctx, "bad", ""), &ve))
	assert.Equal(t, "Turnstile verification rejected.", ve.Message)
	require.True(t, errors.As(ts.Verify(ctx, "", ""), &ve))
	assert.Equal(t, "Missing Turnstile token.", ve.Message)

	assert.Nil(t, NewTurnstile(""))
	var none *Turnstile
	assert.NoError(t, none.Verify(ctx, "", ""))
}

func TestSubmitChecksTurnstileBeforeForwarding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	f, wh, _ := newForwarder(t)
	f.Turnstile = &Turnstile{Secret: "shh", URL: srv.URL}
	p := validPayload()
	p["turnstileToken"] = "tok"
	var ve *ValidationError
	require.True(t, errors.As(f.Submit(context.Background(), "ip", p), &ve))
	assert.Empty(t, wh.Payloads())
}
