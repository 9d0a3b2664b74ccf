// Package testutil holds shared test doubles: a mock Twitch server, recording mailer
// and webhook fakes, a controllable clock and a Postgres helper.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/notify"
)

// FakeMailer records every email it is asked to send. When Err is set it is returned
// after recording, so callers can assert the attempt happened.
type FakeMailer struct {
	mu   sync.Mutex
	sent []notify.Email
	Err  error
}

func (m *FakeMailer) Send(_ context.Context, e notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.Err
}

// SetErr changes the error returned by later sends.
func (m *FakeMailer) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Sent returns a copy of the recorded emails.
func (m *FakeMailer) Sent() []notify.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Email(nil), m.sent...)
}

// FakeWebhook records posted payloads.
type FakeWebhook struct {
	mu       sync.Mutex
	payloads []any
	Err      error
}

func (w *FakeWebhook) Post(_ context.Context, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payloads = append(w.payloads, payload)
	return w.Err
}

// Payloads returns a copy of the recorded payloads.
func (w *FakeWebhook) Payloads() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]any(nil), w.payloads...)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewMemoryStore returns an in-memory store driven by a fresh clock.
func NewMemoryStore() (*kvstore.Memory, *Clock) {
	clock := NewClock(time.Date(2026, 1, 24, 11, 0, 0, 0, time.UTC))
	store := kvstore.NewMemory()
	store.Now = clock.Now
	return store, clock
}
