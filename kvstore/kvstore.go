// Package kvstore abstracts the durable string-keyed storage shared by every request handler.
// It is the only cross-request state in the service: rate-limit marks, auth failure counters,
// pending data requests and the small site resources all live here, optionally with a TTL.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flyingwithjoel/fwj-api/config"
	"github.com/flyingwithjoel/fwj-api/db"
)

// Store is durable string-keyed storage with optional per-key expiry.
// A ttl of zero stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report connectivity for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open builds the store selected by cfg.KVBackend. The returned close func is never nil.
// KV_BACKEND=none yields a nil Store, which callers treat as "not configured".
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.KVBackend {
	case "none":
		slog.Warn("kv store disabled (KV_BACKEND=none); rate limiting fails open and protected writes are unavailable", slog.String("component", "kvstore"))
		return nil, noop, nil
	case "redis":
		r := NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		slog.Info("kv store ready", slog.String("backend", "redis"), slog.String("addr", cfg.RedisAddr))
		return r, r.Close, nil
	case "postgres":
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		if err := migrate(ctx, database); err != nil {
			_ = database.Close()
			return nil, noop, err
		}
		pg := NewPostgres(database)
		pg.StartPurger(ctx, 10*time.Minute)
		slog.Info("kv store ready", slog.String("backend", "postgres"))
		return pg, database.Close, nil
	default:
		slog.Warn("using in-memory kv store; state is lost on restart", slog.String("component", "kvstore"))
		return NewMemory(), noop, nil
	}
}

func migrate(ctx context.Context, database *sql.DB) error {
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL", slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			return fmt.Errorf("migrate kv schema: %w", err)
		}
	}
	return nil
}

// Memory is an in-process Store. It backs local development and tests; Now may be
// replaced to simulate the passage of time.
type Memory struct {
	mu   sync.Mutex
	data map[string]memEntry
	Now  func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory returns an empty in-memory store using the wall clock.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memEntry), Now: time.Now}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// TTL returns the remaining lifetime of key, or zero if it is missing or has no expiry.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(m.now())
}

// Keys returns the live keys with the given prefix.
func (m *Memory) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []string
	for k, e := range m.data {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			continue
		}
		out = append(out, k)
	}
	return out
}
