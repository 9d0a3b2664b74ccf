package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/flyingwithjoel/fwj-api/db"
)

// Postgres stores values in the kv table. Expired rows are filtered on read and
// deleted by the purge loop started with StartPurger.
type Postgres struct {
	db  *sql.DB
	Now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, Now: time.Now}
}

func (p *Postgres) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key=$1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (p *Postgres) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: p.now().Add(ttl), Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, expires_at=EXCLUDED.expires_at, updated_at=NOW()`,
		key, value, expires)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv WHERE key=$1`, key)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// StartPurger deletes expired rows every interval until ctx is cancelled.
func (p *Postgres) StartPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := db.PurgeExpired(ctx, p.db, p.now())
				if err != nil {
					slog.Warn("kv purge failed", slog.Any("err", err), slog.String("component", "kvstore"))
					continue
				}
				if n > 0 {
					slog.Debug("kv purge", slog.Int64("deleted", n), slog.String("component", "kvstore"))
				}
			}
		}
	}()
}
