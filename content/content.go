// Package content holds the small store-backed resources edited from the admin page:
// the weekly stream schedule, the site mode switch and private admin notes.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

const (
	scheduleKey = "schedule_v1"
	siteModeKey = "site_mode_v1"
	notesKey    = "admin_notes_v1"
)

var (
	ErrNotConfigured = errors.New("content store not configured")
	ErrInvalidJSON   = errors.New("invalid JSON body")
)

// ValidationError names the offending field of a site mode or notes update.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Store reads and writes the resources. A nil KV makes reads return defaults and
// writes return ErrNotConfigured.
type Store struct {
	KV  kvstore.Store
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// read loads key into v. It reports false for missing, unreadable or corrupt values.
func (s *Store) read(ctx context.Context, key string, v any) bool {
	if s.KV == nil {
		return false
	}
	raw, found, err := s.KV.Get(ctx, key)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("content read failed", slog.String("key", key), slog.Any("err", err), slog.String("component", "content"))
		return false
	}
	if !found {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	if s.KV == nil {
		return ErrNotConfigured
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.KV.Put(ctx, key, string(b), 0); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
