package content

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

const MaxNotesLen = 20000

type Notes struct {
	Notes        string     `json:"notes"`
	UpdatedAtUtc *time.Time `json:"updatedAtUtc"`
}

// Notes returns the stored admin notes. Unlike the other resources it reports a
// missing store, because callers are already authenticated operators.
func (s *Store) Notes(ctx context.Context) (Notes, error) {
	if s.KV == nil {
		return Notes{}, ErrNotConfigured
	}
	var n Notes
	if !s.read(ctx, notesKey, &n) {
		return Notes{}, nil
	}
	return n, nil
}

// SetNotes replaces the notes. The text is stored verbatim.
func (s *Store) SetNotes(ctx context.Context, notes string) (Notes, error) {
	if utf8.RuneCountInString(notes) > MaxNotesLen {
		return Notes{}, &ValidationError{Field: "notes", Message: fmt.Sprintf("notes must be 0-%d characters.", MaxNotesLen)}
	}
	now := s.now()
	n := Notes{Notes: notes, UpdatedAtUtc: &now}
	if err := s.write(ctx, notesKey, n); err != nil {
		return Notes{}, err
	}
	return n, nil
}
