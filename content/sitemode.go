package content

import (
	"context"
	"strings"
	"time"
)

const (
	ModeLive        = "live"
	ModeMaintenance = "maintenance"
)

type SiteMode struct {
	Mode         string     `json:"mode"`
	UpdatedAtUtc *time.Time `json:"updatedAtUtc"`
}

func normaliseMode(m string) string { return strings.ToLower(strings.TrimSpace(m)) }

// SiteMode returns the current mode, defaulting to live.
func (s *Store) SiteMode(ctx context.Context) SiteMode {
	var m SiteMode
	if !s.read(ctx, siteModeKey, &m) {
		return SiteMode{Mode: ModeLive}
	}
	m.Mode = normaliseMode(m.Mode)
	if m.Mode != ModeLive && m.Mode != ModeMaintenance {
		m.Mode = ModeLive
	}
	return m
}

// SetSiteMode stores mode ("live" or "maintenance", case-insensitive).
func (s *Store) SetSiteMode(ctx context.Context, mode string) (SiteMode, error) {
	mode = normaliseMode(mode)
	if mode != ModeLive && mode != ModeMaintenance {
		return SiteMode{}, &ValidationError{Field: "mode", Message: `mode must be "live" or "maintenance".`}
	}
	now := s.now()
	m := SiteMode{Mode: mode, UpdatedAtUtc: &now}
	if err := s.write(ctx, siteModeKey, m); err != nil {
		return SiteMode{}, err
	}
	return m, nil
}
