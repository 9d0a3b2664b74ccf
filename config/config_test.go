package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_FAIL_WINDOW_SECONDS", "")
	t.Setenv("AUTH_FAIL_MAX_ATTEMPTS", "")
	t.Setenv("DATA_REQUEST_COOLDOWN_SECONDS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("KV_BACKEND", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AuthFailWindow != 600*time.Second {
		t.Errorf("AuthFailWindow = %v, want 600s", cfg.AuthFailWindow)
	}
	if cfg.AuthFailMaxAttempts != 12 {
		t.Errorf("AuthFailMaxAttempts = %d, want 12", cfg.AuthFailMaxAttempts)
	}
	if cfg.DataRequestCooldown != 120*time.Second {
		t.Errorf("DataRequestCooldown = %v, want 120s", cfg.DataRequestCooldown)
	}
	if len(cfg.AllowedOrigins) != len(DefaultAllowedOrigins) {
		t.Errorf("AllowedOrigins = %v, want defaults", cfg.AllowedOrigins)
	}
	if cfg.KVBackend != "memory" {
		t.Errorf("KVBackend = %q, want memory", cfg.KVBackend)
	}
}

func TestLoadClampsLimits(t *testing.T) {
	tests := []struct {
		name       string
		window     string
		attempts   string
		cooldown   string
		wantWindow time.Duration
		wantMax    int
		wantCool   time.Duration
	}{
		{"below range", "5", "1", "1", 60 * time.Second, 3, 5 * time.Second},
		{"above range", "99999", "1000", "9999", 3600 * time.Second, 100, 600 * time.Second},
		{"in range", "900", "5", "30", 900 * time.Second, 5, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_FAIL_WINDOW_SECONDS", tt.window)
			t.Setenv("AUTH_FAIL_MAX_ATTEMPTS", tt.attempts)
			t.Setenv("DATA_REQUEST_COOLDOWN_SECONDS", tt.cooldown)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.AuthFailWindow != tt.wantWindow {
				t.Errorf("AuthFailWindow = %v, want %v", cfg.AuthFailWindow, tt.wantWindow)
			}
			if cfg.AuthFailMaxAttempts != tt.wantMax {
				t.Errorf("AuthFailMaxAttempts = %d, want %d", cfg.AuthFailMaxAttempts, tt.wantMax)
			}
			if cfg.DataRequestCooldown != tt.wantCool {
				t.Errorf("DataRequestCooldown = %v, want %v", cfg.DataRequestCooldown, tt.wantCool)
			}
		})
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("AUTH_FAIL_MAX_ATTEMPTS", "lots")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric AUTH_FAIL_MAX_ATTEMPTS")
	}
	t.Setenv("AUTH_FAIL_MAX_ATTEMPTS", "")
	t.Setenv("KV_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown KV_BACKEND")
	}
}

func TestCredentialFallback(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "joel")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("SITE_MODE_ADMIN_USERNAME", "ops")
	t.Setenv("SITE_MODE_ADMIN_PASSWORD", "opspass")
	t.Setenv("INCIDENT_NOTICE_ADMIN_USERNAME", "")
	t.Setenv("INCIDENT_NOTICE_ADMIN_PASSWORD", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.IncidentNoticeAdmin.Username != "joel" {
		t.Errorf("incident notice creds should fall back to shared pair, got %q", cfg.IncidentNoticeAdmin.Username)
	}
	if cfg.SiteModeAdmin.Username != "ops" {
		t.Errorf("site mode creds should use dedicated pair, got %q", cfg.SiteModeAdmin.Username)
	}
}

func TestOriginsList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 203.0.113.7")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 {
		t.Fatalf("TrustedProxies = %v", cfg.TrustedProxies)
	}
	if got := cfg.TrustedProxies[1].String(); got != "203.0.113.7/32" {
		t.Errorf("bare address should become a /32, got %s", got)
	}

	t.Setenv("TRUSTED_PROXIES", "not-an-ip")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid TRUSTED_PROXIES")
	}

	t.Setenv("TRUSTED_PROXIES", "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies should default to empty, got %v", cfg.TrustedProxies)
	}
}
