package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthURL(t *testing.T) {
	t.Setenv("HEALTHCHECK_URL", "")
	t.Setenv("HTTP_ADDR", "")
	if got := healthURL(); got != "http://localhost:8080/healthz" {
		t.Errorf("healthURL() = %q", got)
	}
	t.Setenv("HTTP_ADDR", ":9090")
	if got := healthURL(); got != "http://localhost:9090/healthz" {
		t.Errorf("healthURL() = %q", got)
	}
	t.Setenv("HEALTHCHECK_URL", "http://api:8080/healthz")
	if got := healthURL(); got != "http://api:8080/healthz" {
		t.Errorf("healthURL() = %q", got)
	}
}

func TestRun(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer ok.Close()
	if code := run(ok.URL); code != 0 {
		t.Errorf("run(healthy) = %d, want 0", code)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	if code := run(bad.URL); code != 1 {
		t.Errorf("run(unhealthy) = %d, want 1", code)
	}

	if code := run("http://127.0.0.1:1/healthz"); code != 1 {
		t.Errorf("run(unreachable) = %d, want 1", code)
	}
}
