package server

import (
	"context"
	"net/http"
	"time"

	"github.com/flyingwithjoel/fwj-api/kvstore"
)

// HandleHealthz responds to liveness probes. It does not touch the store.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes by checking the key-value store.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"kv_store", func(ctx context.Context) error {
			if h.deps.KV == nil {
				// KV_BACKEND=none is a supported, degraded mode
				return nil
			}
			if p, ok := h.deps.KV.(kvstore.Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		}},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
