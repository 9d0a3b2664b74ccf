package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/flyingwithjoel/fwj-api/suggestions"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// HandleSuggestionSubmit forwards a flight suggestion to the Discord channel.
func (h *Handlers) HandleSuggestionSubmit(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload == nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	err := h.deps.Suggestions.Submit(r.Context(), h.callerIdentity(r), payload)
	if err != nil {
		var verr *suggestions.ValidationError
		var rl *suggestions.RateLimitedError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Message)
		case errors.As(err, &rl):
			writeRetryAfter(w, "Too many suggestions. Please wait before sending another.", rl.RetryAfter)
		case errors.Is(err, suggestions.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "Server not configured.")
		case errors.Is(err, suggestions.ErrUpstream):
			writeError(w, http.StatusBadGateway, "Upstream delivery failed.")
		default:
			telemetry.LoggerWithCorr(r.Context()).Error("suggestion submit failed", slog.Any("err", err), slog.String("component", "http"))
			writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
