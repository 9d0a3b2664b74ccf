package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/flyingwithjoel/fwj-api/content"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// contentError maps a content store error to a response.
func contentError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *content.ValidationError
	var serr *content.ScheduleError
	switch {
	case errors.As(err, &serr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Schedule must be a valid array of schedule items.",
			"details": serr.Details,
		})
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, content.ErrInvalidJSON):
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
	case errors.Is(err, content.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "Server not configured.")
	default:
		telemetry.LoggerWithCorr(r.Context()).Error("content save failed", slog.Any("err", err), slog.String("component", "http"))
		writeError(w, http.StatusInternalServerError, "Failed to save.")
	}
}

// HandleScheduleGet returns the stream schedule array.
func (h *Handlers) HandleScheduleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Content.Schedule(r.Context()))
}

// HandleSchedulePut replaces the schedule.
func (h *Handlers) HandleSchedulePut(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, maxBodyBytes)
	if !ok {
		return
	}
	if err := h.deps.Content.PutSchedule(r.Context(), body); err != nil {
		contentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleScheduleAuth lets the admin page check its credentials before editing.
func (h *Handlers) HandleScheduleAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleSiteModeGet returns the live/maintenance switch.
func (h *Handlers) HandleSiteModeGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Content.SiteMode(r.Context()))
}

// HandleSiteModePut flips the live/maintenance switch.
func (h *Handlers) HandleSiteModePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	m, err := h.deps.Content.SetSiteMode(r.Context(), body.Mode)
	if err != nil {
		contentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": m.Mode, "updatedAtUtc": m.UpdatedAtUtc})
}

// HandleAdminNotesGet returns the private admin notes.
func (h *Handlers) HandleAdminNotesGet(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Content.Notes(r.Context())
	if err != nil {
		contentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleAdminNotesPut replaces the admin notes.
func (h *Handlers) HandleAdminNotesPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes *string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Notes == nil {
		writeError(w, http.StatusBadRequest, "notes must be a string.")
		return
	}
	n, err := h.deps.Content.SetNotes(r.Context(), *body.Notes)
	if err != nil {
		contentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "notes": n.Notes, "updatedAtUtc": n.UpdatedAtUtc})
}
