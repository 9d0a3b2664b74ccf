package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flyingwithjoel/fwj-api/incident"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

type noticeResponse struct {
	OK           bool       `json:"ok,omitempty"`
	Enabled      bool       `json:"enabled"`
	Title        *string    `json:"title"`
	Message      *string    `json:"message"`
	UpdatedAtUtc *time.Time `json:"updatedAtUtc"`
}

func toNoticeResponse(n incident.Notice) noticeResponse {
	return noticeResponse{Enabled: n.Enabled, Title: n.Title, Message: n.Message, UpdatedAtUtc: n.UpdatedAtUtc}
}

// HandleIncidentNoticeGet returns the public incident banner.
func (h *Handlers) HandleIncidentNoticeGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toNoticeResponse(h.deps.Incident.Get(r.Context())))
}

// HandleIncidentNoticePut replaces the banner. Notifications for the change are sent
// in the background and never affect the response.
func (h *Handlers) HandleIncidentNoticePut(w http.ResponseWriter, r *http.Request) {
	var in incident.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	n, _, err := h.deps.Incident.Set(r.Context(), in)
	if err != nil {
		var verr *incident.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, incident.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "Server not configured.")
		default:
			telemetry.LoggerWithCorr(r.Context()).Error("incident notice save failed", slog.Any("err", err), slog.String("component", "http"))
			writeError(w, http.StatusInternalServerError, "Failed to save incident notice.")
		}
		return
	}
	resp := toNoticeResponse(n)
	resp.OK = true
	writeJSON(w, http.StatusOK, resp)
}
