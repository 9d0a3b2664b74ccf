package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// The Twitch routes always answer 200; the site treats {ok:false} as "status unknown"
// and hides the widget.

func (h *Handlers) twitchUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("twitch lookup failed", slog.Any("err", err), slog.String("component", "http"))
	}
	msg := "Twitch lookup failed."
	if h.deps.Twitch == nil {
		msg = "Twitch integration not configured."
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": msg})
}

// HandleTwitchLive reports whether the channel is streaming.
func (h *Handlers) HandleTwitchLive(w http.ResponseWriter, r *http.Request) {
	if h.deps.Twitch == nil {
		h.twitchUnavailable(w, r, nil)
		return
	}
	live, err := h.deps.Twitch.Live(r.Context())
	if err != nil {
		h.twitchUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "live": live, "channel": h.deps.Twitch.Login})
}

// HandleTwitchFollowers returns the follower count.
func (h *Handlers) HandleTwitchFollowers(w http.ResponseWriter, r *http.Request) {
	if h.deps.Twitch == nil {
		h.twitchUnavailable(w, r, nil)
		return
	}
	n, err := h.deps.Twitch.Followers(r.Context())
	if err != nil {
		h.twitchUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "followerCount": n})
}

// HandleTwitchClips returns recent clips; ?first= picks how many (1-100, default 12).
func (h *Handlers) HandleTwitchClips(w http.ResponseWriter, r *http.Request) {
	if h.deps.Twitch == nil {
		h.twitchUnavailable(w, r, nil)
		return
	}
	first, _ := strconv.Atoi(r.URL.Query().Get("first"))
	clips, err := h.deps.Twitch.Clips(r.Context(), first)
	if err != nil {
		h.twitchUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "clips": clips})
}

// HandleTwitchSchedule returns the channel's upcoming Twitch schedule segments.
func (h *Handlers) HandleTwitchSchedule(w http.ResponseWriter, r *http.Request) {
	if h.deps.Twitch == nil {
		h.twitchUnavailable(w, r, nil)
		return
	}
	sched, err := h.deps.Twitch.Schedule(r.Context())
	if err != nil {
		h.twitchUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "segments": sched.Segments, "vacation": sched.Vacation})
}
