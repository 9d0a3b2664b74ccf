package server

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/flyingwithjoel/fwj-api/datarequest"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

type dataRequestBody struct {
	Email  string `json:"email"`
	Action string `json:"action"`
}

// HandleDataRequestSubmit starts an access or deletion request and emails a
// confirmation link.
func (h *Handlers) HandleDataRequestSubmit(w http.ResponseWriter, r *http.Request) {
	var body dataRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	err := h.deps.DataRequest.Submit(r.Context(), h.callerIdentity(r), body.Email, body.Action)
	if err != nil {
		var verr *datarequest.ValidationError
		var rl *datarequest.RateLimitedError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Message)
		case errors.As(err, &rl):
			writeRetryAfter(w, "Too many requests. Please wait before trying again.", rl.RetryAfter)
		case errors.Is(err, datarequest.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "Server not configured.")
		case errors.Is(err, datarequest.ErrDeliveryFailed):
			writeError(w, http.StatusInternalServerError, "We could not send the confirmation email. Please try again later.")
		default:
			telemetry.LoggerWithCorr(r.Context()).Error("data request submit failed", slog.Any("err", err), slog.String("component", "http"))
			writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Check your inbox for a confirmation link. It expires in 24 hours.",
	})
}

var confirmPage = template.Must(template.New("confirm").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>{{.Title}} | Flying With Joel</title>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
<p><a href="{{.SiteURL}}">Back to Flying With Joel</a></p>
</main>
</body>
</html>
`))

type confirmView struct {
	Title   string
	Body    string
	SiteURL string
}

func (h *Handlers) renderConfirm(w http.ResponseWriter, r *http.Request, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	if err := confirmPage.Execute(w, confirmView{Title: title, Body: body, SiteURL: h.deps.Config.PublicSiteURL}); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("confirm page render failed", slog.Any("err", err), slog.String("component", "http"))
	}
}

// HandleDataRequestConfirm is the browser-facing link from the confirmation email.
func (h *Handlers) HandleDataRequestConfirm(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.deps.DataRequest.Confirm(r.Context(), r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, datarequest.ErrInvalidToken):
		h.renderConfirm(w, r, http.StatusBadRequest, "Invalid link", "This confirmation link is not valid. Please check you copied the whole link from the email.")
	case errors.Is(err, datarequest.ErrNotFound):
		h.renderConfirm(w, r, http.StatusNotFound, "Link expired", "This confirmation link has expired or was not recognised. Please submit a new request.")
	case errors.Is(err, datarequest.ErrDeliveryFailed):
		h.renderConfirm(w, r, http.StatusInternalServerError, "Something went wrong", "We could not email you the result just now. Please try the link again later.")
	case err != nil:
		if !errors.Is(err, datarequest.ErrNotConfigured) {
			telemetry.LoggerWithCorr(r.Context()).Error("data request confirm failed", slog.Any("err", err), slog.String("component", "http"))
		}
		h.renderConfirm(w, r, http.StatusInternalServerError, "Something went wrong", "We could not process your request just now. Please try again later.")
	case outcome == datarequest.OutcomeAlreadyProcessed:
		h.renderConfirm(w, r, http.StatusOK, "Already processed", "This request has already been processed. Check your inbox for the result.")
	default:
		h.renderConfirm(w, r, http.StatusOK, "Request confirmed", "Thanks, your request is confirmed. We have emailed you the result.")
	}
}
