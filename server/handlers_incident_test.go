package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingwithjoel/fwj-api/notify"
)

func TestIncidentNoticeDefault(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/api/incident-notice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["enabled"])
	assert.Nil(t, body["title"])
	assert.Nil(t, body["message"])
	assert.Nil(t, body["updatedAtUtc"])
	_, hasOK := body["ok"]
	assert.False(t, hasOK)
}

func TestIncidentNoticePutRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPut, "/api/incident-notice", `{"enabled":true,"title":"Down","message":"Investigating"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
}

func TestIncidentNoticeEnabledRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPut, "/api/incident-notice", `{"enabled":true,"title":"","message":"x"}`, withAdmin)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "title")
}

func TestIncidentNoticeTooLong(t *testing.T) {
	env := newTestEnv(t)
	body := `{"enabled":false,"title":"` + strings.Repeat("a", 81) + `","message":""}`
	rr := env.do(http.MethodPut, "/api/incident-notice", body, withAdmin)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "title must be 0-80 characters.", decodeBody(t, rr)["error"])
}

func TestIncidentNoticeInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPut, "/api/incident-notice", `{"enabled":`, withAdmin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIncidentNoticeRoundTripAndNotify(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPut, "/api/incident-notice", `{"enabled":true,"title":" Stream <b>offline</b> ","message":"Back soon."}`, withAdmin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	put := decodeBody(t, rr)
	assert.Equal(t, true, put["ok"])
	assert.Equal(t, "Stream offline", put["title"])
	assert.NotNil(t, put["updatedAtUtc"])

	rr = env.do(http.MethodGet, "/api/incident-notice", "")
	got := decodeBody(t, rr)
	assert.Equal(t, true, got["enabled"])
	assert.Equal(t, "Stream offline", got["title"])
	assert.Equal(t, "Back soon.", got["message"])

	env.dispatcher.Wait()
	payloads := env.webhook.Payloads()
	require.Len(t, payloads, 1)
	msg, ok := payloads[0].(notify.DiscordMessage)
	require.True(t, ok)
	require.Len(t, msg.Embeds, 1)
	assert.Contains(t, msg.Embeds[0].Title, "enabled")
	require.Len(t, env.mailer.Sent(), 1)
	assert.Equal(t, "ops@example.com", env.mailer.Sent()[0].To)

	// same content again is a noop and sends nothing new
	rr = env.do(http.MethodPut, "/api/incident-notice", `{"enabled":true,"title":"Stream offline","message":"Back soon."}`, withAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	env.dispatcher.Wait()
	assert.Len(t, env.webhook.Payloads(), 1)
}

func TestIncidentNoticeWebhookFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	env.webhook.Err = assert.AnError
	env.mailer.SetErr(assert.AnError)
	rr := env.do(http.MethodPut, "/api/incident-notice", `{"enabled":true,"title":"Down","message":"Investigating"}`, withAdmin)
	assert.Equal(t, http.StatusOK, rr.Code)
	env.dispatcher.Wait()
}
