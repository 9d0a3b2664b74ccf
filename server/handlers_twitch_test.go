package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingwithjoel/fwj-api/testutil"
	"github.com/flyingwithjoel/fwj-api/twitchapi"
)

func withTwitch(t *testing.T, env *testEnv) *testutil.MockTwitchServer {
	t.Helper()
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("app-token", 3600)
	mock.MockUserResponse("12345", "flyingwithjoel")
	env.deps.Twitch = &twitchapi.Channel{
		Helix: &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: "cid", ClientSecret: "secret", TokenURL: mock.URL + "/oauth2/token"},
			ClientID:       "cid",
			BaseURL:        mock.URL + "/helix",
		},
		Login: "flyingwithjoel",
		KV:    env.kv,
	}
	env.handler = NewMux(context.Background(), env.deps)
	return mock
}

func TestTwitchNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/twitch/live", "/api/twitch/followers", "/api/twitch/clips"} {
		rr := env.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		body := decodeBody(t, rr)
		assert.Equal(t, false, body["ok"], path)
		assert.Equal(t, "Twitch integration not configured.", body["error"])
	}
}

func TestTwitchLive(t *testing.T) {
	env := newTestEnv(t)
	mock := withTwitch(t, env)
	mock.MockStreamsResponse([]map[string]any{{"type": "live"}})

	rr := env.do(http.MethodGet, "/api/twitch/live", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["live"])

	// served from the 20s cache even if Helix changes its answer
	mock.MockStreamsResponse([]map[string]any{})
	rr = env.do(http.MethodGet, "/api/twitch/live", "")
	assert.Equal(t, true, decodeBody(t, rr)["live"])
}

func TestTwitchUpstreamErrorIsOKFalse(t *testing.T) {
	env := newTestEnv(t)
	withTwitch(t, env) // no /helix/streams handler: 404 upstream

	rr := env.do(http.MethodGet, "/api/twitch/live", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Twitch lookup failed.", body["error"])
}

func TestTwitchFollowersAndClips(t *testing.T) {
	env := newTestEnv(t)
	mock := withTwitch(t, env)
	mock.MockFollowersResponse(987)
	mock.MockClipsResponse([]map[string]any{{"id": "c1", "title": "Crosswind landing", "view_count": 5}})

	rr := env.do(http.MethodGet, "/api/twitch/followers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 987, decodeBody(t, rr)["followerCount"])

	rr = env.do(http.MethodGet, "/api/twitch/clips?first=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	clips, ok := body["clips"].([]any)
	require.True(t, ok)
	require.Len(t, clips, 1)
	assert.Equal(t, "Crosswind landing", clips[0].(map[string]any)["title"])
}

func TestTwitchSchedule(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/api/twitch/schedule", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["ok"])

	mock := withTwitch(t, env)
	mock.MockScheduleResponse([]map[string]any{{"id": "s1", "start_time": "2026-01-24T19:00:00Z", "title": "EGLL-KJFK"}})

	rr = env.do(http.MethodGet, "/api/twitch/schedule", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ok"])
	segments, ok := body["segments"].([]any)
	require.True(t, ok)
	require.Len(t, segments, 1)
	assert.Equal(t, "EGLL-KJFK", segments[0].(map[string]any)["title"])
}
