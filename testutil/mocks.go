package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUserResponse adds a handler for /helix/users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []map[string]string{{"id": userID, "login": login}}})
	}
}

// MockStreamsResponse adds a handler for /helix/streams endpoint. An empty slice
// means the channel is offline.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": streams})
	}
}

// MockFollowersResponse adds a handler for /helix/channels/followers
func (m *MockTwitchServer) MockFollowersResponse(total int) {
	m.Handlers["/helix/channels/followers"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total": total, "data": []any{}})
	}
}

// MockClipsResponse adds a handler for /helix/clips
func (m *MockTwitchServer) MockClipsResponse(clips []map[string]any) {
	m.Handlers["/helix/clips"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": clips, "pagination": map[string]string{}})
	}
}

// MockScheduleResponse adds a handler for /helix/schedule
func (m *MockTwitchServer) MockScheduleResponse(segments []map[string]any) {
	m.Handlers["/helix/schedule"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": map[string]any{
				"segments":         segments,
				"broadcaster_id":   r.URL.Query().Get("broadcaster_id"),
				"broadcaster_name": "FlyingWithJoel",
				"vacation":         nil,
			},
			"pagination": map[string]string{},
		})
	}
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": accessToken, "expires_in": expiresIn, "token_type": "bearer"})
	}
}
