// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for channel live status, follower count, recent clips and the stream schedule,
// using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/flyingwithjoel/fwj-api/telemetry"
)

const defaultBaseURL = "https://api.twitch.tv/helix"

// HelixClient provides the handful of Helix calls the site needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return strings.TrimRight(hc.BaseURL, "/")
	}
	return defaultBaseURL
}

// StatusError is a non-200 Helix response.
type StatusError struct {
	Endpoint   string
	Status     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helix %s: %s: %s", e.Endpoint, e.Status, e.Body)
}

// get performs an authenticated GET on endpoint and decodes the JSON body into out.
func (hc *HelixClient) get(ctx context.Context, endpoint string, q url.Values, out any) (err error) {
	defer func() { telemetry.Inc(telemetry.TwitchRequests, strings.TrimPrefix(endpoint, "/"), telemetry.Result(err)) }()
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, Status: resp.Status, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/users", url.Values{"login": {login}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// IsLive reports whether login currently has a live stream.
func (hc *HelixClient) IsLive(ctx context.Context, login string) (bool, error) {
	if login == "" {
		return false, fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/streams", url.Values{"user_login": {login}}, &body); err != nil {
		return false, err
	}
	return len(body.Data) > 0 && body.Data[0].Type == "live", nil
}

// FollowerCount returns the channel's total follower count.
func (hc *HelixClient) FollowerCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID empty")
	}
	var body struct {
		Total int `json:"total"`
	}
	if err := hc.get(ctx, "/channels/followers", url.Values{"broadcaster_id": {userID}, "first": {"1"}}, &body); err != nil {
		return 0, err
	}
	return body.Total, nil
}

// Clip is the subset of Helix clip fields the site renders.
type Clip struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	EmbedURL     string  `json:"embed_url"`
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnail_url"`
	ViewCount    int     `json:"view_count"`
	CreatedAt    string  `json:"created_at"`
	Duration     float64 `json:"duration"`
}

// ListClips returns up to first recent clips for userID (default 12, max 100).
func (hc *HelixClient) ListClips(ctx context.Context, userID string, first int) ([]Clip, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	if first <= 0 {
		first = 12
	}
	if first > 100 {
		first = 100
	}
	var body struct {
		Data []Clip `json:"data"`
	}
	if err := hc.get(ctx, "/clips", url.Values{"broadcaster_id": {userID}, "first": {strconv.Itoa(first)}}, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return []Clip{}, nil
	}
	return body.Data, nil
}

// ScheduleCategory is the game or category a segment is planned under.
type ScheduleCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScheduleSegment is one planned broadcast.
type ScheduleSegment struct {
	ID            string            `json:"id"`
	StartTime     string            `json:"start_time"`
	EndTime       *string           `json:"end_time"`
	Title         string            `json:"title"`
	CanceledUntil *string           `json:"canceled_until"`
	Category      *ScheduleCategory `json:"category"`
	IsRecurring   bool              `json:"is_recurring"`
}

// ScheduleVacation is the broadcaster's announced break, if any.
type ScheduleVacation struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Schedule is the channel's upcoming Twitch schedule.
type Schedule struct {
	Segments []ScheduleSegment `json:"segments"`
	Vacation *ScheduleVacation `json:"vacation"`
}

// GetSchedule returns up to 25 upcoming segments for userID. Helix answers 404 for a
// channel without a schedule; that is reported as an empty schedule.
func (hc *HelixClient) GetSchedule(ctx context.Context, userID string) (Schedule, error) {
	if userID == "" {
		return Schedule{}, fmt.Errorf("userID empty")
	}
	var body struct {
		Data Schedule `json:"data"`
	}
	err := hc.get(ctx, "/schedule", url.Values{"broadcaster_id": {userID}, "first": {"25"}}, &body)
	var serr *StatusError
	if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
		return Schedule{Segments: []ScheduleSegment{}}, nil
	}
	if err != nil {
		return Schedule{}, err
	}
	if body.Data.Segments == nil {
		body.Data.Segments = []ScheduleSegment{}
	}
	return body.Data, nil
}
