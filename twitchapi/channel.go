package twitchapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/telemetry"
)

const (
	liveCacheTTL     = 20 * time.Second
	scheduleCacheTTL = 5 * time.Minute
	userIDCacheTTL   = 24 * time.Hour
)

// Channel answers questions about one Twitch channel. Live status and the resolved
// user id are cached in the kv store when one is configured.
type Channel struct {
	Helix *HelixClient
	Login string
	KV    kvstore.Store
}

func (c *Channel) cached(ctx context.Context, key string) (string, bool) {
	if c.KV == nil {
		return "", false
	}
	v, found, err := c.KV.Get(ctx, key)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("twitch cache read failed", slog.Any("err", err), slog.String("component", "twitchapi"))
		return "", false
	}
	return v, found
}

func (c *Channel) remember(ctx context.Context, key, value string, ttl time.Duration) {
	if c.KV == nil {
		return
	}
	if err := c.KV.Put(ctx, key, value, ttl); err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("twitch cache write failed", slog.Any("err", err), slog.String("component", "twitchapi"))
	}
}

// Live reports whether the channel is streaming, reusing an answer up to 20s old.
func (c *Channel) Live(ctx context.Context) (bool, error) {
	key := "twitch_live:" + c.Login
	if v, ok := c.cached(ctx, key); ok {
		if live, err := strconv.ParseBool(v); err == nil {
			return live, nil
		}
	}
	live, err := c.Helix.IsLive(ctx, c.Login)
	if err != nil {
		return false, err
	}
	c.remember(ctx, key, strconv.FormatBool(live), liveCacheTTL)
	return live, nil
}

// UserID resolves the channel login to its broadcaster id.
func (c *Channel) UserID(ctx context.Context) (string, error) {
	key := "twitch_user_id:" + c.Login
	if v, ok := c.cached(ctx, key); ok && v != "" {
		return v, nil
	}
	id, err := c.Helix.GetUserID(ctx, c.Login)
	if err != nil {
		return "", err
	}
	c.remember(ctx, key, id, userIDCacheTTL)
	return id, nil
}

// Followers returns the channel's follower count.
func (c *Channel) Followers(ctx context.Context) (int, error) {
	id, err := c.UserID(ctx)
	if err != nil {
		return 0, err
	}
	return c.Helix.FollowerCount(ctx, id)
}

// Clips returns the channel's recent clips.
func (c *Channel) Clips(ctx context.Context, first int) ([]Clip, error) {
	id, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return c.Helix.ListClips(ctx, id, first)
}

// Schedule returns the channel's upcoming Twitch schedule, reusing an answer up to
// five minutes old.
func (c *Channel) Schedule(ctx context.Context) (Schedule, error) {
	key := "twitch_schedule:" + c.Login
	if v, ok := c.cached(ctx, key); ok {
		var sched Schedule
		if err := json.Unmarshal([]byte(v), &sched); err == nil {
			return sched, nil
		}
	}
	id, err := c.UserID(ctx)
	if err != nil {
		return Schedule{}, err
	}
	sched, err := c.Helix.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if b, err := json.Marshal(sched); err == nil {
		c.remember(ctx, key, string(b), scheduleCacheTTL)
	}
	return sched, nil
}
