// Command fwj-api is the backend for the Flying With Joel site.
// It:
//   - Loads configuration and initializes structured logging, metrics and tracing.
//   - Opens the key-value store (memory, Redis or Postgres) that holds all shared state.
//   - Serves the incident banner, data requests, admin-edited content, flight
//     suggestions and Twitch status over HTTP.
//
// Shutdown is graceful on SIGINT/SIGTERM; queued notifications are drained first.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/flyingwithjoel/fwj-api/authguard"
	"github.com/flyingwithjoel/fwj-api/config"
	"github.com/flyingwithjoel/fwj-api/content"
	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/datarequest"
	"github.com/flyingwithjoel/fwj-api/incident"
	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/notify"
	"github.com/flyingwithjoel/fwj-api/ratelimit"
	"github.com/flyingwithjoel/fwj-api/server"
	"github.com/flyingwithjoel/fwj-api/suggestions"
	"github.com/flyingwithjoel/fwj-api/telemetry"
	"github.com/flyingwithjoel/fwj-api/twitchapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdownTracing, err := telemetry.InitTracing("fwj-api", version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := kvstore.Open(ctx, cfg)
	if err != nil {
		slog.Error("kv store open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("failed to close kv store", slog.Any("err", err))
		}
	}()

	hasher := crypto.NewHasher(cfg.IdentityHashSecret)
	if cfg.IdentityHashSecret == "" {
		slog.Warn("IDENTITY_HASH_SECRET not set; identities are hashed with unkeyed SHA-256")
	}
	var sealer *crypto.Sealer
	if cfg.EncryptionKey != "" {
		if sealer, err = crypto.NewSealer(cfg.EncryptionKey); err != nil {
			slog.Error("invalid ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set; pending data-request emails are stored unencrypted")
	}

	dispatcher := notify.NewDispatcher(0)

	incidents := &incident.Store{
		KV:            store,
		Dispatcher:    dispatcher,
		AlertTo:       cfg.AlertEmailTo,
		StatusPageURL: cfg.StatusPageURL,
	}
	dataRequests := &datarequest.Workflow{
		KV:         store,
		Limiter:    ratelimit.New(store, "data_requests", hasher),
		Cooldown:   cfg.DataRequestCooldown,
		Sealer:     sealer,
		Hasher:     hasher,
		ConfirmURL: cfg.PublicAPIURL + "/api/data-requests/confirm",
	}
	// only assign non-nil pointers so the interface fields stay nil when unconfigured
	if m := notify.NewHTTPMailer(cfg); m != nil {
		incidents.Mailer = m
		dataRequests.Mailer = m
	} else {
		slog.Warn("email not configured; data requests are unavailable and incident alerts are webhook-only")
	}
	if hook := notify.NewWebhook(cfg.IncidentWebhookURL); hook != nil {
		incidents.Webhook = hook
	}

	forwarder := &suggestions.Forwarder{
		Limiter:   ratelimit.New(store, "suggestions", hasher),
		Cooldown:  cfg.SuggestionsCooldown,
		Turnstile: suggestions.NewTurnstile(cfg.TurnstileSecretKey),
	}
	if hook := notify.NewWebhook(cfg.DiscordWebhookURL); hook != nil {
		forwarder.Webhook = hook
	}

	var channel *twitchapi.Channel
	if cfg.TwitchConfigured() {
		channel = &twitchapi.Channel{
			Helix: &twitchapi.HelixClient{
				AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
				ClientID:       cfg.TwitchClientID,
			},
			Login: cfg.TwitchChannelLogin,
			KV:    store,
		}
	} else {
		slog.Info("twitch integration disabled (missing TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET)")
	}

	deps := server.Deps{
		Config:      cfg,
		KV:          store,
		Guard:       authguard.New(store, cfg, hasher),
		Incident:    incidents,
		DataRequest: dataRequests,
		Content:     &content.Store{KV: store},
		Suggestions: forwarder,
		Twitch:      channel,
	}

	if err := server.Start(ctx, cfg.HTTPAddr, deps); err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
	}

	slog.Info("shutting down; draining notifications")
	dispatcher.Wait()
}
