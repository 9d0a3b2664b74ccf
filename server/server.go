// Package server exposes the HTTP API used by the site: the incident banner, data
// requests, the schedule and other admin-edited content, flight suggestions and Twitch
// status. CORS is restricted to the configured origins and every request carries a
// correlation ID for consistent logging.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flyingwithjoel/fwj-api/telemetry"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	h := NewHandlers(deps)

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /readyz", h.HandleReadyz)

	// Incident banner
	mux.HandleFunc("GET /api/incident-notice", h.HandleIncidentNoticeGet)
	mux.HandleFunc("PUT /api/incident-notice", h.requireAdmin(deps.Config.IncidentNoticeAdmin, h.HandleIncidentNoticePut))

	// Data requests
	mux.HandleFunc("POST /api/data-requests", h.HandleDataRequestSubmit)
	mux.HandleFunc("GET /api/data-requests/confirm", h.HandleDataRequestConfirm)

	// Admin-edited content
	mux.HandleFunc("GET /api/schedule", h.HandleScheduleGet)
	mux.HandleFunc("PUT /api/schedule", h.requireAdmin(deps.Config.ScheduleAdmin, h.HandleSchedulePut))
	mux.HandleFunc("GET /api/schedule/auth", h.requireAdmin(deps.Config.ScheduleAdmin, h.HandleScheduleAuth))
	mux.HandleFunc("GET /api/site-mode", h.HandleSiteModeGet)
	mux.HandleFunc("PUT /api/site-mode", h.requireAdmin(deps.Config.SiteModeAdmin, h.HandleSiteModePut))
	mux.HandleFunc("GET /api/admin-notes", h.requireAdmin(deps.Config.AdminNotesAdmin, h.HandleAdminNotesGet))
	mux.HandleFunc("PUT /api/admin-notes", h.requireAdmin(deps.Config.AdminNotesAdmin, h.HandleAdminNotesPut))

	mux.HandleFunc("POST /api/suggestions", h.HandleSuggestionSubmit)

	// Twitch
	mux.HandleFunc("GET /api/twitch/live", h.HandleTwitchLive)
	mux.HandleFunc("GET /api/twitch/followers", h.HandleTwitchFollowers)
	mux.HandleFunc("GET /api/twitch/clips", h.HandleTwitchClips)
	mux.HandleFunc("GET /api/twitch/schedule", h.HandleTwitchSchedule)

	if deps.Config.EnablePprof {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}
	slog.InfoContext(ctx, "http routes registered", slog.Bool("pprof", deps.Config.EnablePprof), slog.Int("cors_origins", len(deps.Config.AllowedOrigins)))

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, r.Method+" "+r.URL.Path,
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		r = r.WithContext(ctx)
		next, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
			notRouted(next, rec, r)
		} else {
			mux.ServeHTTP(rec, r)
		}

		span.SetAttributes(attribute.Int("http.status_code", rec.statusCode), attribute.String("http.route", pattern))
		if rec.statusCode >= 500 {
			telemetry.RecordError(span, fmt.Errorf("HTTP %d", rec.statusCode))
		}
		telemetry.ObserveRequest(pattern, time.Since(start))
	})
	return withCORS(handler, deps.Config.AllowedOrigins)
}

// notRouted answers unknown paths and wrong methods with JSON instead of the mux's
// plain-text defaults. fallback is the handler the mux picked for the miss.
func notRouted(fallback http.Handler, w http.ResponseWriter, r *http.Request) {
	probe := &headerProbe{header: http.Header{}}
	fallback.ServeHTTP(probe, r)
	if probe.status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", probe.header.Get("Allow"))
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	if loc := probe.header.Get("Location"); loc != "" && probe.status >= 300 && probe.status < 400 {
		http.Redirect(w, r, loc, probe.status)
		return
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

// headerProbe records what a fallback handler would have sent, discarding the body.
type headerProbe struct {
	header http.Header
	status int
}

func (p *headerProbe) Header() http.Header { return p.header }

func (p *headerProbe) Write(b []byte) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return len(b), nil
}

func (p *headerProbe) WriteHeader(status int) {
	if p.status == 0 {
		p.status = status
	}
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
// It returns only after in-flight requests have finished or the shutdown timeout
// has passed.
func Start(ctx context.Context, addr string, deps Deps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("http server listen failed", slog.String("addr", addr), slog.Any("err", err))
		return err
	}
	slog.Info("http server listening", slog.String("addr", ln.Addr().String()))
	return serve(ctx, srv, ln)
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	// Shutdown goroutine
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	// Serve returns as soon as Shutdown starts; wait for it to drain handlers
	<-shutdownDone
	return nil
}
