// Package notify delivers outbound email and webhook messages and runs best-effort
// deliveries in the background.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flyingwithjoel/fwj-api/config"
)

// Email is a plain-text message.
type Email struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends a single email. A nil error means the provider accepted it.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// HTTPMailer talks to a transactional email API that accepts
// {"from","to","subject","text"} with a bearer key (Resend-compatible).
type HTTPMailer struct {
	URL        string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

// NewHTTPMailer returns nil when email is not configured so callers can treat the
// Mailer as absent.
func NewHTTPMailer(cfg *config.Config) *HTTPMailer {
	if !cfg.EmailConfigured() {
		return nil
	}
	return &HTTPMailer{
		URL:        cfg.EmailAPIURL,
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *HTTPMailer) client() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func (m *HTTPMailer) Send(ctx context.Context, e Email) error {
	body, err := json.Marshal(map[string]any{
		"from":    m.From,
		"to":      []string{e.To},
		"subject": e.Subject,
		"text":    e.Text,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	resp, err := m.client().Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email provider returned %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	return nil
}
