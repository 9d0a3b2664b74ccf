package suggestions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Turnstile verifies Cloudflare Turnstile tokens. A nil *Turnstile skips verification.
type Turnstile struct {
	Secret     string
	URL        string
	HTTPClient *http.Client
}

// NewTurnstile returns nil when no secret is configured.
func NewTurnstile(secret string) *Turnstile {
	if secret == "" {
		return nil
	}
	return &Turnstile{Secret: secret, URL: siteverifyURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// Verify checks token for remoteIP. Rejections are returned as *ValidationError so
// the caller answers 400.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	if t == nil {
		return nil
	}
	if token == "" {
		return &ValidationError{Field: "turnstileToken", Message: "Missing Turnstile token."}
	}
	form := url.Values{}
	form.Set("secret", t.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hc := t.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return &ValidationError{Field: "turnstileToken", Message: "Turnstile verification failed.", cause: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &ValidationError{Field: "turnstileToken", Message: "Turnstile verification failed.", cause: fmt.Errorf("siteverify returned %s", resp.Status)}
	}
	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &ValidationError{Field: "turnstileToken", Message: "Turnstile verification failed.", cause: err}
	}
	if !body.Success {
		return &ValidationError{Field: "turnstileToken", Message: "Turnstile verification rejected.", cause: fmt.Errorf("error codes %v", body.ErrorCodes)}
	}
	return nil
}
