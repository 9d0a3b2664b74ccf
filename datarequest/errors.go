package datarequest

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured means the store or the email sender is missing.
	ErrNotConfigured = errors.New("data requests not configured")
	// ErrDeliveryFailed means the email provider did not accept a message.
	ErrDeliveryFailed = errors.New("email delivery failed")
	// ErrInvalidToken means the confirmation link carried no usable token.
	ErrInvalidToken = errors.New("invalid confirmation token")
	// ErrNotFound means the token is unknown or its request has expired.
	ErrNotFound = errors.New("data request not found or expired")
)

// ValidationError is a user-fixable problem with one submitted field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RateLimitedError carries how long the caller should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}
