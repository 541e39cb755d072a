package domain

import (
	"errors"
	"fmt"
)

// ErrConflict marks a write that lost the compare-and-swap on the remote
// updated_at timestamp. Callers drop the write; it is not a failure.
var ErrConflict = errors.New("stale write: stored conversation is newer")

// ConfigurationError reports an unknown account or missing credentials.
// It is fatal at startup and never retried.
type ConfigurationError struct {
	Account string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Account == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration for account %q: %s", e.Account, e.Reason)
}

// AuthenticationError is a 401/403 from the remote platform. Sync for the
// account is suspended until the credentials are fixed.
type AuthenticationError struct {
	Account    string
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("remote rejected credentials for account %s (status %d)", e.Account, e.StatusCode)
}

// TransientError wraps timeouts, 429 and 5xx responses once the retry budget
// is spent. The unit of work (page or conversation) is skipped.
type TransientError struct {
	Account    string
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	msg := fmt.Sprintf("%s for account %s failed", e.Op, e.Account)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError is a webhook body or page entry missing required
// fields. The record is skipped and kept for manual inspection.
type MalformedPayloadError struct {
	Source string
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s payload: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("malformed %s payload: %s: %s", e.Source, e.Field, e.Reason)
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		cfgErr       *ConfigurationError
		authErr      *AuthenticationError
		malformedErr *MalformedPayloadError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &authErr), errors.As(err, &malformedErr):
		return false
	case errors.Is(err, ErrConflict):
		return false
	}
	return true
}

// IsMalformed reports whether err is a MalformedPayloadError.
func IsMalformed(err error) bool {
	var malformedErr *MalformedPayloadError
	return errors.As(err, &malformedErr)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
