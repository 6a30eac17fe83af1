package ai

import (
	"context"
	"errors"
)

// CompletionError is returned for every failure to obtain a completion:
// transport errors, non-2xx provider responses, empty responses, timeouts
// and an open circuit breaker.
type CompletionError struct {
	Provider string
	// StatusCode is the upstream HTTP status, or 0 when no response was received.
	StatusCode int
	Message    string
	Err        error
}

// ErrNotConfigured marks a provider that rejected a call before sending it,
// such as a missing API key.
var ErrNotConfigured = errors.New("provider not configured")

func (e *CompletionError) Error() string {
	if e.Provider == "" {
		return e.Message
	}
	return e.Provider + ": " + e.Message
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Timeout reports whether the completion failed because its deadline expired.
func (e *CompletionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// clientSide reports a 4xx rejection of this particular request. 429 is a
// provider capacity signal and is not client-side.
func (e *CompletionError) clientSide() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429
}
