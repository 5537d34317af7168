package adapter

import (
	"fmt"
	"net/http"
)

// StatusError is a non-2xx HTTP answer from the LLM provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status is throttling (429) or a server error (5xx).
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || (e.Code >= 500 && e.Code <= 599)
}

// NetworkError is a transport-level failure (connection error, per-attempt timeout).
type NetworkError struct {
	Provider string
	Attempt  int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed (attempt %d): %v", e.Provider, e.Attempt, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
