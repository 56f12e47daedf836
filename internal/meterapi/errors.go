package meterapi

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError reports a network or HTTP failure on a single request.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meterapi: request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("meterapi: request %s: http %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports a failed credential exchange or a rejected session.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("meterapi: authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("meterapi: authentication failed: http %d", e.StatusCode)
}

// ErrMissingField reports a required field absent from a remote response.
var ErrMissingField = errors.New("meterapi: required field missing from response")

// IsServiceUnavailable reports whether err is a structured 503 from the
// remote side. Callers use it to pick a backoff policy instead of matching
// on error text.
func IsServiceUnavailable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusServiceUnavailable
}
