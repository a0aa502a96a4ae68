// Package resilience classifies fetch failures and retries the transient
// ones. NRK, Wikidata and Sceneweb clients share it.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout). RetryAfter is the server's requested pause, if it sent one.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error chain holds a TransientError or a
// network failure worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// CheckStatus maps a non-2xx response status to the error taxonomy used by
// the passes: 404 and 410 wrap model.ErrNotFound, transient statuses become
// a TransientError, anything else is permanent.
func CheckStatus(service, what string, statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return eris.Wrapf(model.ErrNotFound, "%s: %s", service, what)
	case IsTransientHTTPStatus(statusCode):
		return NewTransientError(fmt.Errorf("%s: %s: status %d", service, what, statusCode), statusCode)
	default:
		return eris.Errorf("%s: %s: status %d", service, what, statusCode)
	}
}
