// Package resilience classifies remote failures and provides retry and
// circuit breaking for calls to the agent and completion providers.
package resilience

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a provider failure that should clear by itself, such
// as a rate limit or an overloaded upstream.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError tags err as transient. statusCode may be 0 for failures
// that never reached HTTP.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// Matched against lowercased messages from clients that flatten their errors
// into strings.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, f := range transientFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a provider response status is
// retryable. 529 is the Anthropic overload status.
func IsTransientHTTPStatus(code int) bool {
	switch {
	case code == 408, code == 425, code == 429:
		return true
	case code == 501, code == 505:
		return false
	case code >= 500 && code <= 599:
		return true
	}
	return false
}

// StatusCode returns the HTTP status of the first TransientError in err's
// chain, or 0.
func StatusCode(err error) int {
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
