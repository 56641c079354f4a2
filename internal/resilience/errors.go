package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a backend failure that is safe to retry within the
// same attempt (rate limiting, 5xx, network blips).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err (or anything in its chain) is a
// TransientError or a recognisable network-level hiccup.
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
		"overloaded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientStatus reports whether an HTTP status code from a model API is
// worth retrying. 529 is Anthropic's "overloaded".
func IsTransientStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}

// ClassifyStatus wraps err as transient when statusCode is retryable and
// returns it unchanged otherwise.
func ClassifyStatus(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	if IsTransientStatus(statusCode) {
		return NewTransientError(err, statusCode)
	}
	return err
}
