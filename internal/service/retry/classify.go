package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusError attaches an upstream HTTP status to an error.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string   { return e.Err.Error() }
func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) HTTPStatus() int { return e.Status }

var transientMessages = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"econnreset",
	"econnrefused",
	"broken pipe",
	"rate limit",
	"rate exceeded",
	"too many requests",
	"throttl",
	"overloaded",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"gateway timeout",
}

// IsTransient reports whether err looks like a failure that may succeed on
// retry: timeouts, connection resets or refusals, rate limiting, and 5xx
// responses. Everything else is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return isTransientStatus(sc.HTTPStatus())
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return containsTransientStatus(msg)
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}

// containsTransientStatus looks for "status 5NN", "status code 429" or
// "http 503" style text. A bare number elsewhere in the message does not count.
func containsTransientStatus(msg string) bool {
	for _, marker := range []string{"status code ", "status ", "http "} {
		for rest := msg; ; {
			idx := strings.Index(rest, marker)
			if idx < 0 {
				break
			}
			rest = rest[idx+len(marker):]
			if len(rest) < 3 || !isDigit(rest[0]) || !isDigit(rest[1]) || !isDigit(rest[2]) {
				continue
			}
			if len(rest) > 3 && isDigit(rest[3]) {
				continue
			}
			status := int(rest[0]-'0')*100 + int(rest[1]-'0')*10 + int(rest[2]-'0')
			if status == http.StatusTooManyRequests || status >= 500 && status <= 599 {
				return true
			}
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
