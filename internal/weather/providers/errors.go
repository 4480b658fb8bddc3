package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a vendor failure.
type Kind int

const (
	// KindInvalidRequest covers malformed input and vendor HTTP 400.
	KindInvalidRequest Kind = iota + 1
	// KindAuthFailure covers vendor HTTP 401 and a missing API key.
	KindAuthFailure
	// KindNotFound covers vendor HTTP 404 and an empty geocoding result set.
	KindNotFound
	// KindRateLimitedOrServerError covers vendor HTTP 429 and 5xx.
	KindRateLimitedOrServerError
	// KindMalformedResponse covers a 2xx whose payload cannot be parsed or lacks required blocks.
	KindMalformedResponse
	// KindTimeout covers an attempt exceeding the HTTP client timeout.
	KindTimeout
	// KindUnexpectedResponse covers any other non-success status.
	KindUnexpectedResponse
	// KindTransport covers connection, DNS and other transport failures.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthFailure:
		return "auth_failure"
	case KindNotFound:
		return "not_found"
	case KindRateLimitedOrServerError:
		return "rate_limited_or_server_error"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTimeout:
		return "timeout"
	case KindUnexpectedResponse:
		return "unexpected_response"
	case KindTransport:
		return "transport"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether failures of this kind are transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimitedOrServerError, KindTimeout, KindTransport:
		return true
	case KindInvalidRequest, KindAuthFailure, KindNotFound, KindMalformedResponse, KindUnexpectedResponse:
		return false
	}
	return false
}

// Error is the failure returned by the vendor integration layer.
// Caller cancellation is never reported as an Error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the Kind of a provider failure anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a provider failure of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// classifyStatus maps a non-success vendor status onto a provider failure.
// notFound is the message used for 404, since it depends on what was requested.
func classifyStatus(statusCode int, notFound string) *Error {
	switch {
	case statusCode == http.StatusBadRequest:
		return newError(KindInvalidRequest, "bad request sent to OpenWeatherMap", nil)
	case statusCode == http.StatusUnauthorized:
		return newError(KindAuthFailure, "invalid or missing OpenWeatherMap API key", nil)
	case statusCode == http.StatusNotFound:
		return newError(KindNotFound, notFound, nil)
	case statusCode == http.StatusTooManyRequests:
		return newError(KindRateLimitedOrServerError, "rate limit exceeded on OpenWeatherMap API", nil)
	case statusCode >= 500:
		return newError(KindRateLimitedOrServerError, fmt.Sprintf("OpenWeatherMap server error: %d", statusCode), nil)
	default:
		return newError(KindUnexpectedResponse, fmt.Sprintf("unexpected response from OpenWeatherMap: %d", statusCode), nil)
	}
}
