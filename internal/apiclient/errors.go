package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is wrapped by the TransportError returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// TransportError is any failed backend call: a non-2xx status, a network failure
// (StatusCode 0) or an undecodable body.
type TransportError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s %s: status %d: %v", e.Op, e.Method, e.URL, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: %s %s: API error: %d", e.Op, e.Method, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: %s %s: request failed", e.Op, e.Method, e.URL)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry might succeed: network failures, 5xx and 429.
func (e *TransportError) Temporary() bool {
	if errors.Is(e.Err, ErrCircuitOpen) {
		return false
	}
	if e.StatusCode == 0 {
		return e.Err != nil && !isDecodeError(e.Err)
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsRetryable is the retry predicate used by WithRetry.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

// decodeError marks a body that could not be parsed as JSON.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

// Message turns err into text suitable for showing to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch {
		case errors.Is(te.Err, ErrCircuitOpen):
			return "サーバーが一時的に利用できません"
		case te.StatusCode > 0:
			return fmt.Sprintf("API error: %d", te.StatusCode)
		default:
			return "サーバーに接続できませんでした"
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "不明なエラーが発生しました"
}
