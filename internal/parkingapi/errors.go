package parkingapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidURL is returned when the base URL or a request path cannot be
// turned into a valid request URL.
var ErrInvalidURL = errors.New("invalid URL")

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status  int
	Payload *ErrorPayload // nil when the body was not a JSON error payload
	RawBody string
}

// Error formats as "HTTP <status>: <detail>" where detail is the payload
// message, else the payload error, else the raw body.
func (e *HTTPError) Error() string {
	if d := e.detail(); d != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, d)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

func (e *HTTPError) detail() string {
	if e.Payload != nil {
		if e.Payload.Message != "" {
			return e.Payload.Message
		}
		if e.Payload.Error != "" {
			return e.Payload.Error
		}
	}
	return e.RawBody
}

// DecodeError is a 2xx response whose body did not match the expected shape.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return "decode failed. raw: " + e.Raw
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure: no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsVehicleNotFound reports whether err is a backend response saying the
// plate is not registered. Backends signal this with 404 or 500 and various
// wordings, so the check looks at the text, not the status.
func IsVehicleNotFound(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return strings.Contains(strings.ToLower(he.detail()), "not found")
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

// IsConflict reports whether err means the request contradicts the current
// parking state: the vehicle is already inside, or has no open session to
// close.
func IsConflict(err error) bool {
	if IsStatus(err, http.StatusConflict) {
		return true
	}
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	msg := strings.ToLower(he.detail())
	return strings.Contains(msg, "already checked in") ||
		(strings.Contains(msg, "open session") && strings.Contains(msg, "already")) ||
		strings.Contains(msg, "no open session")
}

// FriendlyMessage turns err into a sentence an operator can act on.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()
	msg := strings.ToLower(raw)

	switch {
	case strings.Contains(msg, "already checked in"),
		strings.Contains(msg, "open session") && strings.Contains(msg, "already"):
		return "Vehicle is already in the lot (open session exists)."
	case strings.Contains(msg, "no open session"):
		return "No open session for this vehicle; nothing to check out."
	case strings.HasPrefix(msg, "http 409"):
		if s := strings.TrimSpace(strings.Replace(raw, "HTTP 409:", "", 1)); s != "" {
			return s
		}
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return "Cannot reach the parking server: " + ne.Err.Error()
	}
	return raw
}
