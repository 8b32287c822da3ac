package guard

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/apiguard/resilience"
)

// Sentinel errors for guard operations.
var (
	// ErrInvalidEndpoint is returned when an endpoint fails validation.
	ErrInvalidEndpoint = errors.New("guard: invalid endpoint")

	// ErrDuplicateEndpoint is returned when a route is registered twice.
	ErrDuplicateEndpoint = errors.New("guard: duplicate endpoint")

	// ErrClosed is returned when a closed guard is invoked.
	ErrClosed = errors.New("guard: closed")
)

// StatusCoder is implemented by handler errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is a handler error with a status code. Message is shown to the
// client; Err is logged but never exposed.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(status int, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Message: message, Err: err}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCode implements StatusCoder.
func (e *HTTPError) StatusCode() int { return e.Status }

// StatusOf maps a handler error to an HTTP status. Errors implementing
// StatusCoder report their own status; timeouts map to 504, a closed guard
// to 503 and everything else to 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	if errors.Is(err, resilience.ErrTimeout) {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
