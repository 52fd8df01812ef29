package resolve

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when a referenced entity does not exist.
var ErrNotFound = errors.New("resolve: not found")

// NotFound wraps ErrNotFound with the URL that could not be resolved.
func NotFound(url string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, url)
}

// TransportError reports that the backend could not be reached or answered
// with an unexpected status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("resolve: transport: %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("resolve: transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err carries a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
