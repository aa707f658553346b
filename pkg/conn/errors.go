package conn

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Send on a closed or never-opened connection.
var ErrClosed = errors.New("connection closed")

// ConnectError is returned when the handshake fails or is not confirmed
// within the handshake timeout.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
