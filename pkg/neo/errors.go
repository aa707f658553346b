package neo

import "errors"

// ErrMalformedFrame is returned by Decode when an inbound message is not
// valid JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// unknownErrorDetail is used when an error frame carries no detail text.
const unknownErrorDetail = "Unknown error"

// ProtocolError is an explicit rejection reported by the remote service
// through a neo_error frame.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return "neo error: " + unknownErrorDetail
	}

	return "neo error: " + e.Detail
}
