package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for any 401. The client has already cleared
// the local session by the time a caller sees it.
var ErrUnauthorized = errors.New("session rejected by backend")

// BusinessError is a well-formed backend refusal: the transport succeeded
// but the request was denied with a human-readable message.
type BusinessError struct {
	Status int
	Msg    string
}

func (e *BusinessError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("backend refused request (HTTP %d)", e.Status)
}

// TransportError wraps network-level failures so callers can distinguish
// "retry quietly" from "tell the user".
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsBusiness reports whether err is a backend refusal and extracts its
// message.
func IsBusiness(err error) (string, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Error(), true
	}
	return "", false
}

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
