package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyResult may be returned by a Capability that got a response without
	// usable text. It ends in the same state as an empty string result.
	ErrEmptyResult = errors.New("no text returned")

	ErrSuperseded = errors.New("recognition superseded by a newer submission or reset")
	ErrClosed     = errors.New("recognition coordinator is closed")
)

const (
	NoTextMessage       = "No text returned from the model."
	UnknownErrorMessage = "An unknown error occurred."
)

// failureState converts a capability error into the published Error state.
func failureState(err error, timeout time.Duration) Error {
	switch {
	case errors.Is(err, ErrEmptyResult):
		return Error{Message: NoTextMessage, Reason: EmptyResult}
	case errors.Is(err, context.DeadlineExceeded) && timeout > 0:
		return Error{Message: fmt.Sprintf("Recognition timed out after %s.", timeout), Reason: CapabilityFailure}
	}
	msg := err.Error()
	if msg == "" {
		msg = UnknownErrorMessage
	}
	return Error{Message: msg, Reason: CapabilityFailure}
}
