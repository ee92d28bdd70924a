package errors

import (
	"errors"
	"fmt"
)

// Sentinels for domain errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("service unavailable")

	// ErrNoContext reports that no front-end context is attached to the device.
	ErrNoContext = errors.New("no front-end context attached")
	// ErrActionFailed reports that the platform could not perform the privileged action.
	ErrActionFailed = errors.New("action failed")
	// ErrNotSupported is an ErrActionFailed raised before the action is attempted:
	// the device cannot perform it at all.
	ErrNotSupported = fmt.Errorf("%w: device cannot place calls", ErrActionFailed)
	// ErrOverwritten resolves a pending request replaced by a newer one.
	ErrOverwritten = errors.New("pending request overwritten")
	// ErrDetached resolves a pending request whose front-end context went away.
	ErrDetached = fmt.Errorf("%w: context detached while awaiting permission", ErrNoContext)
	// ErrNotImplemented marks an unknown bridge method.
	ErrNotImplemented = errors.New("not implemented")
)
