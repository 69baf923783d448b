package core

import "errors"

// Driver error taxonomy. Callers branch on these with errors.Is; the
// driver never wraps platform errors into them.
var (
	// ErrTimeout means a blocking byte step outlived its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrProtocol covers bus-level faults: NACK, arbitration lost,
	// clock timeout.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidParam is a caller mistake: unknown port, bad address,
	// zero-length buffer where one is required.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrUnknown is a failure with no more specific cause, such as an
	// unrecoverable bus or an unavailable raw-mode token.
	ErrUnknown = errors.New("unknown error")
)
