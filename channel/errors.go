package channel

import "github.com/pkg/errors"

var (
	// ErrExhausted means the session table has no free slot. The
	// physical link is rejected or dropped; the process carries on.
	ErrExhausted = errors.New("session table exhausted")

	// ErrRegistryFull means no client slot is available.
	ErrRegistryFull = errors.New("client registry full")

	errInvalidInitialState = errors.New("session allocated in closed state")
)
