package domain

import "errors"

var (
	// ErrToolNotFound means the external binary is missing from the
	// configured path. Environment misconfiguration, never retried.
	ErrToolNotFound = errors.New("external tool not found")

	// ErrSpawnFailed means the process could not be started at all.
	ErrSpawnFailed = errors.New("failed to spawn external tool")

	// ErrInvalidMetadata means the tool's structured metadata output could
	// not be decoded.
	ErrInvalidMetadata = errors.New("invalid metadata output")

	// ErrTaskNotFound is returned for operations on unknown task IDs where
	// the operation is not defined as a silent no-op.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEngineClosed is returned for submissions after shutdown began.
	ErrEngineClosed = errors.New("engine is shut down")
)

// CancelledMessage is the terminal failure message for user-initiated stops.
// A signalled subprocess exit is always mapped here, never to a tool error.
const CancelledMessage = "cancelled"
