package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTask is returned when a mutation names a task the store does
	// not hold.
	ErrUnknownTask = errors.New("unknown task")
	// ErrUnknownSection is returned when a mutation names a section the
	// store does not hold.
	ErrUnknownSection = errors.New("unknown section")
	// ErrPending is returned for mutations of a record whose creation has
	// not been confirmed yet.
	ErrPending = errors.New("record is still being created")
)

// MutationError reports a remote write that was rejected. By the time it is
// returned the optimistic change has been rolled back.
type MutationError struct {
	Op  string
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
