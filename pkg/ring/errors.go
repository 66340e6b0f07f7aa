package ring

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrWouldBlock is returned by a NonBlocking call that cannot proceed
	// without waiting. The call may be retried later.
	ErrWouldBlock = errors.New("ring: would block")

	// ErrInterrupted is returned when a wait was cancelled through its
	// context before the condition held. The call changed nothing and may be
	// restarted.
	ErrInterrupted = errors.New("ring: interrupted")

	// ErrFault is returned when copying to or from the caller-supplied
	// reader or writer failed. Cursors and occupancy are left unchanged.
	ErrFault = errors.New("ring: fault")

	// ErrClosed is returned by any call on a channel that has been torn down.
	ErrClosed = errors.New("ring: channel closed")
)

// interrupted wraps the context error so callers can match either
// ErrInterrupted or context.Canceled / context.DeadlineExceeded.
func interrupted(op string, cause error) error {
	return fmt.Errorf("ring: %s: %w: %w", op, ErrInterrupted, cause)
}

func fault(op string, cause error) error {
	return fmt.Errorf("ring: %s: %w: %w", op, ErrFault, cause)
}
