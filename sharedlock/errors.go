package sharedlock

import (
	"errors"
	"fmt"
)

var (
	// ErrPoisoned is matched by every *PoisonError.
	ErrPoisoned = errors.New("sharedlock: poisoned")
	// ErrWouldBlock is returned by TryRead and TryWrite when the lock is held.
	ErrWouldBlock = errors.New("sharedlock: would block")
	// ErrInvalidElement is returned for element types that cannot live in shared memory.
	ErrInvalidElement = errors.New("sharedlock: invalid element type")
	// ErrClosed is returned when acquiring a lock after Close.
	ErrClosed = errors.New("sharedlock: closed")
)

// PoisonError is returned with a guard when the lock was poisoned by a
// failed writer. The guard is valid and still held; callers may inspect
// the data and ClearPoison, or Unlock and give up.
type PoisonError[G any] struct {
	Guard G
}

func (e *PoisonError[G]) Error() string {
	return "sharedlock: lock poisoned by a failed writer"
}

func (e *PoisonError[G]) Is(target error) bool { return target == ErrPoisoned }

// Into returns the guard carried by the error.
func (e *PoisonError[G]) Into() G { return e.Guard }

func invalidElement(typ string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidElement, typ, reason)
}
