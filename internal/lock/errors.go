package lock

import (
	"errors"
	"fmt"
	"time"

	"collabnotes-server/internal/domain"
)

// Sentinel errors returned by store operations.
var (
	// ErrLockHeld is returned when another user holds an active lock.
	ErrLockHeld = errors.New("note is locked by another user")

	// ErrNotHolder is returned when a user releases or renews a lock held by someone else.
	ErrNotHolder = errors.New("lock is held by another user")

	// ErrNotLocked is returned when an operation needs an active lock and there is none.
	ErrNotLocked = errors.New("note is not locked")
)

// HeldError carries the active lock that blocked the caller.
type HeldError struct {
	Lock domain.NoteLock
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("note %s is locked by %s until %s",
		e.Lock.NoteID, e.Lock.Holder, e.Lock.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *HeldError) Unwrap() error {
	return ErrLockHeld
}
