package service

import (
	"errors"
	"fmt"
	"time"

	"collabnotes-server/internal/lock"
	"collabnotes-server/internal/repository"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid request")
	ErrInternal  = errors.New("internal error")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// LockConflictError reports the user currently editing a note.
type LockConflictError struct {
	NoteID    string
	Holder    string
	ExpiresAt time.Time
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("note %s is being edited by %s", e.NoteID, e.Holder)
}

func (e *LockConflictError) Is(target error) bool {
	return target == ErrConflict
}

// classified reports whether err already carries one of the service sentinels.
func classified(err error) bool {
	for _, target := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInvalid, ErrInternal} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func repoError(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrAlreadyExists):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return fmt.Errorf("%w: %s: %w", ErrInternal, what, err)
	}
}

func lockError(err error) error {
	var held *lock.HeldError
	switch {
	case errors.As(err, &held):
		return &LockConflictError{
			NoteID:    held.Lock.NoteID,
			Holder:    held.Lock.Holder,
			ExpiresAt: held.Lock.ExpiresAt,
		}
	case errors.Is(err, lock.ErrNotLocked), errors.Is(err, lock.ErrNotHolder):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case classified(err):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
