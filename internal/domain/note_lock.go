package domain

import "time"

// NoteLock is an exclusive, time-bounded edit claim on one note.
type NoteLock struct {
	NoteID     string    `json:"note_id" db:"note_id"`
	Holder     string    `json:"holder" db:"holder"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// ExpiredAt reports whether the lock is inert at now. The boundary is
// inclusive: a lock whose expiry equals now is already expired.
func (l *NoteLock) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

type LockStatus struct {
	Locked    bool       `json:"locked"`
	Holder    string     `json:"locked_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// EditStatus is the lock status as seen by a specific user.
type EditStatus struct {
	Locked    bool       `json:"locked"`
	LockedBy  string     `json:"locked_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CanEdit   bool       `json:"can_edit"`
}
