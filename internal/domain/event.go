package domain

import "time"

type NoteEventType string

const (
	EventLockAcquired   NoteEventType = "lock_acquired"
	EventLockReleased   NoteEventType = "lock_released"
	EventVersionCreated NoteEventType = "version_created"
	EventNoteRestored   NoteEventType = "note_restored"
)

// NoteEvent describes a change to a note's edit state that connected
// readers are told about.
type NoteEvent struct {
	Type          NoteEventType `json:"type"`
	NoteID        string        `json:"note_id"`
	Actor         string        `json:"actor"`
	VersionNumber int           `json:"version_number,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
