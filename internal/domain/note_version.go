package domain

import "time"

// NoteVersion is an immutable snapshot. VersionNumber starts at 1 and is
// gap-free per note.
type NoteVersion struct {
	NoteID            string    `json:"note_id" db:"note_id"`
	VersionNumber     int       `json:"version_number" db:"version_number"`
	Title             string    `json:"title" db:"title"`
	Body              string    `json:"body" db:"body"`
	Author            string    `json:"author" db:"author"`
	ChangeDescription string    `json:"change_description,omitempty" db:"change_description"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type VersionComparison struct {
	NoteID         string       `json:"note_id"`
	From           *NoteVersion `json:"from"`
	To             *NoteVersion `json:"to"`
	TitleChanged   bool         `json:"title_changed"`
	ContentChanged bool         `json:"content_changed"`
	Summary        string       `json:"summary"`
}

type RestoreVersionRequest struct {
	VersionNumber int `json:"version_number" validate:"required,min=1"`
}

// EditResult is returned by operations that commit a new version.
type EditResult struct {
	Note    *NoteResponse `json:"note"`
	Version *NoteVersion  `json:"version"`
}
