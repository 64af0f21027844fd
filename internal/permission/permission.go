// Package permission decides who may read or write a note. Every lock,
// version and edit entry point goes through these two predicates.
package permission

import (
	"slices"

	"collabnotes-server/internal/domain"
)

// CanRead reports whether user may read note and its version history.
// Write grants imply read.
func CanRead(note *domain.Note, user string) bool {
	if note == nil || user == "" {
		return false
	}
	if note.Owner == user {
		return true
	}
	if note.Visibility == domain.VisibilityPrivate {
		return false
	}
	return slices.Contains(note.ReadGrants, user) || slices.Contains(note.WriteGrants, user)
}

// CanWrite reports whether user may lock, save or restore note.
func CanWrite(note *domain.Note, user string) bool {
	if note == nil || user == "" {
		return false
	}
	if note.Owner == user {
		return true
	}
	return note.Visibility == domain.VisibilitySharedWrite && slices.Contains(note.WriteGrants, user)
}
