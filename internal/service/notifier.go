package service

import "collabnotes-server/internal/domain"

// Notifier fans note events out to connected users.
type Notifier interface {
	Notify(audience []string, event domain.NoteEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify([]string, domain.NoteEvent) {}
