package service

import (
	"context"
	"errors"
	"fmt"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/lock"
	"collabnotes-server/internal/permission"
	"collabnotes-server/internal/repository"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// EditService coordinates locking, note mutation and versioning. Every entry
// point checks permissions before touching the lock store.
type EditService struct {
	notes    repository.NoteRepository
	locks    *lock.Store
	versions *VersionService
	notifier Notifier
	clock    clockwork.Clock
	logger   hclog.Logger
}

func NewEditService(
	notes repository.NoteRepository,
	locks *lock.Store,
	versions *VersionService,
	notifier Notifier,
	clk clockwork.Clock,
	logger hclog.Logger,
) *EditService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &EditService{
		notes:    notes,
		locks:    locks,
		versions: versions,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// BeginEdit acquires, or renews, the caller's lock on the note.
func (s *EditService) BeginEdit(ctx context.Context, noteID, user string) (*domain.NoteLock, error) {
	note, err := s.writable(ctx, noteID, user)
	if err != nil {
		return nil, err
	}

	l, err := s.locks.Acquire(ctx, noteID, user, 0)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			s.logger.Debug("begin edit refused", "note_id", noteID, "user", user, "error", err)
		}
		return nil, lockError(err)
	}

	s.notify(note, domain.NoteEvent{
		Type:      domain.EventLockAcquired,
		NoteID:    noteID,
		Actor:     user,
		ExpiresAt: &l.ExpiresAt,
	})
	return &l, nil
}

// Save writes new content and a new version, then releases the lock. The
// caller must hold the lock at call time.
func (s *EditService) Save(ctx context.Context, noteID, user string, req *domain.SaveNoteRequest) (*domain.EditResult, error) {
	if _, err := s.writable(ctx, noteID, user); err != nil {
		return nil, err
	}

	result, err := s.commit(ctx, noteID, user, req.Title, req.Body, req.ChangeDescription)
	if err != nil {
		return nil, err
	}

	s.logger.Info("note saved", "note_id", noteID, "user", user, "version", result.Version.VersionNumber)
	return result.EditResult, nil
}

// Restore makes version n the note's current content by committing it as a
// new version. It acquires the lock itself when the caller does not hold it.
func (s *EditService) Restore(ctx context.Context, noteID, user string, versionNumber int) (*domain.EditResult, error) {
	if _, err := s.writable(ctx, noteID, user); err != nil {
		return nil, err
	}

	target, err := s.versions.load(ctx, noteID, versionNumber)
	if err != nil {
		return nil, err
	}

	st := s.locks.Status(noteID)
	alreadyHeld := st.Locked && st.Holder == user

	if _, err := s.BeginEdit(ctx, noteID, user); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Restored from version %d", versionNumber)
	result, err := s.commit(ctx, noteID, user, target.Title, target.Body, description)
	if err != nil {
		if !alreadyHeld {
			if rerr := s.locks.Release(ctx, noteID, user); rerr != nil {
				s.logger.Warn("release after failed restore", "note_id", noteID, "user", user, "error", rerr)
			}
		}
		return nil, err
	}

	s.logger.Info("note restored", "note_id", noteID, "user", user,
		"from_version", versionNumber, "version", result.Version.VersionNumber)
	s.notify(result.note, domain.NoteEvent{
		Type:          domain.EventNoteRestored,
		NoteID:        noteID,
		Actor:         user,
		VersionNumber: result.Version.VersionNumber,
	})
	return result.EditResult, nil
}

// CancelEdit releases the caller's lock without writing a version.
func (s *EditService) CancelEdit(ctx context.Context, noteID, user string) error {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return repoError(err, "note "+noteID)
	}

	if err := s.locks.Release(ctx, noteID, user); err != nil {
		if errors.Is(err, lock.ErrNotHolder) || errors.Is(err, lock.ErrNotLocked) {
			return fmt.Errorf("%w: %s does not hold the lock on note %s", ErrForbidden, user, noteID)
		}
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	s.notify(note, domain.NoteEvent{Type: domain.EventLockReleased, NoteID: noteID, Actor: user})
	return nil
}

// ExtendLock pushes the caller's lock expiry out by one TTL.
func (s *EditService) ExtendLock(ctx context.Context, noteID, user string) (*domain.NoteLock, error) {
	note, err := s.writable(ctx, noteID, user)
	if err != nil {
		return nil, err
	}

	l, err := s.locks.Refresh(ctx, noteID, user)
	if err != nil {
		return nil, lockError(err)
	}

	s.notify(note, domain.NoteEvent{
		Type:      domain.EventLockAcquired,
		NoteID:    noteID,
		Actor:     user,
		ExpiresAt: &l.ExpiresAt,
	})
	return &l, nil
}

// ForceUnlock lets the owner clear someone else's abandoned lock.
func (s *EditService) ForceUnlock(ctx context.Context, noteID, user string) error {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return repoError(err, "note "+noteID)
	}
	if note.Owner != user {
		return fmt.Errorf("%w: only the owner can force unlock note %s", ErrForbidden, noteID)
	}

	holder, err := s.locks.ForceRelease(ctx, noteID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if holder != "" {
		s.notify(note, domain.NoteEvent{Type: domain.EventLockReleased, NoteID: noteID, Actor: user})
	}
	return nil
}

func (s *EditService) LockStatusFor(ctx context.Context, noteID, user string) (*domain.EditStatus, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, repoError(err, "note "+noteID)
	}
	if !permission.CanRead(note, user) {
		return nil, fmt.Errorf("%w: %s cannot read note %s", ErrForbidden, user, noteID)
	}

	st := s.locks.Status(noteID)
	return &domain.EditStatus{
		Locked:    st.Locked,
		LockedBy:  st.Holder,
		ExpiresAt: st.ExpiresAt,
		CanEdit:   permission.CanWrite(note, user) && (!st.Locked || st.Holder == user),
	}, nil
}

type commitResult struct {
	*domain.EditResult
	note *domain.Note
}

// commit applies title and body and appends a version inside the note's
// critical section, then releases the lock.
func (s *EditService) commit(ctx context.Context, noteID, user, title, body, description string) (*commitResult, error) {
	var (
		note    *domain.Note
		version *domain.NoteVersion
	)

	err := s.locks.WithLock(ctx, noteID, user, func(ctx context.Context) error {
		current, err := s.notes.FindByID(ctx, noteID)
		if err != nil {
			return repoError(err, "note "+noteID)
		}
		// Grants may have changed since the lock was taken.
		if !permission.CanWrite(current, user) {
			return fmt.Errorf("%w: %s cannot write note %s", ErrForbidden, user, noteID)
		}

		previous := current.Clone()
		current.Title = title
		current.Body = body
		current.UpdatedAt = s.clock.Now()
		if err := s.notes.Update(ctx, current); err != nil {
			return repoError(err, "note "+noteID)
		}

		v, err := s.versions.Append(ctx, noteID, title, body, user, description)
		if err != nil {
			if rerr := s.notes.Update(ctx, previous); rerr != nil {
				s.logger.Error("revert note after failed append", "note_id", noteID, "error", rerr)
			}
			return err
		}

		note, version = current, v
		return nil
	})
	if err != nil {
		return nil, lockError(err)
	}

	if err := s.locks.Release(ctx, noteID, user); err != nil {
		s.logger.Warn("release after save", "note_id", noteID, "user", user, "error", err)
	}

	s.notify(note, domain.NoteEvent{
		Type:          domain.EventVersionCreated,
		NoteID:        noteID,
		Actor:         user,
		VersionNumber: version.VersionNumber,
	})
	s.notify(note, domain.NoteEvent{Type: domain.EventLockReleased, NoteID: noteID, Actor: user})

	return &commitResult{
		EditResult: &domain.EditResult{Note: note.ToResponse(), Version: version},
		note:       note,
	}, nil
}

func (s *EditService) writable(ctx context.Context, noteID, user string) (*domain.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, repoError(err, "note "+noteID)
	}
	if !permission.CanWrite(note, user) {
		return nil, fmt.Errorf("%w: %s cannot write note %s", ErrForbidden, user, noteID)
	}
	return note, nil
}

func (s *EditService) notify(note *domain.Note, event domain.NoteEvent) {
	event.OccurredAt = s.clock.Now()
	s.notifier.Notify(note.Audience(), event)
}
