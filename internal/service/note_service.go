package service

import (
	"context"
	"fmt"
	"slices"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/lock"
	"collabnotes-server/internal/permission"
	"collabnotes-server/internal/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

const initialVersionDescription = "Initial version"

type NoteService struct {
	repo     repository.NoteRepository
	versions *VersionService
	locks    *lock.Store
	notifier Notifier
	clock    clockwork.Clock
	logger   hclog.Logger
}

func NewNoteService(
	repo repository.NoteRepository,
	versions *VersionService,
	locks *lock.Store,
	notifier Notifier,
	clk clockwork.Clock,
	logger hclog.Logger,
) *NoteService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &NoteService{
		repo:     repo,
		versions: versions,
		locks:    locks,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// Create stores a new note owned by owner and records it as version 1.
func (s *NoteService) Create(ctx context.Context, owner string, req *domain.CreateNoteRequest) (*domain.NoteResponse, error) {
	now := s.clock.Now()
	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}

	note := &domain.Note{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Body:        req.Body,
		Owner:       owner,
		Visibility:  visibility,
		ReadGrants:  normalizeGrants(req.ReadGrants, owner),
		WriteGrants: normalizeGrants(req.WriteGrants, owner),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, repoError(err, "note "+note.ID)
	}

	if _, err := s.versions.Append(ctx, note.ID, note.Title, note.Body, owner, initialVersionDescription); err != nil {
		if derr := s.repo.Delete(ctx, note.ID); derr != nil {
			s.logger.Error("remove note after failed initial version", "note_id", note.ID, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("note created", "note_id", note.ID, "owner", owner)
	return note.ToResponse(), nil
}

func (s *NoteService) Get(ctx context.Context, noteID, user string) (*domain.NoteResponse, error) {
	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, repoError(err, "note "+noteID)
	}
	if !permission.CanRead(note, user) {
		return nil, fmt.Errorf("%w: %s cannot read note %s", ErrForbidden, user, noteID)
	}
	return note.ToResponse(), nil
}

func (s *NoteService) List(ctx context.Context, user string) ([]*domain.NoteResponse, error) {
	notes, err := s.repo.ListAccessible(ctx, user)
	if err != nil {
		return nil, repoError(err, "notes")
	}

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		if permission.CanRead(n, user) {
			responses = append(responses, n.ToResponse())
		}
	}
	return responses, nil
}

// UpdatePermissions replaces visibility and grant sets. Owner only. A lock
// whose holder loses write access is released in the same step.
func (s *NoteService) UpdatePermissions(ctx context.Context, noteID, user string, req *domain.UpdatePermissionsRequest) (*domain.NoteResponse, error) {
	var (
		updated *domain.Note
		revoked string
	)

	err := s.locks.Exclusive(ctx, noteID, func(ctx context.Context, active *domain.NoteLock) (bool, error) {
		note, err := s.repo.FindByID(ctx, noteID)
		if err != nil {
			return false, repoError(err, "note "+noteID)
		}
		if note.Owner != user {
			return false, fmt.Errorf("%w: only the owner can change permissions of note %s", ErrForbidden, noteID)
		}

		note.Visibility = req.Visibility
		note.ReadGrants = normalizeGrants(req.ReadGrants, note.Owner)
		note.WriteGrants = normalizeGrants(req.WriteGrants, note.Owner)
		note.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, note); err != nil {
			return false, repoError(err, "note "+noteID)
		}
		updated = note

		if active != nil && !permission.CanWrite(note, active.Holder) {
			revoked = active.Holder
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("note permissions updated", "note_id", noteID, "visibility", updated.Visibility)

	if revoked != "" {
		s.logger.Info("edit lock revoked", "note_id", noteID, "holder", revoked)
		audience := updated.Audience()
		if !slices.Contains(audience, revoked) {
			audience = append(audience, revoked)
		}
		s.notifier.Notify(audience, domain.NoteEvent{
			Type:       domain.EventLockReleased,
			NoteID:     noteID,
			Actor:      user,
			OccurredAt: s.clock.Now(),
		})
	}
	return updated.ToResponse(), nil
}

// Delete removes the note with its versions and lock. Owner only, and not
// while another user is editing.
func (s *NoteService) Delete(ctx context.Context, noteID, user string) error {
	err := s.locks.Exclusive(ctx, noteID, func(ctx context.Context, active *domain.NoteLock) (bool, error) {
		note, err := s.repo.FindByID(ctx, noteID)
		if err != nil {
			return false, repoError(err, "note "+noteID)
		}
		if note.Owner != user {
			return false, fmt.Errorf("%w: only the owner can delete note %s", ErrForbidden, noteID)
		}
		if active != nil && active.Holder != user {
			return false, &LockConflictError{NoteID: noteID, Holder: active.Holder, ExpiresAt: active.ExpiresAt}
		}

		if err := s.repo.Delete(ctx, noteID); err != nil {
			return false, repoError(err, "note "+noteID)
		}
		if err := s.versions.DeleteAll(ctx, noteID); err != nil {
			s.logger.Error("delete versions of removed note", "note_id", noteID, "error", err)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("note deleted", "note_id", noteID, "owner", user)
	return nil
}

// normalizeGrants drops empty names, duplicates and the owner.
func normalizeGrants(grants []string, owner string) []string {
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		if g == "" || g == owner || slices.Contains(out, g) {
			continue
		}
		out = append(out, g)
	}
	return out
}
