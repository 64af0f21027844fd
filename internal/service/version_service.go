package service

import (
	"context"
	"errors"
	"fmt"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/permission"
	"collabnotes-server/internal/repository"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// appendAttempts bounds renumbering after a version number clash.
const appendAttempts = 2

type VersionService struct {
	notes    repository.NoteRepository
	versions repository.NoteVersionRepository
	clock    clockwork.Clock
	logger   hclog.Logger
}

func NewVersionService(
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	clk clockwork.Clock,
	logger hclog.Logger,
) *VersionService {
	return &VersionService{
		notes:    notes,
		versions: versions,
		clock:    clk,
		logger:   logger,
	}
}

// Append stores the next snapshot for noteID. Callers must hold the note's
// lock; a clash on the version number is retried once.
func (s *VersionService) Append(ctx context.Context, noteID, title, body, author, description string) (*domain.NoteVersion, error) {
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		latest, err := s.versions.LatestNumber(ctx, noteID)
		if err != nil {
			return nil, fmt.Errorf("%w: latest version of note %s: %w", ErrInternal, noteID, err)
		}

		v := &domain.NoteVersion{
			NoteID:            noteID,
			VersionNumber:     latest + 1,
			Title:             title,
			Body:              body,
			Author:            author,
			ChangeDescription: description,
			CreatedAt:         s.clock.Now(),
		}

		err = s.versions.Create(ctx, v)
		if err == nil {
			s.logger.Debug("version appended", "note_id", noteID, "version", v.VersionNumber, "author", author)
			return v, nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: append version to note %s: %w", ErrInternal, noteID, err)
		}

		s.logger.Warn("version number taken", "note_id", noteID, "version", v.VersionNumber, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: could not allocate a version number for note %s", ErrInternal, noteID)
}

func (s *VersionService) History(ctx context.Context, noteID, user string) ([]*domain.NoteVersion, error) {
	if _, err := s.readable(ctx, noteID, user); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByNote(ctx, noteID)
	if err != nil {
		return nil, repoError(err, "versions of note "+noteID)
	}
	return versions, nil
}

func (s *VersionService) Get(ctx context.Context, noteID, user string, versionNumber int) (*domain.NoteVersion, error) {
	if _, err := s.readable(ctx, noteID, user); err != nil {
		return nil, err
	}
	return s.load(ctx, noteID, versionNumber)
}

// Compare reports which fields differ between two versions. The flags do not
// depend on argument order.
func (s *VersionService) Compare(ctx context.Context, noteID, user string, from, to int) (*domain.VersionComparison, error) {
	if _, err := s.readable(ctx, noteID, user); err != nil {
		return nil, err
	}

	a, err := s.load(ctx, noteID, from)
	if err != nil {
		return nil, err
	}
	b, err := s.load(ctx, noteID, to)
	if err != nil {
		return nil, err
	}

	cmp := &domain.VersionComparison{
		NoteID:         noteID,
		From:           a,
		To:             b,
		TitleChanged:   a.Title != b.Title,
		ContentChanged: a.Body != b.Body,
	}
	cmp.Summary = summarize(cmp.TitleChanged, cmp.ContentChanged)
	return cmp, nil
}

// DeleteAll removes a note's history. Only used when the note itself is deleted.
func (s *VersionService) DeleteAll(ctx context.Context, noteID string) error {
	if err := s.versions.DeleteByNote(ctx, noteID); err != nil {
		return repoError(err, "versions of note "+noteID)
	}
	return nil
}

func summarize(titleChanged, contentChanged bool) string {
	switch {
	case titleChanged && contentChanged:
		return "Title and content changed"
	case titleChanged:
		return "Title changed"
	case contentChanged:
		return "Content changed"
	default:
		return "No changes"
	}
}

// load fetches a version without a permission check.
func (s *VersionService) load(ctx context.Context, noteID string, versionNumber int) (*domain.NoteVersion, error) {
	if versionNumber < 1 {
		return nil, fmt.Errorf("%w: version number must be at least 1, got %d", ErrInvalid, versionNumber)
	}

	v, err := s.versions.Get(ctx, noteID, versionNumber)
	if err != nil {
		return nil, repoError(err, fmt.Sprintf("version %d of note %s", versionNumber, noteID))
	}
	return v, nil
}

func (s *VersionService) readable(ctx context.Context, noteID, user string) (*domain.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, repoError(err, "note "+noteID)
	}
	if !permission.CanRead(note, user) {
		return nil, fmt.Errorf("%w: %s cannot read note %s", ErrForbidden, user, noteID)
	}
	return note, nil
}
