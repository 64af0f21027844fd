package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collabnotes-server/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var versionColumns = []string{"note_id", "version_number", "title", "body", "author", "change_description", "created_at"}

type postgresNoteVersionRepository struct {
	db *sqlx.DB
}

func NewPostgresNoteVersionRepository(db *sqlx.DB) NoteVersionRepository {
	return &postgresNoteVersionRepository{db: db}
}

func (r *postgresNoteVersionRepository) Create(ctx context.Context, v *domain.NoteVersion) error {
	query, args, err := psql.Insert("note_versions").
		Columns(versionColumns...).
		Values(v.NoteID, v.VersionNumber, v.Title, v.Body, v.Author, v.ChangeDescription, v.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to save version %d: %w", v.VersionNumber, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save version: %w", err)
	}
	return nil
}

func (r *postgresNoteVersionRepository) LatestNumber(ctx context.Context, noteID string) (int, error) {
	query, args, err := psql.Select("COALESCE(MAX(version_number), 0)").
		From("note_versions").
		Where(sq.Eq{"note_id": noteID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var latest int
	if err := r.db.GetContext(ctx, &latest, query, args...); err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return latest, nil
}

func (r *postgresNoteVersionRepository) ListByNote(ctx context.Context, noteID string) ([]*domain.NoteVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("note_versions").
		Where(sq.Eq{"note_id": noteID}).
		OrderBy("version_number DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var versions []*domain.NoteVersion
	if err := r.db.SelectContext(ctx, &versions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

func (r *postgresNoteVersionRepository) Get(ctx context.Context, noteID string, versionNumber int) (*domain.NoteVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("note_versions").
		Where(sq.Eq{"note_id": noteID, "version_number": versionNumber}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var v domain.NoteVersion
	if err := r.db.GetContext(ctx, &v, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to find version: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find version: %w", err)
	}
	return &v, nil
}

func (r *postgresNoteVersionRepository) DeleteByNote(ctx context.Context, noteID string) error {
	query, args, err := psql.Delete("note_versions").Where(sq.Eq{"note_id": noteID}).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete versions: %w", err)
	}
	return nil
}
