package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collabnotes-server/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var noteColumns = []string{"id", "title", "body", "owner", "visibility", "read_grants", "write_grants", "created_at", "updated_at"}

type noteRow struct {
	domain.Note
	ReadGrants  pq.StringArray `db:"read_grants"`
	WriteGrants pq.StringArray `db:"write_grants"`
}

func (r noteRow) toDomain() *domain.Note {
	n := r.Note
	n.ReadGrants = []string(r.ReadGrants)
	n.WriteGrants = []string(r.WriteGrants)
	return &n
}

type postgresNoteRepository struct {
	db *sqlx.DB
}

func NewPostgresNoteRepository(db *sqlx.DB) NoteRepository {
	return &postgresNoteRepository{db: db}
}

func (r *postgresNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	query, args, err := psql.Insert("notes").
		Columns(noteColumns...).
		Values(note.ID, note.Title, note.Body, note.Owner, note.Visibility,
			pq.Array(note.ReadGrants), pq.Array(note.WriteGrants), note.CreatedAt, note.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create note: %w", ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *postgresNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	query, args, err := psql.Select(noteColumns...).
		From("notes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row noteRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to find note: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return row.toDomain(), nil
}

func (r *postgresNoteRepository) ListAccessible(ctx context.Context, username string) ([]*domain.Note, error) {
	query, args, err := psql.Select(noteColumns...).
		From("notes").
		Where(sq.Or{
			sq.Eq{"owner": username},
			sq.Expr("? = ANY(read_grants)", username),
			sq.Expr("? = ANY(write_grants)", username),
		}).
		OrderBy("updated_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []noteRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*domain.Note, len(rows))
	for i, row := range rows {
		notes[i] = row.toDomain()
	}
	return notes, nil
}

func (r *postgresNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	query, args, err := psql.Update("notes").
		SetMap(map[string]interface{}{
			"title":        note.Title,
			"body":         note.Body,
			"visibility":   note.Visibility,
			"read_grants":  pq.Array(note.ReadGrants),
			"write_grants": pq.Array(note.WriteGrants),
			"updated_at":   note.UpdatedAt,
		}).
		Where(sq.Eq{"id": note.ID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return requireAffected(res, "failed to update note")
}

func (r *postgresNoteRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("notes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireAffected(res, "failed to delete note")
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
