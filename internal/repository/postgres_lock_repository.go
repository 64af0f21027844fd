package repository

import (
	"context"
	"fmt"
	"time"

	"collabnotes-server/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type postgresNoteLockRepository struct {
	db *sqlx.DB
}

func NewPostgresNoteLockRepository(db *sqlx.DB) NoteLockRepository {
	return &postgresNoteLockRepository{db: db}
}

func (r *postgresNoteLockRepository) Save(ctx context.Context, lock *domain.NoteLock) error {
	query, args, err := psql.Insert("note_locks").
		Columns("note_id", "holder", "acquired_at", "expires_at").
		Values(lock.NoteID, lock.Holder, lock.AcquiredAt, lock.ExpiresAt).
		Suffix("ON CONFLICT (note_id) DO UPDATE SET holder=EXCLUDED.holder, acquired_at=EXCLUDED.acquired_at, expires_at=EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save lock: %w", err)
	}
	return nil
}

func (r *postgresNoteLockRepository) Delete(ctx context.Context, noteID string) error {
	query, args, err := psql.Delete("note_locks").Where(sq.Eq{"note_id": noteID}).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}

func (r *postgresNoteLockRepository) List(ctx context.Context) ([]*domain.NoteLock, error) {
	query, args, err := psql.Select("note_id", "holder", "acquired_at", "expires_at").
		From("note_locks").
		ToSql()
	if err != nil {
		return nil, err
	}

	var locks []*domain.NoteLock
	if err := r.db.SelectContext(ctx, &locks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	return locks, nil
}

func (r *postgresNoteLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Delete("note_locks").Where(sq.LtOrEq{"expires_at": now}).ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
