package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"collabnotes-server/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	dbsql, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(dbsql, "postgres")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresVersionCreate_DuplicateNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteVersionRepository(db)
	now := time.Now().UTC()

	v := &domain.NoteVersion{NoteID: "n1", VersionNumber: 2, Title: "T", Body: "B", Author: "alice", CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO note_versions")).
		WithArgs("n1", 2, "T", "B", "alice", "", now).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), v)
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVersionLatestNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteVersionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version_number), 0) FROM note_versions WHERE note_id = $1")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))

	latest, err := repo.LatestNumber(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, 3, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVersionGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteVersionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT note_id, version_number, title, body, author, change_description, created_at FROM note_versions")).
		WithArgs("n1", 1).
		WillReturnRows(sqlmock.NewRows(versionColumns).AddRow("n1", 1, "T1", "B1", "alice", "Initial version", now))

	v, err := repo.Get(context.Background(), "n1", 1)
	require.NoError(t, err)
	require.Equal(t, "T1", v.Title)
	require.Equal(t, "Initial version", v.ChangeDescription)

	mock.ExpectQuery(regexp.QuoteMeta("FROM note_versions")).
		WithArgs("n1", 9).
		WillReturnRows(sqlmock.NewRows(versionColumns))

	_, err = repo.Get(context.Background(), "n1", 9)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVersionListByNote(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteVersionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version_number DESC")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow("n1", 2, "T2", "B2", "bob", "", now).
			AddRow("n1", 1, "T1", "B1", "alice", "", now))

	versions, err := repo.ListByNote(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 2, versions[0].VersionNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockSave_Upserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteLockRepository(db)
	now := time.Now().UTC()
	lock := &domain.NoteLock{NoteID: "n1", Holder: "alice", AcquiredAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO note_locks (note_id,holder,acquired_at,expires_at) VALUES ($1,$2,$3,$4) ON CONFLICT (note_id) DO UPDATE")).
		WithArgs("n1", "alice", now, lock.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), lock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteLockRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM note_locks WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNoteUpdate_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresNoteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notes SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Note{ID: "missing", Title: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserCreate_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), &domain.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	require.True(t, errors.Is(err, ErrAlreadyExists))
	require.NoError(t, mock.ExpectationsWereMet())
}
