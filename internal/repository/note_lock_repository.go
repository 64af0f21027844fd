package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"collabnotes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// NoteLockRepository persists lock records written through by the lock
// store. It performs no expiry logic of its own beyond DeleteExpired.
type NoteLockRepository interface {
	Save(ctx context.Context, lock *domain.NoteLock) error
	Delete(ctx context.Context, noteID string) error
	List(ctx context.Context) ([]*domain.NoteLock, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

const docTypeLock = "lock"

type lockDoc struct {
	ID   string `json:"_id,omitempty"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.NoteLock
}

type noteLockRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteLockRepository(client *kivik.Client, dbName string) NoteLockRepository {
	return &noteLockRepository{
		client: client,
		dbName: dbName,
	}
}

func lockDocID(noteID string) string {
	return fmt.Sprintf("lock:%s", noteID)
}

func (r *noteLockRepository) currentRev(ctx context.Context, noteID string) (string, error) {
	db := r.client.DB(r.dbName)

	var doc lockDoc
	if err := db.Get(ctx, lockDocID(noteID)).ScanDoc(&doc); err != nil {
		err = couchError("failed to find lock", err)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return doc.Rev, nil
}

func (r *noteLockRepository) Save(ctx context.Context, lock *domain.NoteLock) error {
	rev, err := r.currentRev(ctx, lock.NoteID)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	doc := lockDoc{Rev: rev, Type: docTypeLock, NoteLock: *lock}
	if _, err := db.Put(ctx, lockDocID(lock.NoteID), doc); err != nil {
		return couchError("failed to save lock", err)
	}

	return nil
}

func (r *noteLockRepository) Delete(ctx context.Context, noteID string) error {
	rev, err := r.currentRev(ctx, noteID)
	if err != nil {
		return err
	}
	if rev == "" {
		return nil
	}

	db := r.client.DB(r.dbName)
	if _, err := db.Delete(ctx, lockDocID(noteID), rev); err != nil {
		err = couchError("failed to delete lock", err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	return nil
}

func (r *noteLockRepository) listDocs(ctx context.Context) ([]lockDoc, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": docTypeLock,
		},
		"limit": findLimit,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var docs []lockDoc
	for rows.Next() {
		var doc lockDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (r *noteLockRepository) List(ctx context.Context) ([]*domain.NoteLock, error) {
	docs, err := r.listDocs(ctx)
	if err != nil {
		return nil, err
	}

	locks := make([]*domain.NoteLock, 0, len(docs))
	for _, doc := range docs {
		l := doc.NoteLock
		locks = append(locks, &l)
	}
	return locks, nil
}

// DeleteExpired filters in Go: RFC 3339 timestamps with variable fractional
// seconds do not compare correctly as strings in a Mango selector.
func (r *noteLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	docs, err := r.listDocs(ctx)
	if err != nil {
		return 0, err
	}

	db := r.client.DB(r.dbName)
	removed := 0
	for _, doc := range docs {
		if !doc.ExpiredAt(now) {
			continue
		}
		if _, err := db.Delete(ctx, doc.ID, doc.Rev); err != nil {
			// A concurrent renew bumped the revision; the lock is live again.
			if kivik.HTTPStatus(err) == http.StatusConflict {
				continue
			}
			return removed, couchError("failed to delete expired lock", err)
		}
		removed++
	}

	return removed, nil
}
