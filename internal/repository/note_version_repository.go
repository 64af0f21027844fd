package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"collabnotes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// NoteVersionRepository stores immutable version snapshots. Create must fail
// with ErrAlreadyExists when (NoteID, VersionNumber) is already taken.
type NoteVersionRepository interface {
	Create(ctx context.Context, version *domain.NoteVersion) error
	LatestNumber(ctx context.Context, noteID string) (int, error)
	ListByNote(ctx context.Context, noteID string) ([]*domain.NoteVersion, error)
	Get(ctx context.Context, noteID string, versionNumber int) (*domain.NoteVersion, error)
	DeleteByNote(ctx context.Context, noteID string) error
}

const docTypeVersion = "version"

type versionDoc struct {
	ID   string `json:"_id,omitempty"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.NoteVersion
}

// versionIndex backs per-note range scans ordered by version number.
const (
	versionIndexDDoc = "versions-by-note"
	versionIndexName = "versions-by-note"
)

type noteVersionRepo struct {
	client   *kivik.Client
	dbName   string
	pageSize int
}

func NewNoteVersionRepository(client *kivik.Client, dbName string) NoteVersionRepository {
	return &noteVersionRepo{
		client:   client,
		dbName:   dbName,
		pageSize: findLimit,
	}
}

func versionDocID(noteID string, version int) string {
	return fmt.Sprintf("version:%s:%d", noteID, version)
}

// EnsureVersionIndex creates the Mango index the version queries sort on.
// Creating an index that already exists is a no-op in CouchDB.
func EnsureVersionIndex(ctx context.Context, client *kivik.Client, dbName string) error {
	index := map[string]interface{}{
		"fields": []string{"note_id", "version_number"},
	}
	if err := client.DB(dbName).CreateIndex(ctx, versionIndexDDoc, versionIndexName, index); err != nil {
		return fmt.Errorf("failed to create version index: %w", err)
	}
	return nil
}

// Create relies on CouchDB rejecting a Put without _rev for an existing id,
// which makes the document id a uniqueness constraint on the version number.
func (r *noteVersionRepo) Create(ctx context.Context, version *domain.NoteVersion) error {
	db := r.client.DB(r.dbName)

	doc := versionDoc{Type: docTypeVersion, NoteVersion: *version}
	if _, err := db.Put(ctx, versionDocID(version.NoteID, version.VersionNumber), doc); err != nil {
		return couchError("failed to save version", err)
	}

	return nil
}

func versionQuery(noteID string, after int, direction string, limit int) map[string]interface{} {
	return map[string]interface{}{
		"selector": map[string]interface{}{
			"type":           docTypeVersion,
			"note_id":        noteID,
			"version_number": map[string]interface{}{"$gt": after},
		},
		"sort": []interface{}{
			map[string]string{"note_id": direction},
			map[string]string{"version_number": direction},
		},
		"use_index": []string{versionIndexDDoc, versionIndexName},
		"limit":     limit,
	}
}

func (r *noteVersionRepo) find(ctx context.Context, query map[string]interface{}) ([]versionDoc, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var docs []versionDoc
	for rows.Next() {
		var doc versionDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// findByNote pages through a note's versions in ascending order, keyed on
// the last version number seen.
func (r *noteVersionRepo) findByNote(ctx context.Context, noteID string) ([]versionDoc, error) {
	var all []versionDoc
	after := 0
	for {
		page, err := r.find(ctx, versionQuery(noteID, after, "asc", r.pageSize))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < r.pageSize {
			return all, nil
		}
		after = page[len(page)-1].VersionNumber
	}
}

func (r *noteVersionRepo) LatestNumber(ctx context.Context, noteID string) (int, error) {
	docs, err := r.find(ctx, versionQuery(noteID, 0, "desc", 1))
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return docs[0].VersionNumber, nil
}

func (r *noteVersionRepo) ListByNote(ctx context.Context, noteID string) ([]*domain.NoteVersion, error) {
	docs, err := r.findByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	versions := make([]*domain.NoteVersion, len(docs))
	for i := range docs {
		v := docs[i].NoteVersion
		versions[i] = &v
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})

	return versions, nil
}

func (r *noteVersionRepo) Get(ctx context.Context, noteID string, versionNumber int) (*domain.NoteVersion, error) {
	db := r.client.DB(r.dbName)

	var doc versionDoc
	if err := db.Get(ctx, versionDocID(noteID, versionNumber)).ScanDoc(&doc); err != nil {
		return nil, couchError("failed to find version", err)
	}

	return &doc.NoteVersion, nil
}

func (r *noteVersionRepo) DeleteByNote(ctx context.Context, noteID string) error {
	docs, err := r.findByNote(ctx, noteID)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	for _, doc := range docs {
		if _, err := db.Delete(ctx, doc.ID, doc.Rev); err != nil {
			err = couchError("failed to delete version", err)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
	}

	return nil
}
