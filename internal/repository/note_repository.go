package repository

import (
	"context"
	"fmt"

	"collabnotes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	ListAccessible(ctx context.Context, username string) ([]*domain.Note, error)
	Update(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, id string) error
}

const docTypeNote = "note"

type noteDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.Note
}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	db := r.client.DB(r.dbName)

	doc := noteDoc{Type: docTypeNote, Note: *note}
	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		return couchError("failed to create note", err)
	}

	return nil
}

func (r *noteRepository) get(ctx context.Context, id string) (*noteDoc, error) {
	db := r.client.DB(r.dbName)

	var doc noteDoc
	if err := db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		return nil, couchError("failed to find note", err)
	}

	return &doc, nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &doc.Note, nil
}

// ListAccessible returns notes owned by or granted to username. Callers still
// filter through the permission model since grants on PRIVATE notes are inert.
func (r *noteRepository) ListAccessible(ctx context.Context, username string) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": docTypeNote,
			"$or": []interface{}{
				map[string]interface{}{"owner": username},
				map[string]interface{}{"read_grants": map[string]interface{}{"$elemMatch": map[string]interface{}{"$eq": username}}},
				map[string]interface{}{"write_grants": map[string]interface{}{"$elemMatch": map[string]interface{}{"$eq": username}}},
			},
		},
		"limit": findLimit,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		note := doc.Note
		notes = append(notes, &note)
	}

	return notes, rows.Err()
}

func (r *noteRepository) Update(ctx context.Context, note *domain.Note) error {
	existing, err := r.get(ctx, note.ID)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	doc := noteDoc{Rev: existing.Rev, Type: docTypeNote, Note: *note}
	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		return couchError("failed to update note", err)
	}

	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	if _, err := db.Delete(ctx, noteDocID(id), existing.Rev); err != nil {
		return couchError("failed to delete note", err)
	}

	return nil
}
