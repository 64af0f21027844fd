package repository

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// findLimit caps Mango queries; CouchDB applies a default limit of 25 otherwise.
const findLimit = 10000

// Repositories bundles one implementation of every store the server needs.
type Repositories struct {
	Notes    NoteRepository
	Locks    NoteLockRepository
	Versions NoteVersionRepository
	Users    UserRepository
}

// NewCouchRepositories returns CouchDB-backed repositories sharing one database.
func NewCouchRepositories(client *kivik.Client, dbName string) Repositories {
	return Repositories{
		Notes:    NewNoteRepository(client, dbName),
		Locks:    NewNoteLockRepository(client, dbName),
		Versions: NewNoteVersionRepository(client, dbName),
		Users:    NewUserRepository(client, dbName),
	}
}

func couchError(op string, err error) error {
	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}
