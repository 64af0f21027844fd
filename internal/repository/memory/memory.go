// Package memory provides map-backed repositories. They back DB_DRIVER=memory
// for local runs and serve as test doubles for the service and handler layers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository"
)

// New returns a fresh set of empty in-memory repositories.
func New() repository.Repositories {
	return repository.Repositories{
		Notes:    NewNoteRepository(),
		Locks:    NewNoteLockRepository(),
		Versions: NewNoteVersionRepository(),
		Users:    NewUserRepository(),
	}
}

type NoteRepository struct {
	mu    sync.RWMutex
	notes map[string]*domain.Note
}

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{notes: make(map[string]*domain.Note)}
}

func (r *NoteRepository) Create(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[note.ID]; exists {
		return fmt.Errorf("note %s: %w", note.ID, repository.ErrAlreadyExists)
	}
	r.notes[note.ID] = note.Clone()
	return nil
}

func (r *NoteRepository) FindByID(_ context.Context, id string) (*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, repository.ErrNotFound)
	}
	return n.Clone(), nil
}

func (r *NoteRepository) ListAccessible(_ context.Context, username string) ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notes []*domain.Note
	for _, n := range r.notes {
		for _, u := range n.Audience() {
			if u == username {
				notes = append(notes, n.Clone())
				break
			}
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (r *NoteRepository) Update(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[note.ID]; !ok {
		return fmt.Errorf("note %s: %w", note.ID, repository.ErrNotFound)
	}
	r.notes[note.ID] = note.Clone()
	return nil
}

func (r *NoteRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return fmt.Errorf("note %s: %w", id, repository.ErrNotFound)
	}
	delete(r.notes, id)
	return nil
}

type NoteLockRepository struct {
	mu    sync.Mutex
	locks map[string]domain.NoteLock
}

func NewNoteLockRepository() *NoteLockRepository {
	return &NoteLockRepository{locks: make(map[string]domain.NoteLock)}
}

func (r *NoteLockRepository) Save(_ context.Context, lock *domain.NoteLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks[lock.NoteID] = *lock
	return nil
}

func (r *NoteLockRepository) Delete(_ context.Context, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, noteID)
	return nil
}

func (r *NoteLockRepository) List(_ context.Context) ([]*domain.NoteLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	locks := make([]*domain.NoteLock, 0, len(r.locks))
	for _, l := range r.locks {
		l := l
		locks = append(locks, &l)
	}
	return locks, nil
}

func (r *NoteLockRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, l := range r.locks {
		if l.ExpiredAt(now) {
			delete(r.locks, id)
			removed++
		}
	}
	return removed, nil
}

type NoteVersionRepository struct {
	mu       sync.RWMutex
	versions map[string]map[int]domain.NoteVersion
}

func NewNoteVersionRepository() *NoteVersionRepository {
	return &NoteVersionRepository{versions: make(map[string]map[int]domain.NoteVersion)}
}

func (r *NoteVersionRepository) Create(_ context.Context, v *domain.NoteVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byNumber := r.versions[v.NoteID]
	if byNumber == nil {
		byNumber = make(map[int]domain.NoteVersion)
		r.versions[v.NoteID] = byNumber
	}
	if _, exists := byNumber[v.VersionNumber]; exists {
		return fmt.Errorf("version %d of note %s: %w", v.VersionNumber, v.NoteID, repository.ErrAlreadyExists)
	}
	byNumber[v.VersionNumber] = *v
	return nil
}

func (r *NoteVersionRepository) LatestNumber(_ context.Context, noteID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := 0
	for n := range r.versions[noteID] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (r *NoteVersionRepository) ListByNote(_ context.Context, noteID string) ([]*domain.NoteVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]*domain.NoteVersion, 0, len(r.versions[noteID]))
	for _, v := range r.versions[noteID] {
		v := v
		versions = append(versions, &v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions, nil
}

func (r *NoteVersionRepository) Get(_ context.Context, noteID string, versionNumber int) (*domain.NoteVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.versions[noteID][versionNumber]
	if !ok {
		return nil, fmt.Errorf("version %d of note %s: %w", versionNumber, noteID, repository.ErrNotFound)
	}
	return &v, nil
}

func (r *NoteVersionRepository) DeleteByNote(_ context.Context, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.versions, noteID)
	return nil
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return fmt.Errorf("user %s: %w", user.Username, repository.ErrAlreadyExists)
	}
	r.users[user.Username] = *user
	return nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}
