package service

import (
	"context"
	"testing"

	"collabnotes-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteService_CreateWritesFirstVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note := f.createNote(t, "alice", "Groceries", "", []string{"bob", "bob", "alice", ""}, nil)
	assert.Equal(t, domain.VisibilityPrivate, note.Visibility)
	assert.Equal(t, []string{"bob"}, note.ReadGrants)
	assert.Equal(t, t0, note.CreatedAt)

	history, err := f.versions.History(ctx, note.ID, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].VersionNumber)
	assert.Equal(t, "Groceries", history[0].Title)
	assert.Equal(t, "alice", history[0].Author)
}

func TestNoteService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	private := f.createNote(t, "alice", "mine", domain.VisibilityPrivate, []string{"bob"}, nil)
	shared := f.createNote(t, "alice", "ours", domain.VisibilitySharedRead, []string{"bob"}, nil)

	_, err := f.notes.Get(ctx, private.ID, "bob")
	require.ErrorIs(t, err, ErrForbidden)

	got, err := f.notes.Get(ctx, shared.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "ours", got.Title)

	_, err = f.notes.Get(ctx, "missing", "bob")
	require.ErrorIs(t, err, ErrNotFound)

	list, err := f.notes.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.ID, list[0].ID)

	list, err = f.notes.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNoteService_UpdatePermissionsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T", domain.VisibilitySharedWrite, nil, []string{"bob"})

	req := &domain.UpdatePermissionsRequest{Visibility: domain.VisibilityPrivate}
	_, err := f.notes.UpdatePermissions(ctx, note.ID, "bob", req)
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := f.notes.UpdatePermissions(ctx, note.ID, "alice", req)
	require.NoError(t, err)
	assert.Equal(t, domain.VisibilityPrivate, updated.Visibility)

	_, err = f.edits.BeginEdit(ctx, note.ID, "bob")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestNoteService_UpdatePermissionsRevokesWriterLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T", domain.VisibilitySharedWrite, nil, []string{"bob", "carol"})

	_, err := f.edits.BeginEdit(ctx, note.ID, "bob")
	require.NoError(t, err)

	_, err = f.notes.UpdatePermissions(ctx, note.ID, "alice", &domain.UpdatePermissionsRequest{
		Visibility:  domain.VisibilitySharedWrite,
		WriteGrants: []string{"carol"},
	})
	require.NoError(t, err)

	assert.False(t, f.locks.Status(note.ID).Locked)
	assert.Equal(t, []domain.NoteEventType{domain.EventLockAcquired, domain.EventLockReleased}, f.notifier.types())

	f.notifier.mu.Lock()
	released := f.notifier.events[1]
	f.notifier.mu.Unlock()
	assert.Equal(t, "alice", released.event.Actor)
	assert.Equal(t, t0, released.event.OccurredAt)
	assert.Contains(t, released.audience, "bob", "the revoked holder is told")

	st, err := f.edits.LockStatusFor(ctx, note.ID, "carol")
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.True(t, st.CanEdit)

	_, err = f.edits.BeginEdit(ctx, note.ID, "carol")
	require.NoError(t, err)
}

func TestNoteService_UpdatePermissionsKeepsLockOfRemainingWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T", domain.VisibilitySharedWrite, nil, []string{"bob", "carol"})

	_, err := f.edits.BeginEdit(ctx, note.ID, "bob")
	require.NoError(t, err)

	_, err = f.notes.UpdatePermissions(ctx, note.ID, "alice", &domain.UpdatePermissionsRequest{
		Visibility:  domain.VisibilitySharedWrite,
		WriteGrants: []string{"bob"},
	})
	require.NoError(t, err)

	st := f.locks.Status(note.ID)
	assert.True(t, st.Locked)
	assert.Equal(t, "bob", st.Holder)
	assert.Equal(t, []domain.NoteEventType{domain.EventLockAcquired}, f.notifier.types())
}

func TestNoteService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T", domain.VisibilitySharedWrite, nil, []string{"bob"})
	f.save(t, note.ID, "alice", "T2", "b")

	require.ErrorIs(t, f.notes.Delete(ctx, note.ID, "bob"), ErrForbidden)

	_, err := f.edits.BeginEdit(ctx, note.ID, "bob")
	require.NoError(t, err)
	require.ErrorIs(t, f.notes.Delete(ctx, note.ID, "alice"), ErrConflict)

	require.NoError(t, f.edits.CancelEdit(ctx, note.ID, "bob"))
	_, err = f.edits.BeginEdit(ctx, note.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.notes.Delete(ctx, note.ID, "alice"), "the owner may delete while holding the lock")

	_, err = f.notes.Get(ctx, note.ID, "alice")
	require.ErrorIs(t, err, ErrNotFound)

	versions, err := f.repos.Versions.ListByNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.False(t, f.locks.Status(note.ID).Locked)

	require.ErrorIs(t, f.notes.Delete(ctx, note.ID, "alice"), ErrNotFound)
}
