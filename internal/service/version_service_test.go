package service

import (
	"context"
	"fmt"
	"testing"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository"
	"collabnotes-server/internal/repository/memory"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T1", domain.VisibilityPrivate, nil, nil)

	// v2 changes content, v3 the title, v4 both.
	f.save(t, note.ID, "alice", "T1", "new body")
	f.save(t, note.ID, "alice", "T2", "new body")
	f.save(t, note.ID, "alice", "T3", "final body")

	tests := []struct {
		name           string
		from, to       int
		titleChanged   bool
		contentChanged bool
		summary        string
	}{
		{name: "same version", from: 2, to: 2, summary: "No changes"},
		{name: "content only", from: 1, to: 2, contentChanged: true, summary: "Content changed"},
		{name: "title only", from: 2, to: 3, titleChanged: true, summary: "Title changed"},
		{name: "both", from: 3, to: 4, titleChanged: true, contentChanged: true, summary: "Title and content changed"},
		{name: "reversed", from: 4, to: 3, titleChanged: true, contentChanged: true, summary: "Title and content changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := f.versions.Compare(ctx, note.ID, "alice", tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.titleChanged, cmp.TitleChanged)
			assert.Equal(t, tt.contentChanged, cmp.ContentChanged)
			assert.Equal(t, tt.summary, cmp.Summary)
			assert.Equal(t, tt.from, cmp.From.VersionNumber)
			assert.Equal(t, tt.to, cmp.To.VersionNumber)
		})
	}

	_, err := f.versions.Compare(ctx, note.ID, "alice", 1, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.versions.Compare(ctx, note.ID, "alice", 0, 1)
	require.ErrorIs(t, err, ErrInvalid)
	_, err = f.versions.Compare(ctx, note.ID, "mallory", 1, 2)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestVersionReadsArePermissionGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "alice", "T", domain.VisibilitySharedRead, []string{"reader"}, nil)

	_, err := f.versions.Get(ctx, note.ID, "reader", 1)
	require.NoError(t, err)

	_, err = f.versions.Get(ctx, note.ID, "mallory", 1)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.versions.Get(ctx, "missing", "alice", 1)
	require.ErrorIs(t, err, ErrNotFound)
}

// clashingVersions reports a taken version number for the first n Creates.
type clashingVersions struct {
	*memory.NoteVersionRepository
	clashes int
	calls   int
}

func (r *clashingVersions) Create(ctx context.Context, v *domain.NoteVersion) error {
	r.calls++
	if r.clashes > 0 {
		r.clashes--
		return fmt.Errorf("version %d: %w", v.VersionNumber, repository.ErrAlreadyExists)
	}
	return r.NoteVersionRepository.Create(ctx, v)
}

func TestAppendRetriesOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("one clash recovers", func(t *testing.T) {
		repo := &clashingVersions{NoteVersionRepository: memory.NewNoteVersionRepository(), clashes: 1}
		svc := NewVersionService(memory.NewNoteRepository(), repo, fixedClock(), hclog.NewNullLogger())

		v, err := svc.Append(ctx, "n1", "t", "b", "alice", "")
		require.NoError(t, err)
		assert.Equal(t, 1, v.VersionNumber)
		assert.Equal(t, 2, repo.calls)
	})

	t.Run("two clashes are internal", func(t *testing.T) {
		repo := &clashingVersions{NoteVersionRepository: memory.NewNoteVersionRepository(), clashes: 2}
		svc := NewVersionService(memory.NewNoteRepository(), repo, fixedClock(), hclog.NewNullLogger())

		_, err := svc.Append(ctx, "n1", "t", "b", "alice", "")
		require.ErrorIs(t, err, ErrInternal)
		assert.Equal(t, 2, repo.calls)
	})
}

func TestFailedAppendRevertsNote(t *testing.T) {
	repos := memory.New()
	clashing := &clashingVersions{NoteVersionRepository: memory.NewNoteVersionRepository()}
	repos.Versions = clashing
	f := newFixtureWithRepos(t, repos)
	ctx := context.Background()

	note := f.createNote(t, "alice", "T1", domain.VisibilityPrivate, nil, nil)
	_, err := f.edits.BeginEdit(ctx, note.ID, "alice")
	require.NoError(t, err)

	clashing.clashes = 2
	_, err = f.edits.Save(ctx, note.ID, "alice", &domain.SaveNoteRequest{Title: "T2", Body: "b"})
	require.ErrorIs(t, err, ErrInternal)

	current, err := f.notes.Get(ctx, note.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "T1", current.Title, "note content matches the latest version")
	assert.True(t, f.locks.Status(note.ID).Locked, "the holder keeps the lock to retry")
}
