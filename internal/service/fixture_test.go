package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/lock"
	"collabnotes-server/internal/repository"
	"collabnotes-server/internal/repository/memory"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const testTTL = 5 * time.Minute

type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

type notified struct {
	audience []string
	event    domain.NoteEvent
}

func (n *recordingNotifier) Notify(audience []string, event domain.NoteEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{audience: audience, event: event})
}

func (n *recordingNotifier) types() []domain.NoteEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NoteEventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.event.Type
	}
	return out
}

type fixture struct {
	clock    *clockwork.FakeClock
	repos    repository.Repositories
	locks    *lock.Store
	versions *VersionService
	notes    *NoteService
	edits    *EditService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(memory.New())
}

func newFixtureWithRepos(t *testing.T, repos repository.Repositories) *fixture {
	t.Helper()
	return buildFixture(repos)
}

func buildFixture(repos repository.Repositories) *fixture {
	clk := clockwork.NewFakeClockAt(t0)
	logger := hclog.NewNullLogger()
	notifier := &recordingNotifier{}

	locks := lock.NewStore(repos.Locks, lock.WithClock(clk), lock.WithTTL(testTTL), lock.WithLogger(logger))
	versions := NewVersionService(repos.Notes, repos.Versions, clk, logger)

	return &fixture{
		clock:    clk,
		repos:    repos,
		locks:    locks,
		versions: versions,
		notes:    NewNoteService(repos.Notes, versions, locks, notifier, clk, logger),
		edits:    NewEditService(repos.Notes, locks, versions, notifier, clk, logger),
		notifier: notifier,
	}
}

func (f *fixture) createNote(t *testing.T, owner, title string, visibility domain.Visibility, readers, writers []string) *domain.NoteResponse {
	t.Helper()
	n, err := f.notes.Create(context.Background(), owner, &domain.CreateNoteRequest{
		Title:       title,
		Body:        title + " body",
		Visibility:  visibility,
		ReadGrants:  readers,
		WriteGrants: writers,
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) save(t *testing.T, noteID, user, title, body string) *domain.EditResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.edits.BeginEdit(ctx, noteID, user)
	require.NoError(t, err)
	res, err := f.edits.Save(ctx, noteID, user, &domain.SaveNoteRequest{Title: title, Body: body})
	require.NoError(t, err)
	return res
}

func fixedClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t0)
}
