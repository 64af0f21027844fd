package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/moby/locker"
)

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = 5 * time.Minute

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the default lock lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger used for lock lifecycle events.
func WithLogger(l hclog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store is the single owner of lock records.
type Store struct {
	noteMu *locker.Locker

	mu    sync.RWMutex
	locks map[string]domain.NoteLock // noteID -> lock

	repo   repository.NoteLockRepository
	ttl    time.Duration
	clock  clockwork.Clock
	logger hclog.Logger
}

// NewStore creates a Store. repo may be nil, in which case locks live only in memory.
func NewStore(repo repository.NoteLockRepository, opts ...Option) *Store {
	s := &Store{
		noteMu: locker.New(),
		locks:  make(map[string]domain.NoteLock),
		repo:   repo,
		ttl:    DefaultTTL,
		clock:  clockwork.NewRealClock(),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the default lock lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load replaces the in-memory state with the unexpired persisted locks.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	persisted, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load locks: %w", err)
	}

	now := s.clock.Now()
	loaded := make(map[string]domain.NoteLock, len(persisted))
	for _, l := range persisted {
		if !l.ExpiredAt(now) {
			loaded[l.NoteID] = *l
		}
	}

	s.mu.Lock()
	s.locks = loaded
	s.mu.Unlock()

	s.logger.Info("locks loaded", "active", len(loaded), "persisted", len(persisted))
	return nil
}

// Acquire claims noteID for user. A lock already held by user is renewed. An
// active lock held by someone else yields a *HeldError. ttl <= 0 uses the
// store default.
func (s *Store) Acquire(ctx context.Context, noteID, user string, ttl time.Duration) (domain.NoteLock, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	unlock := s.lockNote(noteID)
	defer unlock()

	now := s.clock.Now()
	existing, active := s.active(noteID, now)
	if active && existing.Holder != user {
		return domain.NoteLock{}, &HeldError{Lock: existing}
	}

	l := domain.NoteLock{
		NoteID:     noteID,
		Holder:     user,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	if active {
		l.AcquiredAt = existing.AcquiredAt
	}

	if err := s.persist(ctx, &l); err != nil {
		return domain.NoteLock{}, err
	}
	s.set(l)

	if active {
		s.logger.Debug("lock renewed", "note_id", noteID, "holder", user, "expires_at", l.ExpiresAt)
	} else {
		s.logger.Info("lock acquired", "note_id", noteID, "holder", user, "expires_at", l.ExpiresAt)
	}
	return l, nil
}

// Refresh extends an active lock held by user. Unlike Acquire it never
// creates a lock.
func (s *Store) Refresh(ctx context.Context, noteID, user string) (domain.NoteLock, error) {
	unlock := s.lockNote(noteID)
	defer unlock()

	now := s.clock.Now()
	existing, err := s.heldBy(noteID, user, now)
	if err != nil {
		return domain.NoteLock{}, err
	}

	existing.ExpiresAt = now.Add(s.ttl)
	if err := s.persist(ctx, &existing); err != nil {
		return domain.NoteLock{}, err
	}
	s.set(existing)

	s.logger.Debug("lock refreshed", "note_id", noteID, "holder", user, "expires_at", existing.ExpiresAt)
	return existing, nil
}

// Release removes the lock on noteID if user holds it. Another user's lock is
// left untouched and ErrNotHolder is returned.
func (s *Store) Release(ctx context.Context, noteID, user string) error {
	unlock := s.lockNote(noteID)
	defer unlock()

	if _, err := s.heldBy(noteID, user, s.clock.Now()); err != nil {
		return err
	}
	if err := s.remove(ctx, noteID); err != nil {
		return err
	}

	s.logger.Info("lock released", "note_id", noteID, "holder", user)
	return nil
}

// ForceRelease removes any lock on noteID and returns the previous active
// holder, or "" if the note was not locked.
func (s *Store) ForceRelease(ctx context.Context, noteID string) (string, error) {
	unlock := s.lockNote(noteID)
	defer unlock()

	existing, active := s.active(noteID, s.clock.Now())
	if err := s.remove(ctx, noteID); err != nil {
		return "", err
	}
	if !active {
		return "", nil
	}

	s.logger.Warn("lock force released", "note_id", noteID, "holder", existing.Holder)
	return existing.Holder, nil
}

// Status reports expiry-adjusted lock state for noteID.
func (s *Store) Status(noteID string) domain.LockStatus {
	l, ok := s.active(noteID, s.clock.Now())
	if !ok {
		return domain.LockStatus{}
	}
	expiresAt := l.ExpiresAt
	return domain.LockStatus{
		Locked:    true,
		Holder:    l.Holder,
		ExpiresAt: &expiresAt,
	}
}

// WithLock runs fn while holding noteID's critical section, after checking
// that user still holds an active lock. Acquire, Release and sweeps for the
// same note wait until fn returns.
func (s *Store) WithLock(ctx context.Context, noteID, user string, fn func(ctx context.Context) error) error {
	unlock := s.lockNote(noteID)
	defer unlock()

	if _, err := s.heldBy(noteID, user, s.clock.Now()); err != nil {
		return err
	}
	return fn(ctx)
}

// Exclusive runs fn in noteID's critical section without requiring a lock.
// fn receives the active lock, or nil when the note is unlocked. If fn
// succeeds and asks for release, any lock record on the note is removed
// before the section is left.
func (s *Store) Exclusive(ctx context.Context, noteID string, fn func(ctx context.Context, active *domain.NoteLock) (release bool, err error)) error {
	unlock := s.lockNote(noteID)
	defer unlock()

	var active *domain.NoteLock
	if l, ok := s.active(noteID, s.clock.Now()); ok {
		active = &l
	}

	release, err := fn(ctx, active)
	if err != nil || !release {
		return err
	}
	if err := s.remove(ctx, noteID); err != nil {
		return err
	}
	if active != nil {
		s.logger.Info("lock revoked", "note_id", noteID, "holder", active.Holder)
	}
	return nil
}

// SweepExpired drops every lock with ExpiresAt <= now, in memory and in the
// repository. It returns the number of in-memory records removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var candidates []string
	for id, l := range s.locks {
		if l.ExpiredAt(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		unlock := s.lockNote(id)
		s.mu.Lock()
		// Re-check: the lock may have been renewed since the scan.
		if l, ok := s.locks[id]; ok && l.ExpiredAt(now) {
			delete(s.locks, id)
			removed++
		}
		s.mu.Unlock()
		unlock()
	}

	persisted := 0
	if s.repo != nil {
		n, err := s.repo.DeleteExpired(ctx, now)
		if err != nil {
			return removed, fmt.Errorf("sweep expired locks: %w", err)
		}
		persisted = n
	}

	if removed > 0 || persisted > 0 {
		s.logger.Info("expired locks swept", "memory", removed, "persisted", persisted)
	}
	return removed, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.SweepExpired(ctx, s.clock.Now()); err != nil {
				s.logger.Error("lock sweep failed", "error", err)
			}
		}
	}
}

// lockNote enters noteID's critical section and returns the matching exit.
func (s *Store) lockNote(noteID string) func() {
	s.noteMu.Lock(noteID)
	return func() { _ = s.noteMu.Unlock(noteID) }
}

func (s *Store) active(noteID string, now time.Time) (domain.NoteLock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.locks[noteID]
	if !ok || l.ExpiredAt(now) {
		return domain.NoteLock{}, false
	}
	return l, true
}

// heldBy must be called with the note mutex held.
func (s *Store) heldBy(noteID, user string, now time.Time) (domain.NoteLock, error) {
	l, ok := s.active(noteID, now)
	if !ok {
		return domain.NoteLock{}, fmt.Errorf("%w: %s", ErrNotLocked, noteID)
	}
	if l.Holder != user {
		return domain.NoteLock{}, fmt.Errorf("%w: %w", ErrNotHolder, &HeldError{Lock: l})
	}
	return l, nil
}

func (s *Store) set(l domain.NoteLock) {
	s.mu.Lock()
	s.locks[l.NoteID] = l
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, l *domain.NoteLock) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, l); err != nil {
		return fmt.Errorf("persist lock: %w", err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, noteID string) error {
	if s.repo != nil {
		if err := s.repo.Delete(ctx, noteID); err != nil {
			return fmt.Errorf("delete lock: %w", err)
		}
	}
	s.mu.Lock()
	delete(s.locks, noteID)
	s.mu.Unlock()
	return nil
}
