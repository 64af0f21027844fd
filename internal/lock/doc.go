// Package lock holds at most one active edit lock per note.
//
// The [Store] keeps an in-memory map of note ID to lock record and is the
// authority for lock state within the process. Every mutation for a note runs
// under that note's mutex, so acquire is a compare-and-set: insert if absent
// or expired, renew if held by the same user, fail otherwise. Records are
// written through to a [repository.NoteLockRepository] before the map is
// updated, and [Store.Load] rehydrates them on startup.
//
// # Expiry
//
// A lock is expired once now >= ExpiresAt. Expired records are inert: they
// never block an acquisition and report as unlocked from [Store.Status].
// [Store.SweepExpired] and [Store.RunSweeper] only bound storage growth.
//
// # Basic Usage
//
//	store := lock.NewStore(repo, lock.WithTTL(5*time.Minute))
//
//	l, err := store.Acquire(ctx, noteID, "alice", 0)
//	var held *lock.HeldError
//	if errors.As(err, &held) {
//		// held.Lock.Holder is editing right now
//	}
//
//	err = store.WithLock(ctx, noteID, "alice", func(ctx context.Context) error {
//		// mutate the note and append a version
//		return nil
//	})
//
//	err = store.Release(ctx, noteID, "alice")
package lock
