package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"collabnotes-server/internal/repository/memory"

	"github.com/jonboulle/clockwork"
	"pgregory.net/rapid"
)

type modelLock struct {
	holder    string
	expiresAt time.Time
}

// Property: for any interleaving of acquire, release, refresh, sweep and time
// passing, each note has at most one active holder and Status agrees with a
// simple reference model.
func testStore_MatchesModel(rt *rapid.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(t0)
	ttl := time.Minute
	s := NewStore(memory.NewNoteLockRepository(), WithClock(clk), WithTTL(ttl))

	notes := []string{"n1", "n2"}
	users := []string{"alice", "bob", "carol"}
	model := map[string]modelLock{}

	activeInModel := func(note string) (modelLock, bool) {
		m, ok := model[note]
		if !ok || !clk.Now().Before(m.expiresAt) {
			return modelLock{}, false
		}
		return m, true
	}

	steps := rapid.IntRange(1, 60).Draw(rt, "steps")
	for i := 0; i < steps; i++ {
		note := rapid.SampledFrom(notes).Draw(rt, "note")
		user := rapid.SampledFrom(users).Draw(rt, "user")

		switch rapid.IntRange(0, 4).Draw(rt, "op") {
		case 0:
			_, err := s.Acquire(ctx, note, user, 0)
			m, active := activeInModel(note)
			if active && m.holder != user {
				if !errors.Is(err, ErrLockHeld) {
					rt.Fatalf("acquire %s by %s: expected ErrLockHeld, got %v", note, user, err)
				}
				continue
			}
			if err != nil {
				rt.Fatalf("acquire %s by %s: %v", note, user, err)
			}
			model[note] = modelLock{holder: user, expiresAt: clk.Now().Add(ttl)}

		case 1:
			err := s.Release(ctx, note, user)
			m, active := activeInModel(note)
			switch {
			case !active:
				if !errors.Is(err, ErrNotLocked) {
					rt.Fatalf("release unlocked %s: expected ErrNotLocked, got %v", note, err)
				}
			case m.holder != user:
				if !errors.Is(err, ErrNotHolder) {
					rt.Fatalf("release %s by non-holder %s: expected ErrNotHolder, got %v", note, user, err)
				}
			default:
				if err != nil {
					rt.Fatalf("release %s by %s: %v", note, user, err)
				}
				delete(model, note)
			}

		case 2:
			_, err := s.Refresh(ctx, note, user)
			m, active := activeInModel(note)
			if active && m.holder == user {
				if err != nil {
					rt.Fatalf("refresh %s by %s: %v", note, user, err)
				}
				model[note] = modelLock{holder: user, expiresAt: clk.Now().Add(ttl)}
			} else if err == nil {
				rt.Fatalf("refresh %s by %s succeeded without holding the lock", note, user)
			}

		case 3:
			clk.Advance(time.Duration(rapid.IntRange(0, 90).Draw(rt, "seconds")) * time.Second)

		case 4:
			if _, err := s.SweepExpired(ctx, clk.Now()); err != nil {
				rt.Fatalf("sweep: %v", err)
			}
		}

		for _, n := range notes {
			st := s.Status(n)
			m, active := activeInModel(n)
			if st.Locked != active {
				rt.Fatalf("step %d: %s locked=%v, model says %v", i, n, st.Locked, active)
			}
			if active && st.Holder != m.holder {
				rt.Fatalf("step %d: %s holder=%s, model says %s", i, n, st.Holder, m.holder)
			}
			if active && !st.ExpiresAt.Equal(m.expiresAt) {
				rt.Fatalf("step %d: %s expires_at=%s, model says %s", i, n, st.ExpiresAt, m.expiresAt)
			}
		}
	}
}

func TestStore_MatchesModel_Property(t *testing.T) {
	rapid.Check(t, testStore_MatchesModel)
}

func FuzzStore_MatchesModel_Property(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testStore_MatchesModel))
}
