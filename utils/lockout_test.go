// utils/lockout_test.go
package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shopsy-store/shopsy_backend/models"
)

// fakeLockoutStore records mutations in memory.
type fakeLockoutStore struct {
	attempts  int
	lockUntil *time.Time
	cleared   int
}

func (f *fakeLockoutStore) RecordFailure(ctx context.Context, id primitive.ObjectID) (int, error) {
	f.attempts++
	return f.attempts, nil
}

func (f *fakeLockoutStore) EngageLock(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	f.lockUntil = &until
	return nil
}

func (f *fakeLockoutStore) ClearLockout(ctx context.Context, id primitive.ObjectID) error {
	f.attempts = 0
	f.lockUntil = nil
	f.cleared++
	return nil
}

func newTestEngine(store *fakeLockoutStore, now time.Time) *LockoutEngine {
	e := NewLockoutEngine(store)
	e.Now = func() time.Time { return now }
	return e
}

func testUser() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "alice", Email: "alice@example.com"}
}

func alwaysFail(context.Context) (bool, error)  { return false, nil }
func alwaysMatch(context.Context) (bool, error) { return true, nil }

func TestFailuresAccumulateUntilThreshold(t *testing.T) {
	store := &fakeLockoutStore{}
	engine := newTestEngine(store, time.Now())
	user := testUser()

	for i := 1; i < LockoutThreshold; i++ {
		res, err := engine.Evaluate(context.Background(), user, alwaysFail)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if res.Decision != LockoutRejected {
			t.Fatalf("attempt %d: got decision %v, want LockoutRejected", i, res.Decision)
		}
		if res.Attempts != i {
			t.Fatalf("attempt %d: got attempts %d, want %d", i, res.Attempts, i)
		}
	}
	if store.lockUntil != nil {
		t.Fatal("lock engaged before threshold")
	}
}

func TestThresholdCrossingLocksInSameRequest(t *testing.T) {
	now := time.Now()
	store := &fakeLockoutStore{attempts: LockoutThreshold - 1}
	engine := newTestEngine(store, now)
	user := testUser()
	user.FailedLoginAttempts = LockoutThreshold - 1

	var notified bool
	engine.OnLock = func(u *models.User, until time.Time) {
		notified = true
		if want := now.Add(LockoutWindow); !until.Equal(want) {
			t.Errorf("lock until = %v, want %v", until, want)
		}
	}

	res, err := engine.Evaluate(context.Background(), user, alwaysFail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != LockoutEngaged {
		t.Fatalf("got decision %v, want LockoutEngaged", res.Decision)
	}
	if store.lockUntil == nil {
		t.Fatal("lock not persisted")
	}
	if !notified {
		t.Fatal("OnLock not invoked")
	}
}

func TestActiveLockSkipsCredentialCheck(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Hour)
	store := &fakeLockoutStore{attempts: LockoutThreshold}
	engine := newTestEngine(store, now)
	user := testUser()
	user.FailedLoginAttempts = LockoutThreshold
	user.LockUntil = &until

	called := false
	res, err := engine.Evaluate(context.Background(), user, func(context.Context) (bool, error) {
		called = true
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != LockoutActive {
		t.Fatalf("got decision %v, want LockoutActive", res.Decision)
	}
	if called {
		t.Fatal("credential check ran while locked")
	}
	if res.Remaining != time.Hour {
		t.Fatalf("remaining = %v, want 1h", res.Remaining)
	}
}

func TestElapsedLockReopensWithZeroCounter(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	store := &fakeLockoutStore{attempts: LockoutThreshold}
	engine := newTestEngine(store, now)
	user := testUser()
	user.FailedLoginAttempts = LockoutThreshold
	user.LockUntil = &past

	res, err := engine.Evaluate(context.Background(), user, alwaysFail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First failure after the window counts as 1, not threshold+1.
	if res.Decision != LockoutRejected {
		t.Fatalf("got decision %v, want LockoutRejected", res.Decision)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts after reopen = %d, want 1", res.Attempts)
	}
}

func TestSuccessClearsCounterAndLock(t *testing.T) {
	store := &fakeLockoutStore{attempts: LockoutThreshold - 1}
	engine := newTestEngine(store, time.Now())
	user := testUser()
	user.FailedLoginAttempts = LockoutThreshold - 1

	res, err := engine.Evaluate(context.Background(), user, alwaysMatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != LockoutProceed {
		t.Fatalf("got decision %v, want LockoutProceed", res.Decision)
	}
	if store.attempts != 0 || store.lockUntil != nil {
		t.Fatalf("store not cleared: attempts=%d lock=%v", store.attempts, store.lockUntil)
	}
}

func TestCheckErrorAbortsWithoutCounting(t *testing.T) {
	store := &fakeLockoutStore{attempts: 2}
	engine := newTestEngine(store, time.Now())
	user := testUser()
	user.FailedLoginAttempts = 2

	wantErr := errors.New("otp expired")
	_, err := engine.Evaluate(context.Background(), user, func(context.Context) (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
	if store.attempts != 2 {
		t.Fatalf("counter moved on aborted attempt: %d", store.attempts)
	}
}

func TestLockoutMessageRounding(t *testing.T) {
	msg := LockoutMessage(30 * time.Second)
	if msg != "Account locked due to too many failed attempts. Try again in 1m0s" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
