// utils/lockout.go
package utils

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shopsy-store/shopsy_backend/models"
)

const (
	// LockoutThreshold is the failure count at which an identity is locked.
	LockoutThreshold = 5
	// LockoutWindow is how long a locked identity stays locked.
	LockoutWindow = 24 * time.Hour
)

// LockoutStore is the slice of the identity store the engine mutates.
// RecordFailure must be an atomic increment that returns the
// post-increment count, so two concurrent failures cannot both observe
// threshold-1 and skip the lock.
type LockoutStore interface {
	RecordFailure(ctx context.Context, id primitive.ObjectID) (int, error)
	EngageLock(ctx context.Context, id primitive.ObjectID, until time.Time) error
	ClearLockout(ctx context.Context, id primitive.ObjectID) error
}

// LockoutDecision is the outcome of one credential-bearing attempt.
type LockoutDecision int

const (
	// LockoutProceed: credential matched, counter and lock cleared.
	LockoutProceed LockoutDecision = iota
	// LockoutRejected: credential wrong, counter bumped, threshold not reached.
	LockoutRejected
	// LockoutEngaged: this failure crossed the threshold. The same request
	// returns the lockout rejection, not the generic one.
	LockoutEngaged
	// LockoutActive: identity already locked, credential never evaluated.
	LockoutActive
)

type LockoutResult struct {
	Decision  LockoutDecision
	Remaining time.Duration
	Attempts  int
}

// CredentialCheck reports whether the presented credential matches. It
// runs only when the identity is not locked. Returning an error aborts
// the attempt without touching the failure counter (used for expired
// OTP codes, which are not verified-as-wrong).
type CredentialCheck func(ctx context.Context) (bool, error)

// LockoutEngine is the single lockout transition shared by login, OTP
// verification and password reset.
type LockoutEngine struct {
	Store     LockoutStore
	Threshold int
	Window    time.Duration
	Now       func() time.Time
	// OnLock fires when a lock engages. Best effort: errors inside it must
	// not fail the request.
	OnLock func(user *models.User, until time.Time)
}

func NewLockoutEngine(store LockoutStore) *LockoutEngine {
	return &LockoutEngine{
		Store:     store,
		Threshold: LockoutThreshold,
		Window:    LockoutWindow,
		Now:       time.Now,
	}
}

// Evaluate runs the transition for one request, in order: active-lock
// check, elapsed-lock reset, credential evaluation, then success reset or
// failure accounting against the post-increment count.
func (e *LockoutEngine) Evaluate(ctx context.Context, user *models.User, check CredentialCheck) (LockoutResult, error) {
	now := e.Now()

	if user.LockUntil != nil {
		if now.Before(*user.LockUntil) {
			return LockoutResult{
				Decision:  LockoutActive,
				Remaining: user.LockUntil.Sub(now),
				Attempts:  user.FailedLoginAttempts,
			}, nil
		}
		// Window elapsed: reopen with a zero counter, not the threshold.
		if err := e.Store.ClearLockout(ctx, user.ID); err != nil {
			return LockoutResult{}, err
		}
		user.FailedLoginAttempts = 0
		user.LockUntil = nil
	}

	ok, err := check(ctx)
	if err != nil {
		return LockoutResult{}, err
	}

	if ok {
		// Success clears both the counter and any past lock window, before
		// the caller issues a session.
		if err := e.Store.ClearLockout(ctx, user.ID); err != nil {
			return LockoutResult{}, err
		}
		user.FailedLoginAttempts = 0
		return LockoutResult{Decision: LockoutProceed}, nil
	}

	attempts, err := e.Store.RecordFailure(ctx, user.ID)
	if err != nil {
		return LockoutResult{}, err
	}

	if attempts >= e.Threshold {
		until := now.Add(e.Window)
		if err := e.Store.EngageLock(ctx, user.ID, until); err != nil {
			return LockoutResult{}, err
		}
		if e.OnLock != nil {
			e.OnLock(user, until)
		}
		return LockoutResult{Decision: LockoutEngaged, Remaining: e.Window, Attempts: attempts}, nil
	}

	return LockoutResult{Decision: LockoutRejected, Attempts: attempts}, nil
}

// LockoutMessage renders the user-facing lockout rejection with the time
// remaining.
func LockoutMessage(remaining time.Duration) string {
	remaining = remaining.Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %s", remaining)
}
