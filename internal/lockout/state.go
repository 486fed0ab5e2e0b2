// Package lockout implements the administrator account lockout state machine.
//
// An account is either Unlocked or Locked. The state is never stored; it is
// derived from AccountLockedUntil and the caller's clock, so an expired lock
// needs no cleanup and is consumed by the next recorded attempt.
package lockout

import (
	"math"
	"time"

	"github.com/consultease/adminguard/internal/model"
)

// Defaults used when a Policy field is left at zero.
const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

// Policy configures when an account locks and for how long.
type Policy struct {
	// Threshold is the number of consecutive failures that locks the account.
	Threshold int
	// Duration is the length of the lockout window. Windows shorter than a
	// second are treated as unset.
	Duration time.Duration
}

// DefaultPolicy returns the policy of five failures and fifteen minutes.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

func (p Policy) withDefaults() Policy {
	if p.Threshold < 1 {
		p.Threshold = DefaultThreshold
	}
	if p.Duration < time.Second {
		p.Duration = DefaultDuration
	}
	return p
}

// Status reports whether an account with the given lock expiry is locked at
// now, and for how much longer. The boundary is exclusive: at lockedUntil the
// account is already unlocked.
func Status(lockedUntil *time.Time, now time.Time) (bool, time.Duration) {
	if lockedUntil == nil || !lockedUntil.After(now) {
		return false, 0
	}
	return true, lockedUntil.Sub(now)
}

// Seconds rounds a remaining lock duration up to whole seconds, so a lock
// with any time left never reports zero.
func Seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// Decision is the result of recording one login attempt.
type Decision struct {
	// Accepted is true when the attempt was recorded. It says nothing about
	// whether the password was right.
	Accepted bool
	// Locked is true when the account is locked after this attempt, either
	// because it already was (Accepted is false) or because this failure
	// reached the threshold.
	Locked bool
	// Remaining is the time left on the lock when Locked is set.
	Remaining time.Duration
	// Failures is the consecutive failure count after this attempt.
	Failures int
}

// Apply runs one transition of the state machine on admin in place and
// reports whether the record changed and must be persisted.
//
//   - locked: rejected, nothing changes
//   - expired lock: counter and lock are cleared before the attempt applies
//   - success: counter and lock are cleared
//   - failure: counter increments, the failure time is recorded, and
//     reaching the threshold opens a lock window starting at now
func Apply(admin *model.Admin, success bool, now time.Time, policy Policy) (Decision, bool) {
	policy = policy.withDefaults()

	if locked, remaining := Status(admin.AccountLockedUntil, now); locked {
		return Decision{Locked: true, Remaining: remaining, Failures: admin.FailedLoginAttempts}, false
	}

	changed := false
	if admin.AccountLockedUntil != nil {
		admin.FailedLoginAttempts = 0
		admin.AccountLockedUntil = nil
		changed = true
	}

	if success {
		if admin.FailedLoginAttempts != 0 {
			admin.FailedLoginAttempts = 0
			changed = true
		}
		return Decision{Accepted: true}, changed
	}

	admin.FailedLoginAttempts++
	failedAt := now
	admin.LastFailedLoginAt = &failedAt

	d := Decision{Accepted: true, Failures: admin.FailedLoginAttempts}
	if admin.FailedLoginAttempts >= policy.Threshold {
		until := now.Add(policy.Duration)
		admin.AccountLockedUntil = &until
		d.Locked = true
		d.Remaining = policy.Duration
	}
	return d, true
}
