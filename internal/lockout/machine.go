package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/model"
)

// ErrRecordingFailed is returned when an attempt could not be persisted. It
// is neither an authentication failure nor a lock and must not be treated as
// either.
var ErrRecordingFailed = errors.New("failed to record login attempt")

// maxRetries bounds how often RecordAttempt reloads after losing a
// compare-and-swap race. Every lost race means another attempt was stored.
const maxRetries = 20

// Store is the persistence the state machine needs. SaveAdmin must be an
// atomic conditional update keyed on admin.Version that returns
// config.ErrConflict when the stored version moved on, and
// GetAdminByUsername must return config.ErrNotFound for unknown usernames.
// *config.Store satisfies it.
type Store interface {
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)
	SaveAdmin(ctx context.Context, admin *model.Admin) error
}

// Machine records login attempts and answers lock queries. It holds no
// per-account state of its own; the store is the only source of truth, so
// several processes can share one store.
type Machine struct {
	store  Store
	policy Policy
	logger *slog.Logger
}

// New creates a Machine. Zero policy fields take the defaults; a nil logger
// discards output.
func New(store Store, policy Policy, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{store: store, policy: policy.withDefaults(), logger: logger}
}

// Policy returns the effective lockout policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// IsLocked reports whether username is locked at now and the time remaining.
// An unknown username is not locked. The record is never modified, even when
// its lock has expired.
func (m *Machine) IsLocked(ctx context.Context, username string, now time.Time) (bool, time.Duration, error) {
	admin, err := m.store.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("load admin: %w", err)
	}
	locked, remaining := Status(admin.AccountLockedUntil, now)
	return locked, remaining, nil
}

// RecordAttempt records the outcome of one login attempt for username at
// now. An unknown username yields a zero Decision. A locked account yields
// Accepted=false with the remaining time and is left untouched. Any store
// failure, including exhausting the retries on concurrent updates, wraps
// ErrRecordingFailed.
func (m *Machine) RecordAttempt(ctx context.Context, username string, success bool, now time.Time) (Decision, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		admin, err := m.store.GetAdminByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				return Decision{}, nil
			}
			return Decision{}, fmt.Errorf("%w: %w", ErrRecordingFailed, err)
		}

		decision, changed := Apply(admin, success, now, m.policy)
		if !changed {
			return decision, nil
		}

		err = m.store.SaveAdmin(ctx, admin)
		switch {
		case err == nil:
			if decision.Locked {
				m.logger.Warn("account locked",
					"username", username,
					"failures", decision.Failures,
					"locked_until", *admin.AccountLockedUntil)
			}
			return decision, nil
		case errors.Is(err, config.ErrConflict):
			m.logger.Debug("lockout update raced, retrying", "username", username, "attempt", attempt+1)
			continue
		default:
			return Decision{}, fmt.Errorf("%w: %w", ErrRecordingFailed, err)
		}
	}
	return Decision{}, fmt.Errorf("%w: %q kept changing after %d attempts", ErrRecordingFailed, username, maxRetries)
}
