package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/model"
)

var (
	// ErrInvalidCredentials covers both a wrong password and an unknown
	// username. Callers outside this package never learn which.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrLastActiveAdmin    = config.ErrLastActive
	ErrInvalidUsername    = errors.New("username must not be empty")
)

// LockedError reports an active lockout and how long it has left. It matches
// ErrAccountLocked with errors.Is.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d seconds", lockout.Seconds(e.Remaining))
}

// Is makes errors.Is(err, ErrAccountLocked) true for any *LockedError.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Outcome classifies a login attempt.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeInvalidCredentials
	OutcomeLocked
	OutcomeUnknownUser
	OutcomeRecordingFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeInvalidCredentials:
		return "invalid_credentials"
	case OutcomeLocked:
		return "locked"
	case OutcomeUnknownUser:
		return "unknown_user"
	case OutcomeRecordingFailed:
		return "recording_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AuthResult is the verdict of AttemptLogin.
type AuthResult struct {
	Outcome Outcome
	// Admin is set only when the attempt was accepted.
	Admin *model.Admin
	// Remaining is the lock time left. It is set for OutcomeLocked and for
	// OutcomeInvalidCredentials when that failure locked the account.
	Remaining time.Duration
}

// Accepted reports whether the credentials were accepted.
func (r AuthResult) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// Err converts a rejected result into the error an external caller may see.
// Unknown user and invalid credentials collapse into ErrInvalidCredentials.
func (r AuthResult) Err() error {
	switch r.Outcome {
	case OutcomeAccepted:
		return nil
	case OutcomeLocked:
		return &LockedError{Remaining: r.Remaining}
	case OutcomeRecordingFailed:
		return lockout.ErrRecordingFailed
	default:
		return ErrInvalidCredentials
	}
}

// AuthService authenticates administrators and manages their credentials.
type AuthService struct {
	store     *config.Store
	validator *credential.Validator
	lockout   *lockout.Machine
	logger    *slog.Logger
}

// NewAuthService wires the credential validator and the lockout state
// machine to store. A nil validator uses the default policy and cost; a nil
// logger discards output.
func NewAuthService(store *config.Store, validator *credential.Validator, policy lockout.Policy, logger *slog.Logger) *AuthService {
	if validator == nil {
		validator = credential.NewValidator(nil, nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{
		store:     store,
		validator: validator,
		lockout:   lockout.New(store, policy, logger),
		logger:    logger,
	}
}

// Validator returns the credential validator in use.
func (s *AuthService) Validator() *credential.Validator {
	return s.validator
}

// LockoutPolicy returns the effective lockout policy.
func (s *AuthService) LockoutPolicy() lockout.Policy {
	return s.lockout.Policy()
}

// Ping checks the record store.
func (s *AuthService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AttemptLogin authenticates username with password at now and records the
// attempt. The returned error is non-nil only for OutcomeRecordingFailed.
//
// An inactive account never authenticates; a correct password for it counts
// as a failure. An unknown username spends the same hashing work as a known
// one before being rejected.
func (s *AuthService) AttemptLogin(ctx context.Context, username, password string, now time.Time) (AuthResult, error) {
	log := s.logger.With("username", username)

	locked, remaining, err := s.lockout.IsLocked(ctx, username, now)
	if err != nil {
		log.Error("login check failed", "error", err)
		return AuthResult{Outcome: OutcomeRecordingFailed}, fmt.Errorf("%w: %w", lockout.ErrRecordingFailed, err)
	}
	if locked {
		log.Warn("login rejected: account locked", "remaining_seconds", lockout.Seconds(remaining))
		return AuthResult{Outcome: OutcomeLocked, Remaining: remaining}, nil
	}

	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			s.validator.BurnVerification(password)
			log.Warn("login rejected: unknown username")
			return AuthResult{Outcome: OutcomeUnknownUser}, nil
		}
		log.Error("login lookup failed", "error", err)
		return AuthResult{Outcome: OutcomeRecordingFailed}, fmt.Errorf("%w: %w", lockout.ErrRecordingFailed, err)
	}

	verified := s.validator.Verify(password, admin)
	success := verified && admin.IsActive
	if verified && !admin.IsActive {
		log.Warn("login rejected: account inactive")
	}

	decision, err := s.lockout.RecordAttempt(ctx, username, success, now)
	if err != nil {
		log.Error("recording login attempt failed", "error", err)
		return AuthResult{Outcome: OutcomeRecordingFailed}, err
	}

	if !decision.Accepted {
		// The record changed between the lock check and the recording.
		if decision.Locked {
			return AuthResult{Outcome: OutcomeLocked, Remaining: decision.Remaining}, nil
		}
		return AuthResult{Outcome: OutcomeUnknownUser}, nil
	}

	if success {
		admin.FailedLoginAttempts = 0
		admin.AccountLockedUntil = nil
		log.Info("admin authenticated")
		return AuthResult{Outcome: OutcomeAccepted, Admin: admin}, nil
	}

	result := AuthResult{Outcome: OutcomeInvalidCredentials}
	if decision.Locked {
		result.Remaining = decision.Remaining
	}
	log.Warn("login rejected: invalid password", "failures", decision.Failures)
	return result, nil
}

// IsLocked reports whether username is locked at now. Unknown usernames are
// not locked.
func (s *AuthService) IsLocked(ctx context.Context, username string, now time.Time) (bool, time.Duration, error) {
	return s.lockout.IsLocked(ctx, username, now)
}

// SetPassword replaces the password of username. A policy violation returns
// *credential.WeakPasswordError and nothing is stored. The legacy salt is
// dropped since the new hash is always adaptive. Lockout state is untouched.
func (s *AuthService) SetPassword(ctx context.Context, username, newPassword string) error {
	hash, err := s.validator.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.updateAdmin(ctx, username, func(a *model.Admin) error {
		a.PasswordHash = hash
		a.LegacySalt = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.logger.Info("password changed", "username", username)
	return nil
}

// maxUpdateRetries bounds the reload loop of updateAdmin.
const maxUpdateRetries = 10

// updateAdmin loads username, applies mutate and saves it, reloading when a
// concurrent writer (usually a login attempt) got there first.
func (s *AuthService) updateAdmin(ctx context.Context, username string, mutate func(*model.Admin) error) (*model.Admin, error) {
	for i := 0; i < maxUpdateRetries; i++ {
		admin, err := s.store.GetAdminByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if err := mutate(admin); err != nil {
			return nil, err
		}
		err = s.store.SaveAdmin(ctx, admin)
		if errors.Is(err, config.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return admin, nil
	}
	return nil, config.ErrConflict
}
