package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/model"
)

func validUsername(username string) bool {
	return strings.TrimSpace(username) != ""
}

// CreateAdmin provisions an active administrator. The password must satisfy
// the policy; a taken username returns config.ErrDuplicate.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	if !validUsername(username) {
		return nil, ErrInvalidUsername
	}
	hash, err := s.validator.Hash(password)
	if err != nil {
		return nil, err
	}

	admin := &model.Admin{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	s.logger.Info("admin created", "username", username, "id", admin.ID)
	return admin, nil
}

// ChangePassword replaces the password after verifying the current one. The
// verification is a full login attempt and counts toward lockout. The new
// password is checked against the policy before the current one is verified.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string, now time.Time) error {
	if err := s.validator.Policy().Check(newPassword); err != nil {
		return err
	}

	result, err := s.AttemptLogin(ctx, username, currentPassword, now)
	if err != nil {
		return err
	}
	if !result.Accepted() {
		return result.Err()
	}
	return s.SetPassword(ctx, username, newPassword)
}

// ChangeUsername renames an administrator after verifying its password with
// a login attempt.
func (s *AuthService) ChangeUsername(ctx context.Context, username, password, newUsername string, now time.Time) error {
	if !validUsername(newUsername) {
		return ErrInvalidUsername
	}

	result, err := s.AttemptLogin(ctx, username, password, now)
	if err != nil {
		return err
	}
	if !result.Accepted() {
		return result.Err()
	}
	if newUsername == username {
		return nil
	}

	if _, err := s.updateAdmin(ctx, username, func(a *model.Admin) error {
		a.Username = newUsername
		return nil
	}); err != nil {
		return fmt.Errorf("change username: %w", err)
	}
	s.logger.Info("username changed", "from", username, "to", newUsername)
	return nil
}

// Activate marks an administrator active.
func (s *AuthService) Activate(ctx context.Context, username string) error {
	if _, err := s.updateAdmin(ctx, username, func(a *model.Admin) error {
		a.IsActive = true
		return nil
	}); err != nil {
		return fmt.Errorf("activate admin: %w", err)
	}
	s.logger.Info("admin activated", "username", username)
	return nil
}

// Deactivate marks an administrator inactive. The last active administrator
// cannot be deactivated.
func (s *AuthService) Deactivate(ctx context.Context, username string) error {
	for i := 0; i < maxUpdateRetries; i++ {
		admin, err := s.store.GetAdminByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("deactivate admin: %w", err)
		}
		if !admin.IsActive {
			return nil
		}
		err = s.store.DeactivateAdmin(ctx, admin)
		switch {
		case err == nil:
			s.logger.Info("admin deactivated", "username", username)
			return nil
		case errors.Is(err, config.ErrConflict):
			continue
		case errors.Is(err, ErrLastActiveAdmin):
			s.logger.Warn("refused to deactivate the last active admin", "username", username)
			return err
		default:
			return fmt.Errorf("deactivate admin: %w", err)
		}
	}
	return fmt.Errorf("deactivate admin: %w", config.ErrConflict)
}

// EnsureDefaultAdmin creates username with password when the store holds no
// administrators at all. It reports whether an account was created.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	has, err := s.store.HasAnyAdmin(ctx)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if _, err := s.CreateAdmin(ctx, username, password); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			// Another instance bootstrapped first.
			return false, nil
		}
		return false, fmt.Errorf("create default admin: %w", err)
	}
	s.logger.Warn("created default admin, change its password", "username", username)
	return true, nil
}

// ImportResult summarizes a legacy import.
type ImportResult struct {
	Imported []string
	Skipped  []string
}

// ImportLegacy stores pre-bcrypt accounts with their digests and salts
// verbatim, so they keep authenticating without a reset. Existing usernames
// are skipped, never overwritten.
func (s *AuthService) ImportLegacy(ctx context.Context, imp *config.LegacyImport) (*ImportResult, error) {
	res := &ImportResult{}
	for _, entry := range imp.Admins {
		admin := &model.Admin{
			Username:     entry.Username,
			PasswordHash: entry.PasswordHash,
			LegacySalt:   entry.Salt,
			IsActive:     entry.Active(),
		}
		err := s.store.CreateAdmin(ctx, admin)
		switch {
		case err == nil:
			res.Imported = append(res.Imported, entry.Username)
		case errors.Is(err, config.ErrDuplicate):
			res.Skipped = append(res.Skipped, entry.Username)
		default:
			return res, fmt.Errorf("import %q: %w", entry.Username, err)
		}
	}
	s.logger.Info("legacy import finished", "imported", len(res.Imported), "skipped", len(res.Skipped))
	return res, nil
}

// GetAdmin returns the full record for username.
func (s *AuthService) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	return s.store.GetAdminByUsername(ctx, username)
}

// ListAdmins returns a summary of every administrator with its lock state at
// now.
func (s *AuthService) ListAdmins(ctx context.Context, now time.Time) ([]model.AdminSummary, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.AdminSummary, 0, len(admins))
	for _, a := range admins {
		locked, _ := lockout.Status(a.AccountLockedUntil, now)
		out = append(out, model.AdminSummary{
			ID:        a.ID,
			Username:  a.Username,
			IsActive:  a.IsActive,
			Locked:    locked,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}
