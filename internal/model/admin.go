package model

import "time"

// Admin is an administrator account. Credentials are stored as a
// self-describing password hash; LegacySalt is only populated for records
// created before bcrypt was introduced and is empty for everything newer.
//
// The lockout fields are owned by the lockout state machine. Version is bumped
// by the store on every write and is used for compare-and-swap updates.
type Admin struct {
	ID                  int64      `json:"id" db:"id"`
	Username            string     `json:"username" db:"username"`
	PasswordHash        string     `json:"-" db:"password_hash"` // never expose
	LegacySalt          string     `json:"-" db:"legacy_salt"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	FailedLoginAttempts int        `json:"failed_login_attempts" db:"failed_login_attempts"`
	LastFailedLoginAt   *time.Time `json:"last_failed_login_at,omitempty" db:"last_failed_login_at"`
	AccountLockedUntil  *time.Time `json:"account_locked_until,omitempty" db:"account_locked_until"`
	Version             int64      `json:"-" db:"version"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// AdminSummary is the public projection of an Admin used by list endpoints,
// the CLI and MCP tools.
type AdminSummary struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
}
