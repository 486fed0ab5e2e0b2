package config

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by SaveAdmin when the record changed since it was
// loaded. The caller should reload and reapply its change.
var ErrConflict = errors.New("record modified concurrently")

// ErrDuplicate is returned when a username is already taken.
var ErrDuplicate = errors.New("username already exists")

// ErrLastActive is returned by DeactivateAdmin when the record is the only
// active admin account.
var ErrLastActive = errors.New("cannot deactivate the last active administrator")
