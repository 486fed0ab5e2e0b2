package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/consultease/adminguard/internal/connector"
	"github.com/consultease/adminguard/internal/connector/mssql"
	"github.com/consultease/adminguard/internal/connector/mysql"
	"github.com/consultease/adminguard/internal/connector/postgres"
	"github.com/consultease/adminguard/internal/connector/sqlite"
	"github.com/consultease/adminguard/internal/model"
)

// storeName is the registry key of the administrator record store.
const storeName = "admins"

// Store persists administrator records. It is the serialization point for
// the lockout state machine: SaveAdmin is a compare-and-swap on the record's
// version, so concurrent writers never lose each other's updates.
type Store struct {
	registry *connector.Registry
	conn     connector.Connector
	db       *sqlx.DB
	table    string
}

// NewRegistry returns a connector registry with every supported backend
// registered.
func NewRegistry() *connector.Registry {
	r := connector.NewRegistry()
	r.RegisterDriver("sqlite", sqlite.New)
	r.RegisterDriver("postgres", postgres.New)
	r.RegisterDriver("mysql", mysql.New)
	r.RegisterDriver("mssql", mssql.New)
	return r
}

// NewStore creates a SQLite-backed store under dataDir. Pass empty string for
// in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "adminguard.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return Open(connector.ConnectionConfig{Driver: "sqlite", DSN: dsn})
}

// Open connects to the backend described by cfg and migrates it.
func Open(cfg connector.ConnectionConfig) (*Store, error) {
	registry := NewRegistry()
	conn, err := registry.Connect(storeName, cfg)
	if err != nil {
		return nil, fmt.Errorf("open admin store: %w", err)
	}

	s := &Store{
		registry: registry,
		conn:     conn,
		db:       conn.DB(),
		table:    conn.QuoteIdentifier("admins"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		registry.CloseAll()
		return nil, fmt.Errorf("migrate admin store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.registry.Disconnect(storeName)
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Driver returns the backend driver name.
func (s *Store) Driver() string {
	return s.conn.DriverName()
}

// ---------------------------------------------------------------------------
// Admin CRUD
// ---------------------------------------------------------------------------

const adminColumns = `id, username, password_hash, legacy_salt, is_active,
	failed_login_attempts, last_failed_login_at, account_locked_until,
	version, created_at, updated_at`

// CreateAdmin inserts a new admin account. The ID, Version, CreatedAt, and
// UpdatedAt fields are populated after a successful insert. A taken username
// returns ErrDuplicate.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	admin.Version = 1
	normalizeTimes(admin)

	q := `INSERT INTO ` + s.table + ` (username, password_hash, legacy_salt, is_active,
		failed_login_attempts, last_failed_login_at, account_locked_until,
		version, created_at, updated_at)
		VALUES (:username, :password_hash, :legacy_salt, :is_active,
		:failed_login_attempts, :last_failed_login_at, :account_locked_until,
		:version, :created_at, :updated_at)`

	id, err := s.conn.InsertReturningID(ctx, q, admin)
	if err != nil {
		if s.conn.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, admin.Username)
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM " + s.table + " WHERE id = ?")
	if err := s.db.GetContext(ctx, &admin, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// GetAdminByUsername returns an admin by its exact, case-sensitive username.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM " + s.table + " WHERE username = ?")
	if err := s.db.GetContext(ctx, &admin, q, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by username: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by username.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	q := "SELECT " + adminColumns + " FROM " + s.table + " ORDER BY username"
	if err := s.db.SelectContext(ctx, &admins, q); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// to decide whether a bootstrap administrator should be created.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+s.table); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// SaveAdmin writes every mutable field of admin, provided the stored version
// still equals admin.Version. On success admin.Version and admin.UpdatedAt
// reflect the stored row. A stale version returns ErrConflict, a missing row
// ErrNotFound, and a username collision ErrDuplicate.
func (s *Store) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	updated := *admin
	updated.UpdatedAt = time.Now().UTC()
	normalizeTimes(&updated)

	q := `UPDATE ` + s.table + ` SET
		username = :username, password_hash = :password_hash, legacy_salt = :legacy_salt,
		is_active = :is_active, failed_login_attempts = :failed_login_attempts,
		last_failed_login_at = :last_failed_login_at, account_locked_until = :account_locked_until,
		version = version + 1, updated_at = :updated_at
		WHERE id = :id AND version = :version`

	result, err := s.db.NamedExecContext(ctx, q, &updated)
	if err != nil {
		if s.conn.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, admin.Username)
		}
		return fmt.Errorf("update admin: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin rows affected: %w", err)
	}
	if n == 0 {
		return s.missingOrConflict(ctx, s.db, admin.ID)
	}

	admin.Version++
	admin.UpdatedAt = updated.UpdatedAt
	return nil
}

// DeactivateAdmin marks admin inactive, provided the stored version still
// equals admin.Version and at least one other account stays active. The
// active rows are locked for the check, so concurrent deactivations of
// different accounts cannot leave the store without an active admin. The last
// active account returns ErrLastActive, a stale version ErrConflict.
func (s *Store) DeactivateAdmin(ctx context.Context, admin *model.Admin) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate: %w", err)
	}
	defer tx.Rollback()

	var active []int64
	if err := tx.SelectContext(ctx, &active, tx.Rebind(s.lockActiveQuery()), true); err != nil {
		return fmt.Errorf("lock active admins: %w", err)
	}
	others := 0
	for _, id := range active {
		if id != admin.ID {
			others++
		}
	}
	if others == 0 && len(active) > 0 {
		return ErrLastActive
	}

	updatedAt := time.Now().UTC()
	q := tx.Rebind(`UPDATE ` + s.table + ` SET is_active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	result, err := tx.ExecContext(ctx, q, false, updatedAt, admin.ID, admin.Version)
	if err != nil {
		return fmt.Errorf("deactivate admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate admin rows affected: %w", err)
	}
	if n == 0 {
		return s.missingOrConflict(ctx, tx, admin.ID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivate: %w", err)
	}

	admin.IsActive = false
	admin.Version++
	admin.UpdatedAt = updatedAt
	return nil
}

// lockActiveQuery selects the ids of active admins with a row lock held until
// the transaction ends. Rows are locked in id order. SQLite runs on a single
// connection, where the transaction alone serializes writers.
func (s *Store) lockActiveQuery() string {
	switch s.conn.DriverName() {
	case "postgres", "mysql":
		return "SELECT id FROM " + s.table + " WHERE is_active = ? ORDER BY id FOR UPDATE"
	case "mssql":
		return "SELECT id FROM " + s.table + " WITH (UPDLOCK, HOLDLOCK) WHERE is_active = ? ORDER BY id"
	default:
		return "SELECT id FROM " + s.table + " WHERE is_active = ? ORDER BY id"
	}
}

// missingOrConflict distinguishes why a versioned update matched no row.
func (s *Store) missingOrConflict(ctx context.Context, q sqlx.QueryerContext, id int64) error {
	var count int
	query := s.db.Rebind("SELECT COUNT(*) FROM " + s.table + " WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &count, query, id); err != nil {
		return fmt.Errorf("check admin existence: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// normalizeTimes stores every timestamp in UTC so that backends without a
// zone-aware column type read back the same instant.
func normalizeTimes(a *model.Admin) {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if a.LastFailedLoginAt != nil {
		t := a.LastFailedLoginAt.UTC()
		a.LastFailedLoginAt = &t
	}
	if a.AccountLockedUntil != nil {
		t := a.AccountLockedUntil.UTC()
		a.AccountLockedUntil = &t
	}
}
