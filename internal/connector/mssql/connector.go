package mssql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	mssqldriver "github.com/microsoft/go-mssqldb"

	"github.com/consultease/adminguard/internal/connector"
)

// SQL Server error numbers for unique constraint and unique index violations.
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
)

// MSSQLConnector implements connector.Connector for SQL Server databases.
type MSSQLConnector struct {
	db *sqlx.DB
}

// New creates a new MSSQLConnector.
func New() connector.Connector {
	return &MSSQLConnector{}
}

// Connect establishes a connection to the SQL Server database using the
// provided configuration and applies the pool settings.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlserver", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
	}

	connector.ApplyPool(db, cfg)

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

// Migrations returns the SQL Server DDL for the admins table. SQL Server has
// no CREATE TABLE IF NOT EXISTS, so the statement is guarded by OBJECT_ID.
// The binary collation makes username comparisons case-sensitive.
func (c *MSSQLConnector) Migrations() []string {
	return []string{
		`IF OBJECT_ID(N'dbo.admins', N'U') IS NULL
		CREATE TABLE dbo.admins (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			username NVARCHAR(255) COLLATE Latin1_General_100_BIN2 NOT NULL CONSTRAINT uq_admins_username UNIQUE,
			password_hash NVARCHAR(255) NOT NULL,
			legacy_salt NVARCHAR(255) NOT NULL DEFAULT '',
			is_active BIT NOT NULL DEFAULT 1,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			last_failed_login_at DATETIMEOFFSET NULL,
			account_locked_until DATETIMEOFFSET NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(),
			updated_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET()
		)`,
	}
}

// InsertReturningID places an OUTPUT INSERTED.id clause ahead of VALUES in
// the named insert and scans the generated identity.
func (c *MSSQLConnector) InsertReturningID(ctx context.Context, query string, arg interface{}) (int64, error) {
	idx := strings.Index(query, "VALUES")
	if idx < 0 {
		return 0, fmt.Errorf("insert statement has no VALUES clause")
	}
	query = query[:idx] + "OUTPUT INSERTED.id " + query[idx:]

	rows, err := c.db.NamedQueryContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("insert returned no id")
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}

// IsUniqueViolation reports whether err is a unique constraint or unique
// index violation.
func (c *MSSQLConnector) IsUniqueViolation(err error) bool {
	var msErr mssqldriver.Error
	if !errors.As(err, &msErr) {
		return false
	}
	return msErr.Number == errUniqueConstraint || msErr.Number == errUniqueIndex
}

// DriverName returns the driver identifier for SQL Server.
func (c *MSSQLConnector) DriverName() string { return "mssql" }

// QuoteIdentifier wraps a SQL identifier in brackets, escaping any
// embedded closing brackets to prevent SQL injection.
func (c *MSSQLConnector) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
