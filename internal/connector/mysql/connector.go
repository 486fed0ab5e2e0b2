package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/consultease/adminguard/internal/connector"
)

// erDupEntry is the MySQL error number for a duplicate key.
const erDupEntry = 1062

// MySQLConnector implements connector.Connector for MySQL databases.
type MySQLConnector struct {
	db *sqlx.DB
}

// New creates a new MySQLConnector.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database using the provided
// configuration. Timestamps are always parsed into time.Time in UTC.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn, err := withTimeParsing(cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}

	connector.ApplyPool(db, cfg)

	c.db = db
	return nil
}

func withTimeParsing(dsn string) (string, error) {
	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// Migrations returns the MySQL DDL for the admins table. Usernames use a
// binary collation so that lookups are case-sensitive.
func (c *MySQLConnector) Migrations() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS admins (" +
			"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
			"username VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL, " +
			"password_hash VARCHAR(255) NOT NULL, " +
			"legacy_salt VARCHAR(255) NOT NULL DEFAULT '', " +
			"is_active BOOLEAN NOT NULL DEFAULT TRUE, " +
			"failed_login_attempts INT NOT NULL DEFAULT 0, " +
			"last_failed_login_at DATETIME(6) NULL, " +
			"account_locked_until DATETIME(6) NULL, " +
			"version BIGINT NOT NULL DEFAULT 1, " +
			"created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6), " +
			"updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6), " +
			"UNIQUE KEY uq_admins_username (username)" +
			") DEFAULT CHARSET=utf8mb4",
	}
}

// InsertReturningID executes a named insert and reads LAST_INSERT_ID().
func (c *MySQLConnector) InsertReturningID(ctx context.Context, query string, arg interface{}) (int64, error) {
	result, err := c.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// IsUniqueViolation reports whether err is ER_DUP_ENTRY.
func (c *MySQLConnector) IsUniqueViolation(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// QuoteIdentifier wraps a SQL identifier in backticks, escaping any
// embedded backticks to prevent SQL injection.
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
