package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/consultease/adminguard/internal/connector"
)

func newMemory(t *testing.T) connector.Connector {
	t.Helper()
	c := New()
	if err := c.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })

	for pass := 0; pass < 2; pass++ {
		for _, m := range c.Migrations() {
			if _, err := c.DB().Exec(m); err != nil {
				t.Fatalf("migration pass %d: %v", pass+1, err)
			}
		}
	}
	return c
}

func TestInsertReturningID(t *testing.T) {
	c := newMemory(t)
	ctx := context.Background()
	q := `INSERT INTO admins (username, password_hash) VALUES (:username, :password_hash)`

	for i, name := range []string{"alice", "bob"} {
		id, err := c.InsertReturningID(ctx, q, map[string]interface{}{"username": name, "password_hash": "x"})
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
		if id != int64(i+1) {
			t.Errorf("%s: id = %d, want %d", name, id, i+1)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	c := newMemory(t)
	ctx := context.Background()
	q := `INSERT INTO admins (username, password_hash) VALUES (:username, :password_hash)`
	arg := map[string]interface{}{"username": "alice", "password_hash": "x"}

	if _, err := c.InsertReturningID(ctx, q, arg); err != nil {
		t.Fatal(err)
	}
	_, err := c.InsertReturningID(ctx, q, arg)
	if !c.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false", err)
	}

	// Usernames differing only in case are distinct.
	arg["username"] = "Alice"
	if _, err := c.InsertReturningID(ctx, q, arg); err != nil {
		t.Errorf("insert Alice: %v", err)
	}

	for _, err := range []error{nil, errors.New("disk I/O error")} {
		if c.IsUniqueViolation(err) {
			t.Errorf("IsUniqueViolation(%v) = true", err)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	c := New()
	tests := map[string]string{
		"admins":     `"admins"`,
		`we"ird`:     `"we""ird"`,
		"with space": `"with space"`,
	}
	for in, want := range tests {
		if got := c.QuoteIdentifier(in); got != want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
	if c.DriverName() != "sqlite" {
		t.Errorf("DriverName = %q", c.DriverName())
	}
}

func TestPing(t *testing.T) {
	c := newMemory(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
