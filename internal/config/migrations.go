package config

import (
	"context"
	"fmt"
	"strings"
)

// migrate applies the connector's DDL. Every statement is idempotent, so this
// runs on each open.
func (s *Store) migrate(ctx context.Context) error {
	for _, m := range s.conn.Migrations() {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			// Two processes opening a fresh store can race on CREATE;
			// the loser's error is a no-op.
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "There is already an object named")
}
