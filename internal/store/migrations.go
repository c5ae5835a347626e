package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed migrations.sql
var migrationSQL string

// RunMigrations applies the embedded schema. Statements are idempotent,
// so rerunning on every startup is safe.
func (s *Store) RunMigrations(ctx context.Context) error {
	sql := strings.TrimSpace(migrationSQL)
	if sql == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("exec migrations: %w", err)
	}
	return nil
}
