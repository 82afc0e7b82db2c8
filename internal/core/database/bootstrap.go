package db

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// EnsureBootstrapped applies the embedded schema. Every statement is
// idempotent, so re-running on an existing database is a no-op.
func EnsureBootstrapped(ctx context.Context, conn *sqlx.DB) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	schema, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	// SQLite executes one statement at a time.
	for _, stmt := range strings.Split(string(schema), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.ExecContext(ctxBoot, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
