package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the idempotent schema for driver. Statements are executed
// one by one so the mysql driver does not need multiStatements.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	raw, err := migrations.ReadFile("migrations/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("database: no schema for driver %q: %w", driver, err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}
