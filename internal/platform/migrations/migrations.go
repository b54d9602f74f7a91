// Package migrations carries the embedded schema and applies it at boot.
// The DDL is idempotent, so Apply can run on every start without a
// version table; cmd/migrate drives the same files through golang-migrate
// for deployments that want tracked up/down control.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Files exposes the embedded migration sources for migration drivers.
func Files() fs.FS {
	return files
}

// Apply executes every up migration in lexical order against the
// database. Statements use IF NOT EXISTS guards, so reapplying a schema
// that is already in place is a no-op.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		ddl, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}
