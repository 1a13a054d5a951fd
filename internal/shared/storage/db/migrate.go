package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded goose migrations. A nil database is a
// no-op so in-memory runs can share the startup path.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, "migrations")
}

// MigrationNames lists the embedded migration files in apply order.
func MigrationNames() ([]string, error) {
	return fs.Glob(migrationFiles, "migrations/*.sql")
}
