package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

var prefixRe = regexp.MustCompile(`^[a-z0-9_]*$`)

// Seams for tests.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseStatusContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.StatusContext(ctx, db, dir, opts...)
	}
	gooseResetContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.ResetContext(ctx, db, dir, opts...)
	}
)

// OpenDB opens a database/sql handle over the pgx driver for goose.
func OpenDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded schema. Table names carry tablePrefix,
// and so does the goose version table.
func RunMigrations(ctx context.Context, db *sql.DB, tablePrefix string) error {
	if err := configureGoose(tablePrefix); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrationDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of each migration.
func MigrationStatus(ctx context.Context, db *sql.DB, tablePrefix string) error {
	if err := configureGoose(tablePrefix); err != nil {
		return err
	}
	return gooseStatusContext(ctx, db, migrationDir)
}

// ResetMigrations rolls back every applied migration, dropping the
// prefixed tables and their data.
func ResetMigrations(ctx context.Context, db *sql.DB, tablePrefix string) error {
	if err := configureGoose(tablePrefix); err != nil {
		return err
	}
	if err := gooseResetContext(ctx, db, migrationDir); err != nil {
		return fmt.Errorf("reset migrations: %w", err)
	}
	return nil
}

func configureGoose(tablePrefix string) error {
	if !prefixRe.MatchString(tablePrefix) {
		return fmt.Errorf("invalid table prefix %q: only lowercase letters, digits and underscores", tablePrefix)
	}

	goose.SetBaseFS(migrationFS)
	goose.SetTableName(tablePrefix + "goose_db_version")
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	// Read by the ENVSUB sections of the migration files
	if err := os.Setenv("TABLE_PREFIX", tablePrefix); err != nil {
		return fmt.Errorf("export table prefix: %w", err)
	}
	return nil
}
