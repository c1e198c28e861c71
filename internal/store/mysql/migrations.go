package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationsTable keeps the console's schema version apart from the
// platform's own migration bookkeeping.
const MigrationsTable = "admin_audit_schema_migrations"

// Migrate ensures the console-owned tables (the audit log) exist.
// The migrations are create-if-absent, so running against a database where
// the table was created by hand is safe. The migrator runs on its own
// connection, which is returned to the pool before Migrate returns.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve migration connection: %w", err)
	}

	// WithConnection leaves the pool alone on Close; WithInstance would
	// close db with it.
	driver, err := migratemysql.WithConnection(ctx, conn, &migratemysql.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
