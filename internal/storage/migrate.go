package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies every pending migration under dir of schema to driver.
// It is shared by the sqlite and postgres stores.
func MigrateUp(schema fs.FS, dir, dbName string, driver database.Driver) error {
	src, err := iofs.New(schema, dir)
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", dbName, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return fmt.Errorf("prepare %s migrations: %w", dbName, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s schema: %w", dbName, err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Debug("Ledger schema ready", "database", dbName, "version", version, "dirty", dirty)
	}
	return nil
}

// RunMigrations brings the sqlite ledger schema at dsn up to date.
func RunMigrations(dsn string) error {
	// migrate closes the connection it is handed, so it gets its own
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	return MigrateUp(migrationsFS, "migrations", "sqlite", driver)
}
