package repository

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"  // register sqlite3 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending migration for the driver. It opens its own
// connection from dsn so closing the migrator never touches the caller's pool.
func Migrate(driver, dsn string) error {
	m, err := newMigrator(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: run migrations up: %w", driver, err)
	}
	return nil
}

// MigrateDown rolls back every migration
func MigrateDown(driver, dsn string) error {
	m, err := newMigrator(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: run migrations down: %w", driver, err)
	}
	return nil
}

func newMigrator(driver, dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("%s: open migrations: %w", driver, err)
	}

	url, err := migrationURL(driver, dsn)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("%s: create migrator: %w", driver, err)
	}
	return m, nil
}

// migrationURL turns a database/sql DSN into the URL form golang-migrate expects
func migrationURL(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return dsn, nil
		}
		return "", fmt.Errorf("postgres: migrations need a URL DSN, got a keyword DSN")
	case DriverSQLite:
		return "sqlite3://" + strings.TrimPrefix(dsn, "file:"), nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}
