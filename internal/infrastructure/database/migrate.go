package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// NewMigrator builds a migrate instance over the embedded migrations of the
// connected dialect. Closing the returned instance also closes the database.
func (d *DB) NewMigrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver migratedb.Driver
	switch d.Dialect {
	case MySQL:
		driver, err = migratemysql.WithInstance(d.DB.DB, &migratemysql.Config{})
	case SQLite:
		driver, err = migratesqlite.WithInstance(d.DB.DB, &migratesqlite.Config{})
	default:
		driver, err = migratepg.WithInstance(d.DB.DB, &migratepg.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Dialect.DriverName(), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration
func (d *DB) RunMigrations() error {
	m, err := d.NewMigrator()
	if err != nil {
		return err
	}
	// m.Close is not called: it would close the shared connection pool

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
