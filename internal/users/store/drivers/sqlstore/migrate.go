package sqlstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aussiebroadwan/haulage/internal/users/store/drivers/sqlstore/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies any pending migrations embedded for the store's
// driver. The migrate instance is never closed because closing it would
// close the store's database as well.
func (s *Store) ApplyMigrations() error {
	var (
		driver database.Driver
		files  fs.FS
		dir    string
		err    error
	)

	switch s.db.DriverName() {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(s.db.DB, &sqlite.Config{})
		files, dir = migrations.SQLite, "sqlite"
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.db.DB, &postgres.Config{})
		files, dir = migrations.Postgres, "postgres"
	default:
		return fmt.Errorf("sqlstore: no migrations for driver %q", s.db.DriverName())
	}
	if err != nil {
		return err
	}

	source, err := iofs.New(files, dir)
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, s.db.DriverName(), driver)
	if err != nil {
		return err
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
