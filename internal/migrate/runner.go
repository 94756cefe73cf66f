// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/facturo/facturo/migrations"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// ErrMissingDSN is returned when no database URL was given.
var ErrMissingDSN = errors.New("DATABASE_URL is not set")

// ErrInvalidDirection is returned for anything other than Up or Down.
var ErrInvalidDirection = errors.New("direction must be up or down")

// Run applies every pending migration (Up) or rolls all of them back (Down).
// Being already at the target version is not an error.
func Run(dsn, direction string) error {
	if dsn == "" {
		return ErrMissingDSN
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("%w, got %q", ErrInvalidDirection, direction)
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}

// Version reports the applied schema version and whether the last
// migration left the schema dirty. Version 0 means nothing is applied.
func Version(dsn string) (uint, bool, error) {
	if dsn == "" {
		return 0, false, ErrMissingDSN
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate version: %w", err)
	}
	return version, dirty, nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
