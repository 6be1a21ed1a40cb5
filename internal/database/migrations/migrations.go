// Package migrations applies the vault schema embedded in the binary.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"ev-go/internal/vaulterr"
)

//go:embed files/*.sql
var files embed.FS

// SchemaError reports a vault database whose schema version does not match
// the migrations compiled into this binary.
type SchemaError struct {
	Have  uint
	Want  uint
	Dirty bool
}

func (e *SchemaError) Error() string {
	switch {
	case e.Dirty:
		return fmt.Sprintf("schema is dirty at version %d", e.Have)
	case e.Have == 0:
		return "schema has no version"
	case e.Have < e.Want:
		return fmt.Sprintf("schema version %d is behind %d", e.Have, e.Want)
	default:
		return fmt.Sprintf("schema version %d is newer than this binary (%d)", e.Have, e.Want)
	}
}

// Unwrap classifies every schema mismatch as a corrupt vault.
func (e *SchemaError) Unwrap() error { return vaulterr.ErrCorruptVault }

// Up applies every pending migration. An up-to-date database is left alone.
func Up(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}
	// m is not closed: that would close db, which the caller owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Version returns the applied schema version, 0 for an unmigrated database.
func Version(db *sql.DB) (uint, error) {
	have, dirty, err := current(db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return have, &SchemaError{Have: have, Dirty: true}
	}
	return have, nil
}

// Check returns a *SchemaError unless db is exactly at Latest.
func Check(db *sql.DB) error {
	have, dirty, err := current(db)
	if err != nil {
		return err
	}
	want, err := Latest()
	if err != nil {
		return err
	}
	if dirty || have != want {
		return &SchemaError{Have: have, Want: want, Dirty: dirty}
	}
	return nil
}

// Latest returns the highest migration version embedded in the binary.
func Latest() (uint, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

func current(db *sql.DB) (uint, bool, error) {
	m, err := open(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return v, dirty, nil
}

func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing migrations: %w", err)
	}
	return m, nil
}

// lastVersion walks src from its first migration; Next fails past the end.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
