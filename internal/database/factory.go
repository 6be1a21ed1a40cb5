package database

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"ev-go/internal/config"
	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

const memoryPath = ":memory:"

// pathFromConfig returns where the database of the vault rooted at root
// lives for the configured database type.
func pathFromConfig(cfg config.DatabaseConfig, root string) (string, error) {
	switch cfg.Type {
	case "sqlite", "":
		if root == "" {
			return "", vaulterr.New(vaulterr.Validation, "vault root required for sqlite database")
		}
		return filepath.Join(root, FileName), nil
	case "memory":
		return memoryPath, nil
	default:
		return "", vaulterr.New(vaulterr.Validation, "unknown database type: %s", cfg.Type)
	}
}

// CreateDatabaseFromConfig creates and migrates the database of a new vault
// rooted at root. It refuses to touch an existing vault database.
func CreateDatabaseFromConfig(cfg config.DatabaseConfig, root string) (ev.Database, error) {
	path, err := pathFromConfig(cfg, root)
	if err != nil {
		return nil, err
	}

	if path != memoryPath {
		if _, err := os.Stat(path); err == nil {
			return nil, vaulterr.New(vaulterr.Validation, "vault already exists at %s", root)
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, vaulterr.Wrap(vaulterr.IO, err, "creating vault root")
		}
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDatabaseFromConfig opens the database of an existing vault and checks
// that its schema matches this binary. A memory database has nothing to
// open, so it is created fresh.
func OpenDatabaseFromConfig(cfg config.DatabaseConfig, root string) (ev.Database, error) {
	path, err := pathFromConfig(cfg, root)
	if err != nil {
		return nil, err
	}
	if path == memoryPath {
		return CreateDatabaseFromConfig(cfg, root)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.New(vaulterr.NotFound, "no vault at %s", root)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "checking vault database")
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, vaulterr.Wrap(vaulterr.CorruptVault, err, "checking schema")
	}
	return db, nil
}
