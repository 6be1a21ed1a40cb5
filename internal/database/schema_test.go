package database

import (
	"database/sql"
	"testing"

	"ev-go/internal/database/migrations"
)

// The sqlc snapshot must describe the same objects the migrations create.
func TestSchema_matchesMigrations(t *testing.T) {
	fromSnapshot := objects(t, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	fromMigrations := objects(t, migrations.Up)

	if len(fromSnapshot) != len(fromMigrations) {
		t.Fatalf("snapshot has %d objects, migrations %d; run go generate ./internal/database",
			len(fromSnapshot), len(fromMigrations))
	}
	for name, stmt := range fromMigrations {
		if fromSnapshot[name] != stmt {
			t.Errorf("%s differs from snapshot:\n%s\nwant:\n%s", name, fromSnapshot[name], stmt)
		}
	}
}

func objects(t *testing.T, apply func(*sql.DB) error) map[string]string {
	t.Helper()
	db, err := OpenConnection(memoryPath)
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	defer db.Close()
	if err := apply(db); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	rows, err := db.Query(`SELECT name, sql FROM sqlite_master
		WHERE sql IS NOT NULL AND tbl_name != 'schema_migrations' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		t.Fatalf("reading sqlite_master: %v", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, stmt string
		if err := rows.Scan(&name, &stmt); err != nil {
			t.Fatalf("scanning sqlite_master: %v", err)
		}
		out[name] = stmt
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("reading sqlite_master: %v", err)
	}
	return out
}
