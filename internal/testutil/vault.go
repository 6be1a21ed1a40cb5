package testutil

import (
	"testing"

	"ev-go/internal/archive"
	"ev-go/internal/config"
	"ev-go/internal/database"
	"ev-go/internal/encryption"
	"ev-go/internal/ev"
	"ev-go/internal/evidence"
	"ev-go/internal/export"
	"ev-go/internal/fs"
)

// TestActor is the actor recorded by test vaults.
const TestActor = "tester@acme.test"

// TestVault is a service over an in-memory database and a temp vault root,
// with handles on its doubles.
type TestVault struct {
	*ev.Service
	DB      ev.Database
	Root    string
	Clock   *StubClock
	IDs     *StubIDGenerator
	Archive *archive.MemoryArchive
	Sealer  *encryption.TestSealer
}

// NewTestVault creates and opens a vault named "Test Vault". Licenses
// signed by SignLicense verify against it.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	tv := NewUncreatedTestVault(t)
	if _, err := tv.CreateVault("Test Vault", TestActor); err != nil {
		t.Fatalf("CreateVault() error = %v", err)
	}
	return tv
}

// NewUncreatedTestVault wires a service without creating the vault row.
func NewUncreatedTestVault(t *testing.T) *TestVault {
	t.Helper()
	return newTestVault(t, t.TempDir(), NewTestDatabase(t))
}

// NewFileTestVault is NewTestVault with the database stored in the vault
// root, so tests can reach it over a second connection.
func NewFileTestVault(t *testing.T) *TestVault {
	t.Helper()
	root := t.TempDir()
	db, err := database.CreateDatabaseFromConfig(config.DatabaseConfig{Type: "sqlite"}, root)
	if err != nil {
		t.Fatalf("CreateDatabaseFromConfig() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tv := newTestVault(t, root, db)
	if _, err := tv.CreateVault("Test Vault", TestActor); err != nil {
		t.Fatalf("CreateVault() error = %v", err)
	}
	return tv
}

func newTestVault(t *testing.T, root string, db ev.Database) *TestVault {
	store := evidence.NewStore(root)
	clock := FixedClock()
	ids := NewStubIDGenerator()
	mem := archive.NewMemoryArchive("memory")
	sealer := encryption.NewTestSealer()

	svc := ev.NewService(
		db,
		store,
		export.NewBuilder(store, export.Deflate),
		fs.NewOSFilesystemManager(nil),
		NewLicenseVerifier(t),
		sealer,
		[]ev.Archive{mem},
		ev.NewNopLogger(),
		clock,
		ids,
	)
	return &TestVault{
		Service: svc,
		DB:      db,
		Root:    root,
		Clock:   clock,
		IDs:     ids,
		Archive: mem,
		Sealer:  sealer,
	}
}
