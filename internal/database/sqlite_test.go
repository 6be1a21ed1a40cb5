package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"ev-go/internal/canonical"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/ledger"
	"ev-go/internal/vaulterr"
)

const testVaultID = "01HQ3Z6K8M0000000000VAULT0"

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// drafter hands out drafts with unique event ids and increasing times.
type drafter struct {
	n int
}

func (d *drafter) next(eventType string, fields ...canonical.Field) ledger.Draft {
	d.n++
	return ledger.Draft{
		EventID:    fmt.Sprintf("01HQ3Z6K8M00000000EVENT%03d", d.n),
		VaultID:    testVaultID,
		OccurredAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Add(time.Duration(d.n) * time.Millisecond),
		Actor:      "alice",
		EventType:  eventType,
		Payload:    canonical.Object(fields...),
	}
}

// newVaultDB returns a database holding one vault and its VaultCreated event.
func newVaultDB(t *testing.T) (*SQLiteDatabase, *drafter) {
	t.Helper()
	db := newTestDB(t)
	d := &drafter{}

	_, err := db.CreateVault(&sqlc.Vault{
		VaultID:        testVaultID,
		Name:           "Acme",
		RootPath:       "/vaults/acme",
		EncryptionMode: "none",
		CreatedAt:      "2024-01-15T10:30:00.000Z",
	}, d.next("VaultCreated", canonical.F("name", canonical.String("Acme"))))
	if err != nil {
		t.Fatalf("CreateVault() error = %v", err)
	}
	return db, d
}

func countEvents(t *testing.T, db *SQLiteDatabase) int {
	t.Helper()
	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM audit_event").Scan(&n); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	return n
}

func evidenceItem(id, relPath string) *sqlc.EvidenceItem {
	return &sqlc.EvidenceItem{
		EvidenceID:   id,
		VaultID:      testVaultID,
		Filename:     "report.pdf",
		RelativePath: relPath,
		ContentType:  "application/pdf",
		ByteSize:     3,
		Sha256:       "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Source:       "manual_import",
		CreatedAt:    "2024-01-15T10:30:00.000Z",
	}
}

func TestSQLiteDatabase_CreateVault(t *testing.T) {
	t.Run("commits the row and its event", func(t *testing.T) {
		db, _ := newVaultDB(t)

		v, err := db.FindVault()
		if err != nil {
			t.Fatalf("FindVault() error = %v", err)
		}
		if v == nil || v.VaultID != testVaultID || v.Name != "Acme" {
			t.Fatalf("FindVault() = %+v", v)
		}

		events, err := db.ListEvents(0, 10)
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		if events[0].Seq != 1 || events[0].EventType != "VaultCreated" || events[0].PrevHash != ledger.GenesisHash {
			t.Errorf("event = %+v", events[0])
		}
	})

	t.Run("refuses a second vault", func(t *testing.T) {
		db, d := newVaultDB(t)

		_, err := db.CreateVault(&sqlc.Vault{VaultID: "other", Name: "x", RootPath: "/x", EncryptionMode: "none", CreatedAt: "t"},
			d.next("VaultCreated"))
		if vaulterr.KindOf(err) != vaulterr.Validation {
			t.Fatalf("CreateVault() error = %v, want VALIDATION_ERROR", err)
		}
		if got := countEvents(t, db); got != 1 {
			t.Errorf("events after refused create = %d, want 1", got)
		}
	})

	t.Run("returns nil for an empty database", func(t *testing.T) {
		db := newTestDB(t)
		v, err := db.FindVault()
		if err != nil {
			t.Fatalf("FindVault() error = %v", err)
		}
		if v != nil {
			t.Errorf("FindVault() = %+v, want nil", v)
		}
	})
}

func TestSQLiteDatabase_RenameVault(t *testing.T) {
	db, d := newVaultDB(t)

	if _, err := db.RenameVault(testVaultID, "Acme Corp", d.next("VaultRenamed")); err != nil {
		t.Fatalf("RenameVault() error = %v", err)
	}
	v, _ := db.FindVault()
	if v.Name != "Acme Corp" {
		t.Errorf("Name = %q, want Acme Corp", v.Name)
	}

	_, err := db.RenameVault("missing", "x", d.next("VaultRenamed"))
	if vaulterr.KindOf(err) != vaulterr.NotFound {
		t.Errorf("RenameVault(missing) error = %v, want NOT_FOUND", err)
	}
	if got := countEvents(t, db); got != 2 {
		t.Errorf("events = %d, want 2", got)
	}
}

func TestSQLiteDatabase_Evidence(t *testing.T) {
	t.Run("lists live items by relative path", func(t *testing.T) {
		db, d := newVaultDB(t)

		for _, item := range []*sqlc.EvidenceItem{
			evidenceItem("E2", "evidence/ff/ff_b.pdf"),
			evidenceItem("E1", "evidence/00/00_a.pdf"),
			evidenceItem("E3", "evidence/00/00_a.pdf"),
		} {
			if _, err := db.CreateEvidence(item, d.next("EvidenceAdded")); err != nil {
				t.Fatalf("CreateEvidence(%s) error = %v", item.EvidenceID, err)
			}
		}

		items, err := db.ListEvidence()
		if err != nil {
			t.Fatalf("ListEvidence() error = %v", err)
		}
		var ids []string
		for _, it := range items {
			ids = append(ids, it.EvidenceID)
		}
		if fmt.Sprint(ids) != "[E1 E3 E2]" {
			t.Errorf("ListEvidence() ids = %v, want [E1 E3 E2]", ids)
		}
	})

	t.Run("soft delete hides the item but keeps the row", func(t *testing.T) {
		db, d := newVaultDB(t)
		if _, err := db.CreateEvidence(evidenceItem("E1", "evidence/ba/ba_a.pdf"), d.next("EvidenceAdded")); err != nil {
			t.Fatalf("CreateEvidence() error = %v", err)
		}

		if _, err := db.DeleteEvidence("E1", "2024-01-16T00:00:00.000Z", d.next("EvidenceDeleted")); err != nil {
			t.Fatalf("DeleteEvidence() error = %v", err)
		}

		items, _ := db.ListEvidence()
		if len(items) != 0 {
			t.Errorf("ListEvidence() after delete = %d items, want 0", len(items))
		}
		item, err := db.FindEvidence("E1")
		if err != nil {
			t.Fatalf("FindEvidence() error = %v", err)
		}
		if item == nil || !item.DeletedAt.Valid {
			t.Errorf("FindEvidence() = %+v, want a deleted row", item)
		}
	})

	t.Run("deleting twice is not found and commits nothing", func(t *testing.T) {
		db, d := newVaultDB(t)
		db.CreateEvidence(evidenceItem("E1", "evidence/ba/ba_a.pdf"), d.next("EvidenceAdded"))
		db.DeleteEvidence("E1", "2024-01-16T00:00:00.000Z", d.next("EvidenceDeleted"))
		before := countEvents(t, db)

		_, err := db.DeleteEvidence("E1", "2024-01-17T00:00:00.000Z", d.next("EvidenceDeleted"))
		if !errors.Is(err, vaulterr.ErrNotFound) {
			t.Fatalf("second DeleteEvidence() error = %v, want NOT_FOUND", err)
		}
		if got := countEvents(t, db); got != before {
			t.Errorf("events = %d, want %d", got, before)
		}
	})

	t.Run("returns nil for an unknown id", func(t *testing.T) {
		db, _ := newVaultDB(t)
		item, err := db.FindEvidence("nope")
		if err != nil || item != nil {
			t.Errorf("FindEvidence(nope) = %+v, %v; want nil, nil", item, err)
		}
	})

	t.Run("an invalid event rolls back the row", func(t *testing.T) {
		db, d := newVaultDB(t)
		bad := d.next("EvidenceAdded")
		bad.Actor = ""

		_, err := db.CreateEvidence(evidenceItem("E1", "evidence/ba/ba_a.pdf"), bad)
		if vaulterr.KindOf(err) != vaulterr.Validation {
			t.Fatalf("CreateEvidence() error = %v, want VALIDATION_ERROR", err)
		}
		item, _ := db.FindEvidence("E1")
		if item != nil {
			t.Error("evidence row committed without its event")
		}
	})

	t.Run("a failed insert appends no event", func(t *testing.T) {
		db, d := newVaultDB(t)
		item := evidenceItem("E1", "evidence/ba/ba_a.pdf")
		item.VaultID = "no-such-vault"

		_, err := db.CreateEvidence(item, d.next("EvidenceAdded"))
		if vaulterr.KindOf(err) != vaulterr.Database {
			t.Fatalf("CreateEvidence() error = %v, want DATABASE_ERROR", err)
		}
		if got := countEvents(t, db); got != 1 {
			t.Errorf("events = %d, want 1", got)
		}
	})
}

func TestSQLiteDatabase_CreateLicenseInstall(t *testing.T) {
	db, d := newVaultDB(t)

	install := &sqlc.LicenseInstall{
		LicenseID:          "L1",
		VaultID:            testVaultID,
		InstalledAt:        "2024-01-15T10:30:00.000Z",
		PayloadJson:        `{"features":["EXPORT_PACKS"],"issued_at":"2024-01-01","issued_to":"Acme","license_id":"L1"}`,
		SignatureHex:       "00",
		VerificationStatus: "invalid",
		VerifiedAt:         "2024-01-15T10:30:00.000Z",
	}
	events, err := db.CreateLicenseInstall(install, []ledger.Draft{d.next("LicenseInstalled"), d.next("LicenseRejected")})
	if err != nil {
		t.Fatalf("CreateLicenseInstall() error = %v", err)
	}
	if len(events) != 2 || events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("events = %+v", events)
	}
	if events[1].PrevHash != events[0].Hash {
		t.Error("second event not chained to the first")
	}
	if install.InstallID == 0 {
		t.Error("InstallID not set")
	}

	second := *install
	second.LicenseID = "L2"
	second.VerificationStatus = "valid"
	if _, err := db.CreateLicenseInstall(&second, []ledger.Draft{d.next("LicenseInstalled"), d.next("LicenseValidated")}); err != nil {
		t.Fatalf("second CreateLicenseInstall() error = %v", err)
	}

	latest, err := db.FindLatestLicenseInstall()
	if err != nil {
		t.Fatalf("FindLatestLicenseInstall() error = %v", err)
	}
	if latest.LicenseID != "L2" || latest.VerificationStatus != "valid" {
		t.Errorf("latest = %+v, want L2/valid", latest)
	}

	t.Run("rejects an unknown status", func(t *testing.T) {
		bad := *install
		bad.VerificationStatus = "maybe"
		_, err := db.CreateLicenseInstall(&bad, []ledger.Draft{d.next("LicenseInstalled")})
		if vaulterr.KindOf(err) != vaulterr.Database {
			t.Errorf("error = %v, want DATABASE_ERROR", err)
		}
	})
}

func answer(id, question, short string) *sqlc.AnswerBankEntry {
	return &sqlc.AnswerBankEntry{
		EntryID:           id,
		VaultID:           testVaultID,
		QuestionCanonical: question,
		AnswerShort:       short,
		AnswerLong:        short + " in detail",
		EvidenceLinks:     "[]",
		Owner:             "alice",
		Tags:              "[]",
		Source:            "manual",
		ContentHash:       "h",
		CreatedAt:         "2000-01-01T00:00:00Z",
		UpdatedAt:         "2000-01-01T00:00:00Z",
	}
}

func TestSQLiteDatabase_Answers(t *testing.T) {
	db, d := newVaultDB(t)

	entries := []*sqlc.AnswerBankEntry{
		answer("A2", "Do you encrypt data at rest?", "Yes"),
		answer("A1", "Do you encrypt data at rest?", "Yes, AES"),
		answer("A3", "Is 100% of staff trained?", "Yes"),
		answer("A4", "Backups tested?", "Quarterly"),
	}
	for _, e := range entries {
		if _, err := db.CreateAnswer(e, d.next("AnswerBankEntryCreated")); err != nil {
			t.Fatalf("CreateAnswer(%s) error = %v", e.EntryID, err)
		}
	}

	ids := func(es []*sqlc.AnswerBankEntry) string {
		var out []string
		for _, e := range es {
			out = append(out, e.EntryID)
		}
		return fmt.Sprint(out)
	}

	tests := []struct {
		name   string
		list   func() ([]*sqlc.AnswerBankEntry, error)
		wantID string
	}{
		{name: "list orders by question then id", list: func() ([]*sqlc.AnswerBankEntry, error) { return db.ListAnswers(10, 0) }, wantID: "[A4 A1 A2 A3]"},
		{name: "list pages", list: func() ([]*sqlc.AnswerBankEntry, error) { return db.ListAnswers(2, 1) }, wantID: "[A1 A2]"},
		{name: "search matches answers", list: func() ([]*sqlc.AnswerBankEntry, error) { return db.SearchAnswers("%AES%", 10, 0) }, wantID: "[A1]"},
		{name: "search escapes percent", list: func() ([]*sqlc.AnswerBankEntry, error) { return db.SearchAnswers(`%100\%%`, 10, 0) }, wantID: "[A3]"},
		{name: "search is case-insensitive for ascii", list: func() ([]*sqlc.AnswerBankEntry, error) { return db.SearchAnswers("%backups%", 10, 0) }, wantID: "[A4]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if ids(got) != tt.wantID {
				t.Errorf("ids = %s, want %s", ids(got), tt.wantID)
			}
		})
	}

	t.Run("update and delete", func(t *testing.T) {
		e := answer("A4", "Backups tested?", "Monthly")
		e.Notes = sql.NullString{String: "since 2024", Valid: true}
		if _, err := db.UpdateAnswer(e, d.next("AnswerBankEntryUpdated")); err != nil {
			t.Fatalf("UpdateAnswer() error = %v", err)
		}
		got, _ := db.FindAnswer("A4")
		if got.AnswerShort != "Monthly" || got.Notes.String != "since 2024" {
			t.Errorf("FindAnswer() = %+v", got)
		}

		if _, err := db.DeleteAnswer("A4", d.next("AnswerBankEntryDeleted")); err != nil {
			t.Fatalf("DeleteAnswer() error = %v", err)
		}
		if got, _ := db.FindAnswer("A4"); got != nil {
			t.Error("entry still present after delete")
		}

		_, err := db.DeleteAnswer("A4", d.next("AnswerBankEntryDeleted"))
		if vaulterr.KindOf(err) != vaulterr.NotFound {
			t.Errorf("second DeleteAnswer() error = %v, want NOT_FOUND", err)
		}
		_, err = db.UpdateAnswer(e, d.next("AnswerBankEntryUpdated"))
		if vaulterr.KindOf(err) != vaulterr.NotFound {
			t.Errorf("UpdateAnswer(deleted) error = %v, want NOT_FOUND", err)
		}
	})
}

func TestSQLiteDatabase_ListEvents(t *testing.T) {
	db, d := newVaultDB(t)
	for i := 0; i < 4; i++ {
		if _, err := db.AppendEvents(d.next("ExportGenerated")); err != nil {
			t.Fatalf("AppendEvents() error = %v", err)
		}
	}

	page, err := db.ListEvents(2, 2)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
		t.Errorf("ListEvents(2, 2) = %+v", page)
	}

	if _, err := db.ListEvents(0, 0); vaulterr.KindOf(err) != vaulterr.Validation {
		t.Errorf("ListEvents(limit=0) error = %v, want VALIDATION_ERROR", err)
	}
}

func TestSQLiteDatabase_ValidateChain(t *testing.T) {
	setup := func(t *testing.T) *SQLiteDatabase {
		t.Helper()
		db, d := newVaultDB(t)
		_, err := db.AppendEvents(
			d.next("EvidenceAdded", canonical.F("n", canonical.Int(2))),
			d.next("EvidenceAdded", canonical.F("n", canonical.Int(3))),
		)
		if err != nil {
			t.Fatalf("AppendEvents() error = %v", err)
		}
		return db
	}

	t.Run("intact chain", func(t *testing.T) {
		db := setup(t)
		n, err := db.ValidateChain()
		if err != nil {
			t.Fatalf("ValidateChain() error = %v", err)
		}
		if n != 3 {
			t.Errorf("ValidateChain() = %d, want 3", n)
		}
	})

	t.Run("append-only triggers reject edits", func(t *testing.T) {
		db := setup(t)
		if _, err := db.db.Exec("UPDATE audit_event SET actor = 'mallory' WHERE seq = 2"); err == nil {
			t.Error("UPDATE on audit_event succeeded")
		}
		if _, err := db.db.Exec("DELETE FROM audit_event WHERE seq = 3"); err == nil {
			t.Error("DELETE on audit_event succeeded")
		}
	})

	tamper := []struct {
		name string
		sql  string
	}{
		{name: "payload", sql: `UPDATE audit_event SET payload_json = '{"n":99}' WHERE seq = 2`},
		{name: "actor", sql: `UPDATE audit_event SET actor = 'mallory' WHERE seq = 2`},
		{name: "hash", sql: `UPDATE audit_event SET hash = '` + ledger.GenesisHash + `' WHERE seq = 2`},
		{name: "prev_hash", sql: `UPDATE audit_event SET prev_hash = '` + ledger.GenesisHash + `' WHERE seq = 2`},
	}
	for _, tt := range tamper {
		t.Run("tampered "+tt.name+" fails at seq 2", func(t *testing.T) {
			db := setup(t)
			if _, err := db.db.Exec("DROP TRIGGER audit_event_no_update"); err != nil {
				t.Fatalf("dropping trigger: %v", err)
			}
			if _, err := db.db.Exec(tt.sql); err != nil {
				t.Fatalf("tampering: %v", err)
			}

			_, err := db.ValidateChain()
			if !errors.Is(err, vaulterr.ErrHashMismatch) {
				t.Fatalf("ValidateChain() error = %v, want HASH_MISMATCH", err)
			}
			var te *ledger.TamperError
			if !errors.As(err, &te) {
				t.Fatalf("error is %T, want *ledger.TamperError", err)
			}
			if te.Seq != 2 {
				t.Errorf("Seq = %d, want 2", te.Seq)
			}
		})
	}
}
