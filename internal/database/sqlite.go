package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ev-go/internal/database/migrations"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/ev"
	"ev-go/internal/ledger"
	"ev-go/internal/vaulterr"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// FileName is the name of the database file inside a vault root.
const FileName = "vault.db"

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
}

// NewSQLiteDatabase opens a SQLite database at path without touching its
// schema. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db), nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection. The caller is
// responsible for configuring it with OpenConnection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
	}
}

// OpenConnection opens and configures a SQLite connection. It is exported
// for tools and tests that need the same settings as the gateway.
//
// The pool is limited to one connection: an in-memory database exists per
// connection, and a single writer makes "read chain tip, insert event"
// race-free. Transactions start with BEGIN IMMEDIATE so the write lock is
// taken before the tip is read.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Database, err, "opening database")
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, vaulterr.Wrap(vaulterr.Database, err, p)
		}
	}
	return db, nil
}

func dbError(err error, msg string) error {
	return vaulterr.Wrap(vaulterr.Database, err, msg)
}

// inTx runs fn in a transaction and commits when it returns nil. Errors from
// fn are returned unchanged so their kind survives.
func (s *SQLiteDatabase) inTx(fn func(ctx context.Context, q *sqlc.Queries) error) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "starting transaction")
	}
	defer tx.Rollback()

	if err := fn(ctx, s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "committing transaction")
	}
	return nil
}

// appendEvents chains drafts in order inside the caller's transaction.
func appendEvents(ctx context.Context, q *sqlc.Queries, drafts []ledger.Draft) ([]*ledger.Event, error) {
	c := chain{q: q}
	events := make([]*ledger.Event, 0, len(drafts))
	for _, d := range drafts {
		e, err := ledger.Append(ctx, c, d)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// mutate runs change and appends one event in the same transaction.
func (s *SQLiteDatabase) mutate(event ledger.Draft, change func(ctx context.Context, q *sqlc.Queries) error) (*ledger.Event, error) {
	var appended *ledger.Event
	err := s.inTx(func(ctx context.Context, q *sqlc.Queries) error {
		if err := change(ctx, q); err != nil {
			return err
		}
		events, err := appendEvents(ctx, q, []ledger.Draft{event})
		if err != nil {
			return err
		}
		appended = events[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

// Vault operations

func (s *SQLiteDatabase) CreateVault(v *sqlc.Vault, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		n, err := q.CountVaults(ctx)
		if err != nil {
			return dbError(err, "counting vaults")
		}
		if n > 0 {
			return vaulterr.New(vaulterr.Validation, "vault already initialized")
		}
		err = q.InsertVault(ctx, sqlc.InsertVaultParams{
			VaultID:        v.VaultID,
			Name:           v.Name,
			RootPath:       v.RootPath,
			EncryptionMode: v.EncryptionMode,
			CreatedAt:      v.CreatedAt,
		})
		if err != nil {
			return dbError(err, "inserting vault")
		}
		return nil
	})
}

func (s *SQLiteDatabase) FindVault() (*sqlc.Vault, error) {
	v, err := s.queries.GetVault(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err, "finding vault")
	}
	return &v, nil
}

func (s *SQLiteDatabase) RenameVault(vaultID, name string, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		n, err := q.UpdateVaultName(ctx, sqlc.UpdateVaultNameParams{Name: name, VaultID: vaultID})
		if err != nil {
			return dbError(err, "renaming vault")
		}
		if n == 0 {
			return vaulterr.New(vaulterr.NotFound, "vault %s not found", vaultID)
		}
		return nil
	})
}

// Evidence operations

func (s *SQLiteDatabase) CreateEvidence(item *sqlc.EvidenceItem, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		err := q.InsertEvidenceItem(ctx, sqlc.InsertEvidenceItemParams{
			EvidenceID:   item.EvidenceID,
			VaultID:      item.VaultID,
			Filename:     item.Filename,
			RelativePath: item.RelativePath,
			ContentType:  item.ContentType,
			ByteSize:     item.ByteSize,
			Sha256:       item.Sha256,
			Source:       item.Source,
			CreatedAt:    item.CreatedAt,
			Notes:        item.Notes,
			DeletedAt:    item.DeletedAt,
		})
		if err != nil {
			return dbError(err, "inserting evidence item")
		}
		return nil
	})
}

func (s *SQLiteDatabase) FindEvidence(evidenceID string) (*sqlc.EvidenceItem, error) {
	item, err := s.queries.GetEvidenceItem(context.Background(), evidenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err, "finding evidence item")
	}
	return &item, nil
}

func (s *SQLiteDatabase) ListEvidence() ([]*sqlc.EvidenceItem, error) {
	items, err := s.queries.ListActiveEvidenceItems(context.Background())
	if err != nil {
		return nil, dbError(err, "listing evidence items")
	}

	result := make([]*sqlc.EvidenceItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) DeleteEvidence(evidenceID, deletedAt string, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		n, err := q.SoftDeleteEvidenceItem(ctx, sqlc.SoftDeleteEvidenceItemParams{
			DeletedAt:  sql.NullString{String: deletedAt, Valid: true},
			EvidenceID: evidenceID,
		})
		if err != nil {
			return dbError(err, "deleting evidence item")
		}
		if n == 0 {
			return vaulterr.New(vaulterr.NotFound, "evidence %s not found", evidenceID)
		}
		return nil
	})
}

// License operations

func (s *SQLiteDatabase) CreateLicenseInstall(install *sqlc.LicenseInstall, drafts []ledger.Draft) ([]*ledger.Event, error) {
	var appended []*ledger.Event
	err := s.inTx(func(ctx context.Context, q *sqlc.Queries) error {
		id, err := q.InsertLicenseInstall(ctx, sqlc.InsertLicenseInstallParams{
			LicenseID:          install.LicenseID,
			VaultID:            install.VaultID,
			InstalledAt:        install.InstalledAt,
			PayloadJson:        install.PayloadJson,
			SignatureHex:       install.SignatureHex,
			VerificationStatus: install.VerificationStatus,
			VerifiedAt:         install.VerifiedAt,
		})
		if err != nil {
			return dbError(err, "inserting license install")
		}
		install.InstallID = id

		appended, err = appendEvents(ctx, q, drafts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

func (s *SQLiteDatabase) FindLatestLicenseInstall() (*sqlc.LicenseInstall, error) {
	install, err := s.queries.GetLatestLicenseInstall(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err, "finding latest license install")
	}
	return &install, nil
}

// Answer bank operations

func (s *SQLiteDatabase) CreateAnswer(entry *sqlc.AnswerBankEntry, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		err := q.InsertAnswerBankEntry(ctx, sqlc.InsertAnswerBankEntryParams{
			EntryID:           entry.EntryID,
			VaultID:           entry.VaultID,
			QuestionCanonical: entry.QuestionCanonical,
			AnswerShort:       entry.AnswerShort,
			AnswerLong:        entry.AnswerLong,
			Notes:             entry.Notes,
			EvidenceLinks:     entry.EvidenceLinks,
			Owner:             entry.Owner,
			LastReviewedAt:    entry.LastReviewedAt,
			Tags:              entry.Tags,
			Source:            entry.Source,
			ContentHash:       entry.ContentHash,
			CreatedAt:         entry.CreatedAt,
			UpdatedAt:         entry.UpdatedAt,
		})
		if err != nil {
			return dbError(err, "inserting answer bank entry")
		}
		return nil
	})
}

func (s *SQLiteDatabase) UpdateAnswer(entry *sqlc.AnswerBankEntry, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		n, err := q.UpdateAnswerBankEntry(ctx, sqlc.UpdateAnswerBankEntryParams{
			QuestionCanonical: entry.QuestionCanonical,
			AnswerShort:       entry.AnswerShort,
			AnswerLong:        entry.AnswerLong,
			Notes:             entry.Notes,
			EvidenceLinks:     entry.EvidenceLinks,
			Owner:             entry.Owner,
			LastReviewedAt:    entry.LastReviewedAt,
			Tags:              entry.Tags,
			Source:            entry.Source,
			ContentHash:       entry.ContentHash,
			UpdatedAt:         entry.UpdatedAt,
			EntryID:           entry.EntryID,
		})
		if err != nil {
			return dbError(err, "updating answer bank entry")
		}
		if n == 0 {
			return vaulterr.New(vaulterr.NotFound, "answer bank entry %s not found", entry.EntryID)
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteAnswer(entryID string, event ledger.Draft) (*ledger.Event, error) {
	return s.mutate(event, func(ctx context.Context, q *sqlc.Queries) error {
		n, err := q.DeleteAnswerBankEntry(ctx, entryID)
		if err != nil {
			return dbError(err, "deleting answer bank entry")
		}
		if n == 0 {
			return vaulterr.New(vaulterr.NotFound, "answer bank entry %s not found", entryID)
		}
		return nil
	})
}

func (s *SQLiteDatabase) FindAnswer(entryID string) (*sqlc.AnswerBankEntry, error) {
	entry, err := s.queries.GetAnswerBankEntry(context.Background(), entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err, "finding answer bank entry")
	}
	return &entry, nil
}

func (s *SQLiteDatabase) ListAnswers(limit, offset int64) ([]*sqlc.AnswerBankEntry, error) {
	entries, err := s.queries.ListAnswerBankEntries(context.Background(), sqlc.ListAnswerBankEntriesParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, dbError(err, "listing answer bank entries")
	}
	return answerPointers(entries), nil
}

func (s *SQLiteDatabase) SearchAnswers(pattern string, limit, offset int64) ([]*sqlc.AnswerBankEntry, error) {
	entries, err := s.queries.SearchAnswerBankEntries(context.Background(), sqlc.SearchAnswerBankEntriesParams{
		Pattern: pattern,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, dbError(err, "searching answer bank entries")
	}
	return answerPointers(entries), nil
}

func answerPointers(entries []sqlc.AnswerBankEntry) []*sqlc.AnswerBankEntry {
	result := make([]*sqlc.AnswerBankEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result
}

// Ledger operations

func (s *SQLiteDatabase) AppendEvents(drafts ...ledger.Draft) ([]*ledger.Event, error) {
	var appended []*ledger.Event
	err := s.inTx(func(ctx context.Context, q *sqlc.Queries) error {
		var err error
		appended, err = appendEvents(ctx, q, drafts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

func (s *SQLiteDatabase) ListEvents(afterSeq int64, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		return nil, vaulterr.New(vaulterr.Validation, "limit must be > 0")
	}
	return chain{q: s.queries}.ListEvents(context.Background(), afterSeq, limit)
}

func (s *SQLiteDatabase) ValidateChain() (int64, error) {
	return ledger.Validate(context.Background(), chain{q: s.queries})
}

// SchemaVersion returns the golang-migrate version of the schema.
func (s *SQLiteDatabase) SchemaVersion() (uint, error) {
	v, err := migrations.Version(s.db)
	if err != nil {
		return 0, dbError(err, "reading schema version")
	}
	return v, nil
}

// CheckMigrations returns a *migrations.SchemaError unless the schema
// matches this binary.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// MigrateUp applies all pending migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	if err := migrations.Up(s.db); err != nil {
		return dbError(err, "migrating schema")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// chain gives the ledger package its view of the audit_event table through
// whatever Queries it wraps: the pool for scans, a transaction for appends.
type chain struct {
	q *sqlc.Queries
}

func (c chain) LatestEventHash(ctx context.Context) (string, bool, error) {
	hash, err := c.q.GetLatestEventHash(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, dbError(err, "reading latest event hash")
	}
	return hash, true, nil
}

func (c chain) InsertEvent(ctx context.Context, e *ledger.Event) (int64, error) {
	seq, err := c.q.InsertAuditEvent(ctx, sqlc.InsertAuditEventParams{
		EventID:     e.EventID,
		VaultID:     e.VaultID,
		OccurredAt:  e.OccurredAt,
		Actor:       e.Actor,
		EventType:   e.EventType,
		PayloadJson: e.PayloadJSON,
		PrevHash:    e.PrevHash,
		Hash:        e.Hash,
	})
	if err != nil {
		return 0, dbError(err, "inserting audit event")
	}
	return seq, nil
}

func (c chain) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]ledger.Event, error) {
	rows, err := c.q.ListAuditEventsAfter(ctx, sqlc.ListAuditEventsAfterParams{
		Seq:   afterSeq,
		Limit: int64(limit),
	})
	if err != nil {
		return nil, dbError(err, fmt.Sprintf("listing audit events after seq %d", afterSeq))
	}

	events := make([]ledger.Event, len(rows))
	for i, r := range rows {
		events[i] = ledger.Event{
			Seq:         r.Seq,
			EventID:     r.EventID,
			VaultID:     r.VaultID,
			OccurredAt:  r.OccurredAt,
			Actor:       r.Actor,
			EventType:   r.EventType,
			PayloadJSON: r.PayloadJson,
			PrevHash:    r.PrevHash,
			Hash:        r.Hash,
		}
	}
	return events, nil
}

// Compile-time checks.
var (
	_ ev.Database    = (*SQLiteDatabase)(nil)
	_ ledger.Tx      = chain{}
	_ ledger.Scanner = chain{}
)
