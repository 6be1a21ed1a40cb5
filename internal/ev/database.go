package ev

import (
	"ev-go/internal/database/sqlc"
	"ev-go/internal/ledger"
)

// Database is the persistence gateway for a single vault.
//
// Every mutating method takes the ledger draft(s) describing the change and
// commits the domain rows and the chained events in one transaction: either
// both land or neither does. Find methods return nil and no error when the
// row does not exist.
type Database interface {
	// Vault

	// CreateVault inserts the vault row. It fails if a vault already exists.
	CreateVault(vault *sqlc.Vault, event ledger.Draft) (*ledger.Event, error)

	// FindVault returns the vault row, or nil for an empty database.
	FindVault() (*sqlc.Vault, error)

	// RenameVault updates the vault name.
	RenameVault(vaultID, name string, event ledger.Draft) (*ledger.Event, error)

	// Evidence

	// CreateEvidence inserts an evidence item.
	CreateEvidence(item *sqlc.EvidenceItem, event ledger.Draft) (*ledger.Event, error)

	// FindEvidence returns an evidence item by id, deleted or not.
	FindEvidence(evidenceID string) (*sqlc.EvidenceItem, error)

	// ListEvidence returns the items that are not soft-deleted, ordered by
	// relative path.
	ListEvidence() ([]*sqlc.EvidenceItem, error)

	// DeleteEvidence sets deleted_at on a live item. Unknown or already
	// deleted ids are a not-found error and nothing is committed.
	DeleteEvidence(evidenceID, deletedAt string, event ledger.Draft) (*ledger.Event, error)

	// Licenses

	// CreateLicenseInstall appends an install record together with all of
	// the given events.
	CreateLicenseInstall(install *sqlc.LicenseInstall, events []ledger.Draft) ([]*ledger.Event, error)

	// FindLatestLicenseInstall returns the most recent install, or nil.
	FindLatestLicenseInstall() (*sqlc.LicenseInstall, error)

	// Answer bank

	CreateAnswer(entry *sqlc.AnswerBankEntry, event ledger.Draft) (*ledger.Event, error)
	UpdateAnswer(entry *sqlc.AnswerBankEntry, event ledger.Draft) (*ledger.Event, error)
	DeleteAnswer(entryID string, event ledger.Draft) (*ledger.Event, error)
	FindAnswer(entryID string) (*sqlc.AnswerBankEntry, error)
	ListAnswers(limit, offset int64) ([]*sqlc.AnswerBankEntry, error)

	// SearchAnswers matches pattern with LIKE against the question and both
	// answers. The caller escapes % and _ with a backslash.
	SearchAnswers(pattern string, limit, offset int64) ([]*sqlc.AnswerBankEntry, error)

	// Ledger

	// AppendEvents chains events that have no accompanying row change.
	AppendEvents(events ...ledger.Draft) ([]*ledger.Event, error)

	// ListEvents returns up to limit events with seq > afterSeq, ascending.
	ListEvents(afterSeq int64, limit int) ([]ledger.Event, error)

	// ValidateChain replays the whole ledger and returns the number of
	// events checked. Tampering is reported as a *ledger.TamperError.
	ValidateChain() (int64, error)

	// SchemaVersion returns the applied migration version.
	SchemaVersion() (uint, error)

	// Close closes the database connection.
	Close() error
}
