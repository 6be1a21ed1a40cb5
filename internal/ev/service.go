package ev

import (
	"fmt"
	"strings"

	"ev-go/internal/canonical"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/evidence"
	"ev-go/internal/export"
	"ev-go/internal/ledger"
	"ev-go/internal/license"
	"ev-go/internal/vaulterr"
)

// Service is the orchestration layer over one vault. It ties the database,
// the evidence tree, the license verifier and the export machinery together
// for the CLI.
type Service struct {
	database Database
	store    *evidence.Store
	builder  *export.Builder
	fsmgr    FilesystemManager
	verifier *license.Verifier
	sealer   Sealer
	archives []Archive
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	vault *sqlc.Vault
}

// NewService creates a Service with the provided dependencies. sealer and
// archives may be nil when sealing or publishing is not configured.
func NewService(database Database, store *evidence.Store, builder *export.Builder, fsmgr FilesystemManager, verifier *license.Verifier, sealer Sealer, archives []Archive, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database: database,
		store:    store,
		builder:  builder,
		fsmgr:    fsmgr,
		verifier: verifier,
		sealer:   sealer,
		archives: archives,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// CreateVault initializes the evidence tree and records the vault row with
// its VaultCreated event. The database must be freshly migrated.
func (s *Service) CreateVault(name, actor string) (*sqlc.Vault, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, vaulterr.New(vaulterr.Validation, "vault name is required")
	}
	if err := s.store.Init(); err != nil {
		return nil, fmt.Errorf("creating evidence tree: %w", err)
	}

	vaultID, err := s.idgen.New()
	if err != nil {
		return nil, err
	}
	v := &sqlc.Vault{
		VaultID:        vaultID,
		Name:           name,
		RootPath:       s.store.Root(),
		EncryptionMode: EncryptionModeNone,
		CreatedAt:      s.now(),
	}

	draft, err := s.draftFor(vaultID, actor, EventVaultCreated, canonical.Object(
		canonical.F("name", canonical.String(name)),
		canonical.F("vault_id", canonical.String(vaultID)),
	))
	if err != nil {
		return nil, err
	}
	if _, err := s.database.CreateVault(v, draft); err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	s.vault = v

	s.logger.Info("vault created", "vault_id", vaultID, "name", name, "root", v.RootPath)
	return v, nil
}

// Open validates the ledger and loads the vault row. A database without a
// vault row is corrupt.
func (s *Service) Open() (*sqlc.Vault, error) {
	n, err := s.database.ValidateChain()
	if err != nil {
		s.logger.Warn("ledger validation failed", "error", err)
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	v, err := s.database.FindVault()
	if err != nil {
		return nil, fmt.Errorf("loading vault: %w", err)
	}
	if v == nil {
		return nil, vaulterr.New(vaulterr.CorruptVault, "missing vault row")
	}
	s.vault = v

	if err := s.store.CleanStaging(); err != nil {
		s.logger.Warn("cleaning staging area", "error", err)
	}
	s.logger.Debug("vault opened", "vault_id", v.VaultID, "events", n)
	return v, nil
}

// Vault returns the open vault, or nil before CreateVault or Open.
func (s *Service) Vault() *sqlc.Vault { return s.vault }

// SchemaVersion returns the applied migration version.
func (s *Service) SchemaVersion() (uint, error) {
	return s.database.SchemaVersion()
}

// RenameVault changes the display name of the vault.
func (s *Service) RenameVault(name, actor string) (*sqlc.Vault, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, vaulterr.New(vaulterr.Validation, "vault name is required")
	}
	if name == s.vault.Name {
		return s.vault, nil
	}

	draft, err := s.draft(actor, EventVaultRenamed, canonical.Object(
		canonical.F("name", canonical.String(name)),
		canonical.F("previous_name", canonical.String(s.vault.Name)),
	))
	if err != nil {
		return nil, err
	}
	if _, err := s.database.RenameVault(s.vault.VaultID, name, draft); err != nil {
		return nil, fmt.Errorf("renaming vault: %w", err)
	}

	s.logger.Info("vault renamed", "from", s.vault.Name, "to", name)
	renamed := *s.vault
	renamed.Name = name
	s.vault = &renamed
	return s.vault, nil
}

// beginMutation requires an open vault and an intact ledger. Every mutation
// re-validates so that nothing is chained onto a tampered history.
func (s *Service) beginMutation() error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if _, err := s.database.ValidateChain(); err != nil {
		s.logger.Warn("ledger validation failed", "error", err)
		return err
	}
	return nil
}

func (s *Service) requireOpen() error {
	if s.vault == nil {
		return vaulterr.New(vaulterr.Internal, "vault is not open")
	}
	return nil
}

// draft builds a ledger draft for the open vault.
func (s *Service) draft(actor, eventType string, payload canonical.Value) (ledger.Draft, error) {
	return s.draftFor(s.vault.VaultID, actor, eventType, payload)
}

func (s *Service) draftFor(vaultID, actor, eventType string, payload canonical.Value) (ledger.Draft, error) {
	if strings.TrimSpace(actor) == "" {
		return ledger.Draft{}, vaulterr.New(vaulterr.Validation, "actor is required")
	}
	id, err := s.idgen.New()
	if err != nil {
		return ledger.Draft{}, err
	}
	return ledger.Draft{
		EventID:    id,
		VaultID:    vaultID,
		OccurredAt: s.clock.Now(),
		Actor:      actor,
		EventType:  eventType,
		Payload:    payload,
	}, nil
}

// now formats the clock in the ledger's timestamp layout.
func (s *Service) now() string {
	return s.clock.Now().UTC().Format(ledger.TimeLayout)
}
