package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ev-go/internal/archive"
	"ev-go/internal/config"
	"ev-go/internal/database"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/encryption"
	"ev-go/internal/ev"
	"ev-go/internal/evidence"
	"ev-go/internal/export"
	"ev-go/internal/fs"
	"ev-go/internal/ledger"
	"ev-go/internal/license"
	"ev-go/internal/vaulterr"
)

// EVApp is the application layer between the CLI and ev.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type EVApp struct {
	cfg     *config.Config
	db      ev.Database
	fsmgr   ev.FilesystemManager
	service *ev.Service
	op      *Operation
	logger  *slog.Logger
	logFile *os.File
}

// OpenEVApp opens the vault at cfg.VaultRoot. operation identifies the CLI
// command being run (e.g. "AddEvidence", "BuildPack"). The caller must call
// Close when done.
func OpenEVApp(cfg *config.Config, operation string, logLevel slog.Leveler) (*EVApp, error) {
	root, err := vaultRoot(cfg)
	if err != nil {
		return nil, err
	}
	db, err := database.OpenDatabaseFromConfig(cfg.Database, root)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a, err := newEVApp(cfg, root, db, operation, logLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := a.service.Open(); err != nil {
		a.Close(err)
		return nil, err
	}
	return a, nil
}

// CreateEVApp creates a new vault named name at cfg.VaultRoot.
func CreateEVApp(cfg *config.Config, name string, logLevel slog.Leveler) (*EVApp, error) {
	root, err := vaultRoot(cfg)
	if err != nil {
		return nil, err
	}
	db, err := database.CreateDatabaseFromConfig(cfg.Database, root)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	a, err := newEVApp(cfg, root, db, "CreateVault", logLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := a.service.CreateVault(name, cfg.Actor); err != nil {
		a.Close(err)
		return nil, err
	}
	return a, nil
}

// NewToolApp builds an app without a vault, for commands that only work on
// pack files: validate, seal, open, publish and seal key setup.
func NewToolApp(cfg *config.Config, operation string, logLevel slog.Leveler) (*EVApp, error) {
	return newEVApp(cfg, "", nil, operation, logLevel)
}

func vaultRoot(cfg *config.Config) (string, error) {
	if cfg.VaultRoot == "" {
		return "", vaulterr.New(vaulterr.Validation, "no vault root configured (set vault_root or EV_VAULT_ROOT)")
	}
	root, err := filepath.Abs(cfg.VaultRoot)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.Validation, err, "resolving vault root")
	}
	return root, nil
}

func newEVApp(cfg *config.Config, root string, db ev.Database, operation string, logLevel slog.Leveler) (*EVApp, error) {
	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	compression, err := export.ParseCompression(cfg.Export.Compression)
	if err != nil {
		return nil, fmt.Errorf("export config: %w", err)
	}

	verifier, err := newVerifier(cfg.License)
	if err != nil {
		return nil, fmt.Errorf("creating license verifier: %w", err)
	}

	sealer, err := encryption.NewSealerFromConfig(cfg.Seal)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	archives, err := archive.NewArchivesFromConfig(cfg.Archives)
	if err != nil {
		return nil, fmt.Errorf("creating archives: %w", err)
	}

	op := NewOperation(operation, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, logLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	var store *evidence.Store
	var builder *export.Builder
	if root != "" {
		store = evidence.NewStore(root)
		builder = export.NewBuilder(store, compression)
	}

	clock := ev.RealClock{}
	svc := ev.NewService(db, store, builder, fsmgr, verifier, sealer, archives,
		&slogAdapter{l: logger}, clock, ev.NewULIDGenerator(clock))

	logger.Debug("operation started", "operation", op.Name, "vault_root", root)
	return &EVApp{
		cfg:     cfg,
		db:      db,
		fsmgr:   fsmgr,
		service: svc,
		op:      op,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// newVerifier uses the configured vendor key, or the embedded one.
func newVerifier(cfg config.LicenseConfig) (*license.Verifier, error) {
	if cfg.VendorPublicKey != "" {
		v, err := license.NewVerifier(cfg.VendorPublicKey)
		if err != nil {
			return nil, vaulterr.Wrap(vaulterr.Validation, err, "invalid vendor_public_key")
		}
		return v, nil
	}
	return license.NewVendorVerifier()
}

// Vault returns the open vault, or nil for a tool app.
func (a *EVApp) Vault() *sqlc.Vault { return a.service.Vault() }

// SchemaVersion returns the applied migration version.
func (a *EVApp) SchemaVersion() (uint, error) {
	if a.db == nil {
		return 0, vaulterr.New(vaulterr.Internal, "no vault open")
	}
	return a.service.SchemaVersion()
}

// RenameVault changes the vault's display name.
func (a *EVApp) RenameVault(name string) (*sqlc.Vault, error) {
	return a.service.RenameVault(name, a.cfg.Actor)
}

// AddEvidence resolves rawPath and imports it. A directory imports the files
// it contains, descending into subdirectories when recursive is true; notes
// apply to single files only.
func (a *EVApp) AddEvidence(rawPath, notes string, recursive bool) ([]*sqlc.EvidenceItem, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		return a.service.AddEvidenceDir(p, recursive, a.cfg.Actor)
	}
	item, err := a.service.AddEvidence(p, notes, a.cfg.Actor)
	if err != nil {
		return nil, err
	}
	return []*sqlc.EvidenceItem{item}, nil
}

// GetEvidence returns an evidence item by id.
func (a *EVApp) GetEvidence(id string) (*sqlc.EvidenceItem, error) {
	return a.service.GetEvidence(id)
}

// ListEvidence returns the live evidence items.
func (a *EVApp) ListEvidence() ([]*sqlc.EvidenceItem, error) {
	return a.service.ListEvidence()
}

// ReadEvidence writes the verified bytes of an item to w.
func (a *EVApp) ReadEvidence(id string, w io.Writer) (*sqlc.EvidenceItem, error) {
	return a.service.ReadEvidence(id, w)
}

// DeleteEvidence soft-deletes an item.
func (a *EVApp) DeleteEvidence(id string) error {
	return a.service.DeleteEvidence(id, a.cfg.Actor)
}

// VerifyEvidence re-hashes every live item.
func (a *EVApp) VerifyEvidence() (int, error) {
	return a.service.VerifyEvidence()
}

// InstallLicense installs the license file at rawPath.
func (a *EVApp) InstallLicense(rawPath string) (*ev.LicenseStatus, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.InstallLicense(p.String(), a.cfg.Actor)
}

// LicenseStatus reports on the latest license install.
func (a *EVApp) LicenseStatus() (*ev.LicenseStatus, error) {
	return a.service.LicenseStatus()
}

// BuildPack writes an export pack to out, or to a timestamped file in the
// configured export directory when out is empty.
func (a *EVApp) BuildPack(out string) (*export.Result, error) {
	if out == "" {
		if err := os.MkdirAll(a.cfg.Export.OutDir, 0755); err != nil {
			return nil, vaulterr.Wrap(vaulterr.IO, err, "creating export directory")
		}
		name := fmt.Sprintf("evidence-pack-%s.zip", time.Now().UTC().Format("20060102T150405Z"))
		out = filepath.Join(a.cfg.Export.OutDir, name)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Validation, err, "resolving output path")
	}
	return a.service.BuildPack(abs, a.cfg.Actor)
}

// ValidatePack checks a pack against its manifest.
func (a *EVApp) ValidatePack(path string) (*export.Manifest, error) {
	return a.service.ValidatePack(path)
}

// SealPack encrypts a pack for the vault key and the keys in recipientsFile.
func (a *EVApp) SealPack(path, recipientsFile string) (string, error) {
	return a.service.SealPack(path, recipientsFile)
}

// OpenSealedPack decrypts a sealed pack to out and validates it.
func (a *EVApp) OpenSealedPack(sealedPath, out, passphrase string) (*export.Manifest, error) {
	return a.service.OpenSealedPack(sealedPath, out, passphrase)
}

// PublishPack uploads a pack to every configured archive.
func (a *EVApp) PublishPack(path string) (string, error) {
	return a.service.PublishPack(path)
}

// SetupSealKeys creates the sealing key pair.
func (a *EVApp) SetupSealKeys(passphrase string) error {
	return a.service.SetupSealKeys(passphrase)
}

// CreateAnswer adds an answer bank entry.
func (a *EVApp) CreateAnswer(input ev.AnswerInput) (*ev.Answer, error) {
	return a.service.CreateAnswer(input, a.cfg.Actor)
}

// GetAnswer returns an entry by id.
func (a *EVApp) GetAnswer(id string) (*ev.Answer, error) {
	return a.service.GetAnswer(id)
}

// UpdateAnswer applies patch to an entry.
func (a *EVApp) UpdateAnswer(id string, patch ev.AnswerPatch) (*ev.Answer, error) {
	return a.service.UpdateAnswer(id, patch, a.cfg.Actor)
}

// DeleteAnswer removes an entry.
func (a *EVApp) DeleteAnswer(id string) error {
	return a.service.DeleteAnswer(id, a.cfg.Actor)
}

// ListAnswers pages through entries.
func (a *EVApp) ListAnswers(limit, offset int64) ([]*ev.Answer, error) {
	return a.service.ListAnswers(limit, offset)
}

// SearchAnswers finds entries containing query.
func (a *EVApp) SearchAnswers(query string, limit, offset int64) ([]*ev.Answer, error) {
	return a.service.SearchAnswers(query, limit, offset)
}

// LinkEvidence attaches an evidence item to an entry.
func (a *EVApp) LinkEvidence(entryID, evidenceID string) (*ev.Answer, error) {
	return a.service.LinkEvidence(entryID, evidenceID, a.cfg.Actor)
}

// ListEvents returns a page of the ledger.
func (a *EVApp) ListEvents(afterSeq int64, limit int) ([]ledger.Event, error) {
	return a.service.ListEvents(afterSeq, limit)
}

// ValidateChain replays the whole ledger.
func (a *EVApp) ValidateChain() (int64, error) {
	return a.service.ValidateChain()
}

// Close records the outcome of the operation and releases the database and
// log file. err is the command's result and is not returned.
func (a *EVApp) Close(err error) error {
	a.op.Finish(err)
	attrs := []any{
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond),
	}
	if err != nil {
		a.logger.Error("operation failed", append(attrs, "error", err)...)
	} else {
		a.logger.Debug("operation finished", attrs...)
	}

	var firstErr error
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			firstErr = fmt.Errorf("closing database: %w", cerr)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
