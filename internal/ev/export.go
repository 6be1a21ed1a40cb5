package ev

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"ev-go/internal/canonical"
	"ev-go/internal/evidence"
	"ev-go/internal/export"
	"ev-go/internal/license"
	"ev-go/internal/vaulterr"
)

// SealedExt is appended to a pack path by SealPack.
const SealedExt = ".age"

// BuildPack writes an export pack of every live evidence item to outPath and
// records an ExportGenerated event. It needs the EXPORT_PACKS feature and an
// intact ledger.
func (s *Service) BuildPack(outPath, actor string) (*export.Result, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	if err := s.RequireFeature(license.FeatureExportPacks); err != nil {
		return nil, err
	}

	rows, err := s.database.ListEvidence()
	if err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}
	items := make([]export.Item, len(rows))
	for i, r := range rows {
		items[i] = export.Item{RelativePath: r.RelativePath, SHA256: r.Sha256, ByteSize: r.ByteSize}
	}

	res, err := s.builder.Build(items, outPath)
	if err != nil {
		return nil, fmt.Errorf("building pack: %w", err)
	}

	draft, err := s.draft(actor, EventExportGenerated, canonical.Object(
		canonical.F("file_count", canonical.Int(int64(len(res.Manifest.Files)))),
		canonical.F("manifest_sha256", canonical.String(res.ManifestSHA256)),
	))
	if err != nil {
		return nil, err
	}
	if _, err := s.database.AppendEvents(draft); err != nil {
		return nil, fmt.Errorf("recording export: %w", err)
	}

	s.logger.Info("export pack built",
		"path", outPath,
		"files", len(res.Manifest.Files),
		"manifest_sha256", res.ManifestSHA256,
		"archive_sha256", res.ArchiveSHA256)
	return res, nil
}

// ValidatePack checks a pack against its own manifest. It needs no vault.
func (s *Service) ValidatePack(path string) (*export.Manifest, error) {
	m, err := export.Validate(path)
	if err != nil {
		s.logger.Warn("pack validation failed", "path", path, "error", err)
		return nil, err
	}
	s.logger.Debug("pack validated", "path", path, "files", len(m.Files))
	return m, nil
}

// SealPack validates the pack at path and encrypts it to path+".age" for
// the vault key plus the keys in recipientsFile, if given.
func (s *Service) SealPack(path, recipientsFile string) (string, error) {
	if s.sealer == nil {
		return "", vaulterr.New(vaulterr.Validation, "sealing is not configured")
	}
	if _, err := s.ValidatePack(path); err != nil {
		return "", err
	}

	var recipients io.Reader
	if recipientsFile != "" {
		f, err := os.Open(recipientsFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", vaulterr.Wrap(vaulterr.NotFound, err, "recipients file")
			}
			return "", vaulterr.Wrap(vaulterr.IO, err, "opening recipients file")
		}
		defer f.Close()
		recipients = f
	}

	in, err := os.Open(path)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.IO, err, "opening pack")
	}
	defer in.Close()

	out := path + SealedExt
	if err := writeThrough(out, func(w io.Writer) error {
		return s.sealer.Seal(in, w, recipients)
	}); err != nil {
		return "", fmt.Errorf("sealing pack: %w", err)
	}

	s.logger.Info("export pack sealed", "path", out)
	return out, nil
}

// OpenSealedPack decrypts sealedPath to outPath and validates the result.
// An invalid pack is removed again.
func (s *Service) OpenSealedPack(sealedPath, outPath, passphrase string) (*export.Manifest, error) {
	if s.sealer == nil {
		return nil, vaulterr.New(vaulterr.Validation, "sealing is not configured")
	}
	opener, err := s.sealer.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking seal key: %w", err)
	}

	in, err := os.Open(sealedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.Wrap(vaulterr.NotFound, err, "sealed pack")
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "opening sealed pack")
	}
	defer in.Close()

	if err := writeThrough(outPath, func(w io.Writer) error {
		return opener.Open(in, w)
	}); err != nil {
		return nil, fmt.Errorf("opening sealed pack: %w", err)
	}

	m, err := s.ValidatePack(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}
	return m, nil
}

// PublishPack validates the pack at path and uploads it to every configured
// archive under its manifest digest. It returns the manifest digest.
func (s *Service) PublishPack(path string) (string, error) {
	if len(s.archives) == 0 {
		return "", vaulterr.New(vaulterr.Validation, "no archives configured")
	}
	m, err := s.ValidatePack(path)
	if err != nil {
		return "", err
	}
	digest := m.SHA256()

	for _, a := range s.archives {
		if err := s.publishTo(a, digest, path); err != nil {
			return "", fmt.Errorf("publishing to %s: %w", a.Name(), err)
		}
		s.logger.Info("export pack published", "archive", a.Name(), "manifest_sha256", digest)
	}
	return digest, nil
}

func (s *Service) publishTo(a Archive, digest, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "opening pack")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "stat pack")
	}
	return a.PutPack(digest, f, info.Size())
}

// writeThrough streams what fn writes into dest atomically. dest is left
// untouched when fn fails, and fn's own error is returned in preference to
// the copy error it causes.
func writeThrough(dest string, fn func(w io.Writer) error) error {
	pr, pw := io.Pipe()
	fnErr := make(chan error, 1)
	go func() {
		err := fn(pw)
		pw.CloseWithError(err)
		fnErr <- err
	}()

	_, _, err := evidence.WriteAtomic(dest, pr)
	pr.Close()
	if ferr := <-fnErr; ferr != nil && !errors.Is(ferr, io.ErrClosedPipe) {
		return ferr
	}
	return err
}

// SetupSealKeys creates the vault's sealing key pair.
func (s *Service) SetupSealKeys(passphrase string) error {
	if s.sealer == nil {
		return vaulterr.New(vaulterr.Validation, "sealing is not configured")
	}
	if err := s.sealer.Setup(passphrase); err != nil {
		return fmt.Errorf("creating seal keys: %w", err)
	}
	s.logger.Info("seal keys created")
	return nil
}
