package ev

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"ev-go/internal/canonical"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/vaulterr"
)

// AddEvidence imports one regular file and records it with an EvidenceAdded
// event. notes is optional.
func (s *Service) AddEvidence(path *Path, notes, actor string) (*sqlc.EvidenceItem, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	return s.addOne(path, notes, actor)
}

// AddEvidenceDir imports every file FindFiles returns for dir, in path
// order. It stops at the first failure; files imported before it stay
// recorded.
func (s *Service) AddEvidenceDir(dir *Path, recursive bool, actor string) ([]*sqlc.EvidenceItem, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	files, err := s.fsmgr.FindFiles(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}

	items := make([]*sqlc.EvidenceItem, 0, len(files))
	for _, f := range files {
		item, err := s.addOne(f, "", actor)
		if err != nil {
			return items, fmt.Errorf("adding %s: %w", f.String(), err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) addOne(path *Path, notes, actor string) (*sqlc.EvidenceItem, error) {
	if path.IsDir() {
		return nil, vaulterr.New(vaulterr.Validation, "path is a directory: %s", path.String())
	}
	if strings.TrimSpace(actor) == "" {
		return nil, vaulterr.New(vaulterr.Validation, "actor is required")
	}

	imported, err := s.store.Import(path.String())
	if err != nil {
		return nil, fmt.Errorf("importing evidence: %w", err)
	}

	id, err := s.idgen.New()
	if err != nil {
		return nil, err
	}
	item := &sqlc.EvidenceItem{
		EvidenceID:   id,
		VaultID:      s.vault.VaultID,
		Filename:     imported.Filename,
		RelativePath: imported.RelativePath,
		ContentType:  imported.ContentType,
		ByteSize:     imported.ByteSize,
		Sha256:       imported.SHA256,
		Source:       SourceManualImport,
		CreatedAt:    s.now(),
		Notes:        optionalText(notes),
	}

	draft, err := s.draft(actor, EventEvidenceAdded, canonical.Object(
		canonical.F("byte_size", canonical.Int(item.ByteSize)),
		canonical.F("evidence_id", canonical.String(item.EvidenceID)),
		canonical.F("filename", canonical.String(item.Filename)),
		canonical.F("relative_path", canonical.String(item.RelativePath)),
		canonical.F("sha256", canonical.String(item.Sha256)),
	))
	if err != nil {
		return nil, err
	}
	// A failed insert leaves the imported file behind. It is content
	// addressed, so a retry reuses it.
	if _, err := s.database.CreateEvidence(item, draft); err != nil {
		return nil, fmt.Errorf("recording evidence: %w", err)
	}

	s.logger.Info("evidence added",
		"evidence_id", item.EvidenceID,
		"path", item.RelativePath,
		"bytes", item.ByteSize,
		"deduplicated", imported.Deduplicated)
	return item, nil
}

// GetEvidence returns an evidence item by id, including soft-deleted items.
func (s *Service) GetEvidence(evidenceID string) (*sqlc.EvidenceItem, error) {
	item, err := s.database.FindEvidence(evidenceID)
	if err != nil {
		return nil, fmt.Errorf("finding evidence: %w", err)
	}
	if item == nil {
		return nil, vaulterr.New(vaulterr.NotFound, "evidence %s not found", evidenceID)
	}
	return item, nil
}

// ListEvidence returns the live evidence items ordered by relative path.
func (s *Service) ListEvidence() ([]*sqlc.EvidenceItem, error) {
	items, err := s.database.ListEvidence()
	if err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}
	s.logger.Debug("evidence listed", "count", len(items))
	return items, nil
}

// ReadEvidence copies the stored bytes of a live item to w after checking
// them against the recorded digest.
func (s *Service) ReadEvidence(evidenceID string, w io.Writer) (*sqlc.EvidenceItem, error) {
	item, err := s.GetEvidence(evidenceID)
	if err != nil {
		return nil, err
	}
	if item.DeletedAt.Valid {
		return nil, vaulterr.New(vaulterr.NotFound, "evidence %s was deleted", evidenceID)
	}
	if err := s.store.Verify(item.RelativePath, item.Sha256, item.ByteSize); err != nil {
		return nil, err
	}

	f, err := s.store.Open(item.RelativePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "copying evidence")
	}
	return item, nil
}

// DeleteEvidence soft-deletes a live item. The stored file and its history
// remain.
func (s *Service) DeleteEvidence(evidenceID, actor string) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	item, err := s.GetEvidence(evidenceID)
	if err != nil {
		return err
	}
	if item.DeletedAt.Valid {
		return vaulterr.New(vaulterr.NotFound, "evidence %s already deleted", evidenceID)
	}

	draft, err := s.draft(actor, EventEvidenceDeleted, canonical.Object(
		canonical.F("evidence_id", canonical.String(item.EvidenceID)),
		canonical.F("sha256", canonical.String(item.Sha256)),
	))
	if err != nil {
		return err
	}
	if _, err := s.database.DeleteEvidence(evidenceID, s.now(), draft); err != nil {
		return fmt.Errorf("deleting evidence: %w", err)
	}

	s.logger.Info("evidence deleted", "evidence_id", evidenceID)
	return nil
}

// VerifyEvidence re-hashes every live item and returns the number checked.
// The first mismatch is returned as a hash-mismatch error naming the path.
func (s *Service) VerifyEvidence() (int, error) {
	items, err := s.database.ListEvidence()
	if err != nil {
		return 0, fmt.Errorf("listing evidence: %w", err)
	}
	for i, item := range items {
		if err := s.store.Verify(item.RelativePath, item.Sha256, item.ByteSize); err != nil {
			s.logger.Warn("evidence verification failed", "evidence_id", item.EvidenceID, "path", item.RelativePath)
			return i, err
		}
	}
	s.logger.Debug("evidence verified", "count", len(items))
	return len(items), nil
}

// optionalText normalizes free text; empty becomes NULL.
func optionalText(s string) sql.NullString {
	return nullable(normalizeText(s))
}
