package archive

import (
	"ev-go/internal/config"
	"ev-go/internal/ev"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// NewArchiveFromConfig creates an Archive implementation based on the archive config type.
func NewArchiveFromConfig(cfg config.ArchiveConfig) (ev.Archive, error) {
	if cfg.Name == "" {
		return nil, vaulterr.New(vaulterr.Validation, "archive name is required")
	}
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "s3":
		return NewS3ArchiveFromConfig(cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, vaulterr.New(vaulterr.Validation, "filesystem archive %q requires fs_root to be set", cfg.Name)
		}
		return NewFileSystemArchive(cfg.Name, cfg.FSRoot)
	default:
		return nil, vaulterr.New(vaulterr.Validation, "unknown archive type: %s", cfg.Type)
	}
}

// NewArchivesFromConfig builds every configured archive, rejecting duplicate names.
func NewArchivesFromConfig(cfgs []config.ArchiveConfig) ([]ev.Archive, error) {
	seen := make(map[string]bool, len(cfgs))
	archives := make([]ev.Archive, 0, len(cfgs))
	for _, c := range cfgs {
		if seen[c.Name] {
			return nil, vaulterr.New(vaulterr.Validation, "duplicate archive name: %s", c.Name)
		}
		seen[c.Name] = true

		a, err := NewArchiveFromConfig(c)
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return archives, nil
}

// checkKey rejects anything that is not a lowercase hex digest, so keys can
// be used as file names and object keys as they are.
func checkKey(manifestSHA256 string) error {
	if !hasher.IsDigest(manifestSHA256) {
		return vaulterr.New(vaulterr.Validation, "invalid manifest digest %q", manifestSHA256)
	}
	return nil
}
