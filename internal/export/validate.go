package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// MismatchError names the pack file that failed verification.
type MismatchError struct {
	Path   string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *MismatchError) Unwrap() error { return vaulterr.ErrHashMismatch }

// Validate unpacks the archive at path to a scratch directory and checks
// every manifest entry against the unpacked bytes. Files missing from the
// archive, digest or size mismatches and files the manifest does not list
// are hash-mismatch errors naming the path.
func Validate(path string) (*Manifest, error) {
	scratch, err := os.MkdirTemp("", "ev-validate-*")
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "creating validation scratch directory")
	}
	defer os.RemoveAll(scratch)

	names, err := extract(path, scratch)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(scratch, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.New(vaulterr.CorruptVault, "pack has no %s", ManifestName)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "reading manifest")
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]bool, len(manifest.Files))
	for _, f := range manifest.Files {
		if err := checkEntryName(f.Path); err != nil || f.Path == ManifestName {
			return nil, &MismatchError{Path: f.Path, Reason: "manifest lists an invalid path"}
		}
		listed[f.Path] = true

		sum, n, err := hasher.File(filepath.Join(scratch, filepath.FromSlash(f.Path)))
		switch {
		case errors.Is(err, vaulterr.ErrNotFound):
			return nil, &MismatchError{Path: f.Path, Reason: "file missing from pack"}
		case err != nil:
			return nil, err
		case sum != f.SHA256 || n != f.Size:
			return nil, &MismatchError{Path: f.Path, Reason: "digest mismatch"}
		}
	}

	for _, name := range names {
		if name != ManifestName && !listed[name] {
			return nil, &MismatchError{Path: name, Reason: "file not listed in manifest"}
		}
	}
	return manifest, nil
}
