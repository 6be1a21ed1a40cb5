package archive

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// FileSystemArchive stores published packs as files:
//
//	<root>/
//	  packs/
//	    <manifest-sha256>.zip
type FileSystemArchive struct {
	name     string
	root     string
	packsDir string
}

// NewFileSystemArchive creates a filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	packsDir := filepath.Join(root, "packs")
	if err := os.MkdirAll(packsDir, 0o755); err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "creating archive directory")
	}
	return &FileSystemArchive{name: name, root: root, packsDir: packsDir}, nil
}

func (a *FileSystemArchive) Name() string { return a.name }

func (a *FileSystemArchive) packPath(manifestSHA256 string) string {
	return filepath.Join(a.packsDir, manifestSHA256+".zip")
}

// PutPack stores a pack. Storing the same digest twice keeps the first copy.
func (a *FileSystemArchive) PutPack(manifestSHA256 string, r io.Reader, size int64) error {
	if err := checkKey(manifestSHA256); err != nil {
		return err
	}
	destPath := a.packPath(manifestSHA256)

	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return vaulterr.Wrap(vaulterr.IO, err, "reading pack")
		}
		if written != size {
			return vaulterr.New(vaulterr.IO, "size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return writeFile(destPath, r, size)
}

func (a *FileSystemArchive) GetPack(manifestSHA256 string, w io.Writer) error {
	if err := checkKey(manifestSHA256); err != nil {
		return err
	}
	f, err := os.Open(a.packPath(manifestSHA256))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vaulterr.New(vaulterr.NotFound, "pack %s not found in archive %s", manifestSHA256, a.name)
		}
		return vaulterr.Wrap(vaulterr.IO, err, "opening pack")
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "reading pack")
	}
	return nil
}

func (a *FileSystemArchive) HasPack(manifestSHA256 string) (bool, error) {
	if err := checkKey(manifestSHA256); err != nil {
		return false, err
	}
	_, err := os.Stat(a.packPath(manifestSHA256))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, vaulterr.Wrap(vaulterr.IO, err, "checking pack")
	}
}

// ValidateSetup verifies that the archive directories are accessible.
func (a *FileSystemArchive) ValidateSetup() error {
	for _, dir := range []string{a.root, a.packsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return vaulterr.Wrap(vaulterr.IO, err, "archive directory not accessible")
		}
		if !info.IsDir() {
			return vaulterr.New(vaulterr.IO, "archive path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes r to destPath through a temp file and rename. The file is
// only renamed into place when exactly size bytes were written.
func writeFile(destPath string, r io.Reader, size int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return vaulterr.Wrap(vaulterr.IO, err, "writing pack")
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return vaulterr.Wrap(vaulterr.IO, err, "syncing temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "closing temp file")
	}
	if written != size {
		return vaulterr.New(vaulterr.IO, "size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "renaming pack into place")
	}

	success = true
	return nil
}

var _ ev.Archive = (*FileSystemArchive)(nil)
