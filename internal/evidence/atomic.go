package evidence

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// WriteAtomic writes everything from r to destPath through a temp sibling
// that is synced and then renamed into place, so destPath never holds a
// partial file. It returns the digest and size of the bytes written.
func WriteAtomic(destPath string, r io.Reader) (string, int64, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "creating "+dir)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	hw := hasher.NewWriter(tmpFile)
	if _, err := io.Copy(hw, r); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "writing "+destPath)
	}
	if err := tmpFile.Sync(); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "syncing temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "closing temp file")
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "renaming into place")
	}
	syncDir(dir)

	success = true
	return hw.Sum(), hw.Len(), nil
}

// CopyAtomic copies the file at src to dst with WriteAtomic. A missing source
// is a not-found error.
func CopyAtomic(src, dst string) (string, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, vaulterr.Wrap(vaulterr.NotFound, err, "source file")
		}
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "opening source")
	}
	defer f.Close()

	sum, n, err := WriteAtomic(dst, f)
	if err != nil {
		return "", 0, fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	return sum, n, nil
}

// syncDir flushes a directory entry after a rename. Some platforms cannot
// sync directories; the rename itself is already atomic there.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
