package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"ev-go/internal/evidence"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// Compression selects how pack entries are stored.
type Compression string

const (
	Deflate Compression = "deflate"
	Store   Compression = "store"
)

// ParseCompression validates a configured compression name. Empty means
// Deflate.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", Deflate:
		return Deflate, nil
	case Store:
		return Store, nil
	default:
		return "", vaulterr.New(vaulterr.Validation, "unknown compression %q", s)
	}
}

func (c Compression) method() uint16 {
	if c == Store {
		return zip.Store
	}
	return zip.Deflate
}

// writeArchive zips files (relative to dir) in the given order and moves the
// result to outPath atomically. Entry metadata comes only from the staged
// files' names, sizes and (pinned) modification times.
func writeArchive(outPath, dir string, files []string, compression Compression) (string, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(zipTo(pw, dir, files, compression))
	}()

	sum, _, err := evidence.WriteAtomic(outPath, pr)
	pr.CloseWithError(err)
	if err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	return sum, nil
}

func zipTo(w io.Writer, dir string, files []string, compression Compression) error {
	zw := zip.NewWriter(w)
	for _, name := range files {
		if err := addFile(zw, dir, name, compression); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "finishing archive")
	}
	return nil
}

func addFile(zw *zip.Writer, dir, name string, compression Compression) error {
	path := filepath.Join(dir, filepath.FromSlash(name))
	f, err := os.Open(path)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "opening staged "+name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "stat staged "+name)
	}

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   compression.method(),
		Modified: info.ModTime().UTC(),
	}
	hdr.SetMode(0o644)

	ew, err := zw.CreateHeader(hdr)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "adding "+name)
	}
	if _, err := io.Copy(ew, f); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "compressing "+name)
	}
	return nil
}

// extract unpacks every regular entry of the archive at path into dir and
// returns the entry names. Entries that would land outside dir are rejected.
func extract(path, dir string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.Wrap(vaulterr.NotFound, err, "export pack")
		}
		return nil, vaulterr.Wrap(vaulterr.UnsupportedFormat, err, "reading export pack")
	}
	defer zr.Close()

	var names []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if err := checkEntryName(zf.Name); err != nil {
			return nil, err
		}
		if err := extractOne(zf, filepath.Join(dir, filepath.FromSlash(zf.Name))); err != nil {
			return nil, err
		}
		names = append(names, zf.Name)
	}
	return names, nil
}

func extractOne(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return vaulterr.Wrap(vaulterr.UnsupportedFormat, err, "opening entry "+zf.Name)
	}
	defer rc.Close()

	if _, _, err := evidence.WriteAtomic(dest, rc); err != nil {
		return fmt.Errorf("extracting %s: %w", zf.Name, err)
	}
	return nil
}

func checkEntryName(name string) error {
	if name == ManifestName || name == IndexName {
		return nil
	}
	return checkRelative(name)
}

// ArchiveDigest returns the SHA-256 of a pack file.
func ArchiveDigest(path string) (string, error) {
	sum, _, err := hasher.File(path)
	return sum, err
}
