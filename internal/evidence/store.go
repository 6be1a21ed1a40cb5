// Package evidence stores imported files under a vault root, addressed by
// their SHA-256 digest so that identical content is kept once.
//
// Layout:
//
//	<root>/
//	  .staging/                       (transient import area)
//	  evidence/<aa>/<sha256>_<name>   (content-addressed files)
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

// StagingDir is the scratch area used while importing.
const StagingDir = ".staging"

// Imported describes a file after import. It is not yet recorded anywhere;
// the caller persists it together with its ledger event.
type Imported struct {
	Filename     string
	RelativePath string
	ContentType  string
	ByteSize     int64
	SHA256       string
	// Deduplicated is true when the content address already existed and no
	// new file was written.
	Deduplicated bool
}

// Store is the evidence tree of one vault.
type Store struct {
	root string
}

// NewStore returns the store rooted at a vault directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Init creates the evidence and staging directories.
func (s *Store) Init() error {
	for _, dir := range []string{Dir, StagingDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return vaulterr.Wrap(vaulterr.IO, err, "creating "+dir)
		}
	}
	return nil
}

// Root returns the vault root directory.
func (s *Store) Root() string { return s.root }

// Abs converts a stored relative path to a filesystem path.
func (s *Store) Abs(relativePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relativePath))
}

// Import stages src under .staging, hashes it, and moves it to its content
// address unless a file is already there.
func (s *Store) Import(src string) (*Imported, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.Wrap(vaulterr.NotFound, err, "source file")
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "stat source")
	}
	if !info.Mode().IsRegular() {
		return nil, vaulterr.New(vaulterr.Validation, "not a regular file: %s", src)
	}

	filename, err := SanitizeFilename(filepath.Base(src))
	if err != nil {
		return nil, err
	}

	staged, sum, size, err := s.stage(src)
	if err != nil {
		return nil, err
	}
	// Best effort; a leftover staged file is harmless and never masks the
	// import result.
	defer os.Remove(staged)

	rel, err := RelativePath(sum, filename)
	if err != nil {
		return nil, err
	}
	out := &Imported{
		Filename:     filename,
		RelativePath: rel,
		ContentType:  ContentType(filename),
		ByteSize:     size,
		SHA256:       sum,
	}

	dest := s.Abs(rel)
	switch _, err := os.Stat(dest); {
	case err == nil:
		out.Deduplicated = true
		return out, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, vaulterr.Wrap(vaulterr.IO, err, "stat "+rel)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "creating evidence directory")
	}
	if err := os.Rename(staged, dest); err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "moving staged file to "+rel)
	}
	syncDir(filepath.Dir(dest))
	return out, nil
}

// stage copies src into a synced temp file in the staging area.
func (s *Store) stage(src string) (path, sum string, size int64, err error) {
	stagingDir := filepath.Join(s.root, StagingDir)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", "", 0, vaulterr.Wrap(vaulterr.IO, err, "creating staging area")
	}

	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", 0, vaulterr.Wrap(vaulterr.NotFound, err, "source file")
		}
		return "", "", 0, vaulterr.Wrap(vaulterr.IO, err, "opening source")
	}
	defer in.Close()

	f, err := os.CreateTemp(stagingDir, "import-*")
	if err != nil {
		return "", "", 0, vaulterr.Wrap(vaulterr.IO, err, "creating staged file")
	}
	fail := func(e error) (string, string, int64, error) {
		f.Close()
		os.Remove(f.Name())
		return "", "", 0, e
	}

	hw := hasher.NewWriter(f)
	if _, err := io.Copy(hw, in); err != nil {
		return fail(vaulterr.Wrap(vaulterr.IO, err, "staging "+filepath.Base(src)))
	}
	if err := f.Sync(); err != nil {
		return fail(vaulterr.Wrap(vaulterr.IO, err, "syncing staged file"))
	}
	if err := f.Close(); err != nil {
		return fail(vaulterr.Wrap(vaulterr.IO, err, "closing staged file"))
	}
	return f.Name(), hw.Sum(), hw.Len(), nil
}

// Open opens a stored file for reading.
func (s *Store) Open(relativePath string) (*os.File, error) {
	f, err := os.Open(s.Abs(relativePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.Wrap(vaulterr.NotFound, err, "evidence file "+relativePath)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "opening "+relativePath)
	}
	return f, nil
}

// Verify re-hashes a stored file and compares it to the recorded digest and
// size.
func (s *Store) Verify(relativePath, sha256 string, size int64) error {
	sum, n, err := hasher.File(s.Abs(relativePath))
	if err != nil {
		return fmt.Errorf("verifying %s: %w", relativePath, err)
	}
	if sum != sha256 || n != size {
		return vaulterr.New(vaulterr.HashMismatch, "stored file does not match its record: %s", relativePath)
	}
	return nil
}

// CleanStaging removes leftovers from interrupted imports.
func (s *Store) CleanStaging() error {
	dir := filepath.Join(s.root, StagingDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return vaulterr.Wrap(vaulterr.IO, err, "reading staging area")
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return vaulterr.Wrap(vaulterr.IO, errors.Join(errs...), "cleaning staging area")
}
