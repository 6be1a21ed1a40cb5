// Package export builds deterministic export packs from a vault's evidence
// and re-verifies packs against their manifests.
//
// A pack is a zip archive holding manifest.json, index.md and every evidence
// file at its content address. Building the same evidence set twice yields
// byte-identical archives: entries are written from an explicitly sorted
// list and every timestamp is pinned to FixedTime.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"ev-go/internal/evidence"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// File names inside a pack.
const (
	ManifestName = "manifest.json"
	IndexName    = "index.md"
)

// FixedTime is the modification time of every file in a pack.
var FixedTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Item is an evidence file to export, as recorded in the vault.
type Item struct {
	RelativePath string
	SHA256       string
	ByteSize     int64
}

// Result describes a written pack.
type Result struct {
	Path           string
	Manifest       *Manifest
	ManifestSHA256 string
	ArchiveSHA256  string
	// EvidenceCount is the number of distinct evidence files in the pack.
	EvidenceCount int
}

// Builder writes packs from one vault's evidence store.
type Builder struct {
	store       *evidence.Store
	compression Compression

	// beforeArchive runs on the staging tree just before it is archived.
	beforeArchive func(dir string) error
}

// NewBuilder returns a Builder reading from store.
func NewBuilder(store *evidence.Store, compression Compression) *Builder {
	return &Builder{store: store, compression: compression}
}

// Build stages items in a scratch directory, writes index.md and
// manifest.json, pins timestamps and archives the tree to outPath. Items that
// share a content address are exported once.
func (b *Builder) Build(items []Item, outPath string) (*Result, error) {
	items = uniqueSorted(items)

	scratch, err := os.MkdirTemp("", "ev-export-*")
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "creating export scratch directory")
	}
	defer os.RemoveAll(scratch)

	for _, it := range items {
		if err := checkRelative(it.RelativePath); err != nil {
			return nil, err
		}
		sum, n, err := evidence.CopyAtomic(b.store.Abs(it.RelativePath), filepath.Join(scratch, filepath.FromSlash(it.RelativePath)))
		if err != nil {
			return nil, fmt.Errorf("staging %s: %w", it.RelativePath, err)
		}
		if sum != it.SHA256 || n != it.ByteSize {
			return nil, &MismatchError{Path: it.RelativePath, Reason: "stored evidence does not match its record"}
		}
	}

	if _, _, err := evidence.WriteAtomic(filepath.Join(scratch, IndexName), strings.NewReader(RenderIndex(items))); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}

	manifest, err := manifestFor(scratch, items)
	if err != nil {
		return nil, err
	}
	if _, _, err := evidence.WriteAtomic(filepath.Join(scratch, ManifestName), strings.NewReader(manifest.Encode())); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	files := make([]string, 0, len(manifest.Files)+1)
	files = append(files, ManifestName)
	for _, f := range manifest.Files {
		files = append(files, f.Path)
	}
	slices.Sort(files)

	if err := normalizeTimes(scratch, files); err != nil {
		return nil, err
	}
	if b.beforeArchive != nil {
		if err := b.beforeArchive(scratch); err != nil {
			return nil, err
		}
	}

	archiveSum, err := writeArchive(outPath, scratch, files, b.compression)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:           outPath,
		Manifest:       manifest,
		ManifestSHA256: manifest.SHA256(),
		ArchiveSHA256:  archiveSum,
		EvidenceCount:  len(items),
	}, nil
}

// manifestFor hashes the staged tree, so the manifest reflects exactly what
// will be archived.
func manifestFor(dir string, items []Item) (*Manifest, error) {
	paths := make([]string, 0, len(items)+1)
	paths = append(paths, IndexName)
	for _, it := range items {
		paths = append(paths, it.RelativePath)
	}

	entries := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		sum, n, err := hasher.File(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return nil, fmt.Errorf("hashing staged %s: %w", p, err)
		}
		entries = append(entries, FileEntry{Path: p, SHA256: sum, Size: n})
	}
	return NewManifest(entries), nil
}

func normalizeTimes(dir string, files []string) error {
	for _, f := range files {
		if err := os.Chtimes(filepath.Join(dir, filepath.FromSlash(f)), FixedTime, FixedTime); err != nil {
			return vaulterr.Wrap(vaulterr.IO, err, "normalizing time of "+f)
		}
	}
	return nil
}

func uniqueSorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b Item) int { return strings.Compare(a.RelativePath, b.RelativePath) })
	return slices.CompactFunc(out, func(a, b Item) bool { return a.RelativePath == b.RelativePath })
}

// checkRelative rejects paths that would escape the pack root or collide
// with the generated files.
func checkRelative(p string) error {
	switch {
	case p == "" || p == ManifestName || p == IndexName:
		return vaulterr.New(vaulterr.CorruptVault, "reserved or empty pack path %q", p)
	case strings.HasPrefix(p, "/") || strings.Contains(p, "\\"):
		return vaulterr.New(vaulterr.CorruptVault, "unsafe pack path %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return vaulterr.New(vaulterr.CorruptVault, "unsafe pack path %q", p)
		}
	}
	return nil
}
