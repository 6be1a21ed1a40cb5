package export

import (
	"fmt"
	"slices"
	"strings"

	"ev-go/internal/canonical"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// ManifestVersion is the manifest format written by this package.
const ManifestVersion = 1

// FileEntry is one manifest line.
type FileEntry struct {
	Path   string
	SHA256 string
	Size   int64
}

// Manifest lists every file in a pack except manifest.json itself.
type Manifest struct {
	Version int64
	Files   []FileEntry
}

// NewManifest returns a manifest with files sorted by path.
func NewManifest(files []FileEntry) *Manifest {
	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b FileEntry) int { return strings.Compare(a.Path, b.Path) })
	return &Manifest{Version: ManifestVersion, Files: sorted}
}

// Value returns the canonical form of m.
func (m *Manifest) Value() canonical.Value {
	files := make([]canonical.Value, len(m.Files))
	for i, f := range m.Files {
		files[i] = canonical.Object(
			canonical.F("path", canonical.String(f.Path)),
			canonical.F("sha256", canonical.String(f.SHA256)),
			canonical.F("size", canonical.Int(f.Size)),
		)
	}
	return canonical.Object(
		canonical.F("files", canonical.Array(files...)),
		canonical.F("version", canonical.Int(m.Version)),
	)
}

// Encode returns the manifest.json text.
func (m *Manifest) Encode() string { return m.Value().Encode() }

// SHA256 returns the digest of the manifest.json text. It identifies a pack
// by content.
func (m *Manifest) SHA256() string { return hasher.String(m.Encode()) }

// ParseManifest reads manifest.json text. Whitespace and field order are
// tolerated so that a pack survives being inspected and re-saved by tools.
func ParseManifest(data []byte) (*Manifest, error) {
	v, err := canonical.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	version, err := v.IntField("version")
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if version != ManifestVersion {
		return nil, vaulterr.New(vaulterr.UnsupportedFormat, "manifest version %d", version)
	}
	items, err := v.ArrayField("files")
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m := &Manifest{Version: version, Files: make([]FileEntry, 0, len(items))}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		var f FileEntry
		if f.Path, err = it.StringField("path"); err != nil {
			return nil, fmt.Errorf("manifest file %d: %w", i, err)
		}
		if f.SHA256, err = it.StringField("sha256"); err != nil {
			return nil, fmt.Errorf("manifest file %d: %w", i, err)
		}
		if f.Size, err = it.IntField("size"); err != nil {
			return nil, fmt.Errorf("manifest file %d: %w", i, err)
		}
		if seen[f.Path] {
			return nil, vaulterr.New(vaulterr.CorruptVault, "manifest lists %s twice", f.Path)
		}
		seen[f.Path] = true
		m.Files = append(m.Files, f)
	}
	return m, nil
}
