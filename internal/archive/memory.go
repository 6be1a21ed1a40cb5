package archive

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// MemoryArchive keeps packs in memory. It is safe for concurrent use.
type MemoryArchive struct {
	name  string
	mu    sync.RWMutex
	packs map[string][]byte
}

func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{name: name, packs: make(map[string][]byte)}
}

func (m *MemoryArchive) Name() string { return m.name }

func (m *MemoryArchive) PutPack(manifestSHA256 string, r io.Reader, size int64) error {
	if err := checkKey(manifestSHA256); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "reading pack")
	}
	if int64(len(data)) != size {
		return vaulterr.New(vaulterr.IO, "size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[manifestSHA256]; !ok {
		m.packs[manifestSHA256] = data
	}
	return nil
}

func (m *MemoryArchive) GetPack(manifestSHA256 string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.packs[manifestSHA256]
	m.mu.RUnlock()
	if !ok {
		return vaulterr.New(vaulterr.NotFound, "pack %s not found in archive %s", manifestSHA256, m.name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "writing pack")
	}
	return nil
}

func (m *MemoryArchive) HasPack(manifestSHA256 string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.packs[manifestSHA256]
	return ok, nil
}

// Digests lists stored pack digests in order.
func (m *MemoryArchive) Digests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.packs))
	for k := range m.packs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup() error { return nil }

var _ ev.Archive = (*MemoryArchive)(nil)
