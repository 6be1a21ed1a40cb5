package evidence

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "vault"))
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func writeSource(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStore_Import(t *testing.T) {
	t.Run("stores file at its content address", func(t *testing.T) {
		s := newTestStore(t)
		data := []byte("%PDF-1.4 policy")
		src := writeSource(t, "policy.pdf", data)

		got, err := s.Import(src)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		sum := hasher.Bytes(data)
		wantRel := "evidence/" + sum[:2] + "/" + sum + "_policy.pdf"
		if got.RelativePath != wantRel {
			t.Errorf("RelativePath = %s, want %s", got.RelativePath, wantRel)
		}
		if got.SHA256 != sum || got.ByteSize != int64(len(data)) {
			t.Errorf("SHA256/ByteSize = %s/%d", got.SHA256, got.ByteSize)
		}
		if got.ContentType != "application/pdf" {
			t.Errorf("ContentType = %s", got.ContentType)
		}
		if got.Deduplicated {
			t.Error("first import reported as deduplicated")
		}

		stored, err := os.ReadFile(s.Abs(got.RelativePath))
		if err != nil {
			t.Fatalf("reading stored file: %v", err)
		}
		if string(stored) != string(data) {
			t.Error("stored bytes differ from source")
		}
	})

	t.Run("identical content and name are stored once", func(t *testing.T) {
		s := newTestStore(t)
		src := writeSource(t, "soc2.pdf", []byte("same bytes"))

		first, err := s.Import(src)
		if err != nil {
			t.Fatal(err)
		}
		second, err := s.Import(src)
		if err != nil {
			t.Fatal(err)
		}
		if first.RelativePath != second.RelativePath || first.SHA256 != second.SHA256 {
			t.Error("second import resolved to a different address")
		}
		if !second.Deduplicated {
			t.Error("second import not reported as deduplicated")
		}

		entries, err := os.ReadDir(filepath.Dir(s.Abs(first.RelativePath)))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("evidence dir has %d entries, want 1", len(entries))
		}
	})

	t.Run("leaves staging area empty", func(t *testing.T) {
		s := newTestStore(t)
		src := writeSource(t, "a.txt", []byte("a"))
		for i := 0; i < 2; i++ {
			if _, err := s.Import(src); err != nil {
				t.Fatal(err)
			}
		}
		entries, _ := os.ReadDir(filepath.Join(s.Root(), StagingDir))
		if len(entries) != 0 {
			t.Errorf("staging area has %d leftover entries", len(entries))
		}
	})

	t.Run("missing source is not found", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Import(filepath.Join(t.TempDir(), "absent.pdf"))
		if !errors.Is(err, vaulterr.ErrNotFound) {
			t.Errorf("Import() error = %v, want NOT_FOUND", err)
		}
	})

	t.Run("directory source is rejected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Import(t.TempDir())
		if !errors.Is(err, vaulterr.ErrValidation) {
			t.Errorf("Import() error = %v, want VALIDATION_ERROR", err)
		}
	})
}

func TestStore_Verify(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Import(writeSource(t, "log.txt", []byte("original")))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Verify(got.RelativePath, got.SHA256, got.ByteSize); err != nil {
		t.Errorf("Verify() untouched error = %v", err)
	}

	if err := os.WriteFile(s.Abs(got.RelativePath), []byte("modified"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = s.Verify(got.RelativePath, got.SHA256, got.ByteSize)
	if !errors.Is(err, vaulterr.ErrHashMismatch) {
		t.Errorf("Verify() modified error = %v, want HASH_MISMATCH", err)
	}
	if err != nil && !strings.Contains(err.Error(), got.RelativePath) {
		t.Errorf("Verify() error %q does not name the path", err)
	}
}

func TestStore_CleanStaging(t *testing.T) {
	s := newTestStore(t)
	leftover := filepath.Join(s.Root(), StagingDir, "import-123")
	if err := os.WriteFile(leftover, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.CleanStaging(); err != nil {
		t.Fatalf("CleanStaging() error = %v", err)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("leftover staged file still present")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out.md")

	sum, n, err := WriteAtomic(dest, strings.NewReader("# Export Index\n"))
	if err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	if sum != hasher.String("# Export Index\n") || n != 15 {
		t.Errorf("WriteAtomic() = %s, %d", sum, n)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("found %d entries next to destination, want only the file", len(entries))
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWriteAtomic_failureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	_, _, err := WriteAtomic(dest, brokenReader{})
	if !errors.Is(err, vaulterr.ErrIO) {
		t.Errorf("WriteAtomic() error = %v, want IO_ERROR", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("found %d leftover entries after failed write", len(entries))
	}
}

func TestCopyAtomic_missingSource(t *testing.T) {
	_, _, err := CopyAtomic(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
	if !errors.Is(err, vaulterr.ErrNotFound) {
		t.Errorf("CopyAtomic() error = %v, want NOT_FOUND", err)
	}
}
