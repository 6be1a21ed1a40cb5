// Package hasher computes the lowercase hex SHA-256 digests used for ledger
// hashes, evidence addresses and export manifests.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"

	"ev-go/internal/vaulterr"
)

// Size is the length of a hex digest.
const Size = sha256.Size * 2

// Bytes returns the digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// String returns the digest of the UTF-8 bytes of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// Reader streams r through SHA-256 and returns the digest and the number of
// bytes read. Read failures are I/O errors.
func Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, vaulterr.Wrap(vaulterr.IO, err, "reading content")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// File returns the digest and size of the file at path. A missing file is a
// not-found error; any other failure is an I/O error.
func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, vaulterr.Wrap(vaulterr.NotFound, err, "opening "+path)
		}
		return "", 0, vaulterr.Wrap(vaulterr.IO, err, "opening "+path)
	}
	defer f.Close()

	sum, n, err := Reader(f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, n, nil
}

// Writer wraps w so that everything written through it is also hashed. It is
// used to digest content while copying it, avoiding a second read.
type Writer struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewWriter returns a Writer that forwards to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: sha256.New()}
}

func (hw *Writer) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// Sum returns the hex digest of everything written so far.
func (hw *Writer) Sum() string { return hex.EncodeToString(hw.h.Sum(nil)) }

// Len returns the number of bytes written so far.
func (hw *Writer) Len() int64 { return hw.n }

// IsDigest reports whether s looks like a lowercase hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
