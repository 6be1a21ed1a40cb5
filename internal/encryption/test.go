package encryption

import (
	"bytes"
	"io"

	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// testHeader marks data sealed by TestSealer.
var testHeader = []byte("EVSEAL\x00\x00")

// TestSealer is a deterministic stand-in for AgeSealer. It prepends a fixed
// header when sealing and strips it when opening. No cryptography is involved.
type TestSealer struct {
	configured bool
}

var _ ev.Sealer = (*TestSealer)(nil)

func NewTestSealer() *TestSealer { return &TestSealer{} }

func (s *TestSealer) Setup(passphrase string) error {
	if passphrase == "" {
		return vaulterr.New(vaulterr.Validation, "passphrase must not be empty")
	}
	s.configured = true
	return nil
}

func (s *TestSealer) Seal(r io.Reader, w io.Writer, recipients io.Reader) error {
	if _, err := w.Write(testHeader); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "writing test header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "copying data")
	}
	return nil
}

func (s *TestSealer) Unlock(passphrase string) (ev.Opener, error) {
	return TestOpener{}, nil
}

func (s *TestSealer) IsConfigured() bool { return s.configured }

// TestOpener strips the header added by TestSealer.
type TestOpener struct{}

func (TestOpener) Open(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return vaulterr.Wrap(vaulterr.UnsupportedFormat, err, "reading test header")
	}
	if !bytes.Equal(header, testHeader) {
		return vaulterr.New(vaulterr.UnsupportedFormat, "invalid test seal header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "copying data")
	}
	return nil
}
