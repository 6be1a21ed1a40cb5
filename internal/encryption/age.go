package encryption

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"ev-go/internal/config"
	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// AgeSealer seals export packs with filippo.io/age X25519 keys. The public
// key is stored in plaintext; the private key is encrypted with the user's
// passphrase using age's scrypt recipient.
type AgeSealer struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ ev.Sealer = (*AgeSealer)(nil)

func NewAgeSealer(cfg config.SealConfig) *AgeSealer {
	return &AgeSealer{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a new X25519 key pair. It refuses to replace existing key
// files, since packs sealed to the old key could no longer be opened.
func (s *AgeSealer) Setup(passphrase string) error {
	if passphrase == "" {
		return vaulterr.New(vaulterr.Validation, "passphrase must not be empty")
	}
	for _, p := range []string{s.publicKeyPath, s.privateKeyPath} {
		if _, err := os.Stat(p); err == nil {
			return vaulterr.New(vaulterr.Validation, "key file already exists: %s", p)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, err, "generating key pair")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Validation, err, "creating scrypt recipient")
	}
	var priv bytes.Buffer
	w, err := age.Encrypt(&priv, recipient)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, err, "creating encrypted writer")
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return vaulterr.Wrap(vaulterr.Internal, err, "encrypting private key")
	}
	if err := w.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.Internal, err, "finalizing private key")
	}

	if err := writeKey(s.privateKeyPath, priv.Bytes(), 0o600); err != nil {
		return err
	}
	return writeKey(s.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0o644)
}

// Seal encrypts r to the vault key plus any extra recipients.
func (s *AgeSealer) Seal(r io.Reader, w io.Writer, recipients io.Reader) error {
	own, err := loadRecipients(s.publicKeyPath)
	if err != nil {
		return err
	}
	if recipients != nil {
		extra, err := age.ParseRecipients(recipients)
		if err != nil {
			return vaulterr.Wrap(vaulterr.Validation, err, "parsing recipients file")
		}
		own = append(own, extra...)
	}

	encWriter, err := age.Encrypt(w, own...)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, err, "creating encrypted writer")
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "sealing data")
	}
	if err := encWriter.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "finalizing sealed data")
	}
	return nil
}

// Unlock decrypts the private key with passphrase. A wrong passphrase is a
// validation error.
func (s *AgeSealer) Unlock(passphrase string) (ev.Opener, error) {
	privData, err := os.ReadFile(s.privateKeyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.New(vaulterr.NotFound, "private key not found at %s; run 'ev seal init'", s.privateKeyPath)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "reading private key")
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Validation, err, "creating scrypt identity")
	}
	decReader, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, vaulterr.New(vaulterr.Validation, "incorrect passphrase")
		}
		return nil, vaulterr.Wrap(vaulterr.CorruptVault, err, "decrypting private key")
	}

	identities, err := age.ParseIdentities(decReader)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CorruptVault, err, "parsing private key")
	}
	return &AgeOpener{identities: identities}, nil
}

func (s *AgeSealer) IsConfigured() bool {
	for _, p := range []string{s.publicKeyPath, s.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func loadRecipients(path string) ([]age.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.New(vaulterr.NotFound, "public key not found at %s; run 'ev seal init'", path)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "reading public key")
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CorruptVault, err, "parsing public key")
	}
	return recipients, nil
}

func writeKey(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "creating key directory")
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "writing "+filepath.Base(path))
	}
	return nil
}

// AgeOpener holds unlocked identities for opening sealed packs.
type AgeOpener struct {
	identities []age.Identity
}

var _ ev.Opener = (*AgeOpener)(nil)

// Open decrypts r to w. Data sealed to other keys is a validation error.
func (o *AgeOpener) Open(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, o.identities...)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return vaulterr.New(vaulterr.Validation, "pack is not sealed to this vault's key")
		}
		return vaulterr.Wrap(vaulterr.UnsupportedFormat, err, "reading sealed pack header")
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return vaulterr.Wrap(vaulterr.CorruptVault, err, "decrypting sealed pack")
	}
	return nil
}
