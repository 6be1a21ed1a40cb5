package testutil

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ev-go/internal/canonical"
	"ev-go/internal/license"
)

// licenseSeed derives the test signing key. It is not the vendor key.
var licenseSeed = []byte("ev-go test license signing seed!") // 32 bytes

func licenseKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(licenseSeed)
}

// LicensePublicKeyHex is the verification key matching SignLicense.
func LicensePublicKeyHex() string {
	return hex.EncodeToString(licenseKey().Public().(ed25519.PublicKey))
}

// NewLicenseVerifier returns a verifier for licenses signed by SignLicense.
func NewLicenseVerifier(t *testing.T) *license.Verifier {
	t.Helper()
	v, err := license.NewVerifier(LicensePublicKeyHex())
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	return v
}

// SignLicense returns a license file body signed with the test key.
func SignLicense(id, issuedTo string, features ...string) []byte {
	doc := &license.Document{
		LicenseID: id,
		IssuedTo:  issuedTo,
		IssuedAt:  "2024-01-01T00:00:00Z",
		Features:  features,
	}
	sig := ed25519.Sign(licenseKey(), []byte(doc.CanonicalPayload()))
	return []byte(doc.Payload().With("signature_hex", canonical.String(hex.EncodeToString(sig))).Encode())
}

// ForgeLicense returns a well-formed license whose signature does not
// verify: a real signature over different content.
func ForgeLicense(id, issuedTo string, features ...string) []byte {
	genuine := SignLicense(id, issuedTo+" (original)", features...)
	v, err := canonical.Decode(string(genuine))
	if err != nil {
		panic(err)
	}
	return []byte(v.With("issued_to", canonical.String(issuedTo)).Encode())
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// WriteLicense writes a signed license file and returns its path.
func WriteLicense(t *testing.T, dir, id string, features ...string) string {
	t.Helper()
	return WriteFile(t, dir, strings.ToLower(id)+".json", SignLicense(id, "Acme Corp", features...))
}
