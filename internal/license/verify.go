package license

import (
	"crypto/ed25519"

	"filippo.io/edwards25519"

	"ev-go/internal/vaulterr"
)

// VendorPublicKeyHex is the embedded vendor verification key.
const VendorPublicKeyHex = "613d659a7e2acf99913c44dde6a1e192795b88f322e2387947eee18635aa417f"

const signatureSize = ed25519.SignatureSize

// Verifier checks license signatures against one public key.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier decodes a hex public key. The key must be 32 bytes encoding a
// point of large order.
func NewVerifier(publicKeyHex string) (*Verifier, error) {
	b, err := decodeHex(publicKeyHex, ed25519.PublicKeySize, "public key")
	if err != nil {
		return nil, err
	}
	if !largeOrderPoint(b) {
		return nil, vaulterr.New(vaulterr.CorruptVault, "public key is not a valid Ed25519 point")
	}
	return &Verifier{key: ed25519.PublicKey(b)}, nil
}

// NewVendorVerifier returns the verifier for the embedded vendor key. A bad
// embedded key is an internal error.
func NewVendorVerifier() (*Verifier, error) {
	v, err := NewVerifier(VendorPublicKeyHex)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, err, "embedded vendor key")
	}
	return v, nil
}

// Verify checks d's signature over its canonical payload. A signature that
// is not 64 bytes of hex is a format error; a well-formed signature that does
// not verify is a license-invalid error.
func (v *Verifier) Verify(d *Document) error {
	sig, err := decodeHex(d.SignatureHex, signatureSize, "signature")
	if err != nil {
		return err
	}
	// Strict verification: reject small-order R as well as the checks
	// crypto/ed25519 already does (canonical S, encoded R equality).
	if !largeOrderPoint(sig[:32]) {
		return vaulterr.New(vaulterr.LicenseInvalid, "invalid signature")
	}
	if !ed25519.Verify(v.key, []byte(d.CanonicalPayload()), sig) {
		return vaulterr.New(vaulterr.LicenseInvalid, "invalid signature")
	}
	return nil
}

// largeOrderPoint reports whether b is a canonical encoding of a curve point
// outside the small-order subgroup.
func largeOrderPoint(b []byte) bool {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return false
	}
	return new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) != 1
}
