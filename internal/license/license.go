// Package license parses signed license documents and verifies them against
// the vendor's Ed25519 public key.
//
// A license file is a JSON object:
//
//	{"license_id": "...", "issued_to": "...", "issued_at": "...",
//	 "features": ["..."], "signature_hex": "<128 hex chars>"}
//
// The signature covers the canonical encoding of every field except
// signature_hex.
package license

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"ev-go/internal/canonical"
	"ev-go/internal/vaulterr"
)

// Verification statuses as persisted.
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// Feature names granted by licenses.
const (
	FeatureExportPacks = "EXPORT_PACKS"
)

// Document is a parsed license file.
type Document struct {
	LicenseID    string
	IssuedTo     string
	IssuedAt     string
	Features     []string
	SignatureHex string
}

// ReadFile parses the license file at path. A missing file is a not-found
// error.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.Wrap(vaulterr.NotFound, err, "license file")
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "reading license file")
	}
	return Parse(data)
}

// Parse reads a license document. Malformed JSON, missing fields and a
// signature that is not 64 bytes of hex are corrupt-vault errors.
func Parse(data []byte) (*Document, error) {
	v, err := canonical.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing license: %w", err)
	}
	doc, err := fromValue(v)
	if err != nil {
		return nil, fmt.Errorf("parsing license: %w", err)
	}
	sig, err := v.StringField("signature_hex")
	if err != nil {
		return nil, fmt.Errorf("parsing license: %w", err)
	}
	if _, err := decodeHex(sig, signatureSize, "signature"); err != nil {
		return nil, err
	}
	doc.SignatureHex = strings.ToLower(strings.TrimSpace(sig))
	return doc, nil
}

// FromPayload rebuilds a document from a persisted canonical payload and its
// signature, for re-verification.
func FromPayload(payloadJSON, signatureHex string) (*Document, error) {
	v, err := canonical.Decode(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding license payload: %w", err)
	}
	doc, err := fromValue(v)
	if err != nil {
		return nil, fmt.Errorf("decoding license payload: %w", err)
	}
	doc.SignatureHex = signatureHex
	return doc, nil
}

func fromValue(v canonical.Value) (*Document, error) {
	var (
		doc Document
		err error
	)
	if doc.LicenseID, err = v.StringField("license_id"); err != nil {
		return nil, err
	}
	if doc.IssuedTo, err = v.StringField("issued_to"); err != nil {
		return nil, err
	}
	if doc.IssuedAt, err = v.StringField("issued_at"); err != nil {
		return nil, err
	}
	if doc.Features, err = v.StringsField("features"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.LicenseID) == "" {
		return nil, vaulterr.New(vaulterr.CorruptVault, "license_id is empty")
	}
	return &doc, nil
}

// Payload returns the signed part of the document as a canonical object.
func (d *Document) Payload() canonical.Value {
	return canonical.Object(
		canonical.F("features", canonical.Strings(d.Features)),
		canonical.F("issued_at", canonical.String(d.IssuedAt)),
		canonical.F("issued_to", canonical.String(d.IssuedTo)),
		canonical.F("license_id", canonical.String(d.LicenseID)),
	)
}

// CanonicalPayload returns the exact text the signature covers.
func (d *Document) CanonicalPayload() string {
	return d.Payload().Encode()
}

// HasFeature reports whether feature is listed verbatim.
func (d *Document) HasFeature(feature string) bool {
	return slices.Contains(d.Features, feature)
}

// decodeHex decodes s and requires exactly size bytes. Any other shape is a
// format error, distinct from a signature that does not verify.
func decodeHex(s string, size int, what string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CorruptVault, err, what+" is not valid hex")
	}
	if len(b) != size {
		return nil, vaulterr.New(vaulterr.CorruptVault, "%s must be %d bytes, got %d", what, size, len(b))
	}
	return b, nil
}
