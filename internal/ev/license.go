package ev

import (
	"fmt"
	"slices"

	"ev-go/internal/canonical"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/ledger"
	"ev-go/internal/license"
	"ev-go/internal/vaulterr"
)

// LicenseStatus describes the most recently installed license.
type LicenseStatus struct {
	Installed bool
	// Valid is re-verified from the stored payload and signature on every
	// call, not read from VerificationStatus.
	Valid              bool
	LicenseID          string
	IssuedTo           string
	Features           []string
	VerificationStatus string
}

// InstallLicense parses and verifies the license file at path and records
// the install with a LicenseInstalled event followed by LicenseValidated or
// LicenseRejected. A rejected license is still recorded; the call then
// returns a license-invalid error alongside the status.
func (s *Service) InstallLicense(path, actor string) (*LicenseStatus, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}

	doc, err := license.ReadFile(path)
	if err != nil {
		return nil, err
	}
	verifyErr := s.verifier.Verify(doc)
	status := license.StatusValid
	outcome := EventLicenseValidated
	if verifyErr != nil {
		status = license.StatusInvalid
		outcome = EventLicenseRejected
	}

	installed, err := s.draft(actor, EventLicenseInstalled, canonical.Object(
		canonical.F("license_id", canonical.String(doc.LicenseID)),
	))
	if err != nil {
		return nil, err
	}
	verified, err := s.draft(actor, outcome, canonical.Object(
		canonical.F("license_id", canonical.String(doc.LicenseID)),
		canonical.F("status", canonical.String(status)),
	))
	if err != nil {
		return nil, err
	}

	now := s.now()
	install := &sqlc.LicenseInstall{
		LicenseID:          doc.LicenseID,
		VaultID:            s.vault.VaultID,
		InstalledAt:        now,
		PayloadJson:        doc.CanonicalPayload(),
		SignatureHex:       doc.SignatureHex,
		VerificationStatus: status,
		VerifiedAt:         now,
	}
	if _, err := s.database.CreateLicenseInstall(install, []ledger.Draft{installed, verified}); err != nil {
		return nil, fmt.Errorf("recording license install: %w", err)
	}

	result := &LicenseStatus{
		Installed:          true,
		Valid:              verifyErr == nil,
		LicenseID:          doc.LicenseID,
		IssuedTo:           doc.IssuedTo,
		Features:           doc.Features,
		VerificationStatus: status,
	}
	if verifyErr != nil {
		s.logger.Warn("license rejected", "license_id", doc.LicenseID, "error", verifyErr)
		return result, fmt.Errorf("license %s rejected: %w", doc.LicenseID, verifyErr)
	}
	s.logger.Info("license installed", "license_id", doc.LicenseID, "issued_to", doc.IssuedTo, "features", doc.Features)
	return result, nil
}

// LicenseStatus reports on the latest install. With nothing installed it
// returns a zero status and no error.
func (s *Service) LicenseStatus() (*LicenseStatus, error) {
	install, err := s.database.FindLatestLicenseInstall()
	if err != nil {
		return nil, fmt.Errorf("loading license: %w", err)
	}
	if install == nil {
		return &LicenseStatus{}, nil
	}

	doc, err := license.FromPayload(install.PayloadJson, install.SignatureHex)
	if err != nil {
		return nil, fmt.Errorf("stored license %s: %w", install.LicenseID, err)
	}
	return &LicenseStatus{
		Installed:          true,
		Valid:              s.verifier.Verify(doc) == nil,
		LicenseID:          install.LicenseID,
		IssuedTo:           doc.IssuedTo,
		Features:           doc.Features,
		VerificationStatus: install.VerificationStatus,
	}, nil
}

// RequireFeature fails with license-required when no license is installed
// or the latest one lacks feature, and with license-invalid when the latest
// license does not verify.
func (s *Service) RequireFeature(feature string) error {
	st, err := s.LicenseStatus()
	if err != nil {
		return err
	}
	switch {
	case !st.Installed:
		return vaulterr.New(vaulterr.LicenseRequired, "%s requires a license", feature)
	case !st.Valid:
		return vaulterr.New(vaulterr.LicenseInvalid, "license %s is not valid", st.LicenseID)
	}
	if slices.Contains(st.Features, feature) {
		return nil
	}
	return vaulterr.New(vaulterr.LicenseRequired, "license %s does not include %s", st.LicenseID, feature)
}
