package ev_test

import (
	"testing"

	"ev-go/internal/canonical"
	"ev-go/internal/ev"
	"ev-go/internal/license"
	"ev-go/internal/testutil"
	"ev-go/internal/vaulterr"
)

func TestService_InstallLicense(t *testing.T) {
	tv := testutil.NewTestVault(t)
	path := testutil.WriteLicense(t, t.TempDir(), "LIC-001", license.FeatureExportPacks)

	st, err := tv.InstallLicense(path, "alice")
	if err != nil {
		t.Fatalf("InstallLicense() error = %v", err)
	}
	if !st.Installed || !st.Valid || st.LicenseID != "LIC-001" || st.IssuedTo != "Acme Corp" {
		t.Errorf("status = %+v", st)
	}
	if st.VerificationStatus != license.StatusValid {
		t.Errorf("VerificationStatus = %q", st.VerificationStatus)
	}

	evs := events(t, tv)
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3", len(evs))
	}
	if evs[1].EventType != ev.EventLicenseInstalled || evs[2].EventType != ev.EventLicenseValidated {
		t.Errorf("event types = %s, %s", evs[1].EventType, evs[2].EventType)
	}
	wantPayload(t, evs[1], canonical.Object(canonical.F("license_id", canonical.String("LIC-001"))))
	wantPayload(t, evs[2], canonical.Object(
		canonical.F("license_id", canonical.String("LIC-001")),
		canonical.F("status", canonical.String(license.StatusValid)),
	))
	if evs[2].PrevHash != evs[1].Hash {
		t.Error("license events are not chained to each other")
	}
}

func TestService_InstallLicense_forgedIsRecorded(t *testing.T) {
	tv := testutil.NewTestVault(t)
	path := testutil.WriteFile(t, t.TempDir(), "forged.json", testutil.ForgeLicense("LIC-666", "Mallory", license.FeatureExportPacks))

	st, err := tv.InstallLicense(path, "mallory")
	if vaulterr.KindOf(err) != vaulterr.LicenseInvalid {
		t.Fatalf("InstallLicense() error = %v, want LICENSE_INVALID", err)
	}
	if st == nil || st.Valid || st.VerificationStatus != license.StatusInvalid {
		t.Errorf("status = %+v", st)
	}

	e := lastEvent(t, tv)
	if e.EventType != ev.EventLicenseRejected {
		t.Errorf("last event = %s, want %s", e.EventType, ev.EventLicenseRejected)
	}

	status, err := tv.LicenseStatus()
	if err != nil {
		t.Fatalf("LicenseStatus() error = %v", err)
	}
	if !status.Installed || status.Valid || status.LicenseID != "LIC-666" {
		t.Errorf("LicenseStatus() = %+v", status)
	}
}

func TestService_InstallLicense_malformed(t *testing.T) {
	tv := testutil.NewTestVault(t)
	path := testutil.WriteFile(t, t.TempDir(), "bad.json", []byte(`{"license_id": "x"`))

	if _, err := tv.InstallLicense(path, "alice"); err == nil {
		t.Fatal("InstallLicense() expected error, got nil")
	}
	if got := len(events(t, tv)); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
	st, err := tv.LicenseStatus()
	if err != nil || st.Installed {
		t.Errorf("LicenseStatus() = %+v, %v; want nothing installed", st, err)
	}
}

func TestService_RequireFeature(t *testing.T) {
	tests := []struct {
		name    string
		install func(t *testing.T, tv *testutil.TestVault)
		want    vaulterr.Kind
		wantErr bool
	}{
		{
			name:    "no license",
			install: func(*testing.T, *testutil.TestVault) {},
			want:    vaulterr.LicenseRequired,
			wantErr: true,
		},
		{
			name: "feature granted",
			install: func(t *testing.T, tv *testutil.TestVault) {
				if _, err := tv.InstallLicense(testutil.WriteLicense(t, t.TempDir(), "L1", license.FeatureExportPacks), "alice"); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "feature missing",
			install: func(t *testing.T, tv *testutil.TestVault) {
				if _, err := tv.InstallLicense(testutil.WriteLicense(t, t.TempDir(), "L2", "ANSWER_BANK"), "alice"); err != nil {
					t.Fatal(err)
				}
			},
			want:    vaulterr.LicenseRequired,
			wantErr: true,
		},
		{
			name: "feature names are case sensitive",
			install: func(t *testing.T, tv *testutil.TestVault) {
				if _, err := tv.InstallLicense(testutil.WriteLicense(t, t.TempDir(), "L3", "export_packs"), "alice"); err != nil {
					t.Fatal(err)
				}
			},
			want:    vaulterr.LicenseRequired,
			wantErr: true,
		},
		{
			name: "latest license is forged",
			install: func(t *testing.T, tv *testutil.TestVault) {
				dir := t.TempDir()
				if _, err := tv.InstallLicense(testutil.WriteLicense(t, dir, "L4", license.FeatureExportPacks), "alice"); err != nil {
					t.Fatal(err)
				}
				forged := testutil.WriteFile(t, dir, "forged.json", testutil.ForgeLicense("L5", "Mallory", license.FeatureExportPacks))
				_, _ = tv.InstallLicense(forged, "mallory")
			},
			want:    vaulterr.LicenseInvalid,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := testutil.NewTestVault(t)
			tt.install(t, tv)

			err := tv.RequireFeature(license.FeatureExportPacks)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("RequireFeature() error = %v", err)
				}
				return
			}
			if got := vaulterr.KindOf(err); err == nil || got != tt.want {
				t.Errorf("RequireFeature() error = %v, want %s", err, tt.want)
			}
		})
	}
}
