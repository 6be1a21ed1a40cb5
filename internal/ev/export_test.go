package ev_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ev-go/internal/canonical"
	"ev-go/internal/ev"
	"ev-go/internal/export"
	"ev-go/internal/license"
	"ev-go/internal/testutil"
	"ev-go/internal/vaulterr"
)

// licensedVault returns a vault with an export license and two evidence
// files.
func licensedVault(t *testing.T) *testutil.TestVault {
	t.Helper()
	tv := testutil.NewTestVault(t)
	dir := t.TempDir()
	if _, err := tv.InstallLicense(testutil.WriteLicense(t, dir, "LIC-EXPORT", license.FeatureExportPacks), "alice"); err != nil {
		t.Fatalf("InstallLicense() error = %v", err)
	}
	for name, body := range map[string]string{"policy.md": "# Policy", "scan.csv": "host,ok"} {
		if _, err := tv.AddEvidence(resolve(t, testutil.WriteFile(t, dir, name, []byte(body))), "", "alice"); err != nil {
			t.Fatalf("AddEvidence(%s) error = %v", name, err)
		}
	}
	return tv
}

func TestService_BuildPack(t *testing.T) {
	tv := licensedVault(t)
	out := filepath.Join(t.TempDir(), "pack.zip")

	res, err := tv.BuildPack(out, "auditor")
	if err != nil {
		t.Fatalf("BuildPack() error = %v", err)
	}
	if res.EvidenceCount != 2 {
		t.Errorf("EvidenceCount = %d, want 2", res.EvidenceCount)
	}
	if len(res.Manifest.Files) != 3 {
		t.Errorf("manifest lists %d files, want 3", len(res.Manifest.Files))
	}

	e := lastEvent(t, tv)
	if e.EventType != ev.EventExportGenerated || e.Actor != "auditor" {
		t.Errorf("event = %s by %s", e.EventType, e.Actor)
	}
	wantPayload(t, e, canonical.Object(
		canonical.F("file_count", canonical.Int(3)),
		canonical.F("manifest_sha256", canonical.String(res.ManifestSHA256)),
	))

	m, err := tv.ValidatePack(out)
	if err != nil {
		t.Fatalf("ValidatePack() error = %v", err)
	}
	if m.SHA256() != res.ManifestSHA256 {
		t.Errorf("validated manifest digest = %s, want %s", m.SHA256(), res.ManifestSHA256)
	}

	again := filepath.Join(t.TempDir(), "pack.zip")
	res2, err := tv.BuildPack(again, "auditor")
	if err != nil {
		t.Fatalf("second BuildPack() error = %v", err)
	}
	if res2.ArchiveSHA256 != res.ArchiveSHA256 {
		t.Error("rebuilding the same evidence produced a different archive")
	}
}

func TestService_BuildPack_requiresLicense(t *testing.T) {
	tv := testutil.NewTestVault(t)
	out := filepath.Join(t.TempDir(), "pack.zip")

	_, err := tv.BuildPack(out, "auditor")
	if vaulterr.KindOf(err) != vaulterr.LicenseRequired {
		t.Fatalf("BuildPack() error = %v, want LICENSE_REQUIRED", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("pack written without a license: %v", err)
	}
	if got := len(events(t, tv)); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
}

func TestService_BuildPack_tamperedEvidence(t *testing.T) {
	tv := licensedVault(t)
	items, err := tv.ListEvidence()
	if err != nil || len(items) == 0 {
		t.Fatalf("ListEvidence() = %d, %v", len(items), err)
	}
	stored := filepath.Join(tv.Root, filepath.FromSlash(items[0].RelativePath))
	if err := os.WriteFile(stored, []byte("swapped"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "pack.zip")
	if _, err := tv.BuildPack(out, "auditor"); vaulterr.KindOf(err) != vaulterr.HashMismatch {
		t.Errorf("BuildPack() error = %v, want HASH_MISMATCH", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("pack written from tampered evidence: %v", err)
	}
}

func TestService_SealAndOpenPack(t *testing.T) {
	tv := licensedVault(t)
	dir := t.TempDir()
	pack := filepath.Join(dir, "pack.zip")
	res, err := tv.BuildPack(pack, "auditor")
	if err != nil {
		t.Fatalf("BuildPack() error = %v", err)
	}
	if err := tv.SetupSealKeys("correct horse"); err != nil {
		t.Fatalf("SetupSealKeys() error = %v", err)
	}

	sealed, err := tv.SealPack(pack, "")
	if err != nil {
		t.Fatalf("SealPack() error = %v", err)
	}
	if sealed != pack+ev.SealedExt {
		t.Errorf("sealed path = %q", sealed)
	}

	opened := filepath.Join(dir, "opened.zip")
	m, err := tv.OpenSealedPack(sealed, opened, "correct horse")
	if err != nil {
		t.Fatalf("OpenSealedPack() error = %v", err)
	}
	if m.SHA256() != res.ManifestSHA256 {
		t.Errorf("opened manifest digest = %s, want %s", m.SHA256(), res.ManifestSHA256)
	}
	orig, _ := os.ReadFile(pack)
	got, _ := os.ReadFile(opened)
	if !bytes.Equal(orig, got) {
		t.Error("opened pack differs from the original")
	}
}

func TestService_SealPack_errors(t *testing.T) {
	dir := t.TempDir()
	notAPack := testutil.WriteFile(t, dir, "notes.zip", []byte("not a zip"))

	tests := []struct {
		name       string
		path       string
		recipients string
	}{
		{name: "invalid pack", path: notAPack},
		{name: "missing pack", path: filepath.Join(dir, "absent.zip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := testutil.NewTestVault(t)
			if _, err := tv.SealPack(tt.path, tt.recipients); err == nil {
				t.Fatal("SealPack() expected error, got nil")
			}
			if _, err := os.Stat(tt.path + ev.SealedExt); !os.IsNotExist(err) {
				t.Errorf("sealed output written: %v", err)
			}
		})
	}
}

func TestService_OpenSealedPack_rejectsForeignData(t *testing.T) {
	tv := testutil.NewTestVault(t)
	dir := t.TempDir()
	sealed := testutil.WriteFile(t, dir, "pack.zip.age", []byte("garbage that is not sealed"))
	out := filepath.Join(dir, "out.zip")

	_, err := tv.OpenSealedPack(sealed, out, "pw")
	if vaulterr.KindOf(err) != vaulterr.UnsupportedFormat {
		t.Errorf("OpenSealedPack() error = %v, want UNSUPPORTED_FORMAT", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output left behind: %v", err)
	}
}

func TestService_PublishPack(t *testing.T) {
	tv := licensedVault(t)
	pack := filepath.Join(t.TempDir(), "pack.zip")
	res, err := tv.BuildPack(pack, "auditor")
	if err != nil {
		t.Fatalf("BuildPack() error = %v", err)
	}

	digest, err := tv.PublishPack(pack)
	if err != nil {
		t.Fatalf("PublishPack() error = %v", err)
	}
	if digest != res.ManifestSHA256 {
		t.Errorf("digest = %s, want %s", digest, res.ManifestSHA256)
	}

	var buf bytes.Buffer
	if err := tv.Archive.GetPack(digest, &buf); err != nil {
		t.Fatalf("GetPack() error = %v", err)
	}
	orig, _ := os.ReadFile(pack)
	if !bytes.Equal(buf.Bytes(), orig) {
		t.Error("archived pack differs from the local pack")
	}

	if _, err := tv.PublishPack(pack); err != nil {
		t.Errorf("republishing error = %v", err)
	}
	if got := tv.Archive.Digests(); len(got) != 1 {
		t.Errorf("archive holds %d packs, want 1", len(got))
	}
}

func TestService_PublishPack_invalidPack(t *testing.T) {
	tv := testutil.NewTestVault(t)
	bad := testutil.WriteFile(t, t.TempDir(), "bad.zip", []byte("nope"))

	if _, err := tv.PublishPack(bad); err == nil {
		t.Fatal("PublishPack() expected error, got nil")
	}
	if got := tv.Archive.Digests(); len(got) != 0 {
		t.Errorf("archive holds %d packs, want 0", len(got))
	}
}

func TestService_ValidatePack_detectsTampering(t *testing.T) {
	tv := licensedVault(t)
	dir := t.TempDir()
	pack := filepath.Join(dir, "pack.zip")
	if _, err := tv.BuildPack(pack, "auditor"); err != nil {
		t.Fatalf("BuildPack() error = %v", err)
	}

	// Rewrite the pack with one evidence entry replaced.
	zr, err := zip.OpenReader(pack)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatal(err)
		}
		if strings.HasSuffix(f.Name, "_scan.csv") {
			io.WriteString(w, "host,FAIL")
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(w, rc)
		rc.Close()
	}
	zr.Close()
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	tampered := testutil.WriteFile(t, dir, "tampered.zip", out.Bytes())

	_, err = tv.ValidatePack(tampered)
	if vaulterr.KindOf(err) != vaulterr.HashMismatch {
		t.Errorf("ValidatePack() error = %v, want HASH_MISMATCH", err)
	}
	var mismatch *export.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error is %T, want *export.MismatchError", err)
	}
	if !strings.HasSuffix(mismatch.Path, "_scan.csv") {
		t.Errorf("mismatch path = %q", mismatch.Path)
	}
}
