package encryption

import (
	"bytes"
	"strings"
	"testing"

	"ev-go/internal/config"
	"ev-go/internal/vaulterr"
)

func TestTestSealer_RoundTrip(t *testing.T) {
	s := NewTestSealer()
	if s.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}
	if err := s.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var sealed bytes.Buffer
	if err := s.Seal(strings.NewReader("data"), &sealed, nil); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !bytes.HasPrefix(sealed.Bytes(), testHeader) {
		t.Errorf("sealed = %q, want test header prefix", sealed.Bytes())
	}

	opener, _ := s.Unlock("anything")
	var out bytes.Buffer
	if err := opener.Open(&sealed, &out); err != nil || out.String() != "data" {
		t.Errorf("Open() = %q, %v", out.String(), err)
	}

	if err := opener.Open(strings.NewReader("NOTSEALEDDATA"), &out); vaulterr.KindOf(err) != vaulterr.UnsupportedFormat {
		t.Errorf("Open() bad header error = %v", err)
	}
	if err := opener.Open(strings.NewReader("EV"), &out); err == nil {
		t.Error("Open() short input expected error")
	}
}

func TestNewSealerFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SealConfig
		want    string
		wantErr bool
	}{
		{name: "default is age", cfg: config.SealConfig{}, want: "*encryption.AgeSealer"},
		{name: "age", cfg: config.SealConfig{Type: "age"}, want: "*encryption.AgeSealer"},
		{name: "test", cfg: config.SealConfig{Type: "test"}, want: "*encryption.TestSealer"},
		{name: "unknown", cfg: config.SealConfig{Type: "pgp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSealerFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSealerFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch got.(type) {
			case *AgeSealer:
				if tt.want != "*encryption.AgeSealer" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			case *TestSealer:
				if tt.want != "*encryption.TestSealer" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			}
		})
	}
}
