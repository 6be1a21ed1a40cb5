package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ev.
type Config struct {
	Actor      string           `toml:"actor"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	VaultRoot  string           `toml:"vault_root"`
	Database   DatabaseConfig   `toml:"database"`
	License    LicenseConfig    `toml:"license"`
	Export     ExportConfig     `toml:"export"`
	Seal       SealConfig       `toml:"seal"`
	Archives   []ArchiveConfig  `toml:"archives"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// DatabaseConfig selects the vault database backend.
type DatabaseConfig struct {
	Type string `toml:"type"` // "sqlite" (default) or "memory"
}

// LicenseConfig overrides the embedded vendor key, for private deployments.
type LicenseConfig struct {
	VendorPublicKey string `toml:"vendor_public_key,omitempty"` // 64 hex chars
}

// ExportConfig holds export pack settings.
type ExportConfig struct {
	OutDir      string `toml:"out_dir"`
	Compression string `toml:"compression"` // "deflate" (default) or "store"
}

// SealConfig holds paths to the age key pair used to seal export packs.
type SealConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds settings for reading evidence sources.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// ArchiveConfig describes a destination that export packs are published to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// NewConfig creates a Config with default paths under baseDir.
func NewConfig(actor, baseDir string) *Config {
	return &Config{
		Actor:    actor,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{Type: "sqlite"},
		Export: ExportConfig{
			OutDir:      filepath.Join(baseDir, "exports"),
			Compression: "deflate",
		},
		Seal: SealConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ev.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ev.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
