package ev

import "io"

// Archive is an off-site destination for published export packs.
// Packs are stored under their manifest digest, so publishing the same pack
// twice is idempotent.
type Archive interface {
	// Name identifies the destination in logs and CLI output.
	Name() string

	// PutPack stores a pack archive. size is the number of bytes in r.
	PutPack(manifestSHA256 string, r io.Reader, size int64) error

	// GetPack writes a stored pack to w.
	GetPack(manifestSHA256 string, w io.Writer) error

	// HasPack reports whether a pack with this manifest digest is stored.
	HasPack(manifestSHA256 string) (bool, error)

	// ValidateSetup verifies that the destination is reachable.
	ValidateSetup() error
}
