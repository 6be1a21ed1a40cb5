package ev

import "io"

// Sealer encrypts export packs for hand-off to a third party. Sealing uses
// public keys only; opening a sealed pack needs the vault's private key,
// unlocked with a passphrase.
type Sealer interface {
	// Setup generates the vault's key pair and stores the private key
	// encrypted with passphrase. Existing keys are never overwritten.
	Setup(passphrase string) error

	// Seal encrypts r to w. recipients, when non-nil, is a recipients file
	// with one public key per line; the vault's own key is always added.
	Seal(r io.Reader, w io.Writer, recipients io.Reader) error

	// Unlock decrypts the private key and returns an Opener for the session.
	Unlock(passphrase string) (Opener, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// Opener decrypts sealed packs with an unlocked private key held in memory.
type Opener interface {
	Open(r io.Reader, w io.Writer) error
}
