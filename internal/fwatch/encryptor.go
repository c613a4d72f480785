package fwatch

import "io"

// Encryptor seals export streams and unlocks the key needed to read them
// back. Sealing uses only the public half of the key pair, so exports run
// unattended; reading requires a passphrase to unlock the private half.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `fwatch config
	// init`. Generates a key pair, stores the public key in plaintext, and
	// encrypts the private key with the provided passphrase.
	Setup(passphrase string) error

	// Encrypt seals everything read from r into w using the public key.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key with the passphrase and returns a
	// DecryptionContext valid for the rest of the process. A wrong
	// passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files are present on disk.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory. Created by
// Encryptor.Unlock; the unlocked key is never written to disk.
type DecryptionContext interface {
	// Decrypt opens sealed data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
