package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"fwatch-go/internal/config"
	"fwatch-go/internal/fwatch"
)

// AgeEncryptor is the age-backed implementation of fwatch.Encryptor. It keeps
// an X25519 key pair on disk: the recipient (public) half in plaintext, the
// identity (private) half sealed with the user's passphrase through age's
// scrypt recipient. Encrypting only ever reads the recipient file, so exports
// run without a passphrase prompt.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ fwatch.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor builds an AgeEncryptor over the key paths in cfg.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: cfg.PublicKeyPath,
		identityPath:  cfg.PrivateKeyPath,
	}
}

// Setup generates a fresh X25519 key pair and writes both halves to their
// configured paths, replacing any existing pair. The identity is sealed with
// the passphrase before it touches disk.
func (e *AgeEncryptor) Setup(passphrase string) error {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	sealed, err := sealWithPassphrase([]byte(id.String()+"\n"), passphrase)
	if err != nil {
		return fmt.Errorf("sealing identity: %w", err)
	}

	for _, p := range []string{e.recipientPath, e.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.recipientPath, []byte(id.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient file: %w", err)
	}
	if err := os.WriteFile(e.identityPath, sealed, 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}
	return nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.recipientPath, e.identityPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Encrypt streams plaintext from r to w as an age file addressed to the
// stored recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	rec, err := e.recipient()
	if err != nil {
		return err
	}

	cw, err := age.Encrypt(w, rec)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(cw, r); err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finishing encryption: %w", err)
	}
	return nil
}

// Unlock opens the sealed identity file with the passphrase and returns a
// context that can decrypt exports for the rest of the process. The unsealed
// key lives only in memory.
func (e *AgeEncryptor) Unlock(passphrase string) (fwatch.DecryptionContext, error) {
	sealed, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	raw, err := openWithPassphrase(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unsealing identity: %w", err)
	}

	line, err := firstKeyLine(raw)
	if err != nil {
		return nil, fmt.Errorf("identity file %s: %w", e.identityPath, err)
	}
	id, err := age.ParseX25519Identity(line)
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return &ageSession{identity: id}, nil
}

// recipient loads and parses the plaintext recipient file.
func (e *AgeEncryptor) recipient() (age.Recipient, error) {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading recipient file: %w", err)
	}
	line, err := firstKeyLine(data)
	if err != nil {
		return nil, fmt.Errorf("recipient file %s: %w", e.recipientPath, err)
	}
	rec, err := age.ParseX25519Recipient(line)
	if err != nil {
		return nil, fmt.Errorf("parsing recipient: %w", err)
	}
	return rec, nil
}

// sealWithPassphrase encrypts payload to a scrypt recipient derived from the
// passphrase.
func sealWithPassphrase(payload []byte, passphrase string) ([]byte, error) {
	rec, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, rec)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// openWithPassphrase reverses sealWithPassphrase. A wrong passphrase surfaces
// as a decryption error.
func openWithPassphrase(sealed []byte, passphrase string) ([]byte, error) {
	id, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(sealed), id)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// firstKeyLine returns the first line of a key file that is neither blank
// nor a comment. Files written by age-keygen carry "# created:" style
// comments above the key.
func firstKeyLine(data []byte) (string, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", fmt.Errorf("no key material found")
}

// ageSession holds an unsealed identity for decrypting exports.
type ageSession struct {
	identity age.Identity
}

var _ fwatch.DecryptionContext = (*ageSession)(nil)

// Decrypt reads an age file from r and writes the plaintext to w.
func (s *ageSession) Decrypt(r io.Reader, w io.Writer) error {
	pr, err := age.Decrypt(r, s.identity)
	if err != nil {
		return fmt.Errorf("starting decryption: %w", err)
	}
	if _, err := io.Copy(w, pr); err != nil {
		return fmt.Errorf("decrypting: %w", err)
	}
	return nil
}
