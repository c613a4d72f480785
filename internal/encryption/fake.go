package encryption

import (
	"bytes"
	"fmt"
	"io"

	"fwatch-go/internal/fwatch"
)

// fakeMagic marks output produced by FakeEncryptor.
var fakeMagic = []byte("FWFAKE1\n")

// fakeMask is XORed over every payload byte so fake ciphertext never matches
// its plaintext.
const fakeMask = 0xa5

// FakeEncryptor is the key-free encryptor behind the "test" encryption type.
// It tags output with a magic prefix and masks the payload, keeping round
// trips deterministic and reversible without real cryptography or key files.
type FakeEncryptor struct {
	setupCount int
}

var _ fwatch.Encryptor = (*FakeEncryptor)(nil)

// NewFakeEncryptor builds a FakeEncryptor. It is configured from birth.
func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{}
}

func (e *FakeEncryptor) Setup(string) error {
	e.setupCount++
	return nil
}

func (e *FakeEncryptor) IsConfigured() bool { return true }

func (e *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading plaintext: %w", err)
	}
	if _, err := w.Write(fakeMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if _, err := w.Write(mask(payload)); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

func (e *FakeEncryptor) Unlock(string) (fwatch.DecryptionContext, error) {
	return fakeSession{}, nil
}

// fakeSession undoes the FakeEncryptor transform.
type fakeSession struct{}

var _ fwatch.DecryptionContext = fakeSession{}

func (fakeSession) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	if !bytes.HasPrefix(data, fakeMagic) {
		return fmt.Errorf("input is not fake-encrypted")
	}
	if _, err := w.Write(mask(data[len(fakeMagic):])); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	return nil
}

// mask applies the XOR mask. Applying it twice restores the input.
func mask(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ fakeMask
	}
	return out
}
