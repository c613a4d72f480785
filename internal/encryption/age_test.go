package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fwatch-go/internal/config"
)

func newAgeUnderTest(t *testing.T) (*AgeEncryptor, string, string) {
	t.Helper()
	dir := t.TempDir()
	recPath := filepath.Join(dir, "keys", "fwatch.pub")
	idPath := filepath.Join(dir, "keys", "fwatch.key")
	e := NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  recPath,
		PrivateKeyPath: idPath,
	})
	return e, recPath, idPath
}

func TestAgeEncryptor_SetupWritesKeyPair(t *testing.T) {
	t.Parallel()
	e, recPath, idPath := newAgeUnderTest(t)

	if e.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup")
	}
	if err := e.Setup("hunter2"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}

	rec, err := os.ReadFile(recPath)
	if err != nil {
		t.Fatalf("reading recipient file: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(rec)), "age1") {
		t.Errorf("recipient file = %q, want an age1 public key", rec)
	}

	id, err := os.ReadFile(idPath)
	if err != nil {
		t.Fatalf("reading identity file: %v", err)
	}
	if bytes.Contains(id, []byte("AGE-SECRET-KEY-1")) {
		t.Error("identity file holds the secret key in plaintext")
	}

	info, err := os.Stat(idPath)
	if err != nil {
		t.Fatalf("stat identity file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0600 {
		t.Errorf("identity file mode = %o, want 0600", got)
	}
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "short text", plaintext: []byte("watched files change\n")},
		{name: "empty", plaintext: nil},
		{name: "nul bytes", plaintext: []byte{0, 0, 0, 7}},
		{name: "64k", plaintext: bytes.Repeat([]byte("0123456789abcdef"), 4096)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, _ := newAgeUnderTest(t)
			if err := e.Setup("round-trip"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			var sealed bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.plaintext), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !bytes.HasPrefix(sealed.Bytes(), []byte("age-encryption.org/v1")) {
				t.Error("ciphertext does not start with the age header")
			}

			dc, err := e.Unlock("round-trip")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var opened bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.plaintext) {
				t.Errorf("Decrypt() returned %d bytes, want %d", opened.Len(), len(tt.plaintext))
			}
		})
	}
}

func TestAgeEncryptor_WrongPassphrase(t *testing.T) {
	t.Parallel()
	e, _, _ := newAgeUnderTest(t)
	if err := e.Setup("right"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong"); err == nil {
		t.Error("Unlock() with the wrong passphrase succeeded")
	}
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()
	e, _, _ := newAgeUnderTest(t)

	var buf bytes.Buffer
	if err := e.Encrypt(strings.NewReader("x"), &buf); err == nil {
		t.Error("Encrypt() without key files succeeded")
	}
	if _, err := e.Unlock("pw"); err == nil {
		t.Error("Unlock() without key files succeeded")
	}
}

func TestAgeEncryptor_EncryptNeedsOnlyRecipientFile(t *testing.T) {
	t.Parallel()
	e, _, idPath := newAgeUnderTest(t)
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := os.Remove(idPath); err != nil {
		t.Fatalf("removing identity file: %v", err)
	}

	var buf bytes.Buffer
	if err := e.Encrypt(strings.NewReader("no passphrase needed"), &buf); err != nil {
		t.Errorf("Encrypt() error = %v, want nil with only the recipient file present", err)
	}
}

func TestFirstKeyLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "bare key", data: "age1abc\n", want: "age1abc"},
		{name: "comments first", data: "# created: 2026-08-25\n# host: dev\nage1abc\n", want: "age1abc"},
		{name: "blank lines and padding", data: "\n\n  age1abc  \n", want: "age1abc"},
		{name: "only comments", data: "# nothing here\n", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := firstKeyLine([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("firstKeyLine() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("firstKeyLine() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("firstKeyLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
