package crypto

import (
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestNewCredentialCipher_KeyLength(t *testing.T) {
	if _, err := NewCredentialCipher([]byte("short")); err != ErrKeyLengthInvalid {
		t.Errorf("expected ErrKeyLengthInvalid, got %v", err)
	}
	if _, err := NewCredentialCipher(testKey()); err != nil {
		t.Errorf("unexpected error for 32-byte key: %v", err)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	cc, _ := NewCredentialCipher(testKey())

	secrets := []string{"guest", "a much longer management password", "pä55wörd"}
	for _, secret := range secrets {
		sealed, err := cc.Seal(secret)
		if err != nil {
			t.Fatalf("Seal(%q): %v", secret, err)
		}
		if sealed == secret {
			t.Errorf("Seal(%q) returned plaintext", secret)
		}
		opened, err := cc.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if opened != secret {
			t.Errorf("round trip = %q, want %q", opened, secret)
		}
	}
}

func TestSealOpen_EmptyString(t *testing.T) {
	cc, _ := NewCredentialCipher(testKey())
	sealed, err := cc.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = (%q, %v), want (\"\", nil)", sealed, err)
	}
	opened, err := cc.Open("")
	if err != nil || opened != "" {
		t.Errorf("Open(\"\") = (%q, %v), want (\"\", nil)", opened, err)
	}
}

func TestSeal_NonceUniqueness(t *testing.T) {
	cc, _ := NewCredentialCipher(testKey())
	a, _ := cc.Seal("password")
	b, _ := cc.Seal("password")
	if a == b {
		t.Error("two Seal calls produced identical ciphertexts")
	}
}

func TestOpen_Tampered(t *testing.T) {
	cc, _ := NewCredentialCipher(testKey())
	sealed, _ := cc.Seal("password")

	// Flip a character in the body of the ciphertext.
	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	if _, err := cc.Open(string(tampered)); err == nil {
		t.Error("expected error opening tampered ciphertext")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	cc1, _ := NewCredentialCipher(testKey())
	cc2, _ := NewCredentialCipher([]byte(strings.Repeat("x", 32)))

	sealed, _ := cc1.Seal("password")
	if _, err := cc2.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestOpen_Corrupted(t *testing.T) {
	cc, _ := NewCredentialCipher(testKey())
	if _, err := cc.Open("not base64!!!"); err != ErrCiphertextCorrupted {
		t.Errorf("expected ErrCiphertextCorrupted, got %v", err)
	}
	if _, err := cc.Open("QQ=="); err != ErrCiphertextCorrupted {
		t.Errorf("expected ErrCiphertextCorrupted for short ciphertext, got %v", err)
	}
}

func TestDeriveCredentialCipher(t *testing.T) {
	salt := []byte("0123456789abcdef")
	cc, err := DeriveCredentialCipher("passphrase", salt, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sealed, _ := cc.Seal("v")
	opened, err := cc.Open(sealed)
	if err != nil || opened != "v" {
		t.Errorf("derived cipher round trip failed: (%q, %v)", opened, err)
	}

	if _, err := DeriveCredentialCipher("p", []byte("short"), 10000); err != ErrSaltTooShort {
		t.Errorf("expected ErrSaltTooShort, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d, want 32", len(k1))
	}
	k2, _ := GenerateKey()
	if string(k1) == string(k2) {
		t.Error("two generated keys are identical")
	}
}
