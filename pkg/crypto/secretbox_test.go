package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func newTestBox(t *testing.T) *SecretBox {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	box, err := NewSecretBox(key)
	if err != nil {
		t.Fatalf("NewSecretBox failed: %v", err)
	}
	return box
}

// TestSealOpen проверяет цикл шифрования/расшифровки
func TestSealOpen(t *testing.T) {
	box := newTestBox(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"myfxbook session", "DSL07vu14QxHWErTIAFrH40"},
		{"mt password", "P@ssw0rd!"},
		{"unicode", "пароль 密码"},
		{"long", strings.Repeat("x", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := box.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if _, err := base64.StdEncoding.DecodeString(sealed); err != nil {
				t.Errorf("sealed value is not base64: %v", err)
			}
			if sealed == tt.plaintext {
				t.Error("sealed value equals plaintext")
			}

			opened, err := box.Open(sealed)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if opened != tt.plaintext {
				t.Errorf("got %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSealEmpty(t *testing.T) {
	box := newTestBox(t)

	sealed, err := box.Seal("")
	if err != nil || sealed != "" {
		t.Fatalf("Seal(\"\") = %q, %v", sealed, err)
	}
	opened, err := box.Open("")
	if err != nil || opened != "" {
		t.Fatalf("Open(\"\") = %q, %v", opened, err)
	}
}

// Один и тот же текст даёт разные шифротексты (случайный nonce)
func TestSealNonceIsRandom(t *testing.T) {
	box := newTestBox(t)

	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if a == b {
		t.Error("two seals of the same value must differ")
	}
}

func TestNewSecretBoxKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewSecretBox(make([]byte, n)); err != ErrInvalidKeyLength {
			t.Errorf("key of %d bytes: got %v, want ErrInvalidKeyLength", n, err)
		}
	}
	if err := ValidateKey(make([]byte, KeySize)); err != nil {
		t.Errorf("ValidateKey(32) = %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	box := newTestBox(t)
	other := newTestBox(t)

	sealed, _ := box.Seal("secret-token")

	tests := []struct {
		name    string
		input   string
		open    *SecretBox
		wantErr error
	}{
		{"not base64", "!!!not-base64!!!", box, ErrInvalidCiphertext},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short")), box, ErrCiphertextTooShort},
		{"wrong key", sealed, other, ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.open.Open(tt.input); err != tt.wantErr {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// Изменение любого байта шифротекста ломает аутентификацию
func TestOpenTampered(t *testing.T) {
	box := newTestBox(t)
	sealed, _ := box.Seal("secret-token")

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff

	if _, err := box.Open(base64.StdEncoding.EncodeToString(raw)); err != ErrDecryptionFailed {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "••••••••"},
		{"DSL07vu14QxHWErT", "DSL0••••WErT"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
