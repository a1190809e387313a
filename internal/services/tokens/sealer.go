package tokens

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrMalformedCiphertext is returned when a sealed value cannot be opened
var ErrMalformedCiphertext = errors.New("malformed sealed token")

const hkdfInfo = "linkguard token sealing v1"

// Sealer encrypts provider tokens at rest with XChaCha20-Poly1305
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from secret. The secret should carry at least
// 32 bytes of entropy.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving token key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to associated data ad
func (s *Sealer) Seal(plaintext, ad string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(ad))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal with the same ad
func (s *Sealer) Open(sealed, ad string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(ad))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return string(plain), nil
}
