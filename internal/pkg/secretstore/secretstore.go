// Package secretstore encrypts provider tokens before they are written to the database.
package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const encPrefix = "enc:v1:"

var (
	ErrMalformed = errors.New("secretstore: malformed ciphertext")
	ErrNoKey     = errors.New("secretstore: an encryption key is required outside development")
)

// Box seals and opens strings. A nil *Box stores values as plaintext.
type Box struct {
	aead cipher.AEAD
}

// New derives an AES-256-GCM key from secret. An empty secret yields nil (passthrough).
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, nil
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("walrus provider tokens"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Require is New for startup: an empty secret is only accepted when
// plaintext is allowed, which is the case in development.
func Require(secret string, allowPlaintext bool) (*Box, error) {
	if secret == "" && !allowPlaintext {
		return nil, ErrNoKey
	}
	return New(secret)
}

func (b *Box) Seal(plain string) (string, error) {
	if b == nil {
		return plain, nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return encPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the prefix are returned unchanged so
// rows written before encryption was enabled stay readable.
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, encPrefix) {
		return stored, nil
	}
	if b == nil {
		return "", fmt.Errorf("secretstore: value is encrypted but no key is configured")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, encPrefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformed
	}
	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secretstore: %w", err)
	}
	return string(plain), nil
}
