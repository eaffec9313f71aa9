package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// sealedPrefix marks values written by Sealer. Values without it are
// plaintext stored before a key was configured.
const sealedPrefix = "enc:v1:"

var ErrNoSealer = errors.New("value is encrypted but no encryption key is configured")

// Sealer encrypts small records at rest with AES-256-GCM. The associated
// data binds a ciphertext to the row it was written for.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext []byte, associatedData string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, plaintext, []byte(associatedData))
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Unsealed input is returned unchanged, and a nil
// Sealer can still read it.
func (s *Sealer) Open(stored, associatedData string) ([]byte, error) {
	if !IsSealed(stored) {
		return []byte(stored), nil
	}
	if s == nil {
		return nil, ErrNoSealer
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(associatedData))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}
