// Package encryption provides symmetric ciphers protecting inner messages.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AES128KeySize is the key size required by AES128.
	AES128KeySize = 16

	// ChaCha20KeySize is the key size required by ChaCha20.
	ChaCha20KeySize = chacha20poly1305.KeySize
)

// Cipher encrypts and decrypts payloads. Implementations are immutable and safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// GenerateKey returns random key of the given size.
func GenerateKey(size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.WithStack(err)
	}
	return key, nil
}

// NewAES128 creates AES-128-GCM cipher.
func NewAES128(key []byte) (*AEAD, error) {
	if len(key) != AES128KeySize {
		return nil, errors.Errorf("invalid AES-128 key size %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &AEAD{aead: aead}, nil
}

// NewChaCha20 creates ChaCha20-Poly1305 cipher.
func NewChaCha20(key []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &AEAD{aead: aead}, nil
}

// AEAD is a cipher sealing every payload with a fresh random nonce stored in front of the ciphertext.
type AEAD struct {
	aead cipher.AEAD
}

// Encrypt encrypts plaintext.
func (c *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, errors.WithStack(err)
	}
	return c.aead.Seal(out, out, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (c *AEAD) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, errors.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}
	plaintext, err := c.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "decryption failed")
	}
	return plaintext, nil
}
