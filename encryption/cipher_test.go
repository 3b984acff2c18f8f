package encryption_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/videocall/encryption"
)

func ciphers(t *testing.T) map[string]func(key []byte) (encryption.Cipher, error) {
	t.Helper()

	return map[string]func(key []byte) (encryption.Cipher, error){
		"aes128": func(key []byte) (encryption.Cipher, error) {
			return encryption.NewAES128(key[:encryption.AES128KeySize])
		},
		"chacha20": func(key []byte) (encryption.Cipher, error) {
			return encryption.NewChaCha20(key[:encryption.ChaCha20KeySize])
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, newCipher := range ciphers(t) {
		t.Run(name, func(t *testing.T) {
			requireT := require.New(t)

			key, err := encryption.GenerateKey(32)
			requireT.NoError(err)
			c, err := newCipher(key)
			requireT.NoError(err)

			plaintext := []byte("subscribe alice")
			ciphertext, err := c.Encrypt(plaintext)
			requireT.NoError(err)
			requireT.NotContains(string(ciphertext), string(plaintext))

			decrypted, err := c.Decrypt(ciphertext)
			requireT.NoError(err)
			requireT.Equal(plaintext, decrypted)
		})
	}
}

func TestEncryptionIsNotDeterministic(t *testing.T) {
	for name, newCipher := range ciphers(t) {
		t.Run(name, func(t *testing.T) {
			requireT := require.New(t)

			key, err := encryption.GenerateKey(32)
			requireT.NoError(err)
			c, err := newCipher(key)
			requireT.NoError(err)

			ciphertext1, err := c.Encrypt([]byte("heartbeat"))
			requireT.NoError(err)
			ciphertext2, err := c.Encrypt([]byte("heartbeat"))
			requireT.NoError(err)
			requireT.NotEqual(ciphertext1, ciphertext2)
		})
	}
}

func TestForeignKeyIsRejected(t *testing.T) {
	for name, newCipher := range ciphers(t) {
		t.Run(name, func(t *testing.T) {
			requireT := require.New(t)

			key1, err := encryption.GenerateKey(32)
			requireT.NoError(err)
			key2, err := encryption.GenerateKey(32)
			requireT.NoError(err)

			c1, err := newCipher(key1)
			requireT.NoError(err)
			c2, err := newCipher(key2)
			requireT.NoError(err)

			ciphertext, err := c1.Encrypt([]byte("secret"))
			requireT.NoError(err)

			_, err = c2.Decrypt(ciphertext)
			requireT.Error(err)

			_, err = c1.Decrypt(ciphertext[:4])
			requireT.Error(err)
		})
	}
}

func TestInvalidKeySize(t *testing.T) {
	requireT := require.New(t)

	_, err := encryption.NewAES128(make([]byte, 24))
	requireT.Error(err)

	_, err = encryption.NewChaCha20(make([]byte, 16))
	requireT.Error(err)
}
