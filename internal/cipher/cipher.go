package cipher

import (
	"crypto/aes"
	ccipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// Cipher seals session payloads before they leave the process. Stored
// sessions carry credentials, so they are never written out in plaintext.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ROT13Cipher is a stand-in for local development only.
type ROT13Cipher struct{}

func (c *ROT13Cipher) Encrypt(plaintext string) (string, error) {
	return rot13(plaintext), nil
}

func (c *ROT13Cipher) Decrypt(ciphertext string) (string, error) {
	return rot13(ciphertext), nil
}

func rot13(s string) string {
	out := []byte(s)
	for i, b := range out {
		switch {
		case b >= 'a' && b <= 'z':
			out[i] = 'a' + (b-'a'+13)%26
		case b >= 'A' && b <= 'Z':
			out[i] = 'A' + (b-'A'+13)%26
		}
	}
	return string(out)
}

// AESGCMCipher seals payloads with AES-256-GCM. The key is hex encoded and
// must decode to 32 bytes.
type AESGCMCipher struct {
	aead ccipher.AEAD
}

func NewAESGCMCipher(hexKey string) (*AESGCMCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "cipher key must be hex encoded")
	}
	if len(key) != 32 {
		return nil, errors.Errorf("cipher key must decode to 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct cipher")
	}
	aead, err := ccipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct AEAD")
	}

	return &AESGCMCipher{aead: aead}, nil
}

func (c *AESGCMCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESGCMCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode ciphertext")
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt payload")
	}
	return string(plain), nil
}
