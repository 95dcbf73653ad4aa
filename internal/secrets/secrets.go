// Package secrets encrypts aggregator access tokens before they reach the
// database. AES-256-GCM with a random 16-byte IV per message; ciphertext,
// IV, and auth tag are stored as separate hex fields so tampering with any
// of them fails decryption loudly.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// EnvKey names the environment variable holding the hex-encoded 256-bit key
const EnvKey = "CONTABIL_ENCRYPTION_KEY"

const (
	keySize = 32
	ivSize  = 16
	tagSize = 16
)

// Sealed is an encrypted value split into its stored parts, all hex encoded
type Sealed struct {
	Ciphertext string
	IV         string
	Tag        string
}

// Cipher seals and opens values with a fixed key
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a cipher from a hex-encoded 256-bit key
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes (%d hex chars), got %d bytes", keySize, keySize*2, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromEnv reads the key from CONTABIL_ENCRYPTION_KEY
func NewCipherFromEnv() (*Cipher, error) {
	hexKey := os.Getenv(EnvKey)
	if hexKey == "" {
		return nil, fmt.Errorf("%s is not set", EnvKey)
	}
	return NewCipher(hexKey)
}

// Encrypt seals plaintext with a fresh random IV
func (c *Cipher) Encrypt(plaintext string) (Sealed, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generate IV: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return Sealed{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		Tag:        hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens a sealed value. Any alteration of ciphertext, IV, or tag
// makes authentication fail.
func (c *Cipher) Decrypt(s Sealed) (string, error) {
	ciphertext, err := hex.DecodeString(s.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	iv, err := hex.DecodeString(s.IV)
	if err != nil {
		return "", fmt.Errorf("decode IV: %w", err)
	}
	if len(iv) != ivSize {
		return "", fmt.Errorf("IV must be %d bytes, got %d", ivSize, len(iv))
	}
	tag, err := hex.DecodeString(s.Tag)
	if err != nil {
		return "", fmt.Errorf("decode tag: %w", err)
	}

	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a new random key in the hex format NewCipher expects
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
