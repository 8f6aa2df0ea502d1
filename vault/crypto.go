// Package vault stores named credential profiles on disk with field-level,
// password-derived encryption. Public identifiers (API keys, access tokens)
// stay plaintext so an operator can see which keys a profile uses; secrets
// are AES-256-CFB encrypted under a PBKDF2 key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyIterations is the fixed PBKDF2 iteration count. Changing it breaks
	// decryption of every existing profile, so it is part of the on-disk
	// format contract.
	KeyIterations = 5000

	// KeySize is the derived key length: 32 bytes for AES-256.
	KeySize = 32

	// SaltSize is one AES block.
	SaltSize = aes.BlockSize
)

// DeriveKey derives the profile key from a password and salt. It is
// deterministic: the same (password, salt) pair always yields the same key
// bytes.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, KeyIterations, KeySize, sha256.New)
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	return salt, nil
}

// EncryptField encrypts plaintext under key with AES-256-CFB and a fresh
// random IV. The returned payload is iv || ciphertext; CFB needs no padding,
// so the ciphertext is exactly as long as the plaintext.
func EncryptField(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	payload := make([]byte, aes.BlockSize+len(plaintext))
	iv := payload[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("vault: generate iv: %w", err)
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(payload[aes.BlockSize:], plaintext)
	return payload, nil
}

// DecryptField reverses EncryptField. There is no authentication tag: a
// wrong key does not fail, it yields garbage plaintext. Known weakness of
// the format, kept deliberately; callers verify credentials against the
// venue instead.
func DecryptField(key, payload []byte) ([]byte, error) {
	if len(payload) < aes.BlockSize {
		return nil, fmt.Errorf("vault: encrypted payload shorter than one block")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	iv := payload[:aes.BlockSize]
	plaintext := make([]byte, len(payload)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, payload[aes.BlockSize:])
	return plaintext, nil
}
