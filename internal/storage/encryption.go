package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// Default Argon2 parameters (RFC 9106 recommendations)
	defaultArgon2Time    = 1
	defaultArgon2Memory  = 64 * 1024 // 64 MB
	defaultArgon2Threads = 4
	argon2KeyLen         = 32 // AES-256

	saltLength = 32
)

// ErrDecrypt is returned when a sealed value cannot be opened, usually
// because the passphrase changed since it was written.
var ErrDecrypt = errors.New("failed to decrypt value")

// EncryptionConfig holds configuration for encryption operations.
type EncryptionConfig struct {
	// Passphrase is the secret the key is derived from. Empty disables encryption.
	Passphrase string

	// Argon2Time is the number of Argon2 iterations.
	// Default: 1
	Argon2Time uint32

	// Argon2Memory is the amount of memory to use in KB.
	// Default: 64 MB (65536 KB)
	Argon2Memory uint32

	// Argon2Threads is the number of threads to use.
	// Default: 4
	Argon2Threads uint8
}

// DefaultEncryptionConfig returns encryption config with secure defaults.
func DefaultEncryptionConfig(passphrase string) *EncryptionConfig {
	return &EncryptionConfig{
		Passphrase:    passphrase,
		Argon2Time:    defaultArgon2Time,
		Argon2Memory:  defaultArgon2Memory,
		Argon2Threads: defaultArgon2Threads,
	}
}

// Sealer encrypts and decrypts short values with AES-256-GCM under a key
// derived once with Argon2id. Output layout: nonce + ciphertext + tag.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key from config.Passphrase and salt.
func NewSealer(config *EncryptionConfig, salt []byte) (*Sealer, error) {
	if config == nil || config.Passphrase == "" {
		return nil, fmt.Errorf("encryption config with passphrase required")
	}
	if len(salt) != saltLength {
		return nil, fmt.Errorf("invalid salt length %d", len(salt))
	}

	key := argon2.IDKey(
		[]byte(config.Passphrase),
		salt,
		max(config.Argon2Time, 1),
		max(config.Argon2Memory, 8),
		max(config.Argon2Threads, 1),
		argon2KeyLen,
	)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: data too short", ErrDecrypt)
	}
	plaintext, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
