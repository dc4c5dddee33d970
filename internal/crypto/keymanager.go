// Package crypto provides ed25519 key management and signing for the Solana
// wallet: API auth messages and fee-payer transaction signatures.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-key JSON schema version.
	currentVersion = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted keypair.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// KeyConfig carries the information LoadKeypair needs to resolve the wallet
// keypair. Populate the fields from environment variables or a config file.
type KeyConfig struct {
	// RawKeypair is the base64-encoded 64-byte ed25519 keypair. If non-empty,
	// LoadKeypair returns it directly.
	RawKeypair string

	// KeypairPath is the path to a JSON keypair file in the byte-array format
	// the Solana CLI writes (id.json).
	KeypairPath string

	// EncryptedKeyPath is the path to a JSON file produced by EncryptKeypair.
	EncryptedKeyPath string

	// KeyPassword is the password used to decrypt the file at EncryptedKeyPath.
	KeyPassword string
}

// EncryptKeypair encrypts a 64-byte ed25519 keypair with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated encryption.
// It returns the JSON blob suitable for writing to disk.
func EncryptKeypair(keypair []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: expected %d-byte keypair, got %d bytes",
			ed25519.PrivateKeySize, len(keypair))
	}

	// Generate random salt and derive AES key.
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	// AES-256-GCM encrypt.
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, keypair, nil)

	out := encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// DecryptKeypair decrypts a JSON blob produced by EncryptKeypair, returning
// the 64-byte keypair.
func DecryptKeypair(encryptedJSON []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: decrypted keypair has %d bytes, want %d",
			len(plaintext), ed25519.PrivateKeySize)
	}

	return plaintext, nil
}

// LoadKeypair resolves the wallet keypair from the provided configuration.
//
// Resolution order:
//  1. If RawKeypair is set, base64-decode and return it.
//  2. If KeypairPath is set, read the Solana CLI JSON byte-array file.
//  3. If EncryptedKeyPath is set, read the file and decrypt with KeyPassword.
//  4. Otherwise, return an error.
func LoadKeypair(cfg KeyConfig) ([]byte, error) {
	// 1. Raw key takes precedence.
	if cfg.RawKeypair != "" {
		kp, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.RawKeypair))
		if err != nil {
			return nil, fmt.Errorf("crypto: RawKeypair is not valid base64: %w", err)
		}
		if len(kp) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: RawKeypair has %d bytes, want %d",
				len(kp), ed25519.PrivateKeySize)
		}
		return kp, nil
	}

	// 2. Solana CLI keypair file: a JSON array of 64 byte values.
	if cfg.KeypairPath != "" {
		data, err := os.ReadFile(cfg.KeypairPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading keypair file: %w", err)
		}
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("crypto: parsing keypair file: %w", err)
		}
		if len(values) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: keypair file has %d bytes, want %d",
				len(values), ed25519.PrivateKeySize)
		}
		kp := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("crypto: keypair file byte %d out of range: %d", i, v)
			}
			kp[i] = byte(v)
		}
		return kp, nil
	}

	// 3. Encrypted key file.
	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return DecryptKeypair(data, cfg.KeyPassword)
	}

	return nil, errors.New("crypto: no keypair source configured (set RawKeypair, KeypairPath, or EncryptedKeyPath)")
}
