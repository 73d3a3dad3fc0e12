// Package keystore implements an encrypted on-disk store for an Ed25519
// signing key, the local-signing capability cmd/actioncodectl needs to act
// as a SignFn without ever handing a raw private key to the core. It is not
// part of the specified protocol core; it exists to make the CLI usable.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 1 << 15
	scryptR   = 8
	scryptP   = 1
	keyLen    = 32
	saltBytes = 16
)

// encryptedKey is the on-disk JSON envelope. It never stores the private
// key or passphrase in the clear.
type encryptedKey struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const currentVersion = 1

// Save encrypts priv with a key derived from passphrase via scrypt and
// writes the result to path with 0600 permissions, creating parent
// directories with 0700 as needed.
func Save(path string, priv ed25519.PrivateKey, passphrase string) error {
	if len(priv) != ed25519.PrivateKeySize {
		return errors.New("keystore: private key has the wrong size")
	}
	if passphrase == "" {
		return errors.New("keystore: passphrase must not be empty")
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: generating salt: %w", err)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return fmt.Errorf("keystore: deriving key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return fmt.Errorf("keystore: constructing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("keystore: constructing GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("keystore: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, priv, nil)

	envelope := encryptedKey{
		Version:    currentVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	raw, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshaling envelope: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("keystore: creating directory: %w", err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore: clearing existing file: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("keystore: writing file: %w", err)
	}
	return nil
}

// Load decrypts the Ed25519 private key stored at path using passphrase.
func Load(path, passphrase string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: reading file: %w", err)
	}

	var envelope encryptedKey
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("keystore: parsing envelope: %w", err)
	}
	if envelope.Version != currentVersion {
		return nil, fmt.Errorf("keystore: unsupported envelope version %d", envelope.Version)
	}

	derived, err := scrypt.Key([]byte(passphrase), envelope.Salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("keystore: deriving key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keystore: constructing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: constructing GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, envelope.Nonce, envelope.Ciphertext, nil)
	if err != nil {
		return nil, errors.New("keystore: incorrect passphrase or corrupted file")
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, errors.New("keystore: decrypted key has the wrong size")
	}
	return ed25519.PrivateKey(plaintext), nil
}

// Generate creates a fresh Ed25519 keypair and immediately saves the
// private key to path under passphrase, returning the public key.
func Generate(path, passphrase string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keystore: generating key: %w", err)
	}
	if err := Save(path, priv, passphrase); err != nil {
		return nil, err
	}
	return pub, nil
}
