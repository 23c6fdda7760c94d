package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// Manager signing keys live in passphrase-encrypted files using the same
// scrypt/AES scheme as Ethereum v3 keystores, applied to the raw ed25519
// seed.

type keystoreFile struct {
	PubKey  string              `json:"pubkey"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
	Version int                 `json:"version"`
}

// SaveToKeystore writes the private key to an encrypted file at the given
// path. If the parent directory does not exist it is created with 0700
// permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	seed := key.key.Seed()
	encrypted, err := keystore.EncryptDataV3(seed, []byte(passphrase), keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt key: %w", err)
	}
	blob, err := json.MarshalIndent(keystoreFile{
		PubKey:  fmt.Sprintf("%x", key.PubKey().Bytes()),
		Crypto:  encrypted,
		Version: 3,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}

// LoadFromKeystore decrypts a key file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file keystoreFile
	if err := json.Unmarshal(blob, &file); err != nil {
		return nil, fmt.Errorf("crypto: parse keystore file: %w", err)
	}
	seed, err := keystore.DecryptDataV3(file.Crypto, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt key: %w", err)
	}
	return PrivateKeyFromBytes(seed)
}
