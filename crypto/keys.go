package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 account address. The
// ledger is configured with a single accepted prefix; addresses carrying any
// other prefix are rejected at the boundary.
type AddressPrefix string

// Address represents a 20-byte account address with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: b}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address payload must be 20 bytes, got %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// DecodeAddressWithPrefix decodes a bech32 address and enforces the expected
// human-readable prefix.
func DecodeAddressWithPrefix(addrStr string, expected AddressPrefix) (Address, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return Address{}, err
	}
	if addr.prefix != expected {
		return Address{}, fmt.Errorf("expected %q address, got prefix %q", expected, addr.prefix)
	}
	return addr, nil
}

// --- Key Management ---

// Manager proofs are signed with ed25519; keys are carried as raw 32-byte
// public keys on the wire.

type PrivateKey struct {
	key ed25519.PrivateKey
}

type PublicKey struct {
	key ed25519.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.key...)
}

// Sign produces an ed25519 signature over the supplied digest.
func (k *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.key, message)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: k.key.Public().(ed25519.PublicKey)}
}

func (k *PublicKey) Bytes() []byte {
	return append([]byte(nil), k.key...)
}

// Verify reports whether sig is a valid signature over message.
func (k *PublicKey) Verify(message, sig []byte) bool {
	if len(k.key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.key, message, sig)
}

// Address derives the account address from the public key. The last 20 bytes
// of the keccak hash keep the derivation aligned with the rest of the state
// keying.
func (k *PublicKey) Address(prefix AddressPrefix) Address {
	hash := ethcrypto.Keccak256(k.key)
	return NewAddress(prefix, hash[len(hash)-20:])
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) == ed25519.SeedSize {
		return &PrivateKey{key: ed25519.NewKeyFromSeed(b)}, nil
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return &PrivateKey{key: ed25519.PrivateKey(append([]byte(nil), b...))}, nil
}

func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes", ed25519.PublicKeySize)
	}
	return &PublicKey{key: ed25519.PublicKey(append([]byte(nil), b...))}, nil
}

// NormalizePrefix lowercases and trims a configured address prefix.
func NormalizePrefix(prefix string) AddressPrefix {
	return AddressPrefix(strings.ToLower(strings.TrimSpace(prefix)))
}
