package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, 20)
	addr := NewAddress("svy", raw)
	encoded := addr.String()

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != "svy" {
		t.Fatalf("prefix = %q, want svy", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("bytes = %x, want %x", decoded.Bytes(), raw)
	}
}

func TestDecodeAddressWithPrefix(t *testing.T) {
	addr := NewAddress("svy", bytes.Repeat([]byte{0x01}, 20)).String()
	if _, err := DecodeAddressWithPrefix(addr, "svy"); err != nil {
		t.Fatalf("decode with matching prefix: %v", err)
	}
	if _, err := DecodeAddressWithPrefix(addr, "other"); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
	if _, err := DecodeAddressWithPrefix("not-bech32", "svy"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSignVerify(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	message := []byte("survey proof digest")
	sig := priv.Sign(message)

	pub := priv.PubKey()
	if !pub.Verify(message, sig) {
		t.Fatal("signature must verify")
	}
	if pub.Verify([]byte("different"), sig) {
		t.Fatal("signature must not verify another message")
	}
	if pub.Verify(message, sig[:10]) {
		t.Fatal("truncated signature must not verify")
	}
}

func TestKeySerialization(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(priv.Bytes())
	if err != nil {
		t.Fatalf("restore private key: %v", err)
	}
	if !bytes.Equal(restored.PubKey().Bytes(), priv.PubKey().Bytes()) {
		t.Fatal("restored key must derive the same public key")
	}

	pub, err := PublicKeyFromBytes(priv.PubKey().Bytes())
	if err != nil {
		t.Fatalf("restore public key: %v", err)
	}
	message := []byte("hello")
	if !pub.Verify(message, priv.Sign(message)) {
		t.Fatal("restored public key must verify signatures")
	}

	if _, err := PublicKeyFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short public key")
	}
	if _, err := PrivateKeyFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short private key")
	}
}

func TestPublicKeyAddressIsStable(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	a := priv.PubKey().Address("svy").String()
	b := priv.PubKey().Address("svy").String()
	if a != b {
		t.Fatal("address derivation must be deterministic")
	}
	if _, err := DecodeAddressWithPrefix(a, "svy"); err != nil {
		t.Fatalf("derived address must decode: %v", err)
	}
}
