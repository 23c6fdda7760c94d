package survey

import (
	"bytes"
	"math/big"
	"testing"
)

func TestCreateSurveyDigestDeterministic(t *testing.T) {
	hash := []byte("content-hash")
	a, err := CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(5), hash, "usvy", big.NewInt(1))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(5), hash, "usvy", big.NewInt(1))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a != b {
		t.Fatal("identical inputs must produce identical digests")
	}
}

func TestCreateSurveyDigestSensitivity(t *testing.T) {
	base, err := CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(5), nil, "usvy", nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	variants := [][32]byte{}
	for _, variant := range []struct {
		name string
		fn   func() ([32]byte, error)
	}{
		{"token", func() ([32]byte, error) {
			return CreateSurveyDigest("tok2", 100, "owner", "survey-1", 10, big.NewInt(5), nil, "usvy", nil)
		}},
		{"expiry", func() ([32]byte, error) {
			return CreateSurveyDigest("tok", 101, "owner", "survey-1", 10, big.NewInt(5), nil, "usvy", nil)
		}},
		{"reward", func() ([32]byte, error) {
			return CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(6), nil, "usvy", nil)
		}},
		{"denom", func() ([32]byte, error) {
			return CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(5), nil, "other", nil)
		}},
		{"hash", func() ([32]byte, error) {
			return CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(5), []byte{1}, "usvy", nil)
		}},
	} {
		got, err := variant.fn()
		if err != nil {
			t.Fatalf("%s variant: %v", variant.name, err)
		}
		if got == base {
			t.Fatalf("changing %s must change the digest", variant.name)
		}
		variants = append(variants, got)
	}
	seen := map[[32]byte]bool{base: true}
	for _, v := range variants {
		if seen[v] {
			t.Fatal("variant digests must be pairwise distinct")
		}
		seen[v] = true
	}
}

func TestDigestsDifferAcrossActionKinds(t *testing.T) {
	cancel, err := CancelSurveyDigest("tok", 100, "survey-1")
	if err != nil {
		t.Fatalf("cancel digest: %v", err)
	}
	pay, err := PayRewardsDigest("tok", 100, []string{"survey-1"}, []string{"alice"})
	if err != nil {
		t.Fatalf("pay digest: %v", err)
	}
	if cancel == pay {
		t.Fatal("different action kinds must not share a digest")
	}
}

func TestPayRewardsDigestNilAndEmptySlicesAgree(t *testing.T) {
	a, err := PayRewardsDigest("tok", 100, nil, nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := PayRewardsDigest("tok", 100, []string{}, []string{})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a != b {
		t.Fatal("nil and empty batches must serialize identically")
	}
}

func TestDigestNilAmountsReadAsZero(t *testing.T) {
	a, err := CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, nil, nil, "usvy", nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := CreateSurveyDigest("tok", 100, "owner", "survey-1", 10, big.NewInt(0), nil, "usvy", big.NewInt(0))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a != b {
		t.Fatal("nil amounts must hash like explicit zeros")
	}
	if bytes.Equal(a[:], make([]byte, 32)) {
		t.Fatal("digest must not be all zeroes")
	}
}
