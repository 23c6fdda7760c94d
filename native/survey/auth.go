package survey

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"time"
)

type authState interface {
	ProofTokenUsed(token string) (bool, error)
	ProofTokenMarkUsed(token string) error
	ManagerList() ([]ManagerInfo, error)
}

// Validator performs the signed-proof checks that gate every mutating survey
// action. All checks run inside the caller's transaction; there is no retry.
type Validator struct {
	state authState
	nowFn func() int64
}

// NewValidator creates a proof validator bound to the supplied state backend.
func NewValidator(state authState) *Validator {
	return &Validator{
		state: state,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (v *Validator) SetNowFunc(now func() int64) {
	if now == nil {
		v.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	v.nowFn = now
}

// Validate checks a proof in a fixed order, short-circuiting on the first
// failure: expiry, token replay, signer authority, then the ed25519 signature
// over the digest.
//
// The token is persisted as used once validation reaches the signature step,
// so a proof whose signature fails still burns its token and the caller must
// resubmit with a fresh one.
func (v *Validator) Validate(token string, timeToExpire uint64, digest [32]byte, pubKey, signature []byte) error {
	if v == nil || v.state == nil {
		return fmt.Errorf("survey: validator state not configured")
	}
	if uint64(v.nowFn()) >= timeToExpire {
		return ErrProofExpired
	}

	used, err := v.state.ProofTokenUsed(token)
	if err != nil {
		return err
	}
	if used {
		return ErrTokenAlreadyUsed
	}

	managers, err := v.state.ManagerList()
	if err != nil {
		return err
	}
	authorized := false
	for _, manager := range managers {
		if manager.Active && bytes.Equal(manager.PubKey, pubKey) {
			authorized = true
			break
		}
	}
	if !authorized {
		return ErrInvalidSigner
	}

	if err := v.state.ProofTokenMarkUsed(token); err != nil {
		return err
	}

	if len(pubKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrInvalidMessageHash
	}
	if !ed25519.Verify(pubKey, digest[:], signature) {
		return ErrInvalidMessageHash
	}
	return nil
}
