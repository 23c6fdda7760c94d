package survey

import (
	"fmt"
	"math/big"
	"strings"

	"surveychain/crypto"
)

// Survey captures the escrow terms and runtime counters of a single survey
// campaign. Identifiers are caller-chosen, globally unique and immutable; the
// record is created exactly once and only the cancellation state and the
// rewarded counter change afterwards. Refunded marks the escrow remainder as
// settled so a repeat cancellation cannot pay it out twice.
type Survey struct {
	ID                   string
	Creator              string
	ParticipantsLimit    uint32
	RewardPerUser        *big.Int
	RewardDenom          string
	ParticipantsRewarded uint32
	SurveyHash           []byte
	Cancelled            bool
	Refunded             bool
	CreatedAt            uint64
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (s *Survey) Clone() *Survey {
	if s == nil {
		return nil
	}
	clone := *s
	if s.RewardPerUser != nil {
		clone.RewardPerUser = new(big.Int).Set(s.RewardPerUser)
	} else {
		clone.RewardPerUser = big.NewInt(0)
	}
	clone.SurveyHash = append([]byte(nil), s.SurveyHash...)
	return &clone
}

// AmountToFund returns the escrow total the creator must attach:
// participants limit times the per-participant reward.
func (s *Survey) AmountToFund() *big.Int {
	if s == nil || s.RewardPerUser == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(big.NewInt(int64(s.ParticipantsLimit)), s.RewardPerUser)
}

// AmountRewardsPaid returns the total disbursed so far: rewarded counter times
// the per-participant reward.
func (s *Survey) AmountRewardsPaid() *big.Int {
	if s == nil || s.RewardPerUser == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(big.NewInt(int64(s.ParticipantsRewarded)), s.RewardPerUser)
}

// ManagerInfo registers an off-chain authority. Proof signatures are honoured
// only while Active is true.
type ManagerInfo struct {
	Address string
	PubKey  []byte
	Active  bool
}

// Params holds the owner-gated ledger configuration.
type Params struct {
	Owner           string
	GasStation      string
	ContractAddress string
	ReceiverPrefix  string
	ChannelID       string
	RewardDenom     string
}

// Validate checks the parameter set for structural problems before it is
// persisted.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("survey: nil params")
	}
	prefix := crypto.NormalizePrefix(p.ReceiverPrefix)
	if prefix == "" {
		return fmt.Errorf("survey: receiver prefix required")
	}
	if strings.TrimSpace(p.RewardDenom) == "" {
		return fmt.Errorf("survey: reward denom required")
	}
	if strings.TrimSpace(p.ChannelID) == "" {
		return fmt.Errorf("survey: channel id required")
	}
	for name, addr := range map[string]string{
		"owner":            p.Owner,
		"gas station":      p.GasStation,
		"contract address": p.ContractAddress,
	} {
		if _, err := crypto.DecodeAddressWithPrefix(strings.TrimSpace(addr), prefix); err != nil {
			return fmt.Errorf("survey: %s: %w", name, err)
		}
	}
	return nil
}

// validateAccount decodes a bech32 account string and enforces the configured
// receiver prefix, returning the canonical form.
func validateAccount(receiverPrefix, account string) (string, error) {
	trimmed := strings.TrimSpace(account)
	addr, err := crypto.DecodeAddressWithPrefix(trimmed, crypto.NormalizePrefix(receiverPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	return addr.String(), nil
}
