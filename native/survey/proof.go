package survey

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// ProofDomainV1 is the domain separator mixed into every proof payload so a
// signature produced for the survey ledger can never be replayed against
// another signing context.
const ProofDomainV1 = "SURVEY_V1"

// Proof payloads are serialized with a fixed field order: the schema below is
// the canonical ordering, regardless of how call sites supply the arguments.
// Amounts travel as decimal strings so the digest is independent of any
// integer width.

type createSurveyPayload struct {
	Token             string `json:"token"`
	TimeToExpire      uint64 `json:"time_to_expire"`
	Owner             string `json:"owner"`
	SurveyID          string `json:"survey_id"`
	ParticipantsLimit uint32 `json:"participants_limit"`
	RewardPerUser     string `json:"reward_per_user"`
	SurveyHash        string `json:"survey_hash"`
	RewardDenom       string `json:"reward_denom"`
	GasStationAmount  string `json:"amount_to_gas_station"`
	Domain            string `json:"domain"`
}

type cancelSurveyPayload struct {
	Token        string `json:"token"`
	TimeToExpire uint64 `json:"time_to_expire"`
	SurveyID     string `json:"survey_id"`
	Domain       string `json:"domain"`
}

type payRewardsPayload struct {
	Token        string   `json:"token"`
	TimeToExpire uint64   `json:"time_to_expire"`
	SurveyIDs    []string `json:"survey_ids"`
	Participants []string `json:"participants"`
	Domain       string   `json:"domain"`
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func digest(payload any) ([32]byte, error) {
	bytes, err := json.Marshal(payload)
	if err != nil {
		return [32]byte{}, fmt.Errorf("survey: encode proof payload: %w", err)
	}
	return sha256.Sum256(bytes), nil
}

// CreateSurveyDigest derives the message managers sign to authorize a survey
// creation. The digest is exposed through the query surface so the manager can
// compute exactly what it must sign before the transaction is submitted.
func CreateSurveyDigest(token string, timeToExpire uint64, owner, surveyID string, participantsLimit uint32, rewardPerUser *big.Int, surveyHash []byte, rewardDenom string, gasStationAmount *big.Int) ([32]byte, error) {
	return digest(createSurveyPayload{
		Token:             token,
		TimeToExpire:      timeToExpire,
		Owner:             owner,
		SurveyID:          surveyID,
		ParticipantsLimit: participantsLimit,
		RewardPerUser:     amountString(rewardPerUser),
		SurveyHash:        base64.StdEncoding.EncodeToString(surveyHash),
		RewardDenom:       rewardDenom,
		GasStationAmount:  amountString(gasStationAmount),
		Domain:            ProofDomainV1,
	})
}

// CancelSurveyDigest derives the message managers sign to authorize a
// cancellation.
func CancelSurveyDigest(token string, timeToExpire uint64, surveyID string) ([32]byte, error) {
	return digest(cancelSurveyPayload{
		Token:        token,
		TimeToExpire: timeToExpire,
		SurveyID:     surveyID,
		Domain:       ProofDomainV1,
	})
}

// PayRewardsDigest derives the message managers sign to authorize a reward
// batch. The proof covers the whole batch, so the ledger applies it
// atomically.
func PayRewardsDigest(token string, timeToExpire uint64, surveyIDs, participants []string) ([32]byte, error) {
	ids := surveyIDs
	if ids == nil {
		ids = []string{}
	}
	users := participants
	if users == nil {
		users = []string{}
	}
	return digest(payRewardsPayload{
		Token:        token,
		TimeToExpire: timeToExpire,
		SurveyIDs:    ids,
		Participants: users,
		Domain:       ProofDomainV1,
	})
}
