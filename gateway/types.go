package gateway

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"surveychain/native/survey"
	"surveychain/native/transfer"
)

// Binary request fields (signatures, public keys, content hashes) travel as
// base64; amounts travel as decimal strings.

type proofFields struct {
	Signature     string `json:"signature"`
	Token         string `json:"token"`
	TimeToExpire  uint64 `json:"time_to_expire"`
	ManagerPubKey string `json:"manager_pub_key"`
}

func (p proofFields) decode() (sig, pubKey []byte, err error) {
	sig, err = base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("signature: %w", err)
	}
	pubKey, err = base64.StdEncoding.DecodeString(p.ManagerPubKey)
	if err != nil {
		return nil, nil, fmt.Errorf("manager_pub_key: %w", err)
	}
	return sig, pubKey, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	return amount, nil
}

type createSurveyRequest struct {
	proofFields
	Owner             string `json:"owner"`
	SurveyID          string `json:"survey_id"`
	ParticipantsLimit uint32 `json:"participants_limit"`
	RewardPerUser     string `json:"reward_per_user"`
	SurveyHash        string `json:"survey_hash"`
	GasStationAmount  string `json:"amount_to_gas_station"`
	AttachedAmount    string `json:"attached_amount"`
}

type cancelSurveyRequest struct {
	proofFields
	SurveyID string `json:"survey_id"`
}

type payRewardsRequest struct {
	proofFields
	SurveyIDs    []string `json:"survey_ids"`
	Participants []string `json:"participants"`
}

type setManagerRequest struct {
	Caller  string `json:"caller"`
	Manager string `json:"manager"`
	PubKey  string `json:"pub_key"`
	Active  bool   `json:"active"`
}

type transferOwnershipRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
}

type setGasStationRequest struct {
	Caller     string `json:"caller"`
	GasStation string `json:"gas_station"`
}

type setChannelRequest struct {
	Caller    string `json:"caller"`
	ChannelID string `json:"channel_id"`
}

type createProofRequest struct {
	Token             string `json:"token"`
	TimeToExpire      uint64 `json:"time_to_expire"`
	Owner             string `json:"owner"`
	SurveyID          string `json:"survey_id"`
	ParticipantsLimit uint32 `json:"participants_limit"`
	RewardPerUser     string `json:"reward_per_user"`
	SurveyHash        string `json:"survey_hash"`
	RewardDenom       string `json:"reward_denom"`
	GasStationAmount  string `json:"amount_to_gas_station"`
}

type cancelProofRequest struct {
	Token        string `json:"token"`
	TimeToExpire uint64 `json:"time_to_expire"`
	SurveyID     string `json:"survey_id"`
}

type payProofRequest struct {
	Token        string   `json:"token"`
	TimeToExpire uint64   `json:"time_to_expire"`
	SurveyIDs    []string `json:"survey_ids"`
	Participants []string `json:"participants"`
}

type replyCallbackRequest struct {
	CorrelationID string `json:"correlation_id"`
	Sequence      uint64 `json:"sequence"`
}

type ackCallbackRequest struct {
	ChannelID string `json:"channel_id"`
	Sequence  uint64 `json:"sequence"`
	Success   bool   `json:"success"`
}

type timeoutCallbackRequest struct {
	ChannelID string `json:"channel_id"`
	Sequence  uint64 `json:"sequence"`
}

type surveyResponse struct {
	SurveyID             string `json:"survey_id"`
	Creator              string `json:"survey_creator"`
	ParticipantsLimit    uint32 `json:"participants_limit"`
	RewardPerUser        string `json:"reward_per_user"`
	RewardDenom          string `json:"reward_denom"`
	ParticipantsRewarded uint32 `json:"participants_rewarded"`
	SurveyHash           string `json:"survey_hash"`
	AmountToFund         string `json:"amount_to_fund"`
	IsCancelled          bool   `json:"is_cancelled"`
}

func newSurveyResponse(s *survey.Survey) surveyResponse {
	return surveyResponse{
		SurveyID:             s.ID,
		Creator:              s.Creator,
		ParticipantsLimit:    s.ParticipantsLimit,
		RewardPerUser:        s.RewardPerUser.String(),
		RewardDenom:          s.RewardDenom,
		ParticipantsRewarded: s.ParticipantsRewarded,
		SurveyHash:           base64.StdEncoding.EncodeToString(s.SurveyHash),
		AmountToFund:         s.AmountToFund().String(),
		IsCancelled:          s.Cancelled,
	}
}

type packetResponse struct {
	ChannelID    string `json:"channel_id"`
	Sequence     uint64 `json:"sequence"`
	RecoveryAddr string `json:"recovery_addr"`
	Denom        string `json:"denom"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
}

func newPacketResponse(p transfer.Packet) packetResponse {
	return packetResponse{
		ChannelID:    p.ChannelID,
		Sequence:     p.Sequence,
		RecoveryAddr: p.RecoveryAddr,
		Denom:        p.Denom,
		Amount:       p.Amount.String(),
		Status:       p.Status.String(),
	}
}

// statusForError maps domain errors onto HTTP status codes. Anything
// unrecognised is treated as an internal fault.
func statusForError(err error) int {
	switch {
	case errors.Is(err, survey.ErrUnauthorized),
		errors.Is(err, survey.ErrInvalidSigner):
		return http.StatusForbidden
	case errors.Is(err, survey.ErrSurveyNotFound),
		errors.Is(err, transfer.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, survey.ErrSurveyAlreadyExists),
		errors.Is(err, survey.ErrTokenAlreadyUsed),
		errors.Is(err, survey.ErrSurveyAlreadyCancelled),
		errors.Is(err, survey.ErrUserAlreadyRewarded),
		errors.Is(err, survey.ErrAllParticipantsRewarded):
		return http.StatusConflict
	case errors.Is(err, survey.ErrProofExpired),
		errors.Is(err, survey.ErrInvalidMessageHash),
		errors.Is(err, survey.ErrInvalidAccount),
		errors.Is(err, survey.ErrArrayLengthMismatch),
		errors.Is(err, survey.ErrInvalidRewardAmount),
		errors.Is(err, survey.ErrInvalidTransactionValue),
		errors.Is(err, survey.ErrArithmetic),
		errors.Is(err, survey.ErrNothingToRefund),
		errors.Is(err, survey.ErrInvalidManager),
		errors.Is(err, transfer.ErrInvalidRecipient),
		errors.Is(err, transfer.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, survey.ErrInsufficientContractBalance):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
