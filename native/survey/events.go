package survey

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"surveychain/core/events"
)

const (
	EventTypeSurveyCreated        = "survey.created"
	EventTypeSurveyCancelled      = "survey.cancelled"
	EventTypeRewardPaid           = "survey.reward_paid"
	EventTypeRewardsBatch         = "survey.rewards_batch"
	EventTypeManagerUpdated       = "survey.manager_updated"
	EventTypeOwnershipTransferred = "survey.ownership_transferred"
	EventTypeGasStationUpdated    = "survey.gas_station_updated"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// survey.
func NewCreatedEvent(s *Survey) *events.Event {
	attrs := make(map[string]string)
	if s != nil {
		attrs["survey_id"] = s.ID
		attrs["creator"] = s.Creator
		attrs["participants_limit"] = strconv.FormatUint(uint64(s.ParticipantsLimit), 10)
		attrs["reward_per_user"] = amountString(s.RewardPerUser)
		attrs["reward_denom"] = s.RewardDenom
		attrs["survey_hash"] = hex.EncodeToString(s.SurveyHash)
	}
	return &events.Event{Type: EventTypeSurveyCreated, Attributes: attrs}
}

// NewCancelledEvent returns the event payload emitted when a survey is
// cancelled and its remaining escrow refunded.
func NewCancelledEvent(s *Survey, refund *big.Int, correlationID string) *events.Event {
	attrs := make(map[string]string)
	if s != nil {
		attrs["survey_id"] = s.ID
		attrs["creator"] = s.Creator
		attrs["refund"] = amountString(refund)
		attrs["correlation_id"] = correlationID
	}
	return &events.Event{Type: EventTypeSurveyCancelled, Attributes: attrs}
}

// NewRewardPaidEvent returns the event payload for an individual reward
// payout inside a batch.
func NewRewardPaidEvent(s *Survey, participant, correlationID string) *events.Event {
	attrs := make(map[string]string)
	if s != nil {
		attrs["survey_id"] = s.ID
		attrs["participant"] = participant
		attrs["amount"] = amountString(s.RewardPerUser)
		attrs["correlation_id"] = correlationID
	}
	return &events.Event{Type: EventTypeRewardPaid, Attributes: attrs}
}

// NewRewardsBatchEvent summarises a fully applied reward batch.
func NewRewardsBatchEvent(pairs int, total *big.Int) *events.Event {
	return &events.Event{Type: EventTypeRewardsBatch, Attributes: map[string]string{
		"pairs": strconv.Itoa(pairs),
		"total": amountString(total),
	}}
}

// NewManagerUpdatedEvent reports a manager registration or status change.
func NewManagerUpdatedEvent(info ManagerInfo) *events.Event {
	return &events.Event{Type: EventTypeManagerUpdated, Attributes: map[string]string{
		"manager": info.Address,
		"pub_key": hex.EncodeToString(info.PubKey),
		"active":  strconv.FormatBool(info.Active),
	}}
}

// NewOwnershipTransferredEvent reports the new ledger owner.
func NewOwnershipTransferredEvent(owner string) *events.Event {
	return &events.Event{Type: EventTypeOwnershipTransferred, Attributes: map[string]string{
		"new_owner": owner,
	}}
}

// NewGasStationUpdatedEvent reports the new side-payment recipient.
func NewGasStationUpdatedEvent(addr string) *events.Event {
	return &events.Event{Type: EventTypeGasStationUpdated, Attributes: map[string]string{
		"gas_station": addr,
	}}
}
