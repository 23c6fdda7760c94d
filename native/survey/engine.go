package survey

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"surveychain/core/events"
)

var (
	errNilState     = errors.New("survey engine: state not configured")
	errNilParams    = errors.New("survey engine: params not initialised")
	errNilTransfers = errors.New("survey engine: transfer dispatcher not configured")
)

type engineState interface {
	authState

	SurveyPut(*Survey) error
	SurveyGet(id string) (*Survey, bool, error)
	SurveyHas(id string) (bool, error)

	RewardedMark(surveyID, participant string) error
	RewardedHas(surveyID, participant string) (bool, error)

	ManagerPut(ManagerInfo) error
	ManagerGet(addr string) (ManagerInfo, bool, error)

	ParamsPut(*Params) error
	ParamsGet() (*Params, bool, error)

	BalanceOf(account, denom string) (*big.Int, error)
	Transfer(from, to, denom string, amount *big.Int) error
}

// Dispatcher issues an outbound cross-chain transfer and returns the local
// correlation id for the in-flight record. The survey engine never observes
// the transfer outcome directly; failures surface later through the recovery
// ledger. SetChannel keeps the dispatcher routing aligned with the
// owner-gated channel parameter.
type Dispatcher interface {
	Dispatch(sender, recipient, denom string, amount *big.Int) (string, error)
	SetChannel(channelID string)
}

// Engine wires the survey ledger business logic with external state, the
// cross-chain transfer dispatcher and an event emitter.
type Engine struct {
	state     engineState
	validator *Validator
	transfers Dispatcher
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a survey engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine and its proof
// validator.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.validator = NewValidator(state)
	e.validator.SetNowFunc(e.nowFn)
}

// SetTransfers configures the cross-chain dispatcher used for refunds and
// reward payouts.
func (e *Engine) SetTransfers(d Dispatcher) { e.transfers = d }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
	if e.validator != nil {
		e.validator.SetNowFunc(now)
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, ok, err := e.state.ParamsGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNilParams
	}
	return params, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Bootstrap persists the initial parameter set and manager registry. Existing
// params are left untouched so a daemon restart does not clobber owner-gated
// changes; the dispatcher is retargeted to whichever channel ends up
// effective.
func (e *Engine) Bootstrap(params *Params, managers []ManagerInfo) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if existing, ok, err := e.state.ParamsGet(); err != nil {
		return err
	} else if ok {
		if e.transfers != nil {
			e.transfers.SetChannel(existing.ChannelID)
		}
		return nil
	}
	if err := params.Validate(); err != nil {
		return err
	}
	for _, m := range managers {
		addr, err := validateAccount(params.ReceiverPrefix, m.Address)
		if err != nil {
			return err
		}
		if len(m.PubKey) == 0 {
			return fmt.Errorf("survey: manager %s: public key required", addr)
		}
		if err := e.state.ManagerPut(ManagerInfo{Address: addr, PubKey: append([]byte(nil), m.PubKey...), Active: true}); err != nil {
			return err
		}
	}
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	if e.transfers != nil {
		e.transfers.SetChannel(params.ChannelID)
	}
	return nil
}

// CreateSurveyArgs carries the business parameters of a creation request
// alongside the manager proof fields.
type CreateSurveyArgs struct {
	Token             string
	TimeToExpire      uint64
	Owner             string
	SurveyID          string
	ParticipantsLimit uint32
	RewardPerUser     *big.Int
	SurveyHash        []byte
	GasStationAmount  *big.Int
	AttachedAmount    *big.Int
	ManagerPubKey     []byte
	Signature         []byte
}

// CreateSurvey registers a survey and escrows the reward pool on the contract
// account. The creator attaches funds covering participants×reward plus the
// gas-station side payment; the side payment is forwarded immediately.
func (e *Engine) CreateSurvey(args CreateSurveyArgs) (*Survey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id := strings.TrimSpace(args.SurveyID)
	if id == "" {
		return nil, fmt.Errorf("survey: id required")
	}
	exists, err := e.state.SurveyHas(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrSurveyAlreadyExists
	}

	params, err := e.params()
	if err != nil {
		return nil, err
	}

	digest, err := CreateSurveyDigest(args.Token, args.TimeToExpire, args.Owner, id, args.ParticipantsLimit, args.RewardPerUser, args.SurveyHash, params.RewardDenom, args.GasStationAmount)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(args.Token, args.TimeToExpire, digest, args.ManagerPubKey, args.Signature); err != nil {
		return nil, err
	}

	creator, err := validateAccount(params.ReceiverPrefix, args.Owner)
	if err != nil {
		return nil, err
	}

	rewardPerUser := cloneBigInt(args.RewardPerUser)
	if rewardPerUser.Sign() <= 0 {
		return nil, ErrInvalidRewardAmount
	}
	escrow := new(big.Int).Mul(big.NewInt(int64(args.ParticipantsLimit)), rewardPerUser)
	if escrow.BitLen() > 128 {
		return nil, ErrArithmetic
	}
	sidePayment := cloneBigInt(args.GasStationAmount)
	if sidePayment.Sign() < 0 {
		return nil, ErrArithmetic
	}
	required := new(big.Int).Add(escrow, sidePayment)

	attached := cloneBigInt(args.AttachedAmount)
	if attached.Cmp(escrow) < 0 {
		return nil, ErrInvalidRewardAmount
	}
	if attached.Cmp(required) < 0 {
		return nil, ErrInvalidTransactionValue
	}

	// The whole attached amount moves to the contract account, then the side
	// payment is forwarded to the gas station.
	if err := e.state.Transfer(creator, params.ContractAddress, params.RewardDenom, attached); err != nil {
		return nil, err
	}
	if sidePayment.Sign() > 0 {
		if err := e.state.Transfer(params.ContractAddress, params.GasStation, params.RewardDenom, sidePayment); err != nil {
			return nil, err
		}
	}

	record := &Survey{
		ID:                id,
		Creator:           creator,
		ParticipantsLimit: args.ParticipantsLimit,
		RewardPerUser:     rewardPerUser,
		RewardDenom:       params.RewardDenom,
		SurveyHash:        append([]byte(nil), args.SurveyHash...),
		CreatedAt:         uint64(e.now()),
	}
	if err := e.state.SurveyPut(record); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(record))
	return record.Clone(), nil
}

// CancelSurveyArgs carries the parameters of a cancellation request.
type CancelSurveyArgs struct {
	Token         string
	TimeToExpire  uint64
	SurveyID      string
	ManagerPubKey []byte
	Signature     []byte
}

// CancelSurvey refunds the undistributed escrow to the creator through a
// cross-chain transfer and marks the survey cancelled. Nothing is persisted
// until the refund dispatch succeeds, so a failed cancellation leaves the
// survey payable. A repeat request finds the refund already settled and fails
// with ErrNothingToRefund.
func (e *Engine) CancelSurvey(args CancelSurveyArgs) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.transfers == nil {
		return nil, errNilTransfers
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}

	digest, err := CancelSurveyDigest(args.Token, args.TimeToExpire, args.SurveyID)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(args.Token, args.TimeToExpire, digest, args.ManagerPubKey, args.Signature); err != nil {
		return nil, err
	}

	record, ok, err := e.state.SurveyGet(args.SurveyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSurveyNotFound
	}

	refund := new(big.Int).Sub(record.AmountToFund(), record.AmountRewardsPaid())
	if refund.Sign() < 0 || record.Refunded {
		refund = big.NewInt(0)
	}

	balance, err := e.state.BalanceOf(params.ContractAddress, record.RewardDenom)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(refund) < 0 {
		return nil, ErrInsufficientContractBalance
	}
	if refund.Sign() == 0 {
		return nil, ErrNothingToRefund
	}

	correlationID, err := e.transfers.Dispatch(params.ContractAddress, record.Creator, record.RewardDenom, refund)
	if err != nil {
		return nil, err
	}

	record.Cancelled = true
	record.Refunded = true
	if err := e.state.SurveyPut(record); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(record, refund, correlationID))
	return refund, nil
}

// PayRewardsArgs carries a batch of (survey, participant) pairs and the
// manager proof covering the whole batch.
type PayRewardsArgs struct {
	Token         string
	TimeToExpire  uint64
	SurveyIDs     []string
	Participants  []string
	ManagerPubKey []byte
	Signature     []byte
}

type stagedReward struct {
	survey      *Survey
	participant string
}

// PayRewards credits one reward per (survey, participant) pair and queues one
// outbound transfer per pair. The batch is atomic: every pair is validated
// against staged state before any write or dispatch happens, so a failing
// pair leaves no trace of the earlier ones.
func (e *Engine) PayRewards(args PayRewardsArgs) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.transfers == nil {
		return nil, errNilTransfers
	}
	if len(args.SurveyIDs) != len(args.Participants) {
		return nil, ErrArrayLengthMismatch
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}

	digest, err := PayRewardsDigest(args.Token, args.TimeToExpire, args.SurveyIDs, args.Participants)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(args.Token, args.TimeToExpire, digest, args.ManagerPubKey, args.Signature); err != nil {
		return nil, err
	}

	// Validation pass over staged copies. Pairs may repeat a survey inside the
	// batch, so counters and rewarded marks accumulate locally.
	staged := make(map[string]*Survey)
	markedInBatch := make(map[string]bool)
	rewards := make([]stagedReward, 0, len(args.SurveyIDs))
	total := big.NewInt(0)

	for i := range args.SurveyIDs {
		id := args.SurveyIDs[i]
		participant, err := validateAccount(params.ReceiverPrefix, args.Participants[i])
		if err != nil {
			return nil, err
		}

		record, ok := staged[id]
		if !ok {
			loaded, found, err := e.state.SurveyGet(id)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, ErrSurveyNotFound
			}
			record = loaded
			staged[id] = record
		}

		if record.Cancelled {
			return nil, ErrSurveyAlreadyCancelled
		}
		if record.ParticipantsRewarded >= record.ParticipantsLimit {
			return nil, ErrAllParticipantsRewarded
		}

		pairKey := id + "/" + participant
		if markedInBatch[pairKey] {
			return nil, ErrUserAlreadyRewarded
		}
		rewarded, err := e.state.RewardedHas(id, participant)
		if err != nil {
			return nil, err
		}
		if rewarded {
			return nil, ErrUserAlreadyRewarded
		}

		record.ParticipantsRewarded++
		markedInBatch[pairKey] = true
		rewards = append(rewards, stagedReward{survey: record, participant: participant})
		total.Add(total, record.RewardPerUser)
	}

	// Commit pass: persist counters and marks, then dispatch transfers.
	for id, record := range staged {
		if err := e.state.SurveyPut(record); err != nil {
			return nil, fmt.Errorf("survey: persist %s: %w", id, err)
		}
	}
	for _, reward := range rewards {
		if err := e.state.RewardedMark(reward.survey.ID, reward.participant); err != nil {
			return nil, err
		}
		correlationID, err := e.transfers.Dispatch(params.ContractAddress, reward.participant, reward.survey.RewardDenom, reward.survey.RewardPerUser)
		if err != nil {
			return nil, err
		}
		e.emit(NewRewardPaidEvent(reward.survey, reward.participant, correlationID))
	}
	e.emit(NewRewardsBatchEvent(len(rewards), total))
	return total, nil
}

func (e *Engine) requireOwner(caller string, params *Params) error {
	if strings.TrimSpace(caller) != params.Owner {
		return ErrUnauthorized
	}
	return nil
}

// SetManager registers or updates a manager. Only the owner may call it;
// deactivated managers keep their record but their signatures stop being
// honoured.
func (e *Engine) SetManager(caller, managerAddr string, pubKey []byte, active bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if err := e.requireOwner(caller, params); err != nil {
		return err
	}
	addr, err := validateAccount(params.ReceiverPrefix, managerAddr)
	if err != nil {
		return err
	}
	if len(pubKey) == 0 {
		return ErrInvalidManager
	}
	info := ManagerInfo{Address: addr, PubKey: append([]byte(nil), pubKey...), Active: active}
	if err := e.state.ManagerPut(info); err != nil {
		return err
	}
	e.emit(NewManagerUpdatedEvent(info))
	return nil
}

// TransferOwnership hands the owner role to a new address. Owner-only.
func (e *Engine) TransferOwnership(caller, newOwner string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if err := e.requireOwner(caller, params); err != nil {
		return err
	}
	owner, err := validateAccount(params.ReceiverPrefix, newOwner)
	if err != nil {
		return err
	}
	params.Owner = owner
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(NewOwnershipTransferredEvent(owner))
	return nil
}

// SetGasStation points the side-payment recipient at a new account.
// Owner-only.
func (e *Engine) SetGasStation(caller, gasStation string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if err := e.requireOwner(caller, params); err != nil {
		return err
	}
	addr, err := validateAccount(params.ReceiverPrefix, gasStation)
	if err != nil {
		return err
	}
	params.GasStation = addr
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(NewGasStationUpdatedEvent(addr))
	return nil
}

// SetChannel retargets the cross-chain channel used for payouts. Owner-only.
func (e *Engine) SetChannel(caller, channelID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if err := e.requireOwner(caller, params); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(channelID)
	if trimmed == "" {
		return fmt.Errorf("survey: channel id required")
	}
	params.ChannelID = trimmed
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	if e.transfers != nil {
		e.transfers.SetChannel(trimmed)
	}
	return nil
}

// --- Queries ---

// GetSurvey returns a copy of the stored record.
func (e *Engine) GetSurvey(id string) (*Survey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.SurveyGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSurveyNotFound
	}
	return record.Clone(), nil
}

// AmountToFund returns the escrow total required for the survey.
func (e *Engine) AmountToFund(id string) (*big.Int, error) {
	record, err := e.GetSurvey(id)
	if err != nil {
		return nil, err
	}
	return record.AmountToFund(), nil
}

// AmountRewardsPaid returns the total disbursed so far for the survey.
func (e *Engine) AmountRewardsPaid(id string) (*big.Int, error) {
	record, err := e.GetSurvey(id)
	if err != nil {
		return nil, err
	}
	return record.AmountRewardsPaid(), nil
}

// HasClaimedReward reports whether the participant has already been rewarded
// for the survey.
func (e *Engine) HasClaimedReward(surveyID, participant string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	params, err := e.params()
	if err != nil {
		return false, err
	}
	addr, err := validateAccount(params.ReceiverPrefix, participant)
	if err != nil {
		return false, err
	}
	return e.state.RewardedHas(surveyID, addr)
}

// GetParams returns a copy of the ledger configuration.
func (e *Engine) GetParams() (*Params, error) {
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	clone := *params
	return &clone, nil
}
