package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"surveychain/core/events"
)

// DefaultTimeout is the window the counterparty chain has to receive a packet
// before the host reports it timed out.
const DefaultTimeout = 10 * time.Minute

var errNilState = errors.New("transfer engine: state not configured")

type engineState interface {
	PendingPut(*Pending) error
	PendingGet(correlationID string) (*Pending, bool, error)
	PendingDelete(correlationID string) error

	InFlightPut(*Packet) error
	InFlightGet(channelID string, sequence uint64) (*Packet, bool, error)

	RecoveryAppend(recoveryAddr string, packet *Packet) error
	RecoveryList(recoveryAddr string) ([]Packet, error)

	Transfer(from, to, denom string, amount *big.Int) error
}

// Engine owns the asynchronous cross-chain transfer lifecycle: it registers
// outbound packets, correlates the host's sequence assignment back to the
// triggering operation and consumes the success/failure/timeout callbacks.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	channelID string
	escrow    string
	timeout   time.Duration
	newID     func() string
}

// NewEngine creates a transfer engine for the given source channel. Funds for
// dispatched packets are parked on the escrow account until the counterparty
// receives them.
func NewEngine(channelID, escrowAccount string) *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		channelID: strings.TrimSpace(channelID),
		escrow:    strings.TrimSpace(escrowAccount),
		timeout:   DefaultTimeout,
		newID:     uuid.NewString,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// SetTimeout overrides the packet timeout window.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	e.timeout = d
}

// SetChannel retargets the source channel for subsequently dispatched
// packets.
func (e *Engine) SetChannel(channelID string) {
	if trimmed := strings.TrimSpace(channelID); trimmed != "" {
		e.channelID = trimmed
	}
}

func (e *Engine) emit(evt *events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Dispatch moves the amount from the sender onto the channel escrow account
// and registers a pending correlation record. The host-assigned sequence
// number is not known at this point; ResolveSequence finishes the
// registration when the dispatch reply arrives.
func (e *Engine) Dispatch(sender, recipient, denom string, amount *big.Int) (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	if strings.TrimSpace(recipient) == "" {
		return "", ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	if err := e.state.Transfer(sender, e.escrow, denom, amount); err != nil {
		return "", err
	}
	now := uint64(e.nowFn())
	pending := &Pending{
		CorrelationID: e.newID(),
		RecoveryAddr:  strings.TrimSpace(recipient),
		Denom:         denom,
		Amount:        new(big.Int).Set(amount),
		TimeoutUnix:   now + uint64(e.timeout/time.Second),
		CreatedAt:     now,
	}
	if err := e.state.PendingPut(pending); err != nil {
		return "", err
	}
	e.emit(NewDispatchedEvent(pending, e.channelID))
	return pending.CorrelationID, nil
}

// ResolveSequence is the second phase of in-flight registration: the host's
// dispatch reply supplies the sequence number, and the pending record is
// re-keyed by (channel, sequence) with status Sent.
func (e *Engine) ResolveSequence(correlationID string, sequence uint64) (*Packet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pending, ok, err := e.state.PendingGet(correlationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPendingNotFound
	}
	if existing, found, err := e.state.InFlightGet(e.channelID, sequence); err != nil {
		return nil, err
	} else if found {
		return nil, fmt.Errorf("transfer: sequence %d on %s already tracks a packet (status %s)", sequence, e.channelID, existing.Status)
	}
	packet := &Packet{
		RecoveryAddr: pending.RecoveryAddr,
		ChannelID:    e.channelID,
		Sequence:     sequence,
		Denom:        pending.Denom,
		Amount:       new(big.Int).Set(pending.Amount),
		Status:       StatusSent,
	}
	if err := e.state.InFlightPut(packet); err != nil {
		return nil, err
	}
	if err := e.state.PendingDelete(correlationID); err != nil {
		return nil, err
	}
	e.emit(NewSentEvent(packet))
	return packet.Clone(), nil
}

// finalize applies a terminal status to an in-flight packet, reporting
// whether the packet actually transitioned. Unknown packets and packets
// already terminal are tolerated as no-ops: the host does not allow a
// callback to be meaningfully rejected, and duplicate callbacks must not
// double-reconcile.
func (e *Engine) finalize(channelID string, sequence uint64, status Status, recover bool) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	packet, ok, err := e.state.InFlightGet(channelID, sequence)
	if err != nil {
		return false, err
	}
	if !ok || packet.Status.Terminal() {
		return false, nil
	}
	packet.Status = status
	if err := e.state.InFlightPut(packet); err != nil {
		return false, err
	}
	if recover {
		if err := e.state.RecoveryAppend(packet.RecoveryAddr, packet); err != nil {
			return false, err
		}
	}
	e.emit(NewFinalizedEvent(packet))
	return true, nil
}

// OnAckSuccess marks the packet as acknowledged. The funds were already
// accounted for when the triggering ledger operation committed, so no further
// ledger change happens.
func (e *Engine) OnAckSuccess(channelID string, sequence uint64) (bool, error) {
	return e.finalize(channelID, sequence, StatusAckSuccess, false)
}

// OnAckFailure marks the packet as rejected by the counterparty and records a
// recovery entry for the intended recipient.
func (e *Engine) OnAckFailure(channelID string, sequence uint64) (bool, error) {
	return e.finalize(channelID, sequence, StatusAckFailure, true)
}

// OnTimeout marks the packet as timed out and records a recovery entry for
// the intended recipient.
func (e *Engine) OnTimeout(channelID string, sequence uint64) (bool, error) {
	return e.finalize(channelID, sequence, StatusTimedOut, true)
}

// InFlight returns a copy of the tracked packet for (channel, sequence).
func (e *Engine) InFlight(channelID string, sequence uint64) (*Packet, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	packet, ok, err := e.state.InFlightGet(channelID, sequence)
	if err != nil || !ok {
		return nil, ok, err
	}
	return packet.Clone(), true, nil
}

// Recoverable lists the failed or timed-out transfers awaiting manual reclaim
// by the given recovery address.
func (e *Engine) Recoverable(recoveryAddr string) ([]Packet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.RecoveryList(strings.TrimSpace(recoveryAddr))
}
