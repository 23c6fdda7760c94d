package transfer

import (
	"errors"
	"math/big"
)

// Status tracks the lifecycle of a dispatched cross-chain transfer. A packet
// moves from StatusSent to exactly one terminal status when its callback
// arrives; callbacks for packets already terminal are ignored.
type Status uint8

const (
	StatusSent Status = iota
	StatusAckSuccess
	StatusAckFailure
	StatusTimedOut
)

func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusAckSuccess, StatusAckFailure, StatusTimedOut:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusAckSuccess, StatusAckFailure, StatusTimedOut:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusAckSuccess:
		return "ack_success"
	case StatusAckFailure:
		return "ack_failure"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

var (
	ErrPendingNotFound  = errors.New("transfer: pending correlation not found")
	ErrInvalidRecipient = errors.New("transfer: invalid recipient")
	ErrInvalidAmount    = errors.New("transfer: amount must be positive")
)

// Pending is the first phase of an in-flight registration: the packet has
// been handed to the host for dispatch but the host-assigned sequence number
// is not known yet. The record is keyed by a locally generated correlation
// id until ResolveSequence re-keys it.
type Pending struct {
	CorrelationID string
	RecoveryAddr  string
	Denom         string
	Amount        *big.Int
	TimeoutUnix   uint64
	CreatedAt     uint64
}

// Clone returns a deep copy of the pending record.
func (p *Pending) Clone() *Pending {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Packet is a transfer sent by the ledger that is expected to be received on
// the counterparty chain but needs tracking in case the receive fails or
// times out.
type Packet struct {
	RecoveryAddr string
	ChannelID    string
	Sequence     uint64
	Denom        string
	Amount       *big.Int
	Status       Status
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
