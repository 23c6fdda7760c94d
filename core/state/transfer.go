package state

import (
	"encoding/binary"
	"math/big"
	"strings"

	"surveychain/native/transfer"
)

var (
	transferPendingPrefix  = []byte("transfer/pending/")
	transferInflightPrefix = []byte("transfer/inflight/")
	transferRecoveryPrefix = []byte("transfer/recovery/")
)

func transferPendingKey(correlationID string) []byte {
	return append(append([]byte(nil), transferPendingPrefix...), correlationID...)
}

func transferInflightKey(channelID string, sequence uint64) []byte {
	buf := append(append([]byte(nil), transferInflightPrefix...), strings.TrimSpace(channelID)...)
	buf = append(buf, ':')
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	return append(buf, seq[:]...)
}

func transferRecoveryKey(recoveryAddr string) []byte {
	return append(append([]byte(nil), transferRecoveryPrefix...), strings.TrimSpace(recoveryAddr)...)
}

type storedPending struct {
	RecoveryAddr string
	Denom        string
	Amount       *big.Int
	TimeoutUnix  uint64
	CreatedAt    uint64
}

type storedPacket struct {
	RecoveryAddr string
	ChannelID    string
	Sequence     uint64
	Denom        string
	Amount       *big.Int
	Status       uint8
}

func packetFromStored(s storedPacket) transfer.Packet {
	return transfer.Packet{
		RecoveryAddr: s.RecoveryAddr,
		ChannelID:    s.ChannelID,
		Sequence:     s.Sequence,
		Denom:        s.Denom,
		Amount:       s.Amount,
		Status:       transfer.Status(s.Status),
	}
}

func packetToStored(p *transfer.Packet) storedPacket {
	return storedPacket{
		RecoveryAddr: p.RecoveryAddr,
		ChannelID:    p.ChannelID,
		Sequence:     p.Sequence,
		Denom:        p.Denom,
		Amount:       p.Amount,
		Status:       uint8(p.Status),
	}
}

// PendingPut stores a dispatch awaiting its sequence assignment.
func (m *Manager) PendingPut(p *transfer.Pending) error {
	return m.KVPut(transferPendingKey(p.CorrelationID), &storedPending{
		RecoveryAddr: p.RecoveryAddr,
		Denom:        p.Denom,
		Amount:       p.Amount,
		TimeoutUnix:  p.TimeoutUnix,
		CreatedAt:    p.CreatedAt,
	})
}

// PendingGet loads a pending dispatch by correlation id.
func (m *Manager) PendingGet(correlationID string) (*transfer.Pending, bool, error) {
	var stored storedPending
	ok, err := m.KVGet(transferPendingKey(correlationID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &transfer.Pending{
		CorrelationID: correlationID,
		RecoveryAddr:  stored.RecoveryAddr,
		Denom:         stored.Denom,
		Amount:        stored.Amount,
		TimeoutUnix:   stored.TimeoutUnix,
		CreatedAt:     stored.CreatedAt,
	}, true, nil
}

// PendingDelete drops the correlation record once the packet is re-keyed by
// sequence.
func (m *Manager) PendingDelete(correlationID string) error {
	return m.KVDelete(transferPendingKey(correlationID))
}

// InFlightPut stores the packet keyed by (channel, sequence).
func (m *Manager) InFlightPut(p *transfer.Packet) error {
	stored := packetToStored(p)
	return m.KVPut(transferInflightKey(p.ChannelID, p.Sequence), &stored)
}

// InFlightGet loads the packet tracked for (channel, sequence).
func (m *Manager) InFlightGet(channelID string, sequence uint64) (*transfer.Packet, bool, error) {
	var stored storedPacket
	ok, err := m.KVGet(transferInflightKey(channelID, sequence), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	packet := packetFromStored(stored)
	return &packet, true, nil
}

// RecoveryAppend adds a failed or timed-out packet to the recovery list of
// the intended recipient. The list is append-only; entries are never
// overwritten.
func (m *Manager) RecoveryAppend(recoveryAddr string, p *transfer.Packet) error {
	key := transferRecoveryKey(recoveryAddr)
	var stored []storedPacket
	if _, err := m.KVGet(key, &stored); err != nil {
		return err
	}
	stored = append(stored, packetToStored(p))
	return m.KVPut(key, stored)
}

// RecoveryList returns the packets awaiting manual reclaim by the address.
func (m *Manager) RecoveryList(recoveryAddr string) ([]transfer.Packet, error) {
	var stored []storedPacket
	if _, err := m.KVGet(transferRecoveryKey(recoveryAddr), &stored); err != nil {
		return nil, err
	}
	packets := make([]transfer.Packet, 0, len(stored))
	for _, s := range stored {
		packets = append(packets, packetFromStored(s))
	}
	return packets, nil
}
