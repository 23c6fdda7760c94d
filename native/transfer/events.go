package transfer

import (
	"strconv"

	"surveychain/core/events"
)

const (
	EventTypeDispatched = "transfer.dispatched"
	EventTypeSent       = "transfer.sent"
	EventTypeAckSuccess = "transfer.ack_success"
	EventTypeAckFailure = "transfer.ack_failure"
	EventTypeTimedOut   = "transfer.timed_out"
)

// NewDispatchedEvent reports a packet handed to the host, before its sequence
// number is known.
func NewDispatchedEvent(p *Pending, channelID string) *events.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["correlation_id"] = p.CorrelationID
		attrs["recovery_addr"] = p.RecoveryAddr
		attrs["channel_id"] = channelID
		attrs["denom"] = p.Denom
		attrs["amount"] = p.Amount.String()
		attrs["timeout_unix"] = strconv.FormatUint(p.TimeoutUnix, 10)
	}
	return &events.Event{Type: EventTypeDispatched, Attributes: attrs}
}

// NewSentEvent reports a packet whose sequence number has been assigned.
func NewSentEvent(p *Packet) *events.Event {
	return &events.Event{Type: EventTypeSent, Attributes: packetAttrs(p)}
}

// NewFinalizedEvent reports a packet reaching a terminal status.
func NewFinalizedEvent(p *Packet) *events.Event {
	eventType := EventTypeAckSuccess
	if p != nil {
		switch p.Status {
		case StatusAckFailure:
			eventType = EventTypeAckFailure
		case StatusTimedOut:
			eventType = EventTypeTimedOut
		}
	}
	return &events.Event{Type: eventType, Attributes: packetAttrs(p)}
}

func packetAttrs(p *Packet) map[string]string {
	attrs := make(map[string]string)
	if p == nil {
		return attrs
	}
	attrs["channel_id"] = p.ChannelID
	attrs["sequence"] = strconv.FormatUint(p.Sequence, 10)
	attrs["recovery_addr"] = p.RecoveryAddr
	attrs["denom"] = p.Denom
	attrs["amount"] = p.Amount.String()
	attrs["status"] = p.Status.String()
	return attrs
}
