package events

import "log/slog"

// Event represents a typed state change emitted during ledger transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers (e.g. the gateway,
// indexers).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose callers do not care about events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// LogEmitter writes every event to a structured logger. The daemon uses it so
// ledger activity shows up in the service logs without a dedicated indexer.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt *Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(evt.Attributes)*2+2)
	attrs = append(attrs, "event", evt.Type)
	for k, v := range evt.Attributes {
		attrs = append(attrs, k, v)
	}
	logger.Info("ledger event", attrs...)
}
