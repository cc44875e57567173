package sessioncore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// FlowEvent describes one observable flow transition. Events replace the
// original UI's toast layer: the consuming surface decides how to render
// them, the core only reports what happened.
type FlowEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Email     string            `json:"email,omitempty"`
	Purpose   string            `json:"purpose,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	notifyEventSignIn             = "signin"
	notifyEventSignUp             = "signup"
	notifyEventChallengeSent      = "challenge_sent"
	notifyEventChallengeVerified  = "challenge_verified"
	notifyEventChallengeResent    = "challenge_resent"
	notifyEventResetRequested     = "reset_requested"
	notifyEventPasswordUpdated    = "password_updated"
	notifyEventSessionEstablished = "session_established"
	notifyEventFlowCancelled      = "flow_cancelled"
)

// NotifySink receives flow events. Emit must not block longer than the
// caller's context allows.
type NotifySink interface {
	Emit(ctx context.Context, event FlowEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, FlowEvent) {}

// ChannelSink forwards events to a buffered channel, for tests and UI glue.
type ChannelSink struct {
	events chan FlowEvent
}

// NewChannelSink builds a sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan FlowEvent, buffer)}
}

// Emit forwards the event, or drops it when ctx ends first.
func (s *ChannelSink) Emit(ctx context.Context, event FlowEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side.
func (s *ChannelSink) Events() <-chan FlowEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per event to w.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink wraps w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit encodes the event as a single JSON line.
func (s *JSONWriterSink) Emit(_ context.Context, event FlowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = json.NewEncoder(s.writer).Encode(event)
}
