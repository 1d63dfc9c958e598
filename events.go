package goRewards

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types published by the engine.
const (
	// EventAccountLinked fires after an account joined a subscription.
	EventAccountLinked = "rewards:account-linked"
	// EventOptedIn fires after an account group opted in.
	EventOptedIn = "rewards:opted-in"
	// EventStateReset fires when accounts and subscriptions are forgotten.
	EventStateReset = "rewards:state-reset"
)

// Event is a notification delivered to an EventSink. It never carries
// session tokens or signatures.
type Event struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Type           string            `json:"type"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	Account        string            `json:"account,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// EventSink receives engine events on the dispatcher goroutine.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// FuncSink adapts a function to EventSink.
type FuncSink func(ctx context.Context, event Event)

func (f FuncSink) Emit(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}
