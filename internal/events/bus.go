package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Event is a single emitted domain event. Payload is always valid JSON.
type Event struct {
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Notifier reacts to emitted events (e.g. logging, metrics, receipt printing).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to subscribed notifiers, in-process and synchronously.
// Notifier errors are collected, not short-circuited: one failing subscriber
// must not hide the event from the rest.
type Bus struct {
	mu        sync.RWMutex
	notifiers map[string][]Notifier
	Now       func() time.Time
}

// Subscribe attaches a notifier to a topic. An empty topic subscribes to
// every event.
func (b *Bus) Subscribe(topic string, n Notifier) {
	if b == nil || n == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notifiers == nil {
		b.notifiers = make(map[string][]Notifier)
	}
	b.notifiers[topic] = append(b.notifiers[topic], n)
}

// Emit dispatches the event to all notifiers for its topic plus any
// catch-all subscribers.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if aggregateID == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now().UTC(),
	}

	b.mu.RLock()
	targets := make([]Notifier, 0, len(b.notifiers[topic])+len(b.notifiers[""]))
	targets = append(targets, b.notifiers[topic]...)
	targets = append(targets, b.notifiers[""]...)
	b.mu.RUnlock()

	var joined error
	for _, notifier := range targets {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}
