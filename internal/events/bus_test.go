package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirana-labs/backend-pos/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitFansOut(t *testing.T) {
	bus := &events.Bus{}
	sale := &captureNotifier{}
	all := &captureNotifier{}
	bus.Subscribe(events.TopicSaleCompleted, sale)
	bus.Subscribe("", all)

	payload := map[string]any{"invoice": "INV-001"}
	event, err := bus.Emit(context.Background(), events.TopicSaleCompleted, "cart-1", payload)
	require.NoError(t, err)
	require.Len(t, sale.events, 1)
	require.Len(t, all.events, 1)
	require.Equal(t, "cart-1", event.AggregateID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "INV-001", decoded["invoice"])

	// A different topic reaches only the catch-all subscriber.
	_, err = bus.Emit(context.Background(), events.TopicCartCleared, "cart-1", nil)
	require.NoError(t, err)
	require.Len(t, sale.events, 1)
	require.Len(t, all.events, 2)
}

func TestEmitCollectsNotifierErrors(t *testing.T) {
	bus := &events.Bus{}
	failing := &captureNotifier{err: errors.New("printer offline")}
	ok := &captureNotifier{}
	bus.Subscribe(events.TopicSaleCompleted, failing)
	bus.Subscribe(events.TopicSaleCompleted, ok)

	_, err := bus.Emit(context.Background(), events.TopicSaleCompleted, "cart-1", "{}")
	require.ErrorContains(t, err, "printer offline")
	// A failing subscriber does not hide the event from the next one.
	require.Len(t, ok.events, 1)
}

func TestEmitValidation(t *testing.T) {
	bus := &events.Bus{}
	_, err := bus.Emit(context.Background(), "", "cart-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicSaleCompleted, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicSaleCompleted, "cart-1", "not json")
	require.Error(t, err)
}
