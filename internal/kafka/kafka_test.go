package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

var topics = config.TopicConfig{TicketEvents: "tickets", CheckinEvents: "checkins"}

func TestProducer_RoutesAndEncodes(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: topics, Logger: logger.Discard()}
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleTicketPurchased, TicketID: "T1", OccurredAt: at}))
	require.NoError(t, p.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleTicketCheckedIn, TicketID: "T1", OccurredAt: at}))
	require.NoError(t, p.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleLedgerReset, OccurredAt: at}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "tickets", w.msgs[0].Topic)
	assert.Equal(t, "checkins", w.msgs[1].Topic)
	assert.Equal(t, "checkins", w.msgs[2].Topic)
	assert.Equal(t, []byte("T1"), w.msgs[0].Key)
	assert.Equal(t, []byte(models.LifecycleLedgerReset), w.msgs[2].Key)

	var evt models.LifecycleEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &evt))
	assert.Equal(t, models.LifecycleTicketCheckedIn, evt.Type)
	assert.True(t, at.Equal(evt.OccurredAt))
}

func TestProducer_WriteFailure(t *testing.T) {
	p := &Producer{Writer: &fakeWriter{err: errors.New("broker down")}, Topics: topics, Logger: logger.Discard()}
	err := p.Publish(context.Background(), models.LifecycleEvent{Type: models.LifecycleTicketIssued, TicketID: "T1"})
	assert.ErrorContains(t, err, "broker down")
}

func TestDispatch(t *testing.T) {
	var got []models.LifecycleEvent
	handle := func(ctx context.Context, evt models.LifecycleEvent) error {
		got = append(got, evt)
		return nil
	}

	err := Dispatch(context.Background(), kafka.Message{Value: []byte(`{"type":"ticket.checked_in","ticketId":"T9"}`)}, handle)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T9", got[0].TicketID)

	assert.Error(t, Dispatch(context.Background(), kafka.Message{Value: []byte(`not json`)}, handle))
	assert.Error(t, Dispatch(context.Background(), kafka.Message{Value: []byte(`{}`)}, handle))
	assert.Len(t, got, 1)
}
