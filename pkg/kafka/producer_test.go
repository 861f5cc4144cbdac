package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w *fakeWriter) *Producer {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewProducerWithWriter(w, "customer-events", logger)
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_PublishCustomerEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	err := p.PublishCustomerEvent(context.Background(), &CustomerEvent{
		EventID:     "evt-1",
		EventType:   "customer.merged",
		CustomerIDs: []int64{102, 103},
		PrimaryID:   101,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "101", string(msg.Key))
	assert.Equal(t, "customer.merged", header(msg, "event_type"))
	assert.Equal(t, "evt-1", header(msg, "event_id"))
	assert.Equal(t, SchemaVersion, header(msg, "schema_version"))

	var decoded CustomerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, []int64{102, 103}, decoded.CustomerIDs)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestProducer_KeyFallsBackToFirstCustomer(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCustomerEvents(context.Background(),
		&CustomerEvent{EventType: "customer.archived", CustomerIDs: []int64{7, 8}},
		&CustomerEvent{EventType: "customer.archived"},
	))
	require.Len(t, w.messages, 2)
	assert.Equal(t, "7", string(w.messages[0].Key))
	assert.Equal(t, "0", string(w.messages[1].Key))
}

func TestProducer_Errors(t *testing.T) {
	boom := errors.New("broker down")
	w := &fakeWriter{err: boom}
	p := newTestProducer(w)

	err := p.PublishCustomerEvent(context.Background(), &CustomerEvent{EventType: "customer.deleted"})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, p.PublishCustomerEvents(context.Background()))
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
