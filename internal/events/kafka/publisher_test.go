package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/khata-ledger/internal/models/events"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, nil)

	event := events.TransactionRecorded{
		TransactionID: "t1",
		CustomerID:    "c1",
		Type:          "given",
		Amount:        decimal.NewFromInt(100),
		NetBalance:    decimal.NewFromInt(-100),
		OccurredAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), events.TransactionRecordedTopic, "c1", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, events.TransactionRecordedTopic, msg.Topic)
	assert.Equal(t, "c1", string(msg.Key))
	assert.True(t, w.deadline, "publish must be time bounded")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "t1", decoded["transaction_id"])
	assert.Equal(t, "given", decoded["type"])
	assert.Equal(t, "100", decoded["amount"])
	assert.Equal(t, "-100", decoded["net_balance"])
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := newPublisher(w, nil)

	err := p.Publish(context.Background(), "topic", "k", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
}

func TestPublisher_EncodeError(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, nil)

	err := p.Publish(context.Background(), "topic", "k", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newPublisher(w, nil).Close())
	assert.True(t, w.closed)
}
