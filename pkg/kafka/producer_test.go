package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_PublishEncodesValues(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "events", []byte("AAPL"), map[string]int{"n": 1}))
	require.NoError(t, p.PublishBatch(context.Background(), "events", []Message{
		{Value: "raw"},
		{Value: []byte("bytes")},
	}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "events", w.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "bytes", string(w.msgs[2].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_Errors(t *testing.T) {
	p := NewProducerWithWriter(&memWriter{err: errors.New("leader not available")}, "gzip")
	err := p.Publish(context.Background(), "events", nil, "x")
	assert.ErrorContains(t, err, "kafka write events")

	err = p.Publish(context.Background(), "events", nil, make(chan int))
	assert.ErrorContains(t, err, "marshal value")

	assert.NoError(t, p.PublishBatch(context.Background(), "events", nil))

	_, err = NewProducer()
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression(""))
}
