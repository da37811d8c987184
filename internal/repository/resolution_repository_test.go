package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"FinResolve/internal/domain/models"
	pkgkafka "FinResolve/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeConn struct {
	execs   []execCall
	execErr error
	pingErr error
}

func (c *fakeConn) ExecContext(_ context.Context, q string, args ...interface{}) (sql.Result, error) {
	if c.execErr != nil {
		return nil, c.execErr
	}
	c.execs = append(c.execs, execCall{query: q, args: args})
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("connection refused")
}

func (c *fakeConn) PingContext(context.Context) error { return c.pingErr }

func sampleEvent(id, sym string) *models.ResolutionEvent {
	return &models.ResolutionEvent{
		ID:          id,
		Query:       "price of " + sym,
		Terms:       []string{sym},
		Outcome:     models.ResolutionAsset,
		ResultCount: 1,
		TopSymbol:   sym,
		TopSource:   models.SourceQuote,
		Symbols:     []string{sym},
		DurationMs:  42,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestClickHouseEventStore_Store(t *testing.T) {
	conn := &fakeConn{}
	store := NewClickHouseEventStore(conn, "")

	require.NoError(t, store.Store(context.Background(), sampleEvent("e1", "AAPL")))
	require.Len(t, conn.execs, 1)
	assert.True(t, strings.HasPrefix(conn.execs[0].query, "INSERT INTO resolution_events (id, created_at"))
	args := conn.execs[0].args
	require.Len(t, args, 12)
	assert.Equal(t, "e1", args[0])
	assert.Equal(t, "asset", args[4])
	assert.Equal(t, uint16(1), args[5])
	assert.Equal(t, uint32(42), args[11])
}

func TestClickHouseEventStore_StoreBatchChunks(t *testing.T) {
	conn := &fakeConn{}
	store := NewClickHouseEventStore(conn, "events")
	store.chunkSize = 3

	evs := []*models.ResolutionEvent{
		sampleEvent("a", "AAPL"), nil, sampleEvent("b", "BTC"),
		{Query: "no id"}, {ID: "c", Outcome: models.ResolutionEmpty},
	}
	require.NoError(t, store.StoreBatch(context.Background(), evs))

	require.Len(t, conn.execs, 2)
	assert.Equal(t, 2, strings.Count(conn.execs[0].query, "(?, ?"))
	assert.Len(t, conn.execs[1].args, 12)
	assert.Equal(t, "c", conn.execs[1].args[0])
	assert.Equal(t, []string{}, conn.execs[1].args[3], "nil terms stored as empty array")

	assert.NoError(t, store.StoreBatch(context.Background(), nil))
	assert.Len(t, conn.execs, 2)
}

func TestClickHouseEventStore_Errors(t *testing.T) {
	conn := &fakeConn{execErr: errors.New("table missing"), pingErr: errors.New("down")}
	store := NewClickHouseEventStore(conn, "")

	assert.ErrorContains(t, store.Store(context.Background(), sampleEvent("e1", "AAPL")), "insert 1 events")
	assert.Error(t, store.Health(context.Background()))
	_, err := store.Query(context.Background(), "aapl", time.Time{}, 0)
	assert.ErrorContains(t, err, "query events")
	assert.NoError(t, store.Close())
}

func TestEventSchema(t *testing.T) {
	stmts := EventSchema("finresolve")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "finresolve.resolution_events")
	assert.Contains(t, stmts[1], "symbols        Array(String)")
}

type memWriter struct{ msgs []kafka.Message }

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestKafkaEventPublisher(t *testing.T) {
	w := &memWriter{}
	pub := NewKafkaEventPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "asset-resolutions")

	require.NoError(t, pub.Publish(context.Background(), sampleEvent("e1", "AAPL")))
	require.NoError(t, pub.PublishBatch(context.Background(), []*models.ResolutionEvent{
		nil, {ID: "e2", Outcome: models.ResolutionEmpty},
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "asset-resolutions", w.msgs[0].Topic)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))
	assert.Equal(t, "e2", string(w.msgs[1].Key))

	var got models.ResolutionEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "e1", got.ID)
	assert.NoError(t, pub.Close())
}

func TestKafkaLogPublisher(t *testing.T) {
	w := &memWriter{}
	pub := NewKafkaLogPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"))

	require.NoError(t, pub.PublishMessage(context.Background(), "logs", []string{"a"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "logs", w.msgs[0].Topic)
	assert.Nil(t, w.msgs[0].Key)
}
