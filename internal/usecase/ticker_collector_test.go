package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinResolve/internal/domain/models"
	"FinResolve/internal/service/finnhub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream hands out one prepared session per Read call.
type scriptedStream struct {
	mu         sync.Mutex
	sessions   [][]models.Tick
	failFirst  error
	reads      int
	reconnects int
	closed     bool
	connectErr error
}

func (s *scriptedStream) Connect(context.Context) error   { return s.connectErr }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }

func (s *scriptedStream) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	s.mu.Lock()
	n := s.reads
	s.reads++
	s.mu.Unlock()

	ticks := make(chan models.Tick, 8)
	errs := make(chan error, 1)
	if n < len(s.sessions) {
		for _, t := range s.sessions[n] {
			ticks <- t
		}
	}
	if n == 0 && s.failFirst != nil {
		errs <- s.failFirst
		return ticks, errs
	}
	go func() {
		<-ctx.Done()
		close(ticks)
		close(errs)
	}()
	return ticks, errs
}

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) IsConnected() bool { return true }

func (s *scriptedStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestTickerCollector_FillsBook(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stream := &scriptedStream{sessions: [][]models.Tick{{
		{Symbol: "BINANCE:BTCUSDT", Price: 64000, Timestamp: ts},
		{Symbol: "AAPL", Price: 190.5, Timestamp: ts},
	}}}
	book := finnhub.NewBook()
	c := NewTickerCollector(stream, book, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())

	require.Eventually(t, func() bool { return book.Len() == 2 }, time.Second, 5*time.Millisecond)
	tick, ok := c.Book().Last("BTC")
	require.True(t, ok)
	assert.Equal(t, 64000.0, tick.Price)

	cancel()
	require.NoError(t, c.Shutdown(context.Background()))
	assert.True(t, stream.closed)
	assert.Zero(t, stream.reconnectCount())
}

func TestTickerCollector_ReconnectsAfterStreamError(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stream := &scriptedStream{
		failFirst: errors.New("websocket: close 1006"),
		sessions: [][]models.Tick{
			nil,
			{{Symbol: "ETH", Price: 3100, Timestamp: ts}},
		},
	}
	book := finnhub.NewBook()
	c := NewTickerCollector(stream, book, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		_, ok := book.Last("ETH")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, stream.reconnectCount())

	cancel()
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestTickerCollector_StartError(t *testing.T) {
	c := NewTickerCollector(&scriptedStream{connectErr: errors.New("dial tcp: refused")}, finnhub.NewBook(), nil, nil)
	assert.ErrorContains(t, c.Start(context.Background()), "refused")
}
