package usecase

import (
	"context"
	"errors"
	"sync"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/finnhub"
	imetrics "FinResolve/internal/service/metrics"
	applogger "FinResolve/pkg/logger"
)

var errStreamClosed = errors.New("market stream closed")

// TickerCollector keeps a ticker book filled from a market stream so enrichment can
// read live prices without a REST round trip.
type TickerCollector struct {
	stream  drepo.MarketStream
	book    *finnhub.Book
	metrics drepo.Metrics
	log     *applogger.Logger
	wg      sync.WaitGroup
}

// NewTickerCollector creates a collector writing into book.
func NewTickerCollector(stream drepo.MarketStream, book *finnhub.Book, metrics drepo.Metrics, l *applogger.Logger) *TickerCollector {
	if metrics == nil {
		metrics = imetrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TickerCollector{stream: stream, book: book, metrics: metrics, log: l}
}

// IsConnected returns true if the market stream is connected.
func (c *TickerCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Book returns the ticker book the collector fills.
func (c *TickerCollector) Book() *finnhub.Book { return c.book }

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *TickerCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx)
	}()
	return nil
}

func (c *TickerCollector) consume(ctx context.Context) {
	for {
		tickCh, errCh := c.stream.Read(ctx)
		err := c.drain(ctx, tickCh, errCh)
		if err == nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("market stream dropped, reconnecting", applogger.Error(err))
		if err := c.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("market stream reconnect failed", applogger.Error(err))
		}
	}
}

// drain consumes one Read session. It returns nil when ctx ends and the stream error otherwise.
func (c *TickerCollector) drain(ctx context.Context, tickCh <-chan models.Tick, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
			errCh = nil
		case t, ok := <-tickCh:
			if !ok {
				tickCh = nil
				break
			}
			c.book.Put(t)
		}
		if tickCh == nil && errCh == nil {
			if ctx.Err() != nil {
				return nil
			}
			return errStreamClosed
		}
	}
}

// Shutdown closes the stream and waits for the consumer to exit.
func (c *TickerCollector) Shutdown(ctx context.Context) error {
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
