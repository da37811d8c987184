package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	mid "FinResolve/internal/middleware"
	icache "FinResolve/internal/service/cache"
	"FinResolve/internal/usecase"
	pkgcache "FinResolve/pkg/cache"
	pkgch "FinResolve/pkg/clickhouse"
	"FinResolve/pkg/config"
	xhttp "FinResolve/pkg/http"
	pkgkafka "FinResolve/pkg/kafka"
	applogger "FinResolve/pkg/logger"
)

// App owns the resolver service lifecycle: HTTP, the live ticker feed, event delivery
// and the infrastructure clients behind them.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server

	collector *usecase.TickerCollector
	pipeline  *mid.EventPipeline
	recorder  *usecase.EventRecorder
	tokens    *icache.TokenList

	chClient *pkgch.Client
	producer *pkgkafka.Producer
	cache    pkgcache.Service
}

// New creates an App around an already configured HTTP server.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, httpServer: srv}
}

// SetCollector attaches the live ticker feed; nil leaves it off.
func (a *App) SetCollector(c *usecase.TickerCollector) { a.collector = c }

// SetEvents attaches background event delivery.
func (a *App) SetEvents(p *mid.EventPipeline, r *usecase.EventRecorder) {
	a.pipeline = p
	a.recorder = r
}

// SetTokenList enables the startup warm-up of the top-token snapshot.
func (a *App) SetTokenList(t *icache.TokenList) { a.tokens = t }

// SetInfra hands over clients the App must close on shutdown. Any may be nil.
func (a *App) SetInfra(ch *pkgch.Client, producer *pkgkafka.Producer, cache pkgcache.Service) {
	a.chClient = ch
	a.producer = producer
	a.cache = cache
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.shutdown(shutdownCtx)
}

func (a *App) start(ctx context.Context) error {
	if a.tokens != nil {
		warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.tokens.Refresh(warmCtx); err != nil {
			// Match refreshes lazily, so a cold start only costs the first crypto query.
			a.log.Warn("token list warm-up failed", applogger.Error(err))
		} else {
			a.log.Info("token list loaded", applogger.Int("tokens", a.tokens.Len()))
		}
		cancel()
	}

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.log.Info("event pipeline started", applogger.String("backend", a.recorder.Backend()))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("ticker collector start failed, continuing without live prices", applogger.Error(err))
			a.collector = nil
		} else {
			a.log.Info("ticker collector started", applogger.Strings("symbols", a.cfg.Providers.Finnhub.Symbols))
		}
	}

	return a.httpServer.Start()
}

// shutdown stops producers of work first, then the sinks they feed.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("ticker collector stop error", applogger.Error(err))
		}
	}
	if a.pipeline != nil {
		if n := a.pipeline.Pending(); n > 0 {
			a.log.Warn("discarding queued resolution events", applogger.Int("pending", n))
		}
		a.pipeline.Stop()
	}
	// Flush aggregated error logs while the producer is still open.
	a.log.RemoveCollector()
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.producer != nil && (a.recorder == nil || a.recorder.Backend() != usecase.BackendKafka) {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
