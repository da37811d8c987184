//go:build wireinject
// +build wireinject

package di

import (
	"FinResolve/internal/usecase"
	"FinResolve/pkg/config"
	applogger "FinResolve/pkg/logger"
	"FinResolve/pkg/server"

	"github.com/google/wire"
)

// searchSet builds everything between the providers and the resolver.
var searchSet = wire.NewSet(
	ProvideCache,
	ProvideRateLimiter,
	ProvideFMP,
	ProvideCoinGecko,
	ProvideMoralis,
	ProvideKnownAssets,
	ProvideTokenList,
	ProvideBreaker,
	ProvideMergeEngine,
	ProvideOrchestrator,
	ProvideTickerBook,
	ProvideEnricher,
	ProvideScorer,
	ProvideDisambiguator,
)

// InitializeApp wires the HTTP service.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		searchSet,

		ProvideFinnhubStream,
		ProvideTickerCollector,

		ProvideClickHouseClient,
		ProvideEventStore,
		ProvideEventPublisher,
		ProvideEventRecorder,
		ProvideEventPipeline,

		ProvideResolver,
		ProvideResolveHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeResolver wires a resolver without HTTP, live prices or event delivery.
func InitializeResolver(cfg *config.Config, l *applogger.Logger) (*usecase.Resolver, error) {
	wire.Build(
		ProvideMetrics,
		searchSet,
		ProvideCLIResolver,
	)
	return &usecase.Resolver{}, nil
}
