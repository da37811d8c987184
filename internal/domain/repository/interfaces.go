package repository

import (
	"context"
	"time"

	"FinResolve/internal/domain/models"
)

// TermSearcher is any provider that can be searched by free-text term.
// No data is reported as an empty slice with a nil error.
type TermSearcher interface {
	SearchByTerm(ctx context.Context, term string) ([]models.Candidate, error)
}

// QuoteProvider covers equity and crypto-pair quotes (FMP).
type QuoteProvider interface {
	TermSearcher
	SearchUSDPair(ctx context.Context, term string) ([]models.Candidate, error)
	QuoteBySymbol(ctx context.Context, symbol string, assetType models.AssetType) (*models.Candidate, error)
}

// TokenMetadataProvider covers token search and id-based lookups (CoinGecko).
type TokenMetadataProvider interface {
	TermSearcher
	LookupByID(ctx context.Context, id string) (*models.Candidate, error)
	TopTokens(ctx context.Context, limit int) ([]models.Candidate, error)
}

// ContractProvider resolves a contract address on a given chain.
type ContractProvider interface {
	LookupByContract(ctx context.Context, chain, address string) (*models.Candidate, error)
}

// OnChainProvider covers wallet/holder level token data (Moralis).
// SearchByTerm scans the provider's default chains; SearchOnChains scans the given ones.
type OnChainProvider interface {
	TermSearcher
	ContractProvider
	SearchOnChains(ctx context.Context, term string, chains []string) ([]models.Candidate, error)
	TokenStats(ctx context.Context, chain, symbol, address string) (*models.Candidate, error)
}

// TickerBook exposes the last trade seen on the live stream.
type TickerBook interface {
	Last(symbol string) (models.Tick, bool)
}

// MarketStream is the live trade feed that fills a TickerBook.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher ships resolution events to a message bus.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.ResolutionEvent) error
	PublishBatch(ctx context.Context, evs []*models.ResolutionEvent) error
	Close() error
}

// EventStore persists resolution events for later querying.
type EventStore interface {
	Store(ctx context.Context, ev *models.ResolutionEvent) error
	StoreBatch(ctx context.Context, evs []*models.ResolutionEvent) error
	Query(ctx context.Context, symbol string, since time.Time, limit int) ([]*models.ResolutionEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the observability surface the resolver reports into.
type Metrics interface {
	RecordProviderCall(provider, outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCacheLookup(layer string, hit bool)
	RecordBreakerState(open bool)
	RecordEnrichment(outcome string)
	RecordResolution(outcome string)
	RecordEventSent(backend string)
}
