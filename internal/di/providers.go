package di

import (
	"context"
	"fmt"
	"time"

	drepo "FinResolve/internal/domain/repository"
	domsvc "FinResolve/internal/domain/service"
	"FinResolve/internal/handler/api"
	mid "FinResolve/internal/middleware"
	internalrepo "FinResolve/internal/repository"
	"FinResolve/internal/service/breaker"
	icache "FinResolve/internal/service/cache"
	"FinResolve/internal/service/finnhub"
	imetrics "FinResolve/internal/service/metrics"
	"FinResolve/internal/service/providers"
	"FinResolve/internal/service/providers/coingecko"
	"FinResolve/internal/service/providers/fmp"
	"FinResolve/internal/service/providers/moralis"
	"FinResolve/internal/service/ratelimit"
	"FinResolve/internal/services/scoring"
	"FinResolve/internal/usecase"
	pkgcache "FinResolve/pkg/cache"
	pkgch "FinResolve/pkg/clickhouse"
	"FinResolve/pkg/config"
	xhttp "FinResolve/pkg/http"
	pkgkafka "FinResolve/pkg/kafka"
	applogger "FinResolve/pkg/logger"
	"FinResolve/pkg/metrics"
	"FinResolve/pkg/server"
)

// ProvideLogger builds the application logger. Error logs are also aggregated to Kafka
// when log.collect_topic is set and a producer exists.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.CollectTopic != "" && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   time.Minute,
			CountThreshold: 100,
			Topic:          cfg.Log.CollectTopic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus recorder, or a no-op one when metrics are off.
func ProvideMetrics(cfg *config.Config) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return imetrics.Nop{}
	}
	return metrics.New()
}

// ProvideCache creates the provider response cache for cache.backend.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	c := cfg.Cache
	if c.Backend == "memory" {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(c.MemoryMaxSize)), nil
	}

	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(c.Redis.Host),
		pkgcache.WithRedisPort(c.Redis.Port),
		pkgcache.WithRedisPassword(c.Redis.Password),
		pkgcache.WithRedisDB(c.Redis.DB),
		pkgcache.WithRedisPrefix(c.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if c.Backend == "redis" {
		return redisCache, nil
	}
	return pkgcache.NewLayeredCache(redisCache,
		pkgcache.WithLayeredMemorySize(c.MemoryMaxSize),
		pkgcache.WithLayeredL1TTL(time.Minute),
	), nil
}

// ProvideRateLimiter configures one token bucket per provider.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	l := ratelimit.New(ratelimit.Limit{PerSecond: 5, Burst: 5})
	for key, p := range map[string]config.Provider{
		"fmp":       cfg.Providers.FMP,
		"coingecko": cfg.Providers.CoinGecko,
		"moralis":   cfg.Providers.Moralis,
	} {
		l.Configure(key, ratelimit.Limit{PerSecond: p.RatePerSec, Burst: p.Burst})
	}
	return l
}

func baseOptions(p config.Provider, lim *ratelimit.Limiter, c pkgcache.Service, m drepo.Metrics, l *applogger.Logger) []providers.BaseOption {
	return []providers.BaseOption{
		providers.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(p.Timeout), xhttp.WithUserAgent("finresolve/1.0"))),
		providers.WithFetchTimeout(p.Timeout),
		providers.WithLimiter(lim),
		providers.WithCache(c),
		providers.WithMetrics(m),
		providers.WithLogger(l),
	}
}

// ProvideFMP returns nil without an API key.
func ProvideFMP(cfg *config.Config, lim *ratelimit.Limiter, c pkgcache.Service, m drepo.Metrics, l *applogger.Logger) *fmp.Client {
	p := cfg.Providers.FMP
	if p.APIKey == "" {
		l.Warn("fmp api key missing, stock search disabled")
		return nil
	}
	return fmp.New(p.BaseURL, p.APIKey, baseOptions(p, lim, c, m, l), fmp.WithCacheTTL(cfg.Cache.TTL.Price))
}

// ProvideCoinGecko works without a key on the public plan.
func ProvideCoinGecko(cfg *config.Config, lim *ratelimit.Limiter, c pkgcache.Service, m drepo.Metrics, l *applogger.Logger) *coingecko.Client {
	p := cfg.Providers.CoinGecko
	return coingecko.New(p.BaseURL, p.APIKey, baseOptions(p, lim, c, m, l),
		coingecko.WithTTLs(cfg.Cache.TTL.Search, cfg.Cache.TTL.Price, cfg.Cache.TTL.TopTokens))
}

// ProvideMoralis returns nil without an API key.
func ProvideMoralis(cfg *config.Config, lim *ratelimit.Limiter, c pkgcache.Service, m drepo.Metrics, l *applogger.Logger) *moralis.Client {
	p := cfg.Providers.Moralis
	if p.APIKey == "" {
		l.Warn("moralis api key missing, on-chain search disabled")
		return nil
	}
	return moralis.New(p.BaseURL, p.APIKey, baseOptions(p, lim, c, m, l),
		moralis.WithCacheTTL(cfg.Cache.TTL.Metadata),
		moralis.WithDefaultChains(providers.ChainEthereum, providers.ChainBSC, providers.ChainPolygon))
}

func ProvideKnownAssets(cfg *config.Config) *icache.KnownAssets {
	return icache.NewKnownAssets(
		icache.WithCapacity(cfg.KnownAssets.Capacity),
		icache.WithTTL(cfg.KnownAssets.TTL),
	)
}

// ProvideTokenList returns nil when the warm token list is disabled.
func ProvideTokenList(cfg *config.Config, cg *coingecko.Client) *icache.TokenList {
	if !cfg.TokenList.Enabled || cg == nil {
		return nil
	}
	return icache.NewTokenList(cg, cfg.TokenList.Size, cfg.TokenList.TTL)
}

func ProvideBreaker(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) *breaker.Breaker {
	return breaker.New("merge",
		breaker.WithThreshold(cfg.Breaker.FailureThreshold),
		breaker.WithCooldown(cfg.Breaker.Cooldown),
		breaker.WithMetrics(m),
		breaker.WithLogger(l),
	)
}

func ProvideMergeEngine(cfg *config.Config) (*usecase.MergeEngine, error) {
	prio, err := usecase.ParseSourcePriority(cfg.Search.SourcePriority)
	if err != nil {
		return nil, fmt.Errorf("search.source_priority: %w", err)
	}
	return usecase.NewMergeEngine(prio), nil
}

// ProvideOrchestrator registers only the providers that are configured.
func ProvideOrchestrator(
	cfg *config.Config,
	known *icache.KnownAssets,
	br *breaker.Breaker,
	merger *usecase.MergeEngine,
	quotes *fmp.Client,
	cg *coingecko.Client,
	onchain *moralis.Client,
	tokens *icache.TokenList,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Orchestrator {
	s := cfg.Search
	sc := usecase.DefaultSearchConfig()
	sc.Timeouts = usecase.SearchTimeouts{
		Quote:    s.QuoteTimeout,
		Pair:     s.PairTimeout,
		Name:     s.NameTimeout,
		OnChain:  s.OnChainTimeout,
		Contract: s.ContractTimeout,
	}
	if len(s.ChainTimeouts) > 0 {
		sc.Timeouts.ContractByChain = make(map[string]time.Duration, len(s.ChainTimeouts))
		for chain, d := range s.ChainTimeouts {
			sc.Timeouts.ContractByChain[providers.NormalizeChain(chain)] = d
		}
	}
	sc.MaxParallel = s.MaxParallel
	sc.FastPathThreshold = s.FastPathThreshold
	sc.FuzzyThreshold = s.FuzzyThreshold
	sc.MaxResults = s.MaxResults
	sc.HighConfidence = s.HighConfidence

	opts := []usecase.OrchestratorOption{
		usecase.WithMerger(merger),
		usecase.WithSearchConfig(sc),
		usecase.WithOrchestratorMetrics(m),
		usecase.WithOrchestratorLogger(l),
	}
	if quotes != nil {
		opts = append(opts, usecase.WithQuoteProvider(quotes))
	}
	if cg != nil {
		opts = append(opts, usecase.WithTokenMetadataProvider(cg), usecase.WithContractProvider(cg))
	}
	if onchain != nil {
		opts = append(opts, usecase.WithOnChainProvider(onchain))
	}
	if tokens != nil {
		opts = append(opts, usecase.WithTokenList(tokens))
	}
	return usecase.NewOrchestrator(known, br, opts...)
}

func ProvideTickerBook() *finnhub.Book { return finnhub.NewBook() }

// ProvideFinnhubStream returns nil when the live feed is disabled.
func ProvideFinnhubStream(cfg *config.Config, l *applogger.Logger) drepo.MarketStream {
	f := cfg.Providers.Finnhub
	if !f.Enabled {
		return nil
	}
	return finnhub.New(f.APIKey, f.WebSocketURL, f.Symbols, f.ReconnectDelay, f.PingInterval, l)
}

func ProvideTickerCollector(stream drepo.MarketStream, book *finnhub.Book, m drepo.Metrics, l *applogger.Logger) *usecase.TickerCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewTickerCollector(stream, book, m, l)
}

// ProvideEnricher orders strategies quote, metadata, on-chain, warm cache.
func ProvideEnricher(
	cfg *config.Config,
	quotes *fmp.Client,
	cg *coingecko.Client,
	onchain *moralis.Client,
	tokens *icache.TokenList,
	book *finnhub.Book,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Enricher {
	e := cfg.Enrichment
	var strategies []usecase.TimedStrategy
	if quotes != nil {
		strategies = append(strategies, usecase.TimedStrategy{Strategy: usecase.NewQuoteStrategy(quotes), Timeout: e.QuoteTimeout})
	}
	if cg != nil {
		strategies = append(strategies, usecase.TimedStrategy{Strategy: usecase.NewMetadataStrategy(cg, cg), Timeout: e.MetadataTimeout})
	}
	if onchain != nil {
		strategies = append(strategies, usecase.TimedStrategy{Strategy: usecase.NewOnChainStrategy(onchain), Timeout: e.OnChainTimeout})
	}
	if tokens != nil {
		strategies = append(strategies, usecase.TimedStrategy{Strategy: usecase.NewWarmCacheStrategy(tokens, book), Timeout: e.CacheTimeout})
	}

	return usecase.NewEnricher(usecase.EnrichmentConfig{
		TopK:          e.TopK,
		Concurrency:   int64(e.Concurrency),
		BatchTimeout:  e.BatchTimeout,
		MinConfidence: e.MinConfidence,
		Bump:          e.ConfidenceBump,
		Cap:           e.ConfidenceCap,
	}, m, l, strategies...)
}

// ProvideScorer picks the relevance scorer named by disambiguation.scorer.
func ProvideScorer(cfg *config.Config) (domsvc.RelevanceScorer, error) {
	d := cfg.Disambiguation
	switch d.Scorer {
	case "llm":
		s, err := scoring.NewOpenAIScorer(d.LLM.APIKey, d.LLM.Model, d.LLM.BaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "http":
		return scoring.NewHTTPScorer(d.ServiceURL, d.Timeout), nil
	default:
		return scoring.NewRuleScorer(), nil
	}
}

func ProvideDisambiguator(cfg *config.Config, scorer domsvc.RelevanceScorer, l *applogger.Logger) *usecase.Disambiguator {
	d := cfg.Disambiguation
	return usecase.NewDisambiguator(scorer, usecase.DisambiguationConfig{
		MaxScored:     d.MaxScored,
		MaxOptions:    d.MaxOptions,
		AutoSelect:    d.AutoSelectScore,
		Margin:        d.AutoSelectLead,
		ScorerTimeout: d.Timeout,
	}, l)
}

// ProvideKafkaProducer returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient connects and creates the events table only for the clickhouse backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Events.Backend != usecase.BackendClickHouse {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.EventSchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideEventStore(client *pkgch.Client) drepo.EventStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseEventStore(client.DB(), client.Database()+"."+internalrepo.EventsTable)
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.EventPublisher {
	if producer == nil || cfg.Events.Backend != usecase.BackendKafka {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

func ProvideEventRecorder(cfg *config.Config, pub drepo.EventPublisher, store drepo.EventStore, m drepo.Metrics) *usecase.EventRecorder {
	return usecase.NewEventRecorder(pub, store, m, cfg.Events.Backend)
}

// ProvideEventPipeline returns nil for the none backend, so resolutions emit nothing.
func ProvideEventPipeline(cfg *config.Config, rec *usecase.EventRecorder, m drepo.Metrics) *mid.EventPipeline {
	if rec.Backend() == usecase.BackendNone {
		return nil
	}
	return mid.NewEventPipeline(rec, m,
		mid.WithMaxRPS(cfg.Events.MaxRPS),
		mid.WithBufferSize(cfg.Events.BufferSize),
	)
}

func ProvideResolver(
	orch *usecase.Orchestrator,
	enricher *usecase.Enricher,
	disamb *usecase.Disambiguator,
	pipeline *mid.EventPipeline,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Resolver {
	opts := []usecase.ResolverOption{
		usecase.WithEnricher(enricher),
		usecase.WithDisambiguator(disamb),
		usecase.WithResolverMetrics(m),
		usecase.WithResolverLogger(l),
	}
	if pipeline != nil {
		opts = append(opts, usecase.WithEventSink(pipeline))
	}
	return usecase.NewResolver(orch, opts...)
}

func ProvideResolveHandler(l *applogger.Logger, res *usecase.Resolver, store drepo.EventStore, collector *usecase.TickerCollector) *api.ResolveEchoHandler {
	h := api.NewResolveEchoHandler(l, res, store)
	if collector != nil {
		h.SetStream(collector)
	}
	return h
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ResolveEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the application and hands it every closable client.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	collector *usecase.TickerCollector,
	pipeline *mid.EventPipeline,
	rec *usecase.EventRecorder,
	tokens *icache.TokenList,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	c pkgcache.Service,
) *server.App {
	app := server.New(cfg, l, srv)
	app.SetCollector(collector)
	if pipeline != nil {
		app.SetEvents(pipeline, rec)
	}
	app.SetTokenList(tokens)
	app.SetInfra(ch, producer, c)
	return app
}

// ProvideCLIResolver builds a resolver that emits no events, for one-shot command line use.
func ProvideCLIResolver(
	orch *usecase.Orchestrator,
	enricher *usecase.Enricher,
	disamb *usecase.Disambiguator,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Resolver {
	return ProvideResolver(orch, enricher, disamb, nil, m, l)
}
