package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/breaker"
	icache "FinResolve/internal/service/cache"
	"FinResolve/internal/service/metrics"
	"FinResolve/internal/service/providers"
	applogger "FinResolve/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// SearchTimeouts bounds each search route.
type SearchTimeouts struct {
	Quote    time.Duration
	Pair     time.Duration
	Name     time.Duration
	OnChain  time.Duration
	Contract time.Duration

	// ContractByChain overrides Contract for individual chains.
	ContractByChain map[string]time.Duration
}

// SearchConfig tunes the orchestrator.
type SearchConfig struct {
	Timeouts          SearchTimeouts
	MaxParallel       int
	FastPathThreshold float64
	FastPathLimit     int
	FuzzyThreshold    float64
	FuzzyLimit        int
	MaxResults        int
	HighConfidence    float64
}

// DefaultSearchConfig returns the stock tuning.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Timeouts: SearchTimeouts{
			Quote:    1500 * time.Millisecond,
			Pair:     1500 * time.Millisecond,
			Name:     2 * time.Second,
			OnChain:  2 * time.Second,
			Contract: time.Second,
		},
		MaxParallel:       16,
		FastPathThreshold: 0.9,
		FastPathLimit:     5,
		FuzzyThreshold:    0.9,
		FuzzyLimit:        3,
		MaxResults:        10,
		HighConfidence:    0.8,
	}
}

// SearchResult is the orchestrator output plus what happened along the way.
type SearchResult struct {
	Assets       []models.MergedAsset
	FastPathHits int
	Degraded     bool // merge bypassed: breaker open or merge failed
	BreakerOpen  bool
}

// Orchestrator fans search terms out to every provider route, merges the results behind
// the circuit breaker and ranks them. Any provider may be nil, which disables its routes.
type Orchestrator struct {
	quotes    drepo.QuoteProvider
	metadata  drepo.TokenMetadataProvider
	contracts drepo.ContractProvider
	onchain   drepo.OnChainProvider
	known     *icache.KnownAssets
	tokens    *icache.TokenList
	merger    Merger
	breaker   *breaker.Breaker
	metrics   drepo.Metrics
	log       *applogger.Logger
	cfg       SearchConfig
}

// OrchestratorOption configures Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithQuoteProvider(p drepo.QuoteProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.quotes = p }
}

func WithTokenMetadataProvider(p drepo.TokenMetadataProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.metadata = p }
}

func WithContractProvider(p drepo.ContractProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.contracts = p }
}

func WithOnChainProvider(p drepo.OnChainProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.onchain = p }
}

// WithTokenList enables the warm token list on the crypto fast path.
func WithTokenList(l *icache.TokenList) OrchestratorOption {
	return func(o *Orchestrator) { o.tokens = l }
}

func WithMerger(m Merger) OrchestratorOption {
	return func(o *Orchestrator) { o.merger = m }
}

func WithSearchConfig(cfg SearchConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.cfg = cfg }
}

func WithOrchestratorMetrics(m drepo.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithOrchestratorLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator builds an orchestrator around the shared known-asset cache and merge breaker.
func NewOrchestrator(known *icache.KnownAssets, br *breaker.Breaker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		known:   known,
		breaker: br,
		merger:  NewMergeEngine(nil),
		metrics: metrics.Nop{},
		log:     applogger.Nop(),
		cfg:     DefaultSearchConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.known == nil {
		o.known = icache.NewKnownAssets()
	}
	if o.breaker == nil {
		o.breaker = breaker.New("merge")
	}
	return o
}

// Known returns the known-asset cache.
func (o *Orchestrator) Known() *icache.KnownAssets { return o.known }

// Breaker returns the merge breaker.
func (o *Orchestrator) Breaker() *breaker.Breaker { return o.breaker }

// route is one provider call for one term.
type route struct {
	name    string
	timeout time.Duration
	call    func(ctx context.Context) ([]models.Candidate, error)
}

// Search resolves terms to ranked assets. It never fails: provider errors, timeouts and
// merge failures degrade the result instead.
func (o *Orchestrator) Search(ctx context.Context, terms []string, query string) SearchResult {
	start := time.Now()
	defer func() { o.metrics.RecordLatency("search", time.Since(start).Seconds()) }()

	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return SearchResult{Assets: []models.MergedAsset{}}
	}

	var res SearchResult
	var pool []models.Candidate
	var pending []string
	crypto := IsCryptoQuery(terms, query)
	for _, term := range terms {
		if hits := o.fastPath(ctx, term, crypto); len(hits) > 0 {
			pool = append(pool, hits...)
			res.FastPathHits++
			continue
		}
		pending = append(pending, term)
	}

	found := o.fanOut(ctx, pending, query)
	seen := make(map[string]struct{}, len(pool)+len(found))
	for _, c := range pool {
		seen[c.Key()] = struct{}{}
	}
	providerCount := 0
	for _, c := range found {
		if _, dup := seen[c.Key()]; dup {
			continue
		}
		seen[c.Key()] = struct{}{}
		if len(c.Sources) == 0 {
			c.Sources = []models.Source{c.Source}
		}
		pool = append(pool, c)
		providerCount++
		o.known.Update(c)
	}

	// Too few provider answers: supplement from the cache, but only with symbols the
	// pool does not hold yet, so a provider hit is not boosted by its own cache echo.
	if len(pending) > 0 && providerCount < 2 {
		have := make(map[string]struct{}, len(pool))
		for _, c := range pool {
			have[strings.ToUpper(c.Symbol)] = struct{}{}
		}
		for _, term := range pending {
			for _, m := range o.known.Lookup(term, o.cfg.FuzzyThreshold, o.cfg.FuzzyLimit) {
				sym := strings.ToUpper(m.Symbol)
				if _, dup := have[sym]; dup {
					continue
				}
				have[sym] = struct{}{}
				pool = append(pool, m)
			}
		}
	}

	if len(pool) == 0 {
		res.Assets = []models.MergedAsset{}
		return res
	}

	var merged []models.MergedAsset
	err := o.breaker.Call(func() error {
		m, err := o.merger.Merge(pool)
		merged = m
		return err
	})
	if err != nil {
		res.Degraded = true
		res.BreakerOpen = errors.Is(err, breaker.ErrOpen)
		if !res.BreakerOpen {
			o.log.Warn("merge failed, returning raw candidates", applogger.Error(err), applogger.Int("candidates", len(pool)))
			o.metrics.RecordError("merge")
		}
		merged = models.Unmerged(pool)
	}

	res.Assets = Rank(merged, o.cfg.MaxResults, o.cfg.HighConfidence)
	return res
}

// fastPath returns cached candidates above the fast-path threshold, or nil.
func (o *Orchestrator) fastPath(ctx context.Context, term string, crypto bool) []models.Candidate {
	var hits []models.Candidate
	for _, c := range o.known.Lookup(term, o.cfg.FastPathThreshold, o.cfg.FastPathLimit) {
		if c.Confidence > o.cfg.FastPathThreshold {
			hits = append(hits, c)
		}
	}
	o.metrics.RecordCacheLookup("known_assets", len(hits) > 0)
	if len(hits) > 0 || !crypto || o.tokens == nil {
		return hits
	}

	matches, err := o.tokens.Match(ctx, term, o.cfg.FastPathLimit)
	if err != nil {
		o.log.Debug("token list unavailable", applogger.Error(err))
		return nil
	}
	for _, c := range matches {
		if c.Confidence > o.cfg.FastPathThreshold {
			hits = append(hits, c)
		}
	}
	o.metrics.RecordCacheLookup("token_list", len(hits) > 0)
	return hits
}

// fanOut runs every route of every term concurrently and returns the candidates in
// term then route order. Failed or timed out routes contribute nothing.
func (o *Orchestrator) fanOut(ctx context.Context, terms []string, query string) []models.Candidate {
	var routes []route
	chains := DetectChains(query)
	for _, term := range terms {
		routes = append(routes, o.routesFor(term, query, chains)...)
	}
	if len(routes) == 0 {
		return nil
	}

	results := make([][]models.Candidate, len(routes))
	g := new(errgroup.Group)
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}
	for i, r := range routes {
		i, r := i, r
		g.Go(func() error {
			results[i] = o.runRoute(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	var out []models.Candidate
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out
}

func (o *Orchestrator) runRoute(ctx context.Context, r route) []models.Candidate {
	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cands, err := r.call(rctx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			o.log.Debug("search route timed out", applogger.String("route", r.name))
		case errors.Is(err, providers.ErrInvalidInput):
		default:
			o.log.Debug("search route failed", applogger.String("route", r.name), applogger.Error(err))
		}
		return nil
	}
	valid := cands[:0:0]
	for _, c := range cands {
		if strings.TrimSpace(c.Symbol) != "" {
			valid = append(valid, c)
		}
	}
	return valid
}

// routesFor lists the provider calls for term. Contract addresses only go to the contract
// routes; stock-looking terms query quotes first, crypto-looking terms token sources first.
func (o *Orchestrator) routesFor(term, query string, chains []string) []route {
	t := o.cfg.Timeouts
	if providers.IsContractAddress(term) {
		return o.contractRoutes(term, chains)
	}

	var quote, pair, name, onchain []route
	if o.quotes != nil {
		quote = append(quote, route{name: "quote", timeout: t.Quote, call: func(ctx context.Context) ([]models.Candidate, error) {
			return o.quotes.SearchByTerm(ctx, term)
		}})
		pair = append(pair, route{name: "usd_pair", timeout: t.Pair, call: func(ctx context.Context) ([]models.Candidate, error) {
			return o.quotes.SearchUSDPair(ctx, term)
		}})
	}
	if o.metadata != nil {
		name = append(name, route{name: "name", timeout: t.Name, call: func(ctx context.Context) ([]models.Candidate, error) {
			return o.metadata.SearchByTerm(ctx, term)
		}})
	}
	if o.onchain != nil {
		onchain = append(onchain, route{name: "onchain", timeout: t.OnChain, call: func(ctx context.Context) ([]models.Candidate, error) {
			return o.onchain.SearchOnChains(ctx, term, chains)
		}})
	}

	var out []route
	switch Classify(term, query) {
	case HintCrypto:
		out = append(out, name...)
		out = append(out, onchain...)
		out = append(out, pair...)
		out = append(out, quote...)
	default:
		out = append(out, quote...)
		out = append(out, pair...)
		out = append(out, name...)
		out = append(out, onchain...)
	}
	return out
}

func (o *Orchestrator) contractRoutes(address string, chains []string) []route {
	targets := providers.ContractChains(address, chains, defaultChains)

	lookups := []drepo.ContractProvider{o.contracts}
	if o.onchain != nil {
		lookups = append(lookups, o.onchain)
	}
	var out []route
	for _, p := range lookups {
		if p == nil {
			continue
		}
		for _, chain := range targets {
			p, chain := p, chain
			out = append(out, route{name: "contract:" + chain, timeout: o.contractTimeout(chain), call: func(ctx context.Context) ([]models.Candidate, error) {
				c, err := p.LookupByContract(ctx, chain, address)
				if err != nil || c == nil {
					return nil, err
				}
				return []models.Candidate{*c}, nil
			}})
		}
	}
	return out
}

func (o *Orchestrator) contractTimeout(chain string) time.Duration {
	if d := o.cfg.Timeouts.ContractByChain[chain]; d > 0 {
		return d
	}
	return o.cfg.Timeouts.Contract
}

// normalizeTerms trims terms and drops blanks and case-insensitive duplicates.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
