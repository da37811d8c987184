package usecase

import (
	"context"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/metrics"
	applogger "FinResolve/pkg/logger"

	"github.com/google/uuid"
)

// EventSink receives one audit event per resolution. It must not block.
type EventSink interface {
	Process(ctx context.Context, ev *models.ResolutionEvent) error
}

// Resolver is the caller entrypoint: search, enrich, then disambiguate.
type Resolver struct {
	search  *Orchestrator
	enrich  *Enricher
	disamb  *Disambiguator
	events  EventSink
	metrics drepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

// ResolverOption configures Resolver.
type ResolverOption func(*Resolver)

func WithEnricher(e *Enricher) ResolverOption { return func(r *Resolver) { r.enrich = e } }

func WithDisambiguator(d *Disambiguator) ResolverOption { return func(r *Resolver) { r.disamb = d } }

func WithEventSink(s EventSink) ResolverOption { return func(r *Resolver) { r.events = s } }

func WithResolverMetrics(m drepo.Metrics) ResolverOption { return func(r *Resolver) { r.metrics = m } }

func WithResolverLogger(l *applogger.Logger) ResolverOption { return func(r *Resolver) { r.log = l } }

func NewResolver(search *Orchestrator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		search:  search,
		metrics: metrics.Nop{},
		log:     applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.disamb == nil {
		r.disamb = NewDisambiguator(nil, DefaultDisambiguationConfig(), r.log)
	}
	return r
}

// Orchestrator exposes the search stage.
func (r *Resolver) Orchestrator() *Orchestrator { return r.search }

// ResolveAssets returns the ranked, enriched assets for terms. It never fails; an
// empty slice is the only way to report "nothing found".
func (r *Resolver) ResolveAssets(ctx context.Context, terms []string, query string) []models.MergedAsset {
	assets, _ := r.resolveAssets(ctx, terms, query)
	return assets
}

func (r *Resolver) resolveAssets(ctx context.Context, terms []string, query string) ([]models.MergedAsset, SearchResult) {
	res := r.search.Search(ctx, terms, query)
	assets := res.Assets
	if r.enrich != nil && len(assets) > 0 {
		assets = Rank(r.enrich.Enrich(ctx, assets), 0, 0)
	}
	if assets == nil {
		assets = []models.MergedAsset{}
	}
	return assets, res
}

// Resolve runs ResolveAssets and disambiguates the result. When terms is empty the
// terms are extracted from query.
func (r *Resolver) Resolve(ctx context.Context, terms []string, query string) *models.Resolution {
	start := r.now()
	if len(normalizeTerms(terms)) == 0 {
		terms = PreprocessQuery(query)
	}

	assets, sr := r.resolveAssets(ctx, terms, query)
	out := r.disamb.Disambiguate(ctx, assets, query)

	r.metrics.RecordResolution(string(out.Kind))
	r.metrics.RecordLatency("resolve", time.Since(start).Seconds())
	r.log.Debug("resolved",
		applogger.String("query", query),
		applogger.Strings("terms", terms),
		applogger.String("outcome", string(out.Kind)),
		applogger.Int("results", len(out.Assets)),
		applogger.Bool("breaker_open", sr.BreakerOpen))

	r.emit(ctx, start, terms, query, out, sr)
	return out
}

func (r *Resolver) emit(ctx context.Context, start time.Time, terms []string, query string, out *models.Resolution, sr SearchResult) {
	if r.events == nil {
		return
	}
	ev := &models.ResolutionEvent{
		ID:           uuid.NewString(),
		Query:        query,
		Terms:        terms,
		Outcome:      out.Kind,
		ResultCount:  len(out.Assets),
		BreakerOpen:  sr.BreakerOpen,
		FastPathHits: sr.FastPathHits,
		DurationMs:   r.now().Sub(start).Milliseconds(),
		CreatedAt:    r.now().UTC(),
	}
	top := out.Asset
	if top == nil && len(out.Assets) > 0 {
		top = &out.Assets[0]
	}
	if top != nil {
		ev.TopSymbol, ev.TopSource = top.Symbol, top.Source
	}
	for _, a := range out.Assets {
		ev.Symbols = append(ev.Symbols, a.Symbol)
	}
	if err := r.events.Process(ctx, ev); err != nil {
		r.log.Warn("resolution event not queued", applogger.Error(err), applogger.String("id", ev.ID))
	}
}
