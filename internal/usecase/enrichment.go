package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	domsvc "FinResolve/internal/domain/service"
	"FinResolve/internal/service/metrics"
	"FinResolve/internal/service/providers"
	applogger "FinResolve/pkg/logger"

	"golang.org/x/sync/semaphore"
)

// Enrichment outcomes.
const (
	EnrichOK           = "ok"
	EnrichFailed       = "failed"
	EnrichBatchTimeout = "batch_timeout"
)

// TimedStrategy bounds one strategy with its own timeout.
type TimedStrategy struct {
	Strategy domsvc.EnrichmentStrategy
	Timeout  time.Duration
}

// EnrichmentConfig tunes the runner.
type EnrichmentConfig struct {
	TopK          int
	Concurrency   int64
	BatchTimeout  time.Duration
	MinConfidence float64
	Bump          float64
	Cap           float64
}

func DefaultEnrichmentConfig() EnrichmentConfig {
	return EnrichmentConfig{
		TopK:          5,
		Concurrency:   3,
		BatchTimeout:  15 * time.Second,
		MinConfidence: 0.8,
		Bump:          0.2,
		Cap:           0.95,
	}
}

// Enricher fills live market data into the top ranked assets.
type Enricher struct {
	strategies []TimedStrategy
	cfg        EnrichmentConfig
	metrics    drepo.Metrics
	log        *applogger.Logger
}

// NewEnricher runs strategies in the given order; order decides ties in result selection.
func NewEnricher(cfg EnrichmentConfig, m drepo.Metrics, l *applogger.Logger, strategies ...TimedStrategy) *Enricher {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Enricher{strategies: strategies, cfg: cfg, metrics: m, log: l}
}

type enrichResult struct {
	idx   int
	asset models.Candidate
	ok    bool
}

// Enrich returns a copy of assets where the top K that lack price or volume, or are
// weakly matched, carry data from the best strategy result. The batch is bounded by
// BatchTimeout: whatever has not finished by then is returned untouched.
func (e *Enricher) Enrich(ctx context.Context, assets []models.MergedAsset) []models.MergedAsset {
	out := make([]models.MergedAsset, len(assets))
	for i, a := range assets {
		out[i] = models.MergedAsset{Candidate: a.Candidate.Clone(), Conflict: a.Conflict}
	}
	if len(e.strategies) == 0 {
		return out
	}

	var targets []int
	for i := 0; i < len(out) && i < e.cfg.TopK; i++ {
		if out[i].NeedsEnrichment(e.cfg.MinConfidence) {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return out
	}

	start := time.Now()
	defer func() { e.metrics.RecordLatency("enrichment", time.Since(start).Seconds()) }()

	bctx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(e.cfg.Concurrency)
	ch := make(chan enrichResult, len(targets))
	var wg sync.WaitGroup
	for _, i := range targets {
		wg.Add(1)
		go func(idx int, c models.Candidate) {
			defer wg.Done()
			if err := sem.Acquire(bctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			enriched, ok := e.enrichOne(bctx, c)
			ch <- enrichResult{idx: idx, asset: enriched, ok: ok}
		}(i, out[i].Candidate.Clone())
	}
	go func() { wg.Wait(); close(ch) }()

	pending := len(targets)
	for {
		select {
		case r, open := <-ch:
			if !open {
				return out
			}
			pending--
			if r.ok {
				out[r.idx].Candidate = r.asset
				e.metrics.RecordEnrichment(EnrichOK)
			} else {
				e.metrics.RecordEnrichment(EnrichFailed)
			}
		case <-bctx.Done():
			e.log.Warn("enrichment batch timed out",
				applogger.Int("pending", pending),
				applogger.Duration("timeout", e.cfg.BatchTimeout))
			e.metrics.RecordEnrichment(EnrichBatchTimeout)
			return out
		}
	}
}

// enrichOne runs every strategy concurrently against c and applies the best result.
func (e *Enricher) enrichOne(ctx context.Context, c models.Candidate) (models.Candidate, bool) {
	results := make([]*models.Enrichment, len(e.strategies))
	var wg sync.WaitGroup
	for i, s := range e.strategies {
		wg.Add(1)
		go func(i int, s TimedStrategy) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, s.Timeout)
			defer cancel()
			res, err := s.Strategy.Enrich(sctx, c)
			if err != nil {
				if !errors.Is(err, providers.ErrInvalidInput) {
					e.log.Debug("enrichment strategy failed",
						applogger.String("strategy", s.Strategy.Name()),
						applogger.String("symbol", c.Symbol),
						applogger.Error(err))
				}
				return
			}
			if res != nil && res.Strategy == "" {
				res.Strategy = s.Strategy.Name()
			}
			results[i] = res
		}(i, s)
	}
	wg.Wait()

	best := selectEnrichment(results)
	if best == nil {
		return c, false
	}
	return applyEnrichment(c, best, e.cfg.Bump, e.cfg.Cap), true
}

// selectEnrichment walks results in strategy order. Only priced results count. The first
// one wins unless a later one adds volume the current best lacks, or adds a market-cap
// rank the best lacks while the best has no volume of its own.
func selectEnrichment(results []*models.Enrichment) *models.Enrichment {
	var best *models.Enrichment
	for _, r := range results {
		if r == nil || r.Price == nil {
			continue
		}
		switch {
		case best == nil:
			best = r
		case r.Volume != nil && best.Volume == nil:
			best = r
		case r.MarketCapRank != nil && best.MarketCapRank == nil && (best.Volume == nil || r.Volume != nil):
			best = r
		}
	}
	return best
}

// applyEnrichment fills c from e. Confidence rises by bump, up to ceiling, and never drops.
func applyEnrichment(c models.Candidate, e *models.Enrichment, bump, ceiling float64) models.Candidate {
	out := c.Clone()
	setFloat := func(dst **float64, src *float64) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	setFloat(&out.Price, e.Price)
	setFloat(&out.Change24h, e.Change24h)
	setFloat(&out.Volume, e.Volume)
	setFloat(&out.MarketCap, e.MarketCap)
	setFloat(&out.Liquidity, e.Liquidity)
	if e.MarketCapRank != nil {
		out.MarketCapRank = models.Int(*e.MarketCapRank)
	}
	if e.Holders != nil {
		out.Holders = models.Int64(*e.Holders)
	}
	out.Confidence = math.Max(c.Confidence, math.Min(ceiling, c.Confidence+bump))
	out.EnrichmentSuccess = true
	out.EnrichmentStrategy = e.Strategy
	return out
}
