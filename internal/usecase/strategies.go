package usecase

import (
	"context"
	"strings"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	domsvc "FinResolve/internal/domain/service"
	icache "FinResolve/internal/service/cache"
)

// Strategy names reported in EnrichmentStrategy.
const (
	StrategyQuote     = "quote"
	StrategyMetadata  = "metadata"
	StrategyOnChain   = "onchain_stats"
	StrategyWarmCache = "warm_cache"
)

// enrichmentFrom copies the live market fields of a provider candidate.
func enrichmentFrom(strategy string, c *models.Candidate) *models.Enrichment {
	if c == nil {
		return nil
	}
	return &models.Enrichment{
		Strategy:      strategy,
		Price:         c.Price,
		Change24h:     c.Change24h,
		Volume:        c.Volume,
		MarketCap:     c.MarketCap,
		MarketCapRank: c.MarketCapRank,
		Holders:       c.Holders,
		Liquidity:     c.Liquidity,
	}
}

// QuoteStrategy asks the quote provider for the symbol.
type QuoteStrategy struct {
	quotes drepo.QuoteProvider
}

var _ domsvc.EnrichmentStrategy = (*QuoteStrategy)(nil)

func NewQuoteStrategy(q drepo.QuoteProvider) *QuoteStrategy { return &QuoteStrategy{quotes: q} }

func (s *QuoteStrategy) Name() string { return StrategyQuote }

func (s *QuoteStrategy) Enrich(ctx context.Context, c models.Candidate) (*models.Enrichment, error) {
	q, err := s.quotes.QuoteBySymbol(ctx, c.Symbol, c.Type)
	if err != nil {
		return nil, err
	}
	return enrichmentFrom(s.Name(), q), nil
}

// MetadataStrategy looks the token up by contract address when it has one, else by
// provider id. Candidates with neither have nothing to look up.
type MetadataStrategy struct {
	meta      drepo.TokenMetadataProvider
	contracts drepo.ContractProvider
}

var _ domsvc.EnrichmentStrategy = (*MetadataStrategy)(nil)

func NewMetadataStrategy(meta drepo.TokenMetadataProvider, contracts drepo.ContractProvider) *MetadataStrategy {
	return &MetadataStrategy{meta: meta, contracts: contracts}
}

func (s *MetadataStrategy) Name() string { return StrategyMetadata }

func (s *MetadataStrategy) Enrich(ctx context.Context, c models.Candidate) (*models.Enrichment, error) {
	if c.ContractAddress != "" && s.contracts != nil {
		found, err := s.contracts.LookupByContract(ctx, c.Chain, c.ContractAddress)
		if err != nil {
			return nil, err
		}
		return enrichmentFrom(s.Name(), found), nil
	}
	if c.ProviderID == "" || s.meta == nil || c.Type == models.AssetStock {
		return nil, nil
	}
	found, err := s.meta.LookupByID(ctx, c.ProviderID)
	if err != nil {
		return nil, err
	}
	return enrichmentFrom(s.Name(), found), nil
}

// OnChainStrategy reads holder, liquidity and volume data for tokens.
type OnChainStrategy struct {
	onchain drepo.OnChainProvider
}

var _ domsvc.EnrichmentStrategy = (*OnChainStrategy)(nil)

func NewOnChainStrategy(p drepo.OnChainProvider) *OnChainStrategy { return &OnChainStrategy{onchain: p} }

func (s *OnChainStrategy) Name() string { return StrategyOnChain }

func (s *OnChainStrategy) Enrich(ctx context.Context, c models.Candidate) (*models.Enrichment, error) {
	if c.Type == models.AssetStock {
		return nil, nil
	}
	found, err := s.onchain.TokenStats(ctx, c.Chain, c.Symbol, c.ContractAddress)
	if err != nil {
		return nil, err
	}
	return enrichmentFrom(s.Name(), found), nil
}

// WarmCacheStrategy answers from memory: the top-token snapshot and the live ticker book.
// A live tick overrides the snapshot price.
type WarmCacheStrategy struct {
	tokens    *icache.TokenList
	book      drepo.TickerBook
	threshold float64
}

var _ domsvc.EnrichmentStrategy = (*WarmCacheStrategy)(nil)

// NewWarmCacheStrategy accepts a nil token list or book.
func NewWarmCacheStrategy(tokens *icache.TokenList, book drepo.TickerBook) *WarmCacheStrategy {
	return &WarmCacheStrategy{tokens: tokens, book: book, threshold: 0.8}
}

func (s *WarmCacheStrategy) Name() string { return StrategyWarmCache }

func (s *WarmCacheStrategy) Enrich(ctx context.Context, c models.Candidate) (*models.Enrichment, error) {
	var out *models.Enrichment
	if s.tokens != nil && c.Type != models.AssetStock {
		matches, err := s.tokens.Match(ctx, c.Symbol, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 && matches[0].Confidence > s.threshold && strings.EqualFold(matches[0].Symbol, c.Symbol) {
			out = enrichmentFrom(s.Name(), &matches[0])
		}
	}
	if s.book != nil {
		if tick, ok := s.book.Last(c.Symbol); ok && tick.Price > 0 {
			if out == nil {
				out = &models.Enrichment{Strategy: s.Name()}
			}
			out.Price = models.Float(tick.Price)
		}
	}
	return out, nil
}
