package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinResolve/internal/domain/models"
	icache "FinResolve/internal/service/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timed(s *fakeStrategy, d time.Duration) TimedStrategy {
	return TimedStrategy{Strategy: s, Timeout: d}
}

func TestSelectEnrichment(t *testing.T) {
	priced := &models.Enrichment{Strategy: "a", Price: models.Float(1)}
	withVolume := &models.Enrichment{Strategy: "b", Price: models.Float(2), Volume: models.Float(10)}
	withRank := &models.Enrichment{Strategy: "c", Price: models.Float(3), MarketCapRank: models.Int(4)}
	unpriced := &models.Enrichment{Strategy: "d", Volume: models.Float(99)}

	assert.Nil(t, selectEnrichment([]*models.Enrichment{nil, unpriced}))
	assert.Equal(t, "a", selectEnrichment([]*models.Enrichment{priced, nil}).Strategy)
	assert.Equal(t, "b", selectEnrichment([]*models.Enrichment{priced, withVolume, withRank}).Strategy,
		"rank alone does not displace a result with volume")
	assert.Equal(t, "c", selectEnrichment([]*models.Enrichment{priced, withRank}).Strategy)
	assert.Equal(t, "a", selectEnrichment([]*models.Enrichment{priced, unpriced}).Strategy)
}

func TestApplyEnrichment(t *testing.T) {
	c := models.Candidate{Symbol: "PEPE", Confidence: 0.6, Name: "Pepe"}
	out := applyEnrichment(c, &models.Enrichment{Strategy: StrategyOnChain, Price: models.Float(0.00001),
		Holders: models.Int64(250000)}, 0.2, 0.95)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	assert.True(t, out.EnrichmentSuccess)
	assert.Equal(t, StrategyOnChain, out.EnrichmentStrategy)
	assert.Equal(t, int64(250000), *out.Holders)
	assert.Nil(t, c.Price, "input is not mutated")

	high := models.Candidate{Symbol: "BTC", Confidence: 0.97}
	assert.Equal(t, 0.97, applyEnrichment(high, &models.Enrichment{Price: models.Float(1)}, 0.2, 0.95).Confidence,
		"confidence never drops")
}

func TestEnricher_EnrichesOnlyTopKNeedingData(t *testing.T) {
	s := &fakeStrategy{name: "quote", res: &models.Enrichment{Price: models.Float(10), Volume: models.Float(100)}}
	e := NewEnricher(DefaultEnrichmentConfig(), nil, nil, timed(s, time.Second))

	complete := models.Candidate{Symbol: "AAPL", Confidence: 0.9, Price: models.Float(190), Volume: models.Float(1)}
	var in []models.MergedAsset
	in = append(in, models.MergedAsset{Candidate: complete})
	for _, sym := range []string{"A", "B", "C", "D", "E", "F"} {
		in = append(in, models.MergedAsset{Candidate: models.Candidate{Symbol: sym, Confidence: 0.5}})
	}

	out := e.Enrich(context.Background(), in)
	require.Len(t, out, len(in))
	assert.False(t, out[0].EnrichmentSuccess, "complete assets are left alone")
	for i := 1; i < 5; i++ {
		assert.True(t, out[i].EnrichmentSuccess, out[i].Symbol)
		assert.InDelta(t, 0.7, out[i].Confidence, 1e-9)
		assert.Equal(t, "quote", out[i].EnrichmentStrategy)
	}
	assert.False(t, out[5].EnrichmentSuccess, "only the top five are considered")
	assert.Equal(t, int32(4), s.calls.Load())
	assert.Nil(t, in[1].Price, "input is not mutated")
}

func TestEnricher_StrategyFailureLeavesAssetUnchanged(t *testing.T) {
	bad := &fakeStrategy{name: "quote", err: errors.New("boom")}
	empty := &fakeStrategy{name: "metadata"}
	e := NewEnricher(DefaultEnrichmentConfig(), nil, nil, timed(bad, time.Second), timed(empty, time.Second))

	in := []models.MergedAsset{{Candidate: models.Candidate{Symbol: "XYZ", Confidence: 0.5}}}
	out := e.Enrich(context.Background(), in)
	assert.Equal(t, in, out)
}

func TestEnricher_StrategyTimeout(t *testing.T) {
	slow := &fakeStrategy{name: "onchain_stats", delay: time.Second,
		res: &models.Enrichment{Price: models.Float(5), Volume: models.Float(5)}}
	fast := &fakeStrategy{name: "warm_cache", res: &models.Enrichment{Price: models.Float(4)}}
	e := NewEnricher(DefaultEnrichmentConfig(), nil, nil, timed(slow, 20*time.Millisecond), timed(fast, time.Second))

	out := e.Enrich(context.Background(), []models.MergedAsset{{Candidate: models.Candidate{Symbol: "SOL", Confidence: 0.5}}})
	require.True(t, out[0].EnrichmentSuccess)
	assert.Equal(t, "warm_cache", out[0].EnrichmentStrategy)
	assert.Equal(t, 4.0, *out[0].Price)
}

func TestEnricher_BatchTimeoutReturnsPartial(t *testing.T) {
	slow := &fakeStrategy{name: "quote", delay: 2 * time.Second, res: &models.Enrichment{Price: models.Float(1)}}
	cfg := DefaultEnrichmentConfig()
	cfg.BatchTimeout = 50 * time.Millisecond
	e := NewEnricher(cfg, nil, nil, timed(slow, 5*time.Second))

	in := []models.MergedAsset{{Candidate: models.Candidate{Symbol: "SLOW", Confidence: 0.5}}}
	start := time.Now()
	out := e.Enrich(context.Background(), in)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, out[0].EnrichmentSuccess)
	assert.Nil(t, out[0].Price)
}

func TestWarmCacheStrategy(t *testing.T) {
	list := icache.NewTokenList(&topLoader{tokens: []models.Candidate{
		{Symbol: "ETH", Name: "Ethereum", Price: models.Float(3000), Volume: models.Float(1e9), MarketCapRank: models.Int(2)},
	}}, 250, time.Hour)
	book := fakeBook{"ETH": {Symbol: "BINANCE:ETHUSDT", Price: 3100, Timestamp: time.Now()}}
	s := NewWarmCacheStrategy(list, book)

	got, err := s.Enrich(context.Background(), models.Candidate{Symbol: "ETH", Type: models.AssetCrypto})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3100.0, *got.Price, "live tick wins over the snapshot")
	assert.Equal(t, 2, *got.MarketCapRank)

	got, err = s.Enrich(context.Background(), models.Candidate{Symbol: "AAPL", Type: models.AssetStock})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataStrategy(t *testing.T) {
	meta := &fakeMetadata{byID: map[string]*models.Candidate{
		"bitcoin": {Symbol: "BTC", Price: models.Float(65000), MarketCapRank: models.Int(1)},
	}}
	s := NewMetadataStrategy(meta, meta)

	got, err := s.Enrich(context.Background(), models.Candidate{Symbol: "BTC", ProviderID: "bitcoin", Type: models.AssetCrypto})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 65000.0, *got.Price)
	assert.Equal(t, StrategyMetadata, got.Strategy)

	got, err = s.Enrich(context.Background(), models.Candidate{Symbol: "AAPL", Type: models.AssetStock})
	require.NoError(t, err)
	assert.Nil(t, got)
}

type fakeBook map[string]models.Tick

func (b fakeBook) Last(symbol string) (models.Tick, bool) {
	t, ok := b[symbol]
	return t, ok
}
