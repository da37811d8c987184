package usecase

import (
	"context"
	"testing"
	"time"

	"FinResolve/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAssets_AppleScenario(t *testing.T) {
	r := NewResolver(NewOrchestrator(nil, nil, WithQuoteProvider(appleQuotes())))

	assets := r.ResolveAssets(context.Background(), []string{"AAPL"}, "")
	require.Len(t, assets, 1)
	assert.InDelta(t, 0.9, assets[0].Confidence, 1e-9)
}

func TestResolveAssets_UnknownIsEmptySlice(t *testing.T) {
	r := NewResolver(NewOrchestrator(nil, nil, WithQuoteProvider(&fakeQuotes{})))

	assets := r.ResolveAssets(context.Background(), []string{"XYZABC"}, "")
	assert.NotNil(t, assets)
	assert.Empty(t, assets)
}

func TestResolveAssets_EnrichmentReordersByConfidence(t *testing.T) {
	q := &fakeQuotes{search: map[string][]models.Candidate{
		"SHIB": {{Symbol: "SHIB", Name: "Shiba Inu", Type: models.AssetCrypto, Source: models.SourceQuote, Confidence: 0.7}},
	}}
	m := &fakeMetadata{search: map[string][]models.Candidate{
		"SHIB": {{Symbol: "SHIBAI", Name: "Shiba AI", Type: models.AssetToken, Source: models.SourceTokenMetadata,
			Confidence: 0.75, Price: models.Float(0.1), Volume: models.Float(1)}},
	}}
	strat := &fakeStrategy{name: StrategyQuote, res: &models.Enrichment{Price: models.Float(0.00002), Volume: models.Float(1e8)}}
	r := NewResolver(
		NewOrchestrator(nil, nil, WithQuoteProvider(q), WithTokenMetadataProvider(m)),
		WithEnricher(NewEnricher(DefaultEnrichmentConfig(), nil, nil, TimedStrategy{Strategy: strat, Timeout: time.Second})),
	)

	assets := r.ResolveAssets(context.Background(), []string{"SHIB"}, "")
	require.Len(t, assets, 2)
	assert.Equal(t, "SHIBAI", assets[0].Symbol)
	assert.InDelta(t, 0.95, assets[0].Confidence, 1e-9)
	assert.Equal(t, "SHIB", assets[1].Symbol)
	assert.InDelta(t, 0.9, assets[1].Confidence, 1e-9)
	assert.True(t, assets[1].EnrichmentSuccess)
	require.NotNil(t, assets[1].Volume)
	assert.Equal(t, 1e8, *assets[1].Volume)
}

func TestResolve_PreprocessesQueryAndEmitsEvent(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(NewOrchestrator(nil, nil, WithQuoteProvider(appleQuotes())), WithEventSink(sink))

	res := r.Resolve(context.Background(), nil, "What's the price of AAPL today?")
	require.Equal(t, models.ResolutionAsset, res.Kind)
	assert.Equal(t, "AAPL", res.Asset.Symbol)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, []string{"AAPL"}, ev.Terms)
	assert.Equal(t, models.ResolutionAsset, ev.Outcome)
	assert.Equal(t, 1, ev.ResultCount)
	assert.Equal(t, "AAPL", ev.TopSymbol)
	assert.Equal(t, models.SourceQuote, ev.TopSource)
	assert.False(t, ev.CreatedAt.IsZero())
}

func TestResolve_StockAndTokenSharingTickerOfferBoth(t *testing.T) {
	q := &fakeQuotes{search: map[string][]models.Candidate{
		"ABC": {{Symbol: "ABC", Name: "AmerisourceBergen", Type: models.AssetStock, Source: models.SourceQuote,
			Confidence: 0.9, Exchange: "NYSE"}},
	}}
	m := &fakeMetadata{search: map[string][]models.Candidate{
		"ABC": {{Symbol: "ABC", Name: "ABC Token", Type: models.AssetToken, Source: models.SourceTokenMetadata,
			Confidence: 0.85, MarketCapRank: models.Int(900)}},
	}}
	scorer := &fakeScorer{scores: []models.RelevanceScore{{Index: 0, Score: 0.85}, {Index: 1, Score: 0.8}}}
	r := NewResolver(
		NewOrchestrator(nil, nil, WithQuoteProvider(q), WithTokenMetadataProvider(m)),
		WithDisambiguator(NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)),
	)

	res := r.Resolve(context.Background(), []string{"ABC"}, "what is abc")
	require.Equal(t, models.ResolutionDisambiguation, res.Kind)
	require.Len(t, res.Assets, 2)
	for _, a := range res.Assets {
		assert.True(t, a.Conflict)
		assert.Len(t, a.Sources, 1)
	}
	opts := res.Disambiguation.Options
	require.Len(t, opts, 2)
	assert.Equal(t, models.AssetStock, opts[0].Type)
	assert.Equal(t, models.AssetToken, opts[1].Type)
}

func TestResolve_EmptyQuery(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(NewOrchestrator(nil, nil), WithEventSink(sink))

	res := r.Resolve(context.Background(), nil, "")
	assert.Equal(t, models.ResolutionEmpty, res.Kind)
	assert.Empty(t, res.Assets)
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.ResolutionEmpty, sink.events[0].Outcome)
}
