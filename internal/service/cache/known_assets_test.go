package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"FinResolve/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func asset(sym, name string, conf float64) models.Candidate {
	return models.Candidate{Symbol: sym, Name: name, Type: models.AssetStock, Confidence: conf}
}

func TestKnownAssets_ExactAndFuzzy(t *testing.T) {
	k := NewKnownAssets()
	require.True(t, k.Update(asset("AAPL", "Apple Inc.", 0.9)))
	require.True(t, k.Update(asset("NVDA", "NVIDIA Corporation", 0.9)))

	exact := k.Lookup("aapl", 0.9, 5)
	require.Len(t, exact, 1)
	assert.Equal(t, 1.0, exact[0].Confidence)
	assert.Equal(t, 0.9, exact[0].PriorConfidence)
	assert.Equal(t, models.SourceCache, exact[0].Source)

	fuzzy := k.Lookup("APPL", 0.7, 3)
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "AAPL", fuzzy[0].Symbol)
	assert.InDelta(t, 0.75, fuzzy[0].Confidence, 1e-9)
	assert.Equal(t, models.MatchFuzzy, fuzzy[0].MatchType)

	assert.Empty(t, k.Lookup("APPL", 0.9, 3), "high threshold rejects near misses")
}

func TestKnownAssets_InsertOrIgnore(t *testing.T) {
	k := NewKnownAssets()
	require.True(t, k.Update(asset("BTC", "Bitcoin", 0.95)))
	assert.False(t, k.Update(asset("btc", "Bitcoin Cash", 0.4)))
	assert.False(t, k.Update(asset("", "Nameless", 0.4)))
	assert.False(t, k.Update(asset("ETH", " ", 0.4)))

	got := k.Lookup("BTC", 0.9, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "Bitcoin", got[0].Name)
	assert.Equal(t, 0.95, got[0].PriorConfidence)
}

func TestKnownAssets_CapacityCap(t *testing.T) {
	k := NewKnownAssets()
	for i := 0; i < 250; i++ {
		k.Update(asset(fmt.Sprintf("SYM%03d", i), fmt.Sprintf("Asset %d", i), 0.8))
	}
	assert.LessOrEqual(t, k.Len(), 200)
	assert.Empty(t, k.Lookup("SYM000", 1.0, 1), "oldest entries are evicted first")
	assert.Len(t, k.Lookup("SYM249", 1.0, 1), 1)
}

func TestKnownAssets_TTL(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	k := NewKnownAssets(WithTTL(time.Hour), WithClock(c.now))
	k.Update(asset("TSLA", "Tesla", 0.9))

	c.t = c.t.Add(59 * time.Minute)
	assert.Len(t, k.Lookup("TSLA", 0.9, 5), 1)

	c.t = c.t.Add(2 * time.Minute)
	assert.Empty(t, k.Lookup("TSLA", 0.9, 5))
	assert.Equal(t, 0, k.Len())
	assert.True(t, k.Update(asset("TSLA", "Tesla", 0.9)), "expired symbol can be reinserted")
}

func TestKnownAssets_Concurrent(t *testing.T) {
	k := NewKnownAssets(WithCapacity(50))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k.Update(asset(fmt.Sprintf("G%dS%d", g, i), "Name", 0.7))
				k.Lookup("G1S1", 0.8, 3)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, k.Len(), 50)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("btc", "btc"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.8571, Similarity("bitcoin", "bitcoim"), 1e-3)
}

type stubLoader struct {
	calls  int
	tokens []models.Candidate
	err    error
}

func (s *stubLoader) TopTokens(context.Context, int) ([]models.Candidate, error) {
	s.calls++
	return s.tokens, s.err
}

func TestTokenList_Match(t *testing.T) {
	loader := &stubLoader{tokens: []models.Candidate{
		{Symbol: "BTC", Name: "Bitcoin", MarketCapRank: models.Int(1)},
		{Symbol: "ETH", Name: "Ethereum", MarketCapRank: models.Int(2)},
		{Symbol: "BCH", Name: "Bitcoin Cash", MarketCapRank: models.Int(18)},
		{Symbol: "UNI", Name: "Universe", MarketCapRank: models.Int(900)},
		{Symbol: "UNI", Name: "Uniswap", MarketCapRank: models.Int(20)},
	}}
	l := NewTokenList(loader, 250, time.Hour)

	got, err := l.Match(context.Background(), "bitcoin", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, models.SourceTokenList, got[0].Source)

	got, err = l.Match(context.Background(), "etherium", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH", got[0].Symbol)
	assert.InDelta(t, 0.875, got[0].Confidence, 1e-9)
	assert.Equal(t, models.MatchFuzzy, got[0].MatchType)

	got, err = l.Match(context.Background(), "UNI", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Uniswap", got[0].Name, "ties break on market-cap rank")

	assert.Equal(t, 1, loader.calls, "snapshot is reused until stale")
}

func TestTokenList_KeepsSnapshotOnFailure(t *testing.T) {
	loader := &stubLoader{tokens: []models.Candidate{{Symbol: "SOL", Name: "Solana"}}}
	l := NewTokenList(loader, 10, time.Minute)
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l.now = c.now

	require.NoError(t, l.Refresh(context.Background()))
	loader.err = errors.New("rate limited")
	c.t = c.t.Add(2 * time.Minute)

	got, err := l.Match(context.Background(), "sol", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	empty := NewTokenList(&stubLoader{err: errors.New("down")}, 10, time.Minute)
	_, err = empty.Match(context.Background(), "sol", 5)
	assert.Error(t, err)
}
