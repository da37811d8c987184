package usecase

import (
	"fmt"
	"math"
	"testing"

	"FinResolve/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(sym string, src models.Source, conf float64) models.Candidate {
	return models.Candidate{Symbol: sym, Name: sym + " asset", Source: src, Confidence: conf}
}

func TestMerge_TwoSourcesBoostConfidence(t *testing.T) {
	quote := cand("BTC", models.SourceQuote, 0.8)
	quote.Price = models.Float(65000)
	meta := cand("btc", models.SourceTokenMetadata, 0.85)
	meta.Name = "Bitcoin"
	meta.MarketCap = models.Float(1.2e12)

	out, err := NewMergeEngine(nil).Merge([]models.Candidate{quote, meta})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, "btc", got.Symbol, "token metadata outranks quotes")
	assert.Equal(t, "Bitcoin", got.Name)
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
	assert.ElementsMatch(t, []models.Source{models.SourceQuote, models.SourceTokenMetadata}, got.Sources)
	require.NotNil(t, got.Price)
	assert.Equal(t, 65000.0, *got.Price)
	require.NotNil(t, got.MarketCap)
}

func TestMerge_NeverOverwritesBaseFields(t *testing.T) {
	onchain := cand("PEPE", models.SourceOnChain, 0.9)
	onchain.Price = models.Float(0.00001)
	onchain.Chain = "ethereum"
	quote := cand("PEPE", models.SourceQuote, 0.7)
	quote.Price = models.Float(0.5)
	quote.Exchange = "CRYPTO"

	out, err := NewMergeEngine(nil).Merge([]models.Candidate{quote, onchain})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.00001, *out[0].Price)
	assert.Equal(t, "ethereum", out[0].Chain)
	assert.Empty(t, out[0].Exchange, "only price and market cap are backfilled")
	assert.InDelta(t, 0.95, out[0].Confidence, 1e-9)
}

func TestMerge_ConfidenceCapped(t *testing.T) {
	cands := []models.Candidate{
		cand("ETH", models.SourceOnChain, 0.97),
		cand("ETH", models.SourceTokenMetadata, 0.9),
		cand("ETH", models.SourceQuote, 0.9),
	}
	out, err := NewMergeEngine(nil).Merge(cands)
	require.NoError(t, err)
	assert.Equal(t, models.MaxConfidence, out[0].Confidence)
}

func TestMerge_SingletonsAndOrder(t *testing.T) {
	cands := []models.Candidate{
		cand("AAPL", models.SourceQuote, 0.9),
		cand("SOL", models.SourceTokenMetadata, 0.95),
		cand("aapl", models.SourceCache, 0.6),
	}
	out, err := NewMergeEngine(nil).Merge(cands)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "AAPL", out[0].Symbol)
	assert.Equal(t, "SOL", out[1].Symbol)
	assert.Equal(t, 0.95, out[1].Confidence, "singletons keep their confidence")
	assert.Equal(t, []models.Source{models.SourceTokenMetadata}, out[1].Sources)
}

func TestMerge_Idempotent(t *testing.T) {
	cands := []models.Candidate{
		cand("BTC", models.SourceQuote, 0.8),
		cand("BTC", models.SourceTokenMetadata, 0.85),
		cand("DOGE", models.SourceOnChain, 0.7),
	}
	eng := NewMergeEngine(nil)
	first, err := eng.Merge(cands)
	require.NoError(t, err)

	again := make([]models.Candidate, 0, len(first))
	for _, a := range first {
		again = append(again, a.Candidate)
	}
	second, err := eng.Merge(again)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMerge_RejectsInvalid(t *testing.T) {
	eng := NewMergeEngine(nil)

	_, err := eng.Merge([]models.Candidate{cand("  ", models.SourceQuote, 0.5)})
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = eng.Merge([]models.Candidate{cand("BTC", models.SourceQuote, 1.5)})
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = eng.Merge([]models.Candidate{cand("BTC", models.SourceQuote, math.NaN())})
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestMerge_CustomPriority(t *testing.T) {
	prio, err := ParseSourcePriority([]string{"quote", "onchain"})
	require.NoError(t, err)

	out, err := NewMergeEngine(prio).Merge([]models.Candidate{
		cand("LINK", models.SourceOnChain, 0.8),
		cand("LINK", models.SourceQuote, 0.6),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, out[0].Confidence, 1e-9)

	_, err = ParseSourcePriority([]string{"quote", "reddit"})
	assert.Error(t, err)
}

func TestRank_SortsAndClamps(t *testing.T) {
	in := []models.MergedAsset{
		{Candidate: cand("A", models.SourceQuote, 0.5)},
		{Candidate: cand("B", models.SourceQuote, 1.0)},
		{Candidate: cand("C", models.SourceQuote, -0.2)},
	}
	out := Rank(in, 10, 0.8)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"B", "A", "C"}, []string{out[0].Symbol, out[1].Symbol, out[2].Symbol})
	assert.Equal(t, models.MaxConfidence, out[0].Confidence)
	assert.Equal(t, 0.0, out[2].Confidence)
	assert.Equal(t, 1.0, in[1].Confidence, "input is not mutated")
}

func TestRank_TrimKeepsHighConfidenceThenSourceVariety(t *testing.T) {
	var in []models.MergedAsset
	for i := 0; i < 4; i++ {
		in = append(in, models.MergedAsset{Candidate: cand(fmt.Sprintf("Q%d", i), models.SourceQuote, 0.9)})
	}
	for i := 0; i < 6; i++ {
		in = append(in, models.MergedAsset{Candidate: cand(fmt.Sprintf("L%d", i), models.SourceQuote, 0.5)})
	}
	in = append(in,
		models.MergedAsset{Candidate: cand("M0", models.SourceTokenMetadata, 0.4)},
		models.MergedAsset{Candidate: cand("M1", models.SourceTokenMetadata, 0.3)},
		models.MergedAsset{Candidate: cand("O0", models.SourceOnChain, 0.2)},
	)

	out := Rank(in, 10, 0.8)
	syms := make([]string, 0, len(out))
	for _, a := range out {
		syms = append(syms, a.Symbol)
	}
	assert.Equal(t, []string{"Q0", "Q1", "Q2", "Q3", "M0", "O0"}, syms)
}

func TestMerge_SharedSymbolAcrossClassesStaysSeparate(t *testing.T) {
	stock := models.Candidate{Symbol: "ABC", Name: "AmerisourceBergen", Type: models.AssetStock,
		Source: models.SourceQuote, Confidence: 0.9, Price: models.Float(150)}
	token := models.Candidate{Symbol: "abc", Name: "ABC Token", Type: models.AssetToken,
		Source: models.SourceTokenMetadata, Confidence: 0.85}
	untyped := models.Candidate{Symbol: "ABC", Name: "ABC", Source: models.SourceCache, Confidence: 0.7}

	out, err := NewMergeEngine(nil).Merge([]models.Candidate{stock, token, untyped})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "AmerisourceBergen", out[0].Name)
	assert.ElementsMatch(t, []models.Source{models.SourceQuote, models.SourceCache}, out[0].Sources,
		"untyped candidates join the first class seen")
	assert.True(t, out[0].Conflict)

	assert.Equal(t, "ABC Token", out[1].Name)
	assert.Equal(t, []models.Source{models.SourceTokenMetadata}, out[1].Sources)
	assert.Nil(t, out[1].Price, "a stock price never leaks into the token")
	assert.True(t, out[1].Conflict)
}

func TestMerge_CryptoAndTokenShareClass(t *testing.T) {
	coin := models.Candidate{Symbol: "BTC", Name: "Bitcoin", Type: models.AssetCrypto, Source: models.SourceQuote, Confidence: 0.9}
	token := models.Candidate{Symbol: "BTC", Name: "Bitcoin", Type: models.AssetToken, Source: models.SourceOnChain, Confidence: 0.8}

	out, err := NewMergeEngine(nil).Merge([]models.Candidate{coin, token})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Conflict)
	assert.InDelta(t, 0.85, out[0].Confidence, 1e-9)
}
