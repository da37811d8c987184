package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"FinResolve/internal/domain/models"
	"FinResolve/internal/usecase"
	"FinResolve/pkg/config"
	applogger "FinResolve/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tslaQuotes struct{}

func (tslaQuotes) SearchByTerm(_ context.Context, term string) ([]models.Candidate, error) {
	if term != "TSLA" {
		return nil, nil
	}
	return []models.Candidate{{Symbol: "TSLA", Name: "Tesla, Inc.", Type: models.AssetStock, Source: models.SourceQuote, Confidence: 0.9}}, nil
}

func (tslaQuotes) SearchUSDPair(context.Context, string) ([]models.Candidate, error) { return nil, nil }

func (tslaQuotes) QuoteBySymbol(context.Context, string, models.AssetType) (*models.Candidate, error) {
	return nil, nil
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := newCLI(&out, &errOut)
	c.newResolver = func(*config.Config, *applogger.Logger) (*usecase.Resolver, error) {
		return usecase.NewResolver(usecase.NewOrchestrator(nil, nil, usecase.WithQuoteProvider(tslaQuotes{}))), nil
	}
	code := c.run(append(args, "--config", "testdata/missing.yaml"))
	return out.String(), errOut.String(), code
}

func TestClassifyCommand(t *testing.T) {
	out, _, code := runCLI(t, "classify", "PEPE", "AAPL", "--query", "is pepe a good memecoin")
	require.Equal(t, 0, code)

	var got []classification
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, usecase.HintCrypto, got[0].Hint)
	assert.True(t, got[1].Ticker)
}

func TestPreprocessCommand(t *testing.T) {
	out, _, code := runCLI(t, "preprocess", "what's", "the", "price", "of", "BTC", "on", "solana?")
	require.Equal(t, 0, code)

	var got preprocessed
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got.Terms, "BTC")
	assert.Equal(t, []string{"solana"}, got.Chains)
}

func TestResolveCommand(t *testing.T) {
	out, _, code := runCLI(t, "resolve", "TSLA")
	require.Equal(t, 0, code)
	var res models.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.ResolutionAsset, res.Kind)
	assert.Equal(t, "TSLA", res.Asset.Symbol)

	out, _, code = runCLI(t, "resolve", "TSLA", "--raw", "--pretty=false")
	require.Equal(t, 0, code)
	var assets []models.MergedAsset
	require.NoError(t, json.Unmarshal([]byte(out), &assets))
	require.Len(t, assets, 1)

	_, errOut, code := runCLI(t, "resolve")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--query")
}
