package moralis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"FinResolve/internal/domain/models"
	"FinResolve/internal/service/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pepe = "0x6982508145454Ce325dDbE47a25d4ec3d2311933"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/trending", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		switch r.URL.Query().Get("chain") {
		case "eth":
			_, _ = w.Write([]byte(`[
				{"tokenAddress":"0x6982508145454CE325DDBE47A25D4EC3D2311933","symbol":"pepe","name":"Pepe",
				 "usdPrice":0.0000123,"pricePercentChange":{"1h":0.2,"24h":4.5},"totalVolume":{"24h":612000000},
				 "marketCap":5100000000,"liquidityUsd":"43000000","holders":310000},
				{"tokenAddress":"0x1111111111111111111111111111111111111111","symbol":"MOG","name":"Mog Coin","usdPrice":0.000002}
			]`))
		case "bsc":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"result":[]}`))
		}
	})
	mux.HandleFunc("/erc20/metadata", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"address":"0x6982508145454ce325ddbe47a25d4ec3d2311933","name":"Pepe","symbol":"PEPE","decimals":"18","fully_diluted_valuation":"5200000000"}]`))
	})
	mux.HandleFunc("/erc20/0x6982508145454ce325ddbe47a25d4ec3d2311933/price", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usdPrice":0.0000124,"24hrPercentChange":"3.9","tokenName":"Pepe","tokenSymbol":"PEPE"}`))
	})
	mux.HandleFunc("/erc20/0x6982508145454ce325ddbe47a25d4ec3d2311933/holders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eth", r.URL.Query().Get("chain"))
		_, _ = w.Write([]byte(`{"totalHolders":315200,"holdersByAcquisition":{"swap":290000}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchOnChains(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "key", nil)

	got, err := c.SearchOnChains(context.Background(), "PEPE", []string{"eth", "bsc", "solana"})
	require.NoError(t, err, "one failing chain does not fail the search")
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "PEPE", p.Symbol)
	assert.Equal(t, 0.85, p.Confidence)
	assert.Equal(t, models.SourceOnChain, p.Source)
	assert.Equal(t, providers.ChainEthereum, p.Chain)
	assert.Equal(t, 4.5, *p.Change24h)
	assert.Equal(t, 612000000.0, *p.Volume)
	assert.Equal(t, 43000000.0, *p.Liquidity)
	assert.Equal(t, int64(310000), *p.Holders)
}

func TestSearchOnChains_AllChainsFail(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "key", nil)

	_, err := c.SearchOnChains(context.Background(), "PEPE", []string{"bsc"})
	var pe *providers.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.Status)
}

func TestLookupByContract(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "key", nil)

	got, err := c.LookupByContract(context.Background(), "ethereum", pepe)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PEPE", got.Symbol)
	assert.Equal(t, 5200000000.0, *got.MarketCap)
	assert.Equal(t, 0.0000124, *got.Price)
	assert.Equal(t, 3.9, *got.Change24h)

	sol, err := c.LookupByContract(context.Background(), "solana", "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
	require.NoError(t, err)
	assert.Nil(t, sol)
}

func TestTokenStats(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "key", nil)

	bySymbol, err := c.TokenStats(context.Background(), "eth", "mog", "")
	require.NoError(t, err)
	require.NotNil(t, bySymbol)
	assert.Equal(t, "MOG", bySymbol.Symbol)

	byAddr, err := c.TokenStats(context.Background(), "", "PEPE", pepe)
	require.NoError(t, err)
	require.NotNil(t, byAddr)
	assert.Equal(t, 0.0000124, *byAddr.Price)
	require.NotNil(t, byAddr.Holders)
	assert.Equal(t, int64(315200), *byAddr.Holders, "holder endpoint wins over the trending snapshot")
	require.NotNil(t, byAddr.Volume)
	assert.Equal(t, 612000000.0, *byAddr.Volume)
	require.NotNil(t, byAddr.Liquidity)
	assert.Equal(t, 43000000.0, *byAddr.Liquidity)

	_, err = c.TokenStats(context.Background(), "eth", "", "")
	assert.ErrorIs(t, err, providers.ErrInvalidInput)
}
