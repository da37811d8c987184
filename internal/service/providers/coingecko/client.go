// Package coingecko adapts the CoinGecko v3 API to the token metadata and contract contracts.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/providers"
)

const name = "coingecko"

// Client talks to CoinGecko.
type Client struct {
	base        *providers.Base
	searchTTL   time.Duration
	priceTTL    time.Duration
	topTokenTTL time.Duration
}

var (
	_ drepo.TokenMetadataProvider = (*Client)(nil)
	_ drepo.ContractProvider      = (*Client)(nil)
)

// Option configures Client.
type Option func(*Client)

// WithTTLs sets cache lifetimes for search, price and top-token responses.
func WithTTLs(search, price, topTokens time.Duration) Option {
	return func(c *Client) {
		c.searchTTL = search
		c.priceTTL = price
		c.topTokenTTL = topTokens
	}
}

// New builds a client. A non-empty apiKey is sent as the demo-plan header.
func New(baseURL, apiKey string, baseOpts []providers.BaseOption, opts ...Option) *Client {
	baseOpts = append([]providers.BaseOption{providers.WithHeader("x-cg-demo-api-key", apiKey)}, baseOpts...)
	c := &Client{
		base:        providers.NewBase(name, strings.TrimRight(baseURL, "/"), baseOpts...),
		searchTTL:   5 * time.Minute,
		priceTTL:    2 * time.Minute,
		topTokenTTL: 12 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Symbol        string `json:"symbol"`
		MarketCapRank *int   `json:"market_cap_rank"`
	} `json:"coins"`
}

type marketItem struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

type contractResponse struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank *int   `json:"market_cap_rank"`
	MarketData    struct {
		CurrentPrice             map[string]float64 `json:"current_price"`
		MarketCap                map[string]float64 `json:"market_cap"`
		TotalVolume              map[string]float64 `json:"total_volume"`
		PriceChangePercentage24h *float64           `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

type simplePrice map[string]struct {
	USD          *float64 `json:"usd"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// SearchByTerm searches coins by symbol or name. Pair suffixes (BTCUSDT) are stripped first.
func (c *Client) SearchByTerm(ctx context.Context, term string) (out []models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("search", start, err, len(out)) }()

	q := StripPairSuffix(strings.TrimSpace(term))
	if q == "" {
		return nil, fmt.Errorf("coingecko search: %w", providers.ErrInvalidInput)
	}

	var resp searchResponse
	if err = c.base.GetJSON(ctx, "/search", url.Values{"query": {q}}, c.searchTTL, &resp); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return []models.Candidate{}, nil
		}
		return nil, fmt.Errorf("coingecko search %q: %w", q, err)
	}

	lower := strings.ToLower(q)
	out = make([]models.Candidate, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		if coin.Symbol == "" {
			continue
		}
		conf, match := scoreSearch(lower, coin.Symbol, coin.Name)
		out = append(out, models.Candidate{
			Symbol:        strings.ToUpper(coin.Symbol),
			Name:          coin.Name,
			Type:          models.AssetCrypto,
			Source:        models.SourceTokenMetadata,
			Confidence:    conf,
			MatchType:     match,
			MarketCapRank: coin.MarketCapRank,
			ProviderID:    coin.ID,
		})
		if len(out) == 10 {
			break
		}
	}
	return out, nil
}

// scoreSearch rates a hit by how closely it matches the query.
func scoreSearch(query, symbol, name string) (float64, string) {
	s, n := strings.ToLower(symbol), strings.ToLower(name)
	switch {
	case s == query:
		return 0.95, models.MatchExact
	case n == query:
		return 0.85, models.MatchExact
	case containsWord(n, query):
		return 0.7, models.MatchSearch
	default:
		return 0.5, models.MatchSearch
	}
}

func containsWord(text, word string) bool {
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == '-' || r == '.' }) {
		if w == word {
			return true
		}
	}
	return false
}

// LookupByID fetches market data for a CoinGecko coin id, falling back to /simple/price
// when the markets endpoint has nothing for it.
func (c *Client) LookupByID(ctx context.Context, id string) (out *models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("lookup_id", start, err, boolToN(out != nil)) }()

	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, fmt.Errorf("coingecko lookup: %w", providers.ErrInvalidInput)
	}

	var items []marketItem
	q := url.Values{"vs_currency": {"usd"}, "ids": {id}}
	if err = c.base.GetJSON(ctx, "/coins/markets", q, c.priceTTL, &items); err != nil && !errors.Is(err, providers.ErrNotFound) {
		return nil, fmt.Errorf("coingecko markets %s: %w", id, err)
	}
	err = nil
	if len(items) > 0 {
		cand := fromMarket(items[0], models.SourceTokenMetadata, 0.9)
		return &cand, nil
	}

	var sp simplePrice
	sq := url.Values{
		"ids":                 {id},
		"vs_currencies":       {"usd"},
		"include_market_cap":  {"true"},
		"include_24hr_vol":    {"true"},
		"include_24hr_change": {"true"},
	}
	if err = c.base.GetJSON(ctx, "/simple/price", sq, c.priceTTL, &sp); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("coingecko simple price %s: %w", id, err)
	}
	p, ok := sp[id]
	if !ok || p.USD == nil {
		return nil, nil
	}
	return &models.Candidate{
		Symbol:     strings.ToUpper(id),
		Name:       id,
		Type:       models.AssetCrypto,
		Source:     models.SourceTokenMetadata,
		Confidence: 0.8,
		MatchType:  models.MatchExact,
		Price:      p.USD,
		MarketCap:  p.USDMarketCap,
		Volume:     p.USD24hVol,
		Change24h:  p.USD24hChange,
		ProviderID: id,
	}, nil
}

// LookupByContract resolves a token by chain and contract address.
func (c *Client) LookupByContract(ctx context.Context, chain, address string) (out *models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("contract", start, err, boolToN(out != nil)) }()

	platform, err := providers.ValidateContract(chain, address)
	if err != nil {
		return nil, err
	}
	addr := address
	if providers.IsEVMAddress(address) {
		addr = strings.ToLower(address)
	}

	var resp contractResponse
	path := "/coins/" + url.PathEscape(platform) + "/contract/" + url.PathEscape(addr)
	if err = c.base.GetJSON(ctx, path, nil, c.priceTTL, &resp); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("coingecko contract %s/%s: %w", platform, addr, err)
	}
	if resp.Symbol == "" {
		return nil, nil
	}

	cand := &models.Candidate{
		Symbol:          strings.ToUpper(resp.Symbol),
		Name:            resp.Name,
		Type:            models.AssetToken,
		Source:          models.SourceContract,
		Confidence:      1.0,
		MatchType:       models.MatchContract,
		MarketCapRank:   resp.MarketCapRank,
		Change24h:       resp.MarketData.PriceChangePercentage24h,
		ContractAddress: address,
		Chain:           platform,
		ProviderID:      resp.ID,
	}
	if v, ok := resp.MarketData.CurrentPrice["usd"]; ok {
		cand.Price = models.Float(v)
	}
	if v, ok := resp.MarketData.MarketCap["usd"]; ok {
		cand.MarketCap = models.Float(v)
	}
	if v, ok := resp.MarketData.TotalVolume["usd"]; ok {
		cand.Volume = models.Float(v)
	}
	return cand, nil
}

// TopTokens returns the top coins by market cap, used to warm the token list.
func (c *Client) TopTokens(ctx context.Context, limit int) (out []models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("top_tokens", start, err, len(out)) }()

	if limit <= 0 || limit > 250 {
		limit = 250
	}
	var items []marketItem
	q := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(limit)},
		"page":        {"1"},
	}
	if err = c.base.GetJSON(ctx, "/coins/markets", q, c.topTokenTTL, &items); err != nil {
		return nil, fmt.Errorf("coingecko top tokens: %w", err)
	}
	out = make([]models.Candidate, 0, len(items))
	for _, it := range items {
		if it.Symbol == "" {
			continue
		}
		out = append(out, fromMarket(it, models.SourceTokenList, 0.8))
	}
	return out, nil
}

func fromMarket(it marketItem, src models.Source, conf float64) models.Candidate {
	return models.Candidate{
		Symbol:        strings.ToUpper(it.Symbol),
		Name:          it.Name,
		Type:          models.AssetCrypto,
		Source:        src,
		Confidence:    conf,
		MatchType:     models.MatchExact,
		Price:         it.CurrentPrice,
		MarketCap:     it.MarketCap,
		MarketCapRank: it.MarketCapRank,
		Volume:        it.TotalVolume,
		Change24h:     it.PriceChangePercentage24h,
		ProviderID:    it.ID,
	}
}

// StripPairSuffix turns "BTCUSDT" or "ETH-USD" into the base asset. The remaining
// base must keep at least two characters, so "BUSD" stays as is.
func StripPairSuffix(term string) string {
	upper := strings.ToUpper(term)
	for _, suf := range []string{"-USDT", "/USDT", "USDT", "-USD", "/USD", "USD"} {
		if strings.HasSuffix(upper, suf) && len(upper)-len(suf) >= 2 {
			return term[:len(term)-len(suf)]
		}
	}
	return term
}

func boolToN(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
