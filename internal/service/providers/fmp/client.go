// Package fmp adapts the Financial Modeling Prep REST API to the quote provider contract.
package fmp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/providers"
)

const name = "fmp"

// Client talks to FMP's /api/v3 endpoints.
type Client struct {
	base     *providers.Base
	cacheTTL time.Duration
}

var _ drepo.QuoteProvider = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithCacheTTL sets how long search and quote responses are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// New builds a client for baseURL. opts configure the shared provider base.
func New(baseURL, apiKey string, baseOpts []providers.BaseOption, opts ...Option) *Client {
	baseOpts = append([]providers.BaseOption{providers.WithAuthParam("apikey", apiKey)}, baseOpts...)
	c := &Client{
		base:     providers.NewBase(name, strings.TrimRight(baseURL, "/"), baseOpts...),
		cacheTTL: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchItem struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Currency          string `json:"currency"`
	StockExchange     string `json:"stockExchange"`
	ExchangeShortName string `json:"exchangeShortName"`
}

type quoteItem struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Price             *float64 `json:"price"`
	ChangesPercentage *float64 `json:"changesPercentage"`
	MarketCap         *float64 `json:"marketCap"`
	Volume            *float64 `json:"volume"`
	Exchange          string   `json:"exchange"`
}

// SearchByTerm runs FMP's symbol/name search.
func (c *Client) SearchByTerm(ctx context.Context, term string) (out []models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("search", start, err, len(out)) }()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("fmp search: %w", providers.ErrInvalidInput)
	}

	var items []searchItem
	q := url.Values{"query": {term}, "limit": {"10"}}
	if err = c.base.GetJSON(ctx, "/api/v3/search", q, c.cacheTTL, &items); err != nil {
		if isNotFound(err) {
			return []models.Candidate{}, nil
		}
		return nil, fmt.Errorf("fmp search %q: %w", term, err)
	}

	upper := strings.ToUpper(term)
	out = make([]models.Candidate, 0, len(items))
	for _, it := range items {
		if it.Symbol == "" {
			continue
		}
		conf := 0.7
		if strings.Contains(strings.ToUpper(it.Symbol), upper) {
			conf = 0.9
		}
		out = append(out, models.Candidate{
			Symbol:     strings.ToUpper(it.Symbol),
			Name:       it.Name,
			Type:       typeOf(it.Symbol, it.ExchangeShortName),
			Source:     models.SourceQuote,
			Confidence: conf,
			MatchType:  models.MatchSearch,
			Exchange:   firstNonEmpty(it.ExchangeShortName, it.StockExchange),
		})
	}
	return out, nil
}

// SearchUSDPair looks up TERMUSD for short alphabetic terms, which is how FMP lists crypto.
func (c *Client) SearchUSDPair(ctx context.Context, term string) (out []models.Candidate, err error) {
	term = strings.ToUpper(strings.TrimSpace(term))
	if !isPairTerm(term) {
		return []models.Candidate{}, nil
	}

	start := time.Now()
	defer func() { c.base.Observe("usd_pair", start, err, len(out)) }()

	pair := term + "USD"
	var items []searchItem
	q := url.Values{"query": {pair}, "limit": {"5"}}
	if err = c.base.GetJSON(ctx, "/api/v3/search", q, c.cacheTTL, &items); err != nil {
		if isNotFound(err) {
			return []models.Candidate{}, nil
		}
		return nil, fmt.Errorf("fmp pair %q: %w", pair, err)
	}

	out = make([]models.Candidate, 0, len(items))
	for _, it := range items {
		sym := strings.ToUpper(it.Symbol)
		if !strings.HasPrefix(sym, term) {
			continue
		}
		conf := 0.8
		if sym == pair {
			conf = 0.95
		}
		out = append(out, models.Candidate{
			Symbol:     term,
			Name:       cleanPairName(it.Name),
			Type:       models.AssetCrypto,
			Source:     models.SourceQuote,
			Confidence: conf,
			MatchType:  models.MatchExact,
			Exchange:   firstNonEmpty(it.ExchangeShortName, "CRYPTO"),
			ProviderID: sym,
		})
	}
	return out, nil
}

// QuoteBySymbol fetches live price data. Crypto symbols are quoted as SYMBOLUSD.
// A symbol FMP doesn't know returns (nil, nil).
func (c *Client) QuoteBySymbol(ctx context.Context, symbol string, assetType models.AssetType) (out *models.Candidate, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if out != nil {
			n = 1
		}
		c.base.Observe("quote", start, err, n)
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("fmp quote: %w", providers.ErrInvalidInput)
	}
	lookup := symbol
	if assetType != models.AssetStock && !strings.HasSuffix(symbol, "USD") {
		lookup = symbol + "USD"
	}

	var items []quoteItem
	if err = c.base.GetJSON(ctx, "/api/v3/quote/"+url.PathEscape(lookup), nil, c.cacheTTL, &items); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fmp quote %s: %w", lookup, err)
	}
	if len(items) == 0 || items[0].Price == nil {
		return nil, nil
	}

	it := items[0]
	t := assetType
	if t == "" {
		t = typeOf(it.Symbol, it.Exchange)
	}
	return &models.Candidate{
		Symbol:     symbol,
		Name:       cleanPairName(it.Name),
		Type:       t,
		Source:     models.SourceQuote,
		Confidence: 0.9,
		MatchType:  models.MatchExact,
		Price:      it.Price,
		Change24h:  it.ChangesPercentage,
		MarketCap:  it.MarketCap,
		Volume:     it.Volume,
		Exchange:   it.Exchange,
		ProviderID: it.Symbol,
	}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, providers.ErrNotFound)
}

func isPairTerm(term string) bool {
	if len(term) < 2 || len(term) > 5 {
		return false
	}
	for _, r := range term {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// typeOf guesses the asset type from FMP's symbol and exchange fields.
func typeOf(symbol, exchange string) models.AssetType {
	ex := strings.ToUpper(exchange)
	switch {
	case ex == "CRYPTO", ex == "CCC":
		return models.AssetCrypto
	case ex == "" && len(symbol) <= 9 && strings.HasSuffix(strings.ToUpper(symbol), "USD"):
		return models.AssetCrypto
	}
	return models.AssetStock
}

// cleanPairName turns "Bitcoin USD" into "Bitcoin".
func cleanPairName(n string) string {
	n = strings.TrimSpace(n)
	return strings.TrimSpace(strings.TrimSuffix(n, " USD"))
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
