// Package moralis adapts the Moralis EVM data API to the on-chain provider contract.
package moralis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/providers"
	applogger "FinResolve/pkg/logger"
)

const name = "moralis"

// Client talks to deep-index.moralis.io.
type Client struct {
	base          *providers.Base
	cacheTTL      time.Duration
	defaultChains []string
	trendingLimit int
}

var _ drepo.OnChainProvider = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithCacheTTL sets the response cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithDefaultChains sets the chains SearchByTerm scans.
func WithDefaultChains(chains ...string) Option {
	return func(c *Client) {
		if len(chains) > 0 {
			c.defaultChains = chains
		}
	}
}

// New builds a client. Moralis authenticates with the X-API-Key header.
func New(baseURL, apiKey string, baseOpts []providers.BaseOption, opts ...Option) *Client {
	baseOpts = append([]providers.BaseOption{providers.WithHeader("X-API-Key", apiKey)}, baseOpts...)
	c := &Client{
		base:          providers.NewBase(name, strings.TrimRight(baseURL, "/"), baseOpts...),
		cacheTTL:      2 * time.Minute,
		defaultChains: []string{providers.ChainEthereum},
		trendingLimit: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// flexFloat accepts a number, a numeric string or a {"24h": n} object.
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '{':
		var m map[string]flexFloat
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		if d, ok := m["24h"]; ok {
			*f = d
		}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f.v, f.ok = v, true
		return nil
	default:
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return err
		}
		f.v, f.ok = v, true
		return nil
	}
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	return models.Float(f.v)
}

type trendingToken struct {
	TokenAddress       string    `json:"tokenAddress"`
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name"`
	USDPrice           flexFloat `json:"usdPrice"`
	PricePercentChange flexFloat `json:"pricePercentChange"`
	TotalVolume        flexFloat `json:"totalVolume"`
	MarketCap          flexFloat `json:"marketCap"`
	LiquidityUSD       flexFloat `json:"liquidityUsd"`
	Holders            *int64    `json:"holders"`
}

type metadataItem struct {
	Address               string    `json:"address"`
	Name                  string    `json:"name"`
	Symbol                string    `json:"symbol"`
	FullyDilutedValuation flexFloat `json:"fully_diluted_valuation"`
	MarketCap             flexFloat `json:"market_cap"`
}

type priceResponse struct {
	USDPrice      flexFloat `json:"usdPrice"`
	PercentChange flexFloat `json:"24hrPercentChange"`
	TokenName     string    `json:"tokenName"`
	TokenSymbol   string    `json:"tokenSymbol"`
	PairLiquidity flexFloat `json:"pairTotalLiquidityUsd"`
}

type holdersResponse struct {
	TotalHolders *int64 `json:"totalHolders"`
}

// SearchByTerm scans trending tokens on the default chains.
func (c *Client) SearchByTerm(ctx context.Context, term string) ([]models.Candidate, error) {
	return c.SearchOnChains(ctx, term, c.defaultChains)
}

// SearchOnChains scans trending tokens on each EVM chain and keeps those whose symbol or
// name matches term. Non-EVM chains are skipped. One failing chain does not hide the others.
func (c *Client) SearchOnChains(ctx context.Context, term string, chains []string) (out []models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("search", start, err, len(out)) }()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("moralis search: %w", providers.ErrInvalidInput)
	}

	out = []models.Candidate{}
	var errs []error
	for _, chain := range chains {
		canonical := providers.NormalizeChain(chain)
		id, ok := providers.MoralisChain(canonical)
		if !ok {
			continue
		}
		tokens, ferr := c.trending(ctx, id)
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		for _, tok := range tokens {
			conf, hit := matchTrending(term, tok.Symbol, tok.Name)
			if !hit {
				continue
			}
			cand := fromTrending(tok, canonical)
			cand.Confidence = conf
			out = append(out, cand)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("moralis search %q: %w", term, errors.Join(errs...))
	}
	return out, nil
}

func matchTrending(term, symbol, name string) (float64, bool) {
	t := strings.ToLower(term)
	switch {
	case strings.EqualFold(symbol, term):
		return 0.85, true
	case strings.EqualFold(name, term):
		return 0.8, true
	case len(t) >= 3 && strings.Contains(strings.ToLower(name), t):
		return 0.6, true
	}
	return 0, false
}

func (c *Client) trending(ctx context.Context, chainID string) ([]trendingToken, error) {
	var raw json.RawMessage
	q := url.Values{"chain": {chainID}, "limit": {strconv.Itoa(c.trendingLimit)}}
	if err := c.base.GetJSON(ctx, "/tokens/trending", q, c.cacheTTL, &raw); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var tokens []trendingToken
	if err := json.Unmarshal(raw, &tokens); err == nil {
		return tokens, nil
	}
	var wrapped struct {
		Result []trendingToken `json:"result"`
		Tokens []trendingToken `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode trending: %w", err)
	}
	if len(wrapped.Result) > 0 {
		return wrapped.Result, nil
	}
	return wrapped.Tokens, nil
}

// LookupByContract returns ERC-20 metadata plus the current price for address.
// Non-EVM chains return (nil, nil).
func (c *Client) LookupByContract(ctx context.Context, chain, address string) (out *models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("contract", start, err, countOne(out)) }()

	canonical, err := providers.ValidateContract(chain, address)
	if err != nil {
		return nil, err
	}
	id, ok := providers.MoralisChain(canonical)
	if !ok {
		return nil, nil
	}

	var items []metadataItem
	q := url.Values{"chain": {id}, "addresses": {strings.ToLower(address)}}
	if err = c.base.GetJSON(ctx, "/erc20/metadata", q, c.cacheTTL, &items); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("moralis metadata %s: %w", address, err)
	}
	if len(items) == 0 || items[0].Symbol == "" {
		return nil, nil
	}
	md := items[0]
	cand := &models.Candidate{
		Symbol:          strings.ToUpper(md.Symbol),
		Name:            md.Name,
		Type:            models.AssetToken,
		Source:          models.SourceOnChain,
		Confidence:      0.9,
		MatchType:       models.MatchContract,
		ContractAddress: address,
		Chain:           canonical,
		MarketCap:       md.MarketCap.ptr(),
	}
	if cand.MarketCap == nil {
		cand.MarketCap = md.FullyDilutedValuation.ptr()
	}

	if p, perr := c.price(ctx, id, address); perr == nil && p != nil {
		cand.Price = p.USDPrice.ptr()
		cand.Change24h = p.PercentChange.ptr()
	}
	return cand, nil
}

// TokenStats returns holder, liquidity and volume data. With an address it asks the
// price and holder endpoints and fills volume from the trending entry for the same
// address; otherwise it looks the symbol up among trending tokens.
func (c *Client) TokenStats(ctx context.Context, chain, symbol, address string) (out *models.Candidate, err error) {
	start := time.Now()
	defer func() { c.base.Observe("token_stats", start, err, countOne(out)) }()

	canonical := providers.NormalizeChain(chain)
	if canonical == "" {
		canonical = providers.ChainEthereum
	}
	id, ok := providers.MoralisChain(canonical)
	if !ok {
		return nil, nil
	}

	if address == "" {
		if strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("moralis stats: %w", providers.ErrInvalidInput)
		}
		tokens, terr := c.trending(ctx, id)
		if terr != nil {
			err = fmt.Errorf("moralis stats %s: %w", symbol, terr)
			return nil, err
		}
		for _, tok := range tokens {
			if strings.EqualFold(tok.Symbol, symbol) {
				cand := fromTrending(tok, canonical)
				return &cand, nil
			}
		}
		return nil, nil
	}

	if !providers.IsEVMAddress(address) {
		return nil, fmt.Errorf("moralis stats %q: %w", address, providers.ErrInvalidInput)
	}
	p, err := c.price(ctx, id, address)
	if err != nil {
		return nil, fmt.Errorf("moralis price %s: %w", address, err)
	}
	if p == nil || !p.USDPrice.ok {
		return nil, nil
	}
	sym := strings.ToUpper(p.TokenSymbol)
	if sym == "" {
		sym = strings.ToUpper(symbol)
	}
	cand := &models.Candidate{
		Symbol:          sym,
		Name:            p.TokenName,
		Type:            models.AssetToken,
		Source:          models.SourceOnChain,
		Confidence:      0.85,
		MatchType:       models.MatchContract,
		Price:           p.USDPrice.ptr(),
		Change24h:       p.PercentChange.ptr(),
		Liquidity:       p.PairLiquidity.ptr(),
		ContractAddress: address,
		Chain:           canonical,
	}

	// Holder and volume data are best effort on top of the price.
	if h, herr := c.holders(ctx, id, address); herr == nil && h != nil {
		cand.Holders = h
	} else if herr != nil {
		c.base.Log().Debug("moralis holders unavailable", applogger.String("address", address), applogger.Error(herr))
	}
	if tokens, terr := c.trending(ctx, id); terr == nil {
		for _, tok := range tokens {
			if !strings.EqualFold(tok.TokenAddress, address) {
				continue
			}
			if cand.Volume == nil {
				cand.Volume = tok.TotalVolume.ptr()
			}
			if cand.Liquidity == nil {
				cand.Liquidity = tok.LiquidityUSD.ptr()
			}
			if cand.Holders == nil {
				cand.Holders = tok.Holders
			}
			if cand.MarketCap == nil {
				cand.MarketCap = tok.MarketCap.ptr()
			}
			break
		}
	}
	return cand, nil
}

func (c *Client) holders(ctx context.Context, chainID, address string) (*int64, error) {
	var h holdersResponse
	path := "/erc20/" + url.PathEscape(strings.ToLower(address)) + "/holders"
	if err := c.base.GetJSON(ctx, path, url.Values{"chain": {chainID}}, c.cacheTTL, &h); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return h.TotalHolders, nil
}

func (c *Client) price(ctx context.Context, chainID, address string) (*priceResponse, error) {
	var p priceResponse
	path := "/erc20/" + url.PathEscape(strings.ToLower(address)) + "/price"
	if err := c.base.GetJSON(ctx, path, url.Values{"chain": {chainID}}, c.cacheTTL, &p); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func fromTrending(tok trendingToken, chain string) models.Candidate {
	return models.Candidate{
		Symbol:          strings.ToUpper(tok.Symbol),
		Name:            tok.Name,
		Type:            models.AssetToken,
		Source:          models.SourceOnChain,
		Confidence:      0.8,
		MatchType:       models.MatchSearch,
		Price:           tok.USDPrice.ptr(),
		Change24h:       tok.PricePercentChange.ptr(),
		Volume:          tok.TotalVolume.ptr(),
		MarketCap:       tok.MarketCap.ptr(),
		Liquidity:       tok.LiquidityUSD.ptr(),
		Holders:         tok.Holders,
		ContractAddress: strings.ToLower(tok.TokenAddress),
		Chain:           chain,
	}
}

func countOne(c *models.Candidate) int {
	if c == nil {
		return 0
	}
	return 1
}
