package models

import (
	"math"
	"strings"
)

// AssetType classifies an instrument.
type AssetType string

const (
	AssetStock  AssetType = "STOCK"
	AssetCrypto AssetType = "CRYPTO"
	AssetToken  AssetType = "TOKEN"
)

// Class groups types that can describe the same instrument: equities on one side,
// coins and tokens on the other. Untyped candidates have no class.
func (t AssetType) Class() string {
	switch AssetType(strings.ToUpper(string(t))) {
	case AssetStock:
		return "stock"
	case AssetCrypto, AssetToken:
		return "crypto"
	}
	return ""
}

// Source identifies which provider produced a candidate.
type Source string

const (
	SourceQuote         Source = "quote"          // FMP search / quotes
	SourceTokenMetadata Source = "token_metadata" // CoinGecko search
	SourceContract      Source = "contract"       // CoinGecko contract lookup
	SourceOnChain       Source = "onchain"        // Moralis metadata / trending
	SourceCache         Source = "cache"          // known-asset cache
	SourceTokenList     Source = "token_list"     // warm top-token snapshot
)

// Match kinds reported on a candidate.
const (
	MatchExact    = "exact"
	MatchFuzzy    = "fuzzy"
	MatchContract = "contract"
	MatchSearch   = "search"
)

const (
	// MaxConfidence bounds every confidence leaving the resolver.
	MaxConfidence = 0.99
)

// Candidate is one provider's opinion about what a search term refers to.
type Candidate struct {
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Type            AssetType `json:"type"`
	Source          Source    `json:"source"`
	Confidence      float64   `json:"confidence"`
	PriorConfidence float64   `json:"priorConfidence,omitempty"`
	MatchType       string    `json:"matchType,omitempty"`

	Price         *float64 `json:"price,omitempty"`
	Change24h     *float64 `json:"change24h,omitempty"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	MarketCapRank *int     `json:"marketCapRank,omitempty"`
	Holders       *int64   `json:"holders,omitempty"`
	Liquidity     *float64 `json:"liquidity,omitempty"`

	ContractAddress string `json:"contractAddress,omitempty"`
	Chain           string `json:"chain,omitempty"`
	ProviderID      string `json:"providerId,omitempty"`
	Exchange        string `json:"exchange,omitempty"`

	Sources            []Source `json:"sources,omitempty"`
	EnrichmentStrategy string   `json:"enrichmentStrategy,omitempty"`
	EnrichmentSuccess  bool     `json:"enrichmentSuccess,omitempty"`
}

// MergedAsset is a candidate after cross-source reconciliation.
type MergedAsset struct {
	Candidate
	// Conflict is set when the symbol also names an asset of another class.
	Conflict bool `json:"conflict,omitempty"`
}

// Key is the dedup key used across one resolution: SYMBOL_source.
func (c Candidate) Key() string {
	return strings.ToUpper(c.Symbol) + "_" + string(c.Source)
}

// NeedsEnrichment reports whether the candidate lacks live market data or is weakly matched.
func (c Candidate) NeedsEnrichment(minConfidence float64) bool {
	return c.Price == nil || c.Volume == nil || c.Confidence < minConfidence
}

// Clone returns a deep copy so callers can mutate without aliasing pointer fields.
func (c Candidate) Clone() Candidate {
	out := c
	out.Price = cloneFloat(c.Price)
	out.Change24h = cloneFloat(c.Change24h)
	out.MarketCap = cloneFloat(c.MarketCap)
	out.Volume = cloneFloat(c.Volume)
	out.Liquidity = cloneFloat(c.Liquidity)
	if c.MarketCapRank != nil {
		v := *c.MarketCapRank
		out.MarketCapRank = &v
	}
	if c.Holders != nil {
		v := *c.Holders
		out.Holders = &v
	}
	if c.Sources != nil {
		out.Sources = append([]Source(nil), c.Sources...)
	}
	return out
}

// Unmerged wraps raw candidates as merged assets without reconciling them.
func Unmerged(cands []Candidate) []MergedAsset {
	out := make([]MergedAsset, 0, len(cands))
	for _, c := range cands {
		out = append(out, MergedAsset{Candidate: c.Clone()})
	}
	return out
}

// ClampConfidence bounds v to [0, max]; NaN becomes 0.
func ClampConfidence(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
