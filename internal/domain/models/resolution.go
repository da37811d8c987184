package models

import "time"

// SearchRequest is one resolution unit: a single term plus the free text it came from.
type SearchRequest struct {
	Term                 string
	OriginalQueryContext string
}

// KnownAssetEntry is a symbol remembered from a previous successful resolution.
type KnownAssetEntry struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	Type       AssetType `json:"type,omitempty"`
	Confidence float64   `json:"confidence"`
	InsertedAt time.Time `json:"insertedAt"`
}

// CircuitBreakerState is a point-in-time snapshot of the merge breaker.
type CircuitBreakerState struct {
	FailureCount    int       `json:"failureCount"`
	IsOpen          bool      `json:"isOpen"`
	LastFailureTime time.Time `json:"lastFailureTime,omitempty"`
}

// RelevanceScore is a scorer's opinion about one asset, addressed by its index in the scored slice.
type RelevanceScore struct {
	Index  int     `json:"asset_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Enrichment is the live data a single enrichment strategy managed to fetch.
type Enrichment struct {
	Strategy      string
	Price         *float64
	Change24h     *float64
	Volume        *float64
	MarketCap     *float64
	MarketCapRank *int
	Holders       *int64
	Liquidity     *float64
}

// ResolutionKind tells which branch of Resolution is populated.
type ResolutionKind string

const (
	ResolutionAsset          ResolutionKind = "asset"
	ResolutionDisambiguation ResolutionKind = "disambiguation"
	ResolutionEmpty          ResolutionKind = "empty"
)

// DisambiguationMessage is shown to the user when no single asset stands out.
const DisambiguationMessage = "I found multiple assets matching your query. Which one are you interested in?"

// DisambiguationOption is one entry offered to the user.
type DisambiguationOption struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	Type           AssetType `json:"type"`
	Source         Source    `json:"source"`
	RelevanceScore *float64  `json:"relevanceScore,omitempty"`
	MatchReason    string    `json:"matchReason,omitempty"`
	MarketCapRank  *int      `json:"marketCapRank,omitempty"`
	Exchange       string    `json:"exchange,omitempty"`
}

// Disambiguation asks the caller to pick among several plausible assets.
type Disambiguation struct {
	Type                  string                 `json:"type"`
	Message               string                 `json:"message"`
	Options               []DisambiguationOption `json:"options"`
	RequiresUserSelection bool                   `json:"requiresUserSelection"`
}

// Resolution is the final answer for a query.
type Resolution struct {
	Kind           ResolutionKind  `json:"kind"`
	Asset          *MergedAsset    `json:"asset,omitempty"`
	Disambiguation *Disambiguation `json:"disambiguation,omitempty"`
	Assets         []MergedAsset   `json:"assets"`
}
