package models

import "time"

// ResolutionEvent is the audit record emitted after every resolution.
type ResolutionEvent struct {
	ID           string         `json:"id"`
	Query        string         `json:"query"`
	Terms        []string       `json:"terms"`
	Outcome      ResolutionKind `json:"outcome"`
	ResultCount  int            `json:"resultCount"`
	TopSymbol    string         `json:"topSymbol,omitempty"`
	TopSource    Source         `json:"topSource,omitempty"`
	Symbols      []string       `json:"symbols,omitempty"`
	BreakerOpen  bool           `json:"breakerOpen"`
	FastPathHits int            `json:"fastPathHits"`
	DurationMs   int64          `json:"durationMs"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Tick is the last observed trade for a symbol on the live stream.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
