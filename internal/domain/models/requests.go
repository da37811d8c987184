package models

// ResolveRequest is the body of POST /api/v1/resolve.
type ResolveRequest struct {
	Terms        []string `json:"terms" validate:"omitempty,max=10,dive,required,max=64,term"`
	Query        string   `json:"query" validate:"omitempty,max=512"`
	Disambiguate *bool    `json:"disambiguate"`
}

// ResolveQuery is the query string of GET /api/v1/resolve.
type ResolveQuery struct {
	Q     string `query:"q" validate:"omitempty,max=512"`
	Terms string `query:"terms" validate:"omitempty,max=256"`
}

// KnownAssetsQuery is the query string of GET /api/v1/known-assets.
type KnownAssetsQuery struct {
	Q         string  `query:"q" validate:"required,max=64"`
	Threshold float64 `query:"threshold" default:"0.7" validate:"gte=0,lte=1"`
	Limit     int     `query:"limit" default:"5" validate:"gte=1,lte=20"`
}

// ResolutionsQuery is the query string of GET /api/v1/resolutions. Since (RFC3339 or unix)
// wins over the Hours look-back.
type ResolutionsQuery struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
	Since  string `query:"since" validate:"omitempty,max=40"`
	Hours  int    `query:"hours" default:"24" validate:"gte=1,lte=2160"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}
