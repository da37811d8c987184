package service

import (
	"context"

	"FinResolve/internal/domain/models"
)

// RelevanceScorer rates how well each asset matches the user's query.
// Returned scores reference assets by their index in the given slice.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, assets []models.MergedAsset) ([]models.RelevanceScore, error)
}

// EnrichmentStrategy fetches live data for one candidate from one source.
// A nil Enrichment with a nil error means the strategy had nothing to add.
type EnrichmentStrategy interface {
	Name() string
	Enrich(ctx context.Context, c models.Candidate) (*models.Enrichment, error)
}
