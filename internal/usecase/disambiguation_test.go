package usecase

import (
	"context"
	"errors"
	"testing"

	"FinResolve/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoABC() []models.MergedAsset {
	return []models.MergedAsset{
		{Candidate: models.Candidate{Symbol: "ABC", Name: "AmerisourceBergen", Type: models.AssetStock,
			Source: models.SourceQuote, Confidence: 0.9, Exchange: "NYSE"}},
		{Candidate: models.Candidate{Symbol: "ABC", Name: "ABC Token", Type: models.AssetToken,
			Source: models.SourceOnChain, Confidence: 0.85, MarketCapRank: models.Int(900)}},
	}
}

func TestDisambiguate_EmptyAndSingle(t *testing.T) {
	d := NewDisambiguator(&fakeScorer{}, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), nil, "anything")
	assert.Equal(t, models.ResolutionEmpty, res.Kind)
	assert.NotNil(t, res.Assets)

	one := twoABC()[:1]
	res = d.Disambiguate(context.Background(), one, "abc")
	assert.Equal(t, models.ResolutionAsset, res.Kind)
	require.NotNil(t, res.Asset)
	assert.Equal(t, "AmerisourceBergen", res.Asset.Name)
}

func TestDisambiguate_CloseScoresOfferOptions(t *testing.T) {
	scorer := &fakeScorer{scores: []models.RelevanceScore{
		{Index: 0, Score: 0.85, Reason: "exact symbol match"},
		{Index: 1, Score: 0.8, Reason: "exact symbol match"},
	}}
	d := NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), twoABC(), "what is abc")
	require.Equal(t, models.ResolutionDisambiguation, res.Kind)
	require.NotNil(t, res.Disambiguation)
	dis := res.Disambiguation
	assert.Equal(t, "disambiguation", dis.Type)
	assert.Equal(t, models.DisambiguationMessage, dis.Message)
	assert.True(t, dis.RequiresUserSelection)
	require.Len(t, dis.Options, 2)

	assert.Equal(t, 1, dis.Options[0].ID)
	assert.Equal(t, "NYSE", dis.Options[0].Exchange)
	assert.Nil(t, dis.Options[0].MarketCapRank)
	require.NotNil(t, dis.Options[0].RelevanceScore)
	assert.Equal(t, 0.85, *dis.Options[0].RelevanceScore)
	assert.Equal(t, "exact symbol match", dis.Options[0].MatchReason)

	assert.Equal(t, 2, dis.Options[1].ID)
	assert.Equal(t, 900, *dis.Options[1].MarketCapRank)
	assert.Equal(t, "what is abc", scorer.query)
}

func TestDisambiguate_ClearWinnerAutoSelects(t *testing.T) {
	scorer := &fakeScorer{scores: []models.RelevanceScore{
		{Index: 0, Score: 0.3},
		{Index: 1, Score: 0.95, Reason: "user asked for the token"},
	}}
	d := NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), twoABC(), "abc token")
	require.Equal(t, models.ResolutionAsset, res.Kind)
	assert.Equal(t, "ABC Token", res.Asset.Name)
	assert.Len(t, res.Assets, 2)
}

func TestDisambiguate_SingleHighScoreAutoSelects(t *testing.T) {
	scorer := &fakeScorer{scores: []models.RelevanceScore{{Index: 1, Score: 0.9}}}
	d := NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), twoABC(), "abc token")
	require.Equal(t, models.ResolutionAsset, res.Kind)
	assert.Equal(t, models.SourceOnChain, res.Asset.Source)
}

func TestDisambiguate_ScorerFailureGivesUnscoredOptions(t *testing.T) {
	d := NewDisambiguator(&fakeScorer{err: errors.New("llm down")}, DefaultDisambiguationConfig(), nil)

	var many []models.MergedAsset
	for _, sym := range []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7"} {
		many = append(many, models.MergedAsset{Candidate: models.Candidate{Symbol: sym, Confidence: 0.5}})
	}
	res := d.Disambiguate(context.Background(), many, "a")
	require.Equal(t, models.ResolutionDisambiguation, res.Kind)
	require.Len(t, res.Disambiguation.Options, 5)
	for _, o := range res.Disambiguation.Options {
		assert.Nil(t, o.RelevanceScore)
	}
}

func TestDisambiguate_IgnoresOutOfRangeIndexes(t *testing.T) {
	scorer := &fakeScorer{scores: []models.RelevanceScore{{Index: 7, Score: 0.99}, {Index: 0, Score: 0.5}}}
	d := NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), twoABC(), "abc")
	assert.Equal(t, models.ResolutionDisambiguation, res.Kind)
}

func TestDisambiguate_OptionsFollowScores(t *testing.T) {
	assets := append(twoABC(), models.MergedAsset{Candidate: models.Candidate{Symbol: "ABCL",
		Name: "AbCellera Biologics", Type: models.AssetStock, Source: models.SourceQuote, Confidence: 0.6}})
	scorer := &fakeScorer{scores: []models.RelevanceScore{
		{Index: 0, Score: 0.4},
		{Index: 1, Score: 0.7, Reason: "token intent"},
	}}
	d := NewDisambiguator(scorer, DefaultDisambiguationConfig(), nil)

	res := d.Disambiguate(context.Background(), assets, "abc coin")
	require.Equal(t, models.ResolutionDisambiguation, res.Kind)
	opts := res.Disambiguation.Options
	require.Len(t, opts, 3)
	assert.Equal(t, "ABC Token", opts[0].Name)
	assert.Equal(t, 1, opts[0].ID)
	assert.Equal(t, "AmerisourceBergen", opts[1].Name)
	assert.Equal(t, "ABCL", opts[2].Symbol, "unscored assets follow the scored ones")
	assert.Nil(t, opts[2].RelevanceScore)
	assert.Equal(t, 3, opts[2].ID)
}
