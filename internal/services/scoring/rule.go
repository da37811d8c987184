package scoring

import (
	"context"
	"math"
	"regexp"
	"strings"

	"FinResolve/internal/domain/models"
	domsvc "FinResolve/internal/domain/service"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

var (
	stockWords  = map[string]struct{}{"stock": {}, "stocks": {}, "share": {}, "shares": {}, "equity": {}, "etf": {}, "nasdaq": {}, "nyse": {}, "company": {}}
	cryptoWords = map[string]struct{}{"crypto": {}, "coin": {}, "token": {}, "memecoin": {}, "defi": {}, "chain": {}, "onchain": {}, "blockchain": {}}
)

// RuleScorer scores assets from the words of the query alone: symbol and name overlap
// plus agreement between the asset type and the words the user chose.
type RuleScorer struct{}

var _ domsvc.RelevanceScorer = RuleScorer{}

func NewRuleScorer() RuleScorer { return RuleScorer{} }

func (RuleScorer) Score(_ context.Context, query string, assets []models.MergedAsset) ([]models.RelevanceScore, error) {
	words := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		words[w] = struct{}{}
	}
	wantStock, wantCrypto := hasAny(words, stockWords), hasAny(words, cryptoWords)

	out := make([]models.RelevanceScore, 0, len(assets))
	for i, a := range assets {
		score := 0.3 * a.Confidence
		var reasons []string

		if _, ok := words[strings.ToLower(a.Symbol)]; ok {
			score += 0.5
			reasons = append(reasons, "symbol match")
		} else if nameOverlap(words, a.Name) {
			score += 0.35
			reasons = append(reasons, "name match")
		}
		switch {
		case wantStock && !wantCrypto && a.Type == models.AssetStock,
			wantCrypto && !wantStock && a.Type != models.AssetStock && a.Type != "":
			score += 0.2
			reasons = append(reasons, "type fits query")
		}

		out = append(out, models.RelevanceScore{
			Index:  i,
			Score:  math.Min(1, score),
			Reason: strings.Join(reasons, ", "),
		})
	}
	return out, nil
}

func hasAny(words, set map[string]struct{}) bool {
	for w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// nameOverlap reports whether any name word of three or more letters appears in the query.
func nameOverlap(words map[string]struct{}, name string) bool {
	for _, w := range wordRe.FindAllString(strings.ToLower(name), -1) {
		if len(w) < 3 {
			continue
		}
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}
