package usecase

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"FinResolve/internal/domain/models"
)

// ErrInvalidCandidate is returned by Merge when a candidate cannot be reconciled.
var ErrInvalidCandidate = errors.New("invalid candidate")

// DefaultSourcePriority ranks sources from most to least authoritative.
var DefaultSourcePriority = []models.Source{
	models.SourceOnChain,
	models.SourceTokenMetadata,
	models.SourceContract,
	models.SourceQuote,
	models.SourceTokenList,
	models.SourceCache,
}

// sourceBoost is added to the base confidence per additional distinct source.
const sourceBoost = 0.05

// Merger reconciles candidates that name the same symbol.
type Merger interface {
	Merge(cands []models.Candidate) ([]models.MergedAsset, error)
}

// MergeEngine groups candidates by symbol and keeps one asset per group, taken from the
// most authoritative source and backfilled from the rest.
type MergeEngine struct {
	rank map[models.Source]int
}

var _ Merger = (*MergeEngine)(nil)

// NewMergeEngine builds an engine for priority, most authoritative first. Sources not
// listed rank after all listed ones. An empty priority uses DefaultSourcePriority.
func NewMergeEngine(priority []models.Source) *MergeEngine {
	if len(priority) == 0 {
		priority = DefaultSourcePriority
	}
	rank := make(map[models.Source]int, len(priority))
	for i, s := range priority {
		if _, dup := rank[s]; !dup {
			rank[s] = i
		}
	}
	return &MergeEngine{rank: rank}
}

// ParseSourcePriority converts configured names to sources, rejecting unknown ones.
func ParseSourcePriority(names []string) ([]models.Source, error) {
	known := make(map[models.Source]struct{}, len(DefaultSourcePriority))
	for _, s := range DefaultSourcePriority {
		known[s] = struct{}{}
	}
	out := make([]models.Source, 0, len(names))
	for _, n := range names {
		s := models.Source(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := known[s]; !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MergeEngine) priority(s models.Source) int {
	if r, ok := m.rank[s]; ok {
		return r
	}
	return len(m.rank)
}

// Merge returns one asset per distinct symbol and asset class in first-seen order, so a
// stock and a token sharing a ticker stay separate and are both flagged as a conflict.
// Untyped candidates join the first class seen for their symbol. Singletons pass through
// unchanged. For larger groups the base candidate's fields are never overwritten; only
// missing price and market cap are filled from siblings, and confidence gains
// sourceBoost per extra distinct source, capped at MaxConfidence.
func (m *MergeEngine) Merge(cands []models.Candidate) ([]models.MergedAsset, error) {
	firstClass := make(map[string]string)
	for i, c := range cands {
		if err := validateCandidate(c); err != nil {
			return nil, fmt.Errorf("merge candidate %d: %w", i, err)
		}
		sym := symbolKey(c.Symbol)
		if _, ok := firstClass[sym]; !ok && c.Type.Class() != "" {
			firstClass[sym] = c.Type.Class()
		}
	}

	type groupKey struct{ symbol, class string }
	var order []groupKey
	groups := make(map[groupKey][]models.Candidate)
	classes := make(map[string]int)
	for _, c := range cands {
		k := groupKey{symbol: symbolKey(c.Symbol), class: c.Type.Class()}
		if k.class == "" {
			k.class = firstClass[k.symbol]
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			classes[k.symbol]++
		}
		groups[k] = append(groups[k], c)
	}

	out := make([]models.MergedAsset, 0, len(order))
	for _, k := range order {
		a := m.mergeGroup(groups[k])
		a.Conflict = classes[k.symbol] > 1
		out = append(out, a)
	}
	return out, nil
}

func symbolKey(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (m *MergeEngine) mergeGroup(group []models.Candidate) models.MergedAsset {
	if len(group) == 1 {
		c := group[0].Clone()
		if len(c.Sources) == 0 {
			c.Sources = []models.Source{c.Source}
		}
		return models.MergedAsset{Candidate: c}
	}

	sorted := append([]models.Candidate(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return m.priority(sorted[i].Source) < m.priority(sorted[j].Source)
	})

	base := sorted[0].Clone()
	var sources []models.Source
	seen := make(map[models.Source]struct{})
	addSource := func(s models.Source) {
		if _, ok := seen[s]; ok || s == "" {
			return
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}

	for _, c := range sorted {
		addSource(c.Source)
		for _, s := range c.Sources {
			addSource(s)
		}
	}
	for _, c := range sorted[1:] {
		if base.Price == nil && c.Price != nil {
			base.Price = models.Float(*c.Price)
		}
		if base.MarketCap == nil && c.MarketCap != nil {
			base.MarketCap = models.Float(*c.MarketCap)
		}
	}

	extra := len(sources) - 1
	if extra < 0 {
		extra = 0
	}
	base.Sources = sources
	base.Confidence = math.Min(models.MaxConfidence, base.Confidence+sourceBoost*float64(extra))
	return models.MergedAsset{Candidate: base}
}

func validateCandidate(c models.Candidate) error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidCandidate)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: %s confidence %v out of range", ErrInvalidCandidate, c.Symbol, c.Confidence)
	}
	return nil
}

// Rank sorts assets by confidence descending, clamps every confidence to
// [0, MaxConfidence] and trims to maxResults. When trimming, assets above
// highConfidence are kept first, then one asset per source not yet represented.
// The trimmed list may be shorter than maxResults.
func Rank(assets []models.MergedAsset, maxResults int, highConfidence float64) []models.MergedAsset {
	out := make([]models.MergedAsset, len(assets))
	copy(out, assets)
	for i := range out {
		out[i].Confidence = models.ClampConfidence(out[i].Confidence, models.MaxConfidence)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if maxResults <= 0 || len(out) <= maxResults {
		return out
	}

	picked := make([]bool, len(out))
	var kept []int
	represented := make(map[models.Source]struct{})
	take := func(i int) {
		picked[i] = true
		kept = append(kept, i)
		represented[out[i].Source] = struct{}{}
	}

	for i := range out {
		if len(kept) == maxResults {
			break
		}
		if out[i].Confidence > highConfidence {
			take(i)
		}
	}
	for i := range out {
		if len(kept) == maxResults {
			break
		}
		if _, ok := represented[out[i].Source]; !ok && !picked[i] {
			take(i)
		}
	}

	sort.Ints(kept)
	ranked := make([]models.MergedAsset, 0, len(kept))
	for _, i := range kept {
		ranked = append(ranked, out[i])
	}
	return ranked
}
