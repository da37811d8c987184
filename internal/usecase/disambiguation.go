package usecase

import (
	"context"
	"sort"
	"time"

	"FinResolve/internal/domain/models"
	domsvc "FinResolve/internal/domain/service"
	applogger "FinResolve/pkg/logger"
)

// DisambiguationConfig tunes auto-selection.
type DisambiguationConfig struct {
	MaxScored     int
	MaxOptions    int
	AutoSelect    float64
	Margin        float64
	ScorerTimeout time.Duration
}

func DefaultDisambiguationConfig() DisambiguationConfig {
	return DisambiguationConfig{
		MaxScored:     10,
		MaxOptions:    5,
		AutoSelect:    0.8,
		Margin:        0.2,
		ScorerTimeout: 5 * time.Second,
	}
}

// Disambiguator picks a single asset when one clearly fits the query, otherwise builds
// the options to show the user.
type Disambiguator struct {
	scorer domsvc.RelevanceScorer
	cfg    DisambiguationConfig
	log    *applogger.Logger
}

// NewDisambiguator accepts a nil scorer, in which case ambiguous results are never auto-selected.
func NewDisambiguator(scorer domsvc.RelevanceScorer, cfg DisambiguationConfig, l *applogger.Logger) *Disambiguator {
	if l == nil {
		l = applogger.Nop()
	}
	return &Disambiguator{scorer: scorer, cfg: cfg, log: l}
}

// Disambiguate turns ranked assets into a Resolution. Assets is always the input list.
func (d *Disambiguator) Disambiguate(ctx context.Context, assets []models.MergedAsset, query string) *models.Resolution {
	res := &models.Resolution{Assets: assets}
	switch len(assets) {
	case 0:
		res.Kind = models.ResolutionEmpty
		res.Assets = []models.MergedAsset{}
		return res
	case 1:
		a := assets[0]
		res.Kind, res.Asset = models.ResolutionAsset, &a
		return res
	}

	scored := assets
	if len(scored) > d.cfg.MaxScored {
		scored = scored[:d.cfg.MaxScored]
	}
	scores := d.score(ctx, query, scored)

	if len(scores) > 0 {
		top := scores[0]
		if top.Score > d.cfg.AutoSelect && (len(scores) == 1 || top.Score-scores[1].Score > d.cfg.Margin) {
			a := assets[top.Index]
			res.Kind, res.Asset = models.ResolutionAsset, &a
			return res
		}
	}

	res.Kind = models.ResolutionDisambiguation
	res.Disambiguation = d.options(assets, scores)
	return res
}

// score returns valid scores sorted by score descending, or nil when the scorer fails.
func (d *Disambiguator) score(ctx context.Context, query string, assets []models.MergedAsset) []models.RelevanceScore {
	if d.scorer == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, d.cfg.ScorerTimeout)
	defer cancel()

	raw, err := d.scorer.Score(sctx, query, assets)
	if err != nil {
		d.log.Warn("relevance scoring failed, offering unscored options", applogger.Error(err))
		return nil
	}
	scores := make([]models.RelevanceScore, 0, len(raw))
	for _, s := range raw {
		if s.Index < 0 || s.Index >= len(assets) {
			continue
		}
		s.Score = models.ClampConfidence(s.Score, 1)
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

func (d *Disambiguator) options(assets []models.MergedAsset, scores []models.RelevanceScore) *models.Disambiguation {
	byIndex := make(map[int]models.RelevanceScore, len(scores))
	for _, s := range scores {
		if _, dup := byIndex[s.Index]; !dup {
			byIndex[s.Index] = s
		}
	}

	// Scored assets come first by score, the rest keep their rank order.
	order := make([]int, len(assets))
	for i := range order {
		order[i] = i
	}
	if len(byIndex) > 0 {
		sort.SliceStable(order, func(i, j int) bool {
			si, iok := byIndex[order[i]]
			sj, jok := byIndex[order[j]]
			if iok != jok {
				return iok
			}
			return iok && si.Score > sj.Score
		})
	}

	n := len(order)
	if n > d.cfg.MaxOptions {
		n = d.cfg.MaxOptions
	}
	opts := make([]models.DisambiguationOption, 0, n)
	for pos, i := range order[:n] {
		a := assets[i]
		opt := models.DisambiguationOption{
			ID:     pos + 1,
			Name:   a.Name,
			Symbol: a.Symbol,
			Type:   a.Type,
			Source: a.Source,
		}
		if s, ok := byIndex[i]; ok {
			opt.RelevanceScore = models.Float(s.Score)
			opt.MatchReason = s.Reason
		}
		switch a.Type {
		case models.AssetStock:
			opt.Exchange = a.Exchange
		default:
			opt.MarketCapRank = a.MarketCapRank
		}
		opts = append(opts, opt)
	}
	return &models.Disambiguation{
		Type:                  string(models.ResolutionDisambiguation),
		Message:               models.DisambiguationMessage,
		Options:               opts,
		RequiresUserSelection: true,
	}
}
