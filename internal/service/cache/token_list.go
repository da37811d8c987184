package cache

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"FinResolve/internal/domain/models"
)

// TopTokenLoader fetches the current top tokens by market cap.
type TopTokenLoader interface {
	TopTokens(ctx context.Context, limit int) ([]models.Candidate, error)
}

// TokenList is a warm snapshot of the top tokens used to answer popular crypto
// queries without a search round trip. The snapshot reloads lazily once stale.
type TokenList struct {
	loader TopTokenLoader
	size   int
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	tokens   []models.Candidate
	loadedAt time.Time
	loading  sync.Mutex
}

// NewTokenList builds a list of size tokens refreshed every ttl.
func NewTokenList(loader TopTokenLoader, size int, ttl time.Duration) *TokenList {
	if size <= 0 {
		size = 250
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenList{loader: loader, size: size, ttl: ttl, now: time.Now}
}

// Refresh reloads the snapshot. A failed load keeps the previous snapshot.
func (l *TokenList) Refresh(ctx context.Context) error {
	l.loading.Lock()
	defer l.loading.Unlock()

	tokens, err := l.loader.TopTokens(ctx, l.size)
	if err != nil {
		return fmt.Errorf("token list refresh: %w", err)
	}
	l.mu.Lock()
	l.tokens = tokens
	l.loadedAt = l.now()
	l.mu.Unlock()
	return nil
}

func (l *TokenList) stale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt.IsZero() || l.now().Sub(l.loadedAt) >= l.ttl
}

// Match finds term in the snapshot, refreshing it first when stale. Exact symbol or
// name hits score 1.0; otherwise a symbol similarity of at least 0.8 or a name
// similarity of at least 0.7 qualifies. Results are ordered by confidence then
// market-cap rank, at most limit.
func (l *TokenList) Match(ctx context.Context, term string, limit int) ([]models.Candidate, error) {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	if l.stale() {
		if err := l.Refresh(ctx); err != nil && l.empty() {
			return nil, err
		}
	}

	l.mu.RLock()
	tokens := l.tokens
	l.mu.RUnlock()

	var out []models.Candidate
	for _, tok := range tokens {
		sym, name := strings.ToLower(tok.Symbol), strings.ToLower(tok.Name)
		c := tok.Clone()
		c.Source = models.SourceTokenList
		c.Sources = []models.Source{models.SourceTokenList}
		if sym == q || name == q {
			c.Confidence, c.MatchType = 1.0, models.MatchExact
			out = append(out, c)
			continue
		}
		symRatio, nameRatio := Similarity(q, sym), Similarity(q, name)
		if symRatio >= 0.8 || nameRatio >= 0.7 {
			c.Confidence, c.MatchType = math.Max(symRatio, nameRatio), models.MatchFuzzy
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return rankOf(out[i]) < rankOf(out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *TokenList) empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tokens) == 0
}

// Len returns the snapshot size.
func (l *TokenList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tokens)
}

func rankOf(c models.Candidate) int {
	if c.MarketCapRank == nil {
		return math.MaxInt32
	}
	return *c.MarketCapRank
}
