package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"FinResolve/internal/domain/models"
)

// wait blocks for d or until ctx ends.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeQuotes struct {
	search map[string][]models.Candidate
	pair   map[string][]models.Candidate
	quotes map[string]*models.Candidate
	delay  time.Duration
	err    error
	calls  atomic.Int32
}

func (f *fakeQuotes) SearchByTerm(ctx context.Context, term string) ([]models.Candidate, error) {
	f.calls.Add(1)
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.search[strings.ToUpper(term)], nil
}

func (f *fakeQuotes) SearchUSDPair(ctx context.Context, term string) ([]models.Candidate, error) {
	f.calls.Add(1)
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.pair[strings.ToUpper(term)], nil
}

func (f *fakeQuotes) QuoteBySymbol(ctx context.Context, symbol string, _ models.AssetType) (*models.Candidate, error) {
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes[strings.ToUpper(symbol)], nil
}

type fakeMetadata struct {
	search   map[string][]models.Candidate
	byID     map[string]*models.Candidate
	contract map[string]*models.Candidate
	delay    time.Duration
}

func (f *fakeMetadata) SearchByTerm(ctx context.Context, term string) ([]models.Candidate, error) {
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.search[strings.ToUpper(term)], nil
}

func (f *fakeMetadata) LookupByID(ctx context.Context, id string) (*models.Candidate, error) {
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.byID[id], nil
}

func (f *fakeMetadata) TopTokens(context.Context, int) ([]models.Candidate, error) {
	return nil, nil
}

func (f *fakeMetadata) LookupByContract(ctx context.Context, chain, address string) (*models.Candidate, error) {
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	c := f.contract[strings.ToLower(address)]
	if c == nil || (c.Chain != "" && c.Chain != chain) {
		return nil, nil
	}
	out := c.Clone()
	return &out, nil
}

type failingMerger struct {
	mu    sync.Mutex
	calls int
}

func (m *failingMerger) Merge([]models.Candidate) ([]models.MergedAsset, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return nil, ErrInvalidCandidate
}

type fakeScorer struct {
	scores []models.RelevanceScore
	err    error
	query  string
}

func (s *fakeScorer) Score(_ context.Context, query string, _ []models.MergedAsset) ([]models.RelevanceScore, error) {
	s.query = query
	return s.scores, s.err
}

// fakeStrategy returns a fixed enrichment after delay.
type fakeStrategy struct {
	name  string
	res   *models.Enrichment
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Enrich(ctx context.Context, _ models.Candidate) (*models.Enrichment, error) {
	s.calls.Add(1)
	if err := wait(ctx, s.delay); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.res == nil {
		return nil, nil
	}
	out := *s.res
	return &out, nil
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []*models.ResolutionEvent
}

func (s *sinkRecorder) Process(_ context.Context, ev *models.ResolutionEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}
