package scoring

import (
	"context"
	"fmt"
	"time"

	"FinResolve/internal/domain/models"
	domsvc "FinResolve/internal/domain/service"
	xhttp "FinResolve/pkg/http"
)

// HTTPScorer delegates scoring to an external relevance service:
// POST {baseURL}/score with {"query", "assets"} answering {"scores": [...]}.
type HTTPScorer struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

var _ domsvc.RelevanceScorer = (*HTTPScorer)(nil)

func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPScorer{
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: 2,
	}
}

type scoreRequest struct {
	Query  string        `json:"query"`
	Assets []scoredAsset `json:"assets"`
}

func (s *HTTPScorer) Score(ctx context.Context, query string, assets []models.MergedAsset) ([]models.RelevanceScore, error) {
	req := scoreRequest{Query: query, Assets: make([]scoredAsset, 0, len(assets))}
	for i, a := range assets {
		req.Assets = append(req.Assets, scoredAsset{
			ID: i, Name: a.Name, Symbol: a.Symbol, Type: string(a.Type),
			Source: string(a.Source), Confidence: a.Confidence,
		})
	}

	var resp struct {
		Scores []models.RelevanceScore `json:"scores"`
	}
	if err := s.postWithRetry(ctx, "/score", req, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

func (s *HTTPScorer) post(ctx context.Context, path string, payload, dest interface{}) error {
	if s.client == nil || s.baseURL == "" {
		return fmt.Errorf("scoring http client not initialized")
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func (s *HTTPScorer) postWithRetry(ctx context.Context, path string, payload, dest interface{}) error {
	var err error
	for i := 1; i <= s.attempts; i++ {
		if err = s.post(ctx, path, payload, dest); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if i < s.attempts {
			select {
			case <-time.After(time.Duration(i) * 100 * time.Millisecond):
			case <-ctx.Done():
				return err
			}
		}
	}
	return err
}
