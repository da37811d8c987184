package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"FinResolve/internal/domain/models"
	domsvc "FinResolve/internal/domain/service"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const scorePrompt = `Score how relevant each asset is to the query (0-1).
Consider: exact name match, symbol match, asset type, user intent.
Return JSON only: {"scores": [{"asset_id": 0, "score": 0.95, "reason": "exact symbol match"}, ...]}

Query: %s
Assets: %s`

type scoredAsset struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// LLMScorer asks a chat model to rate the assets.
type LLMScorer struct {
	llm         llms.Model
	temperature float64
}

var _ domsvc.RelevanceScorer = (*LLMScorer)(nil)

// NewLLMScorer wraps any langchaingo model.
func NewLLMScorer(llm llms.Model) *LLMScorer {
	return &LLMScorer{llm: llm, temperature: 0.1}
}

// NewOpenAIScorer builds a scorer on the OpenAI chat API. An empty baseURL uses the default endpoint.
func NewOpenAIScorer(apiKey, model, baseURL string) (*LLMScorer, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return NewLLMScorer(llm), nil
}

func (s *LLMScorer) Score(ctx context.Context, query string, assets []models.MergedAsset) ([]models.RelevanceScore, error) {
	in := make([]scoredAsset, 0, len(assets))
	for i, a := range assets {
		in = append(in, scoredAsset{
			ID: i, Name: a.Name, Symbol: a.Symbol, Type: string(a.Type),
			Source: string(a.Source), Confidence: a.Confidence,
		})
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode assets: %w", err)
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, fmt.Sprintf(scorePrompt, query, payload),
		llms.WithJSONMode(), llms.WithTemperature(s.temperature))
	if err != nil {
		return nil, fmt.Errorf("llm score: %w", err)
	}
	return parseScores(out)
}

// parseScores decodes the model answer, tolerating a fenced code block around the JSON.
func parseScores(raw string) ([]models.RelevanceScore, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var body struct {
		Scores []models.RelevanceScore `json:"scores"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &body); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return body.Scores, nil
}
