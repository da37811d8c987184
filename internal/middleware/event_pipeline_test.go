package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinResolve/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProc struct {
	mu       sync.Mutex
	failures int
	got      []string
}

func (p *flakyProc) Process(_ context.Context, ev *models.ResolutionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("downstream unavailable")
	}
	p.got = append(p.got, ev.ID)
	return nil
}

func (p *flakyProc) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func ev(id string, outcome models.ResolutionKind) *models.ResolutionEvent {
	return &models.ResolutionEvent{ID: id, Outcome: outcome, CreatedAt: time.Now()}
}

func TestEventPipeline_ValidatesEvents(t *testing.T) {
	p := NewEventPipeline(&flakyProc{}, nil)
	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.ResolutionEvent{Outcome: models.ResolutionAsset, CreatedAt: time.Now()}))
	assert.Error(t, p.Process(context.Background(), ev("x", "maybe")))
	assert.Zero(t, p.Pending())
}

func TestEventPipeline_RetriesUntilDelivered(t *testing.T) {
	proc := &flakyProc{failures: 2}
	p := NewEventPipeline(proc, nil, WithMaxRPS(0), WithPipelineClock(nil, func(time.Duration) {}))
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Process(context.Background(), ev("a", models.ResolutionAsset)))
	assert.Eventually(t, func() bool { return len(proc.ids()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, proc.ids())
}

func TestEventPipeline_ThrottlesPerOutcome(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewEventPipeline(&flakyProc{}, nil, WithMaxRPS(1), WithPipelineClock(func() time.Time { return now }, nil))

	require.NoError(t, p.Process(context.Background(), ev("a", models.ResolutionAsset)))
	require.NoError(t, p.Process(context.Background(), ev("b", models.ResolutionAsset)))
	require.NoError(t, p.Process(context.Background(), ev("c", models.ResolutionEmpty)))
	assert.Equal(t, 2, p.Pending(), "second asset event inside the window is dropped")
}

func TestEventPipeline_FullBufferRejects(t *testing.T) {
	p := NewEventPipeline(&flakyProc{}, nil, WithMaxRPS(0), WithBufferSize(1))
	require.NoError(t, p.Process(context.Background(), ev("a", models.ResolutionAsset)))
	assert.Error(t, p.Process(context.Background(), ev("b", models.ResolutionAsset)))
}
