package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/service/metrics"
	"FinResolve/internal/service/ratelimit"
	pkgcache "FinResolve/pkg/cache"
	xhttp "FinResolve/pkg/http"
	applogger "FinResolve/pkg/logger"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidInput marks a request rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a provider 404; adapters report it as "no data".
	ErrNotFound = errors.New("not found")
)

// ProviderError carries the upstream status for logs and metrics.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Base is the shared foundation of every REST provider adapter: one HTTP client,
// a per-provider rate limit, a response cache and request coalescing.
type Base struct {
	name    string
	baseURL string
	headers map[string]string
	auth    map[string]string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	cache   pkgcache.Service
	metrics drepo.Metrics
	log     *applogger.Logger
	group   singleflight.Group

	// fetchTimeout bounds a shared upstream request, independent of any one caller.
	fetchTimeout time.Duration
}

// BaseOption configures Base.
type BaseOption func(*Base)

// WithHeader adds a header sent on every request (API keys).
func WithHeader(k, v string) BaseOption {
	return func(b *Base) {
		if v != "" {
			b.headers[k] = v
		}
	}
}

// WithAuthParam adds a query parameter sent on every request but kept out of cache keys.
func WithAuthParam(k, v string) BaseOption {
	return func(b *Base) {
		if v != "" {
			b.auth[k] = v
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *xhttp.Client) BaseOption {
	return func(b *Base) { b.client = c }
}

// WithLimiter sets the shared rate limiter; the provider name is the bucket key.
func WithLimiter(l *ratelimit.Limiter) BaseOption {
	return func(b *Base) { b.limiter = l }
}

// WithCache sets the response cache.
func WithCache(c pkgcache.Service) BaseOption {
	return func(b *Base) { b.cache = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m drepo.Metrics) BaseOption {
	return func(b *Base) { b.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) BaseOption {
	return func(b *Base) { b.log = l }
}

// WithFetchTimeout bounds each upstream request shared by coalesced callers.
func WithFetchTimeout(d time.Duration) BaseOption {
	return func(b *Base) {
		if d > 0 {
			b.fetchTimeout = d
		}
	}
}

// NewBase builds a provider base for baseURL.
func NewBase(name, baseURL string, opts ...BaseOption) *Base {
	b := &Base{
		name:    name,
		baseURL: baseURL,
		headers: map[string]string{},
		auth:    map[string]string{},
		metrics: metrics.Nop{},
		log:     applogger.Nop(),

		fetchTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = xhttp.NewClient(xhttp.WithTimeout(10*time.Second), xhttp.WithUserAgent("finresolve/1.0"))
	}
	return b
}

// Name returns the provider name used in logs, metrics and rate-limit keys.
func (b *Base) Name() string { return b.name }

// Log returns the provider logger.
func (b *Base) Log() *applogger.Logger { return b.log }

// GetJSON performs a cached GET of path with query and decodes the JSON body into dest.
// ttl <= 0 bypasses the cache. Identical concurrent requests share one upstream call,
// which runs detached from every caller; each caller stops waiting when its own ctx ends.
func (b *Base) GetJSON(ctx context.Context, path string, query map[string][]string, ttl time.Duration, dest interface{}) error {
	key := pkgcache.GenerateKeyWithParams(b.name, path, encodeQuery(query))

	if ttl > 0 && b.cache != nil {
		var cached []byte
		if err := b.cache.Get(ctx, key, &cached); err == nil {
			b.metrics.RecordCacheLookup(b.name, true)
			return decodeBody(b.name, cached, dest)
		}
		b.metrics.RecordCacheLookup(b.name, false)
	}

	ch := b.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.fetchTimeout)
		defer cancel()
		body, err := b.fetch(fctx, path, query)
		if err == nil && ttl > 0 && b.cache != nil {
			if err := b.cache.Set(fctx, key, body, ttl); err != nil {
				b.log.Debug("provider cache set failed", applogger.String("provider", b.name), applogger.Error(err))
			}
		}
		return body, err
	})

	select {
	case <-ctx.Done():
		return &ProviderError{Provider: b.name, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return decodeBody(b.name, res.Val.([]byte), dest)
	}
}

func (b *Base) fetch(ctx context.Context, path string, query map[string][]string) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, b.name); err != nil {
			return nil, &ProviderError{Provider: b.name, Err: err}
		}
	}

	params := make(map[string][]string, len(query)+len(b.auth))
	for k, v := range query {
		params[k] = v
	}
	for k, v := range b.auth {
		params[k] = []string{v}
	}

	var body []byte
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		Headers:     b.headers,
		QueryParams: params,
	}, &body)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			if se.Code == http.StatusNotFound {
				return nil, ErrNotFound
			}
			return nil, &ProviderError{Provider: b.name, Status: se.Code, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ProviderError{Provider: b.name, Err: ctxErr}
		}
		return nil, &ProviderError{Provider: b.name, Err: err}
	}
	return body, nil
}

// Observe records the outcome of one adapter operation and logs failures at the right level:
// timeouts at debug, upstream errors at warn with status.
func (b *Base) Observe(op string, start time.Time, err error, n int) {
	switch {
	case errors.Is(err, ErrNotFound):
		err, n = nil, 0
	case errors.Is(err, ErrInvalidInput):
		b.metrics.RecordProviderCall(b.name, metrics.OutcomeInvalid)
		return
	}
	outcome := metrics.ObserveProvider(b.metrics, b.name, start, err, n)
	switch outcome {
	case metrics.OutcomeTimeout:
		b.log.Debug("provider timeout", applogger.String("provider", b.name), applogger.String("op", op))
	case metrics.OutcomeError:
		fields := []applogger.Field{applogger.String("provider", b.name), applogger.String("op", op), applogger.Error(err)}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status > 0 {
			fields = append(fields, applogger.Int("status", pe.Status))
		}
		b.log.Warn("provider error", fields...)
	}
}

func decodeBody(provider string, body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return &ProviderError{Provider: provider, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// encodeQuery sorts by key, which keeps cache keys stable.
func encodeQuery(q map[string][]string) string {
	if len(q) == 0 {
		return ""
	}
	return url.Values(q).Encode()
}
