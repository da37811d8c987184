package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"FinResolve/internal/domain/models"

	"github.com/agnivade/levenshtein"
)

const (
	defaultKnownCapacity = 200
	defaultKnownTTL      = 6 * time.Hour
)

// KnownAssets is a bounded, TTL'd memory of previously resolved symbols.
// Entries are never updated in place; the oldest insertion is evicted first.
// Safe for concurrent use.
type KnownAssets struct {
	mu       sync.Mutex
	entries  map[string]models.KnownAssetEntry
	order    []string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// KnownAssetsOption configures KnownAssets.
type KnownAssetsOption func(*KnownAssets)

// WithCapacity caps the number of entries.
func WithCapacity(n int) KnownAssetsOption {
	return func(k *KnownAssets) {
		if n > 0 {
			k.capacity = n
		}
	}
}

// WithTTL sets how long an entry stays usable.
func WithTTL(ttl time.Duration) KnownAssetsOption {
	return func(k *KnownAssets) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) KnownAssetsOption {
	return func(k *KnownAssets) { k.now = now }
}

func NewKnownAssets(opts ...KnownAssetsOption) *KnownAssets {
	k := &KnownAssets{
		entries:  make(map[string]models.KnownAssetEntry),
		capacity: defaultKnownCapacity,
		ttl:      defaultKnownTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Update inserts c unless its symbol is already known. Candidates without a
// symbol or name are ignored. Returns true when an entry was added.
func (k *KnownAssets) Update(c models.Candidate) bool {
	sym := strings.ToUpper(strings.TrimSpace(c.Symbol))
	if sym == "" || strings.TrimSpace(c.Name) == "" {
		return false
	}
	conf := c.Confidence
	if conf <= 0 {
		conf = 0.5
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.pruneLocked(now)
	if _, ok := k.entries[sym]; ok {
		return false
	}

	k.entries[sym] = models.KnownAssetEntry{
		Symbol:     sym,
		Name:       c.Name,
		Type:       c.Type,
		Confidence: models.ClampConfidence(conf, 1),
		InsertedAt: now,
	}
	k.order = append(k.order, sym)
	for len(k.order) > k.capacity {
		oldest := k.order[0]
		k.order = k.order[1:]
		delete(k.entries, oldest)
	}
	return true
}

// Lookup matches term against known assets. An exact case-insensitive symbol hit returns
// that single entry at confidence 1.0. Otherwise symbols and names are scored by
// Similarity and those at or above threshold are returned best first, at most limit.
func (k *KnownAssets) Lookup(term string, threshold float64, limit int) []models.Candidate {
	q := strings.TrimSpace(term)
	if q == "" || limit <= 0 {
		return nil
	}
	upper := strings.ToUpper(q)
	lower := strings.ToLower(q)

	k.mu.Lock()
	k.pruneLocked(k.now())
	if e, ok := k.entries[upper]; ok {
		k.mu.Unlock()
		return []models.Candidate{fromEntry(e, 1.0, models.MatchExact)}
	}
	snapshot := make([]models.KnownAssetEntry, 0, len(k.order))
	for _, sym := range k.order {
		snapshot = append(snapshot, k.entries[sym])
	}
	k.mu.Unlock()

	type scored struct {
		e     models.KnownAssetEntry
		score float64
	}
	var hits []scored
	for _, e := range snapshot {
		s := Similarity(lower, strings.ToLower(e.Symbol))
		if n := Similarity(lower, strings.ToLower(e.Name)); n > s {
			s = n
		}
		if s >= threshold {
			hits = append(hits, scored{e: e, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]models.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, fromEntry(h.e, h.score, models.MatchFuzzy))
	}
	return out
}

// Entries returns a copy of the live entries, oldest first.
func (k *KnownAssets) Entries() []models.KnownAssetEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pruneLocked(k.now())
	out := make([]models.KnownAssetEntry, 0, len(k.order))
	for _, sym := range k.order {
		out = append(out, k.entries[sym])
	}
	return out
}

// Len returns the number of live entries.
func (k *KnownAssets) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pruneLocked(k.now())
	return len(k.order)
}

// pruneLocked drops expired entries. Insertion order equals expiry order, so it stops
// at the first live entry.
func (k *KnownAssets) pruneLocked(now time.Time) {
	i := 0
	for ; i < len(k.order); i++ {
		e := k.entries[k.order[i]]
		if now.Sub(e.InsertedAt) < k.ttl {
			break
		}
		delete(k.entries, k.order[i])
	}
	if i > 0 {
		k.order = append([]string(nil), k.order[i:]...)
	}
}

func fromEntry(e models.KnownAssetEntry, conf float64, match string) models.Candidate {
	return models.Candidate{
		Symbol:          e.Symbol,
		Name:            e.Name,
		Type:            e.Type,
		Source:          models.SourceCache,
		Confidence:      conf,
		PriorConfidence: e.Confidence,
		MatchType:       match,
		Sources:         []models.Source{models.SourceCache},
	}
}

// Similarity is the normalized edit similarity of a and b in [0, 1]: 1 - distance/maxLen.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
