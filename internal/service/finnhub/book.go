package finnhub

import (
	"strings"
	"sync"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
)

// Book keeps the last tick per base symbol. "BINANCE:BTCUSDT" and "BTC" share a slot.
type Book struct {
	mu    sync.RWMutex
	ticks map[string]models.Tick
}

var _ drepo.TickerBook = (*Book)(nil)

func NewBook() *Book {
	return &Book{ticks: make(map[string]models.Tick)}
}

// Put records t if it is newer than what the book holds.
func (b *Book) Put(t models.Tick) {
	key := BaseSymbol(t.Symbol)
	if key == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.ticks[key]; ok && cur.Timestamp.After(t.Timestamp) {
		return
	}
	b.ticks[key] = t
}

// Last returns the latest tick for symbol.
func (b *Book) Last(symbol string) (models.Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.ticks[BaseSymbol(symbol)]
	return t, ok
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}

// BaseSymbol strips an "EXCHANGE:" prefix and a USDT/USD quote suffix.
func BaseSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	for _, suf := range []string{"USDT", "USD"} {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return s[:len(s)-len(suf)]
		}
	}
	return s
}
