package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
)

// EventsTable is the ClickHouse table resolution events land in.
const EventsTable = "resolution_events"

// EventSchema returns the DDL for the events table in database db.
func EventSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id             String,
    created_at     DateTime64(3, 'UTC'),
    query          String,
    terms          Array(String),
    outcome        LowCardinality(String),
    result_count   UInt16,
    top_symbol     LowCardinality(String),
    top_source     LowCardinality(String),
    symbols        Array(String),
    breaker_open   Bool,
    fast_path_hits UInt16,
    duration_ms    UInt32
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (top_symbol, created_at)
TTL toDateTime(created_at) + INTERVAL 90 DAY`, db, EventsTable),
	}
}

// sqlConn is the slice of *sql.DB the store needs.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// ClickHouseEventStore writes resolution events with multi-row inserts.
type ClickHouseEventStore struct {
	db        sqlConn
	table     string
	chunkSize int
}

var _ drepo.EventStore = (*ClickHouseEventStore)(nil)

func NewClickHouseEventStore(db sqlConn, table string) *ClickHouseEventStore {
	if table == "" {
		table = EventsTable
	}
	return &ClickHouseEventStore{db: db, table: table, chunkSize: 2000}
}

const eventColumns = "id, created_at, query, terms, outcome, result_count, top_symbol, top_source, symbols, breaker_open, fast_path_hits, duration_ms"

func eventArgs(ev *models.ResolutionEvent) []interface{} {
	terms, symbols := ev.Terms, ev.Symbols
	if terms == nil {
		terms = []string{}
	}
	if symbols == nil {
		symbols = []string{}
	}
	return []interface{}{
		ev.ID, ev.CreatedAt.UTC(), ev.Query, terms, string(ev.Outcome),
		uint16(ev.ResultCount), ev.TopSymbol, string(ev.TopSource), symbols,
		ev.BreakerOpen, uint16(ev.FastPathHits), uint32(ev.DurationMs),
	}
}

func (s *ClickHouseEventStore) Store(ctx context.Context, ev *models.ResolutionEvent) error {
	return s.StoreBatch(ctx, []*models.ResolutionEvent{ev})
}

// StoreBatch skips nil and id-less events.
func (s *ClickHouseEventStore) StoreBatch(ctx context.Context, evs []*models.ResolutionEvent) error {
	for start := 0; start < len(evs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(evs) {
			end = len(evs)
		}

		rows := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, ev := range evs[start:end] {
			if ev == nil || ev.ID == "" {
				continue
			}
			rows = append(rows, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, eventArgs(ev)...)
		}
		if len(rows) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, eventColumns, strings.Join(rows, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %d events: %w", len(rows), err)
		}
	}
	return nil
}

// Query returns the newest events at or after since. An empty symbol matches every event.
func (s *ClickHouseEventStore) Query(ctx context.Context, symbol string, since time.Time, limit int) ([]*models.ResolutionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	where := "created_at >= ?"
	args := []interface{}{since.UTC()}
	if symbol != "" {
		where += " AND (top_symbol = ? OR has(symbols, ?))"
		sym := strings.ToUpper(symbol)
		args = append(args, sym, sym)
	}
	args = append(args, limit)

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?", eventColumns, s.table, where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ResolutionEvent, 0)
	for rows.Next() {
		var (
			ev              models.ResolutionEvent
			outcome, source string
			count, hits     uint16
			dur             uint32
		)
		if err := rows.Scan(&ev.ID, &ev.CreatedAt, &ev.Query, &ev.Terms, &outcome, &count,
			&ev.TopSymbol, &source, &ev.Symbols, &ev.BreakerOpen, &hits, &dur); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Outcome = models.ResolutionKind(outcome)
		ev.TopSource = models.Source(source)
		ev.ResultCount = int(count)
		ev.FastPathHits = int(hits)
		ev.DurationMs = int64(dur)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *ClickHouseEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *ClickHouseEventStore) Close() error { return nil }
