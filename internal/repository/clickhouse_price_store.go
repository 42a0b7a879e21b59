package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"regexp"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	pkgch "FinForecast/pkg/clickhouse"
	"FinForecast/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CHPriceStore reads daily closes from a ClickHouse table
// (symbol, date, close, adj_close). It is an alternative PriceProvider for
// deployments that mirror market data locally.
type CHPriceStore struct {
	db     *sql.DB
	table  string
	l      *logger.Logger
	notice io.Writer
}

// NewCHPriceStore validates the identifiers since they are interpolated into SQL.
func NewCHPriceStore(ch *pkgch.Client, database, table string) (*CHPriceStore, error) {
	if !identRe.MatchString(database) || !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table %q.%q", database, table)
	}
	return &CHPriceStore{db: ch.DB(), table: database + "." + table, l: logger.Nop()}, nil
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *logger.Logger) { s.l = l }

// SetNoticeWriter sets where the human-readable fetch notice is printed.
func (s *CHPriceStore) SetNoticeWriter(w io.Writer) { s.notice = w }

// SchemaStatements returns the idempotent DDL for the backing table.
func (s *CHPriceStore) SchemaStatements() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol    LowCardinality(String),
            date      Date,
            close     Float64,
            adj_close Nullable(Float64)
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (symbol, date)
    `, s.table)}
}

func (s *CHPriceStore) Fetch(ctx context.Context, symbols []string, start, end time.Time) (*models.PriceTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	began := time.Now()
	if s.notice != nil {
		fmt.Fprintf(s.notice, "Fetching data for %v...\n", symbols)
	}

	q := fmt.Sprintf(`
        SELECT symbol, date, close, adj_close
        FROM %s FINAL
        WHERE symbol IN (?) AND date >= ? AND date < ?
        ORDER BY symbol, date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbols, start, end)
	if err != nil {
		s.l.Error("clickhouse fetch query error",
			logger.String("table", s.table),
			logger.Strings("symbols", symbols),
			logger.Error(err),
		)
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	bars := make(map[string][]models.Bar, len(symbols))
	n := 0
	for rows.Next() {
		var (
			sym  string
			b    models.Bar
			adjN sql.NullFloat64
		)
		if err := rows.Scan(&sym, &b.Date, &b.Close, &adjN); err != nil {
			s.l.Error("clickhouse fetch scan error", logger.String("table", s.table), logger.Error(err))
			return nil, fmt.Errorf("scan price: %w", err)
		}
		b.AdjClose = math.NaN()
		if adjN.Valid {
			b.AdjClose = adjN.Float64
		}
		bars[sym] = append(bars[sym], b)
		n++
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse fetch rows error", logger.String("table", s.table), logger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}

	for _, sym := range symbols {
		if len(bars[sym]) == 0 {
			s.l.Warn("no price data for symbol", logger.String("symbol", sym), logger.String("table", s.table))
		}
	}
	s.l.Info("clickhouse fetch ok",
		logger.String("table", s.table),
		logger.Int("rows", n),
		logger.Duration("duration_ms", time.Since(began)),
	)

	table, err := buildTable(symbols, bars)
	if err != nil {
		return nil, fmt.Errorf("clickhouse %v: %w", symbols, err)
	}
	return table, nil
}

var _ domrepo.PriceProvider = (*CHPriceStore)(nil)
