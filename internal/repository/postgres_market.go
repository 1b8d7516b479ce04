package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresCandles is the durable domain.CandleStore, grounded on the
// teacher's PostgresAutoScalpRepository: raw SQL over pgxpool, no ORM.
type PostgresCandles struct {
	pool *pgxpool.Pool
}

// NewPostgresCandles builds a Postgres-backed candle store.
func NewPostgresCandles(pool *pgxpool.Pool) *PostgresCandles {
	return &PostgresCandles{pool: pool}
}

func (r *PostgresCandles) Persist(ctx context.Context, c domain.Candle) error {
	_, err := r.pool.Exec(ctx, `
		insert into candles(symbol, timeframe, open_ts, close_ts, open, high, low, close, volume)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (symbol, timeframe, open_ts) do nothing
	`, c.Symbol, string(c.TF), c.OpenTS, c.CloseTS, c.Open, c.High, c.Low, c.Close, c.Volume)
	return err
}

func (r *PostgresCandles) GetRecent(ctx context.Context, symbol string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	rows, err := r.pool.Query(ctx, `
		select symbol, timeframe, open_ts, close_ts, open, high, low, close, volume
		from candles
		where symbol = $1 and timeframe = $2
		order by close_ts desc
		limit $3
	`, symbol, string(tf), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Candle, 0, n)
	for rows.Next() {
		var c domain.Candle
		var tfStr string
		if err := rows.Scan(&c.Symbol, &tfStr, &c.OpenTS, &c.CloseTS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.TF = domain.Timeframe(tfStr)
		out = append(out, c)
	}
	// reverse into ascending close-time order, matching the in-memory store
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func nullableDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}
