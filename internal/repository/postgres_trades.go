package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresTrades is the durable domain.TradeStore. §9 forbids any
// in-memory open-trade cache elsewhere in the repository; every read here
// goes straight to the server.
type PostgresTrades struct {
	pool *pgxpool.Pool
}

// NewPostgresTrades builds a Postgres-backed trade store.
func NewPostgresTrades(pool *pgxpool.Pool) *PostgresTrades {
	return &PostgresTrades{pool: pool}
}

func (r *PostgresTrades) Insert(ctx context.Context, _ domain.WriteToken, t domain.Trade) error {
	_, err := r.pool.Exec(ctx, `
		insert into trades(
			trade_id, signal_id, user_broker_id, portfolio_id, symbol, direction,
			entry_price, entry_qty, entry_ts, entry_effective_floor, entry_effective_ceiling,
			exit_target_price, trailing_active, trailing_highest_price, trailing_stop_price,
			status, closed_at, exit_price, exit_reason
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		t.TradeID, t.SignalID, t.UserBrokerID, t.PortfolioID, t.Symbol, string(t.Direction),
		t.EntryPrice, t.EntryQty, t.EntryTS, t.EntryEffectiveFloor, t.EntryEffectiveCeiling,
		t.ExitTargetPrice, t.TrailingActive, t.TrailingHighestPrice, t.TrailingStopPrice,
		string(t.Status), t.ClosedAt, nullableDecimal(t.ExitPrice), t.ExitReason,
	)
	return err
}

func (r *PostgresTrades) Update(ctx context.Context, _ domain.WriteToken, t domain.Trade) error {
	_, err := r.pool.Exec(ctx, `
		update trades set
			exit_target_price = $2,
			trailing_active = $3,
			trailing_highest_price = $4,
			trailing_stop_price = $5,
			status = $6,
			closed_at = $7,
			exit_price = $8,
			exit_reason = $9
		where trade_id = $1
	`,
		t.TradeID, t.ExitTargetPrice, t.TrailingActive, t.TrailingHighestPrice, t.TrailingStopPrice,
		string(t.Status), t.ClosedAt, nullableDecimal(t.ExitPrice), t.ExitReason,
	)
	return err
}

func (r *PostgresTrades) FindBySymbol(ctx context.Context, symbol string) ([]domain.Trade, error) {
	rows, err := r.pool.Query(ctx, tradeSelect+` where symbol = $1`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (r *PostgresTrades) FindByPortfolioID(ctx context.Context, portfolioID uuid.UUID) ([]domain.Trade, error) {
	rows, err := r.pool.Query(ctx, tradeSelect+` where portfolio_id = $1`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (r *PostgresTrades) FindByID(ctx context.Context, id uuid.UUID) (domain.Trade, bool, error) {
	rows, err := r.pool.Query(ctx, tradeSelect+` where trade_id = $1`, id)
	if err != nil {
		return domain.Trade{}, false, err
	}
	defer rows.Close()
	out, err := scanTrades(rows)
	if err != nil || len(out) == 0 {
		return domain.Trade{}, false, err
	}
	return out[0], true, nil
}

const tradeSelect = `
	select trade_id, signal_id, user_broker_id, portfolio_id, symbol, direction,
		entry_price, entry_qty, entry_ts, entry_effective_floor, entry_effective_ceiling,
		exit_target_price, trailing_active, trailing_highest_price, trailing_stop_price,
		status, closed_at, exit_price, exit_reason
	from trades`

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction, status string
		if err := rows.Scan(
			&t.TradeID, &t.SignalID, &t.UserBrokerID, &t.PortfolioID, &t.Symbol, &direction,
			&t.EntryPrice, &t.EntryQty, &t.EntryTS, &t.EntryEffectiveFloor, &t.EntryEffectiveCeiling,
			&t.ExitTargetPrice, &t.TrailingActive, &t.TrailingHighestPrice, &t.TrailingStopPrice,
			&status, &t.ClosedAt, &t.ExitPrice, &t.ExitReason,
		); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		t.Status = domain.TradeStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
