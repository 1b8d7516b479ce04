package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresTradeIntents is the durable domain.TradeIntentStore: every
// sizing+validation decision the Execution Orchestrator makes, approved or
// rejected (§3, §6). signal_deliveries.intent_id references this table's
// primary key, giving I3 ("no TradeIntent without a preceding delivery
// row") a real foreign key in the other direction — the orchestrator
// always inserts here before SMS.ConsumeDelivery sets the delivery's
// intent_id.
type PostgresTradeIntents struct {
	pool *pgxpool.Pool
}

// NewPostgresTradeIntents builds a Postgres-backed trade-intent store.
func NewPostgresTradeIntents(pool *pgxpool.Pool) *PostgresTradeIntents {
	return &PostgresTradeIntents{pool: pool}
}

func (r *PostgresTradeIntents) Insert(ctx context.Context, _ domain.WriteToken, ti domain.TradeIntent) error {
	_, err := r.pool.Exec(ctx, `
		insert into trade_intents(
			intent_id, signal_id, user_broker_id, decision, quantity, limit_price,
			product_type, errors, broker_order_id, created_at, placed_at, filled_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		ti.IntentID, ti.SignalID, ti.UserBrokerID, string(ti.Decision), ti.Quantity, nullableDecimal(ti.LimitPrice),
		string(ti.ProductType), ti.Errors, ti.BrokerOrderID, ti.CreatedAt, ti.PlacedAt, ti.FilledAt,
	)
	return err
}

func (r *PostgresTradeIntents) MarkPlaced(ctx context.Context, _ domain.WriteToken, id uuid.UUID, brokerOrderID string, placedAt, filledAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		update trade_intents set broker_order_id = $2, placed_at = $3, filled_at = $4
		where intent_id = $1
	`, id, brokerOrderID, placedAt, filledAt)
	return err
}

func (r *PostgresTradeIntents) MarkRejected(ctx context.Context, _ domain.WriteToken, id uuid.UUID, errs []string) error {
	_, err := r.pool.Exec(ctx, `
		update trade_intents set decision = 'REJECTED', errors = $2
		where intent_id = $1
	`, id, errs)
	return err
}

func (r *PostgresTradeIntents) FindByID(ctx context.Context, id uuid.UUID) (domain.TradeIntent, bool, error) {
	rows, err := r.pool.Query(ctx, tradeIntentSelect+` where intent_id = $1`, id)
	if err != nil {
		return domain.TradeIntent{}, false, err
	}
	defer rows.Close()
	out, err := scanTradeIntents(rows)
	if err != nil || len(out) == 0 {
		return domain.TradeIntent{}, false, err
	}
	return out[0], true, nil
}

const tradeIntentSelect = `
	select intent_id, signal_id, user_broker_id, decision, quantity, limit_price,
		product_type, errors, broker_order_id, created_at, placed_at, filled_at
	from trade_intents`

func scanTradeIntents(rows pgx.Rows) ([]domain.TradeIntent, error) {
	var out []domain.TradeIntent
	for rows.Next() {
		var ti domain.TradeIntent
		var decision, productType string
		if err := rows.Scan(
			&ti.IntentID, &ti.SignalID, &ti.UserBrokerID, &decision, &ti.Quantity, &ti.LimitPrice,
			&productType, &ti.Errors, &ti.BrokerOrderID, &ti.CreatedAt, &ti.PlacedAt, &ti.FilledAt,
		); err != nil {
			return nil, err
		}
		ti.Decision = domain.IntentDecision(decision)
		ti.ProductType = domain.ProductType(productType)
		out = append(out, ti)
	}
	return out, rows.Err()
}
