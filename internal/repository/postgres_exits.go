package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresExitSignals is the durable domain.ExitSignalStore. GenerateEpisode
// delegates to the exit_signals.generate_episode stored function (see
// internal/infrastructure/db/migrate.go), which is the authoritative,
// row-locked source of the 30-second re-arm cooldown (§9) — the in-memory
// mirror kept by internal/sms is a fast-path only.
type PostgresExitSignals struct {
	pool *pgxpool.Pool
}

// NewPostgresExitSignals builds a Postgres-backed exit-signal store.
func NewPostgresExitSignals(pool *pgxpool.Pool) *PostgresExitSignals {
	return &PostgresExitSignals{pool: pool}
}

func (r *PostgresExitSignals) GenerateEpisode(ctx context.Context, _ domain.WriteToken, tradeID uuid.UUID, reason domain.ExitReason) (int64, error) {
	var episode int64
	var cooldownActive bool
	err := r.pool.QueryRow(ctx, `select episode, cooldown_active from generate_episode($1, $2)`, tradeID, string(reason)).
		Scan(&episode, &cooldownActive)
	if err != nil {
		return 0, err
	}
	if cooldownActive {
		return 0, &domain.AlreadyHandled{Reason: domain.ErrCooldownActive}
	}
	return episode, nil
}

func (r *PostgresExitSignals) Insert(ctx context.Context, _ domain.WriteToken, e domain.ExitSignal) error {
	_, err := r.pool.Exec(ctx, `
		insert into exit_signals(
			exit_signal_id, trade_id, symbol, direction, reason, exit_price,
			brick_movement, favorable_movement, episode_id, status, detected_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ExitSignalID, e.TradeID, e.Symbol, string(e.Direction), string(e.Reason), e.ExitPrice,
		e.BrickMovement, e.FavorableMovement, e.EpisodeID, string(e.Status), e.DetectedAt)
	return err
}

func (r *PostgresExitSignals) UpdateStatus(ctx context.Context, _ domain.WriteToken, id uuid.UUID, status domain.ExitSignalStatus) error {
	_, err := r.pool.Exec(ctx, `update exit_signals set status = $2 where exit_signal_id = $1`, id, string(status))
	return err
}

func (r *PostgresExitSignals) Cancel(ctx context.Context, _ domain.WriteToken, id uuid.UUID, _ string) error {
	_, err := r.pool.Exec(ctx, `update exit_signals set status = 'CANCELLED' where exit_signal_id = $1`, id)
	return err
}

func (r *PostgresExitSignals) FindByTradeID(ctx context.Context, tradeID uuid.UUID) ([]domain.ExitSignal, error) {
	rows, err := r.pool.Query(ctx, exitSignalSelect+` where trade_id = $1 order by episode_id`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExitSignals(rows)
}

func (r *PostgresExitSignals) FindByID(ctx context.Context, id uuid.UUID) (domain.ExitSignal, bool, error) {
	rows, err := r.pool.Query(ctx, exitSignalSelect+` where exit_signal_id = $1`, id)
	if err != nil {
		return domain.ExitSignal{}, false, err
	}
	defer rows.Close()
	out, err := scanExitSignals(rows)
	if err != nil || len(out) == 0 {
		return domain.ExitSignal{}, false, err
	}
	return out[0], true, nil
}

const exitSignalSelect = `
	select exit_signal_id, trade_id, symbol, direction, reason, exit_price,
		brick_movement, favorable_movement, episode_id, status, detected_at
	from exit_signals`

func scanExitSignals(rows pgx.Rows) ([]domain.ExitSignal, error) {
	var out []domain.ExitSignal
	for rows.Next() {
		var e domain.ExitSignal
		var direction, reason, status string
		if err := rows.Scan(
			&e.ExitSignalID, &e.TradeID, &e.Symbol, &direction, &reason, &e.ExitPrice,
			&e.BrickMovement, &e.FavorableMovement, &e.EpisodeID, &status, &e.DetectedAt,
		); err != nil {
			return nil, err
		}
		e.Direction = domain.Direction(direction)
		e.Reason = domain.ExitReason(reason)
		e.Status = domain.ExitSignalStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PostgresExitIntents is the durable domain.ExitIntentStore.
type PostgresExitIntents struct {
	pool *pgxpool.Pool
}

// NewPostgresExitIntents builds a Postgres-backed exit-intent store.
func NewPostgresExitIntents(pool *pgxpool.Pool) *PostgresExitIntents {
	return &PostgresExitIntents{pool: pool}
}

func (r *PostgresExitIntents) Insert(ctx context.Context, _ domain.WriteToken, ei domain.ExitIntent) error {
	_, err := r.pool.Exec(ctx, `
		insert into exit_intents(
			exit_intent_id, exit_signal_id, trade_id, user_broker_id, reason, episode_id,
			status, qualification_errors, calculated_qty, order_type, limit_price, product_type, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, ei.ExitIntentID, ei.ExitSignalID, ei.TradeID, ei.UserBrokerID, string(ei.Reason), ei.EpisodeID,
		string(ei.Status), ei.QualificationErrors, ei.CalculatedQty, ei.OrderType, nullableDecimal(ei.LimitPrice),
		string(ei.ProductType), ei.CreatedAt)
	return err
}

func (r *PostgresExitIntents) UpdateStatus(ctx context.Context, _ domain.WriteToken, id uuid.UUID, status domain.ExitIntentStatus) error {
	_, err := r.pool.Exec(ctx, `update exit_intents set status = $2 where exit_intent_id = $1`, id, string(status))
	return err
}
