package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresSignals is the durable domain.SignalStore. The dedupe tuple of
// §6 is enforced by a real unique index (see
// internal/infrastructure/db/migrate.go) rather than in application code.
type PostgresSignals struct {
	pool *pgxpool.Pool
}

// NewPostgresSignals builds a Postgres-backed signal store.
func NewPostgresSignals(pool *pgxpool.Pool) *PostgresSignals {
	return &PostgresSignals{pool: pool}
}

func (r *PostgresSignals) Insert(ctx context.Context, _ domain.WriteToken, s domain.Signal) error {
	_, err := r.pool.Exec(ctx, `
		insert into signals(
			signal_id, symbol, direction, confluence_type, confluence_score, strength,
			p_win, p_fill, kelly, reference_price, effective_floor, effective_ceiling,
			generated_at, expires_at, status, version
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		s.SignalID, s.Symbol, string(s.Direction), string(s.ConfluenceType), s.ConfluenceScore, string(s.Strength),
		s.PWin, s.PFill, s.Kelly, s.ReferencePrice, s.EffectiveFloor, s.EffectiveCeiling,
		s.GeneratedAt, s.ExpiresAt, string(s.Status), s.Version,
	)
	if isUniqueViolation(err) {
		return &domain.AlreadyHandled{Reason: "signal dedupe collision"}
	}
	return err
}

func (r *PostgresSignals) UpdateStatus(ctx context.Context, _ domain.WriteToken, id uuid.UUID, status domain.SignalStatus) error {
	_, err := r.pool.Exec(ctx, `update signals set status = $2 where signal_id = $1`, id, string(status))
	return err
}

func (r *PostgresSignals) FindBySymbolAndStatus(ctx context.Context, symbol string, status domain.SignalStatus) ([]domain.Signal, error) {
	rows, err := r.pool.Query(ctx, signalSelect+` where symbol = $1 and status = $2 order by generated_at`, symbol, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (r *PostgresSignals) FindExpiringSoon(ctx context.Context, window time.Duration) ([]domain.Signal, error) {
	cutoff := time.Now().UTC().Add(window)
	rows, err := r.pool.Query(ctx, signalSelect+` where status = $1 and expires_at < $2`, string(domain.SignalPublished), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (r *PostgresSignals) FindByID(ctx context.Context, id uuid.UUID) (domain.Signal, bool, error) {
	rows, err := r.pool.Query(ctx, signalSelect+` where signal_id = $1`, id)
	if err != nil {
		return domain.Signal{}, false, err
	}
	defer rows.Close()
	out, err := scanSignals(rows)
	if err != nil || len(out) == 0 {
		return domain.Signal{}, false, err
	}
	return out[0], true, nil
}

const signalSelect = `
	select signal_id, symbol, direction, confluence_type, confluence_score, strength,
		p_win, p_fill, kelly, reference_price, effective_floor, effective_ceiling,
		generated_at, expires_at, status, version
	from signals`

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	var out []domain.Signal
	for rows.Next() {
		var s domain.Signal
		var direction, confType, strength, status string
		if err := rows.Scan(
			&s.SignalID, &s.Symbol, &direction, &confType, &s.ConfluenceScore, &strength,
			&s.PWin, &s.PFill, &s.Kelly, &s.ReferencePrice, &s.EffectiveFloor, &s.EffectiveCeiling,
			&s.GeneratedAt, &s.ExpiresAt, &status, &s.Version,
		); err != nil {
			return nil, err
		}
		s.Direction = domain.Direction(direction)
		s.ConfluenceType = domain.ConfluenceType(confType)
		s.Strength = domain.Strength(strength)
		s.Status = domain.SignalStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PostgresDeliveries is the durable domain.SignalDeliveryStore.
type PostgresDeliveries struct {
	pool *pgxpool.Pool
}

// NewPostgresDeliveries builds a Postgres-backed delivery store.
func NewPostgresDeliveries(pool *pgxpool.Pool) *PostgresDeliveries {
	return &PostgresDeliveries{pool: pool}
}

func (r *PostgresDeliveries) Insert(ctx context.Context, _ domain.WriteToken, d domain.SignalDelivery) error {
	_, err := r.pool.Exec(ctx, `
		insert into signal_deliveries(delivery_id, signal_id, user_broker_id, user_id, status, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, d.DeliveryID, d.SignalID, d.UserBrokerID, d.UserID, string(d.Status), d.CreatedAt)
	return err
}

func (r *PostgresDeliveries) FindAllActiveForIndex(ctx context.Context) ([]domain.SignalDelivery, error) {
	rows, err := r.pool.Query(ctx, deliverySelect+` where status in ('CREATED','DELIVERED')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (r *PostgresDeliveries) ExpireAllForSignal(ctx context.Context, _ domain.WriteToken, signalID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		update signal_deliveries set status = 'EXPIRED'
		where signal_id = $1 and status in ('CREATED','DELIVERED')
	`, signalID)
	return err
}

func (r *PostgresDeliveries) CancelAllForSignal(ctx context.Context, _ domain.WriteToken, signalID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		update signal_deliveries set status = 'REJECTED'
		where signal_id = $1 and status in ('CREATED','DELIVERED')
	`, signalID)
	return err
}

func (r *PostgresDeliveries) UpdateStatus(ctx context.Context, _ domain.WriteToken, id uuid.UUID, status domain.DeliveryStatus, intentID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		update signal_deliveries set status = $2, intent_id = $3 where delivery_id = $1
	`, id, string(status), intentID)
	return err
}

func (r *PostgresDeliveries) FindByID(ctx context.Context, id uuid.UUID) (domain.SignalDelivery, bool, error) {
	rows, err := r.pool.Query(ctx, deliverySelect+` where delivery_id = $1`, id)
	if err != nil {
		return domain.SignalDelivery{}, false, err
	}
	defer rows.Close()
	out, err := scanDeliveries(rows)
	if err != nil || len(out) == 0 {
		return domain.SignalDelivery{}, false, err
	}
	return out[0], true, nil
}

const deliverySelect = `
	select delivery_id, signal_id, user_broker_id, user_id, status, intent_id, created_at, delivered_at, consumed_at, user_action_at
	from signal_deliveries`

func scanDeliveries(rows pgx.Rows) ([]domain.SignalDelivery, error) {
	var out []domain.SignalDelivery
	for rows.Next() {
		var d domain.SignalDelivery
		var status string
		if err := rows.Scan(
			&d.DeliveryID, &d.SignalID, &d.UserBrokerID, &d.UserID, &status, &d.IntentID,
			&d.CreatedAt, &d.DeliveredAt, &d.ConsumedAt, &d.UserActionAt,
		); err != nil {
			return nil, err
		}
		d.Status = domain.DeliveryStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && pgErrCode(err) == "23505"
}
