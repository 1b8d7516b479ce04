package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/domain"
)

// PostgresPortfolios is the durable domain.PortfolioStore.
type PostgresPortfolios struct {
	pool *pgxpool.Pool
}

// NewPostgresPortfolios builds a Postgres-backed portfolio store.
func NewPostgresPortfolios(pool *pgxpool.Pool) *PostgresPortfolios {
	return &PostgresPortfolios{pool: pool}
}

const portfolioSelect = `
	select portfolio_id, user_id, total_capital, available_capital, reserved_capital,
		deployed_capital, max_symbol_weight, max_per_trade, daily_loss_limit, weekly_loss_limit
	from portfolios`

func scanPortfolio(row pgx.Row) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := row.Scan(
		&p.PortfolioID, &p.UserID, &p.TotalCapital, &p.AvailableCapital, &p.ReservedCapital,
		&p.DeployedCapital, &p.MaxSymbolWeight, &p.MaxPerTrade, &p.DailyLossLimit, &p.WeeklyLossLimit,
	)
	return p, err
}

func (r *PostgresPortfolios) FindByID(ctx context.Context, id uuid.UUID) (domain.Portfolio, bool, error) {
	p, err := scanPortfolio(r.pool.QueryRow(ctx, portfolioSelect+` where portfolio_id = $1`, id))
	if err == pgx.ErrNoRows {
		return domain.Portfolio{}, false, nil
	}
	return p, err == nil, err
}

func (r *PostgresPortfolios) FindByUserID(ctx context.Context, userID uuid.UUID) (domain.Portfolio, bool, error) {
	p, err := scanPortfolio(r.pool.QueryRow(ctx, portfolioSelect+` where user_id = $1`, userID))
	if err == pgx.ErrNoRows {
		return domain.Portfolio{}, false, nil
	}
	return p, err == nil, err
}

func (r *PostgresPortfolios) Update(ctx context.Context, p domain.Portfolio) error {
	_, err := r.pool.Exec(ctx, `
		update portfolios set
			total_capital = $2, available_capital = $3, reserved_capital = $4,
			deployed_capital = $5, max_symbol_weight = $6, max_per_trade = $7,
			daily_loss_limit = $8, weekly_loss_limit = $9
		where portfolio_id = $1
	`, p.PortfolioID, p.TotalCapital, p.AvailableCapital, p.ReservedCapital,
		p.DeployedCapital, p.MaxSymbolWeight, p.MaxPerTrade, p.DailyLossLimit, p.WeeklyLossLimit)
	return err
}

// PostgresUserBrokers is the durable domain.UserBrokerStore.
type PostgresUserBrokers struct {
	pool *pgxpool.Pool
}

// NewPostgresUserBrokers builds a Postgres-backed user-broker store.
func NewPostgresUserBrokers(pool *pgxpool.Pool) *PostgresUserBrokers {
	return &PostgresUserBrokers{pool: pool}
}

const userBrokerSelect = `select user_broker_id, user_id, role, enabled, connected from user_brokers`

func (r *PostgresUserBrokers) FindByID(ctx context.Context, id uuid.UUID) (domain.UserBroker, bool, error) {
	var u domain.UserBroker
	var role string
	err := r.pool.QueryRow(ctx, userBrokerSelect+` where user_broker_id = $1`, id).
		Scan(&u.UserBrokerID, &u.UserID, &role, &u.Enabled, &u.Connected)
	if err == pgx.ErrNoRows {
		return domain.UserBroker{}, false, nil
	}
	u.Role = domain.BrokerRole(role)
	return u, err == nil, err
}

func (r *PostgresUserBrokers) FindEnabledByRole(ctx context.Context, role domain.BrokerRole) ([]domain.UserBroker, error) {
	rows, err := r.pool.Query(ctx, userBrokerSelect+` where role = $1 and enabled = true`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserBroker
	for rows.Next() {
		var u domain.UserBroker
		var roleStr string
		if err := rows.Scan(&u.UserBrokerID, &u.UserID, &roleStr, &u.Enabled, &u.Connected); err != nil {
			return nil, err
		}
		u.Role = domain.BrokerRole(roleStr)
		out = append(out, u)
	}
	return out, rows.Err()
}

// PostgresWatchlist is the durable domain.WatchlistStore.
type PostgresWatchlist struct {
	pool *pgxpool.Pool
}

// NewPostgresWatchlist builds a Postgres-backed watchlist store.
func NewPostgresWatchlist(pool *pgxpool.Pool) *PostgresWatchlist {
	return &PostgresWatchlist{pool: pool}
}

func (r *PostgresWatchlist) IsWatched(ctx context.Context, symbol string) (bool, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx, `select enabled from watchlist where symbol = $1`, symbol).Scan(&enabled)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return enabled, err
}

func (r *PostgresWatchlist) All(ctx context.Context) ([]domain.WatchlistEntry, error) {
	rows, err := r.pool.Query(ctx, `select symbol, enabled from watchlist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(&e.Symbol, &e.Enabled); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
