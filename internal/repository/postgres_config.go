package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nse-mtf/core/internal/config"
	"github.com/nse-mtf/core/internal/domain"
)

// PostgresMtfConfig is the durable domain.MtfConfigStore. The full tunable
// set is wide (§3-§4) so, rather than a fifty-column table, both the single
// global row and any per-symbol override are stored as a jsonb blob and
// unmarshalled into domain.MtfConfig — the same shape config.Defaults()
// returns, so a missing row degrades to the hard-coded defaults.
type PostgresMtfConfig struct {
	pool *pgxpool.Pool
}

// NewPostgresMtfConfig builds a Postgres-backed config store.
func NewPostgresMtfConfig(pool *pgxpool.Pool) *PostgresMtfConfig {
	return &PostgresMtfConfig{pool: pool}
}

func (r *PostgresMtfConfig) Global(ctx context.Context) (domain.MtfConfig, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `select settings from mtf_global_config where id = 1`).Scan(&raw)
	if err == pgx.ErrNoRows {
		return config.Defaults(), nil
	}
	if err != nil {
		return domain.MtfConfig{}, err
	}
	var cfg domain.MtfConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.MtfConfig{}, err
	}
	return cfg, nil
}

func (r *PostgresMtfConfig) Resolve(ctx context.Context, symbol string) (domain.MtfConfig, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `select settings from mtf_symbol_config where symbol = $1`, symbol).Scan(&raw)
	if err == pgx.ErrNoRows {
		return r.Global(ctx)
	}
	if err != nil {
		return domain.MtfConfig{}, err
	}
	var cfg domain.MtfConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.MtfConfig{}, err
	}
	return cfg, nil
}

// SetGlobal upserts the single global config row.
func (r *PostgresMtfConfig) SetGlobal(ctx context.Context, cfg domain.MtfConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		insert into mtf_global_config(id, settings) values (1, $1)
		on conflict (id) do update set settings = excluded.settings
	`, raw)
	return err
}

// SetSymbolOverride upserts a full per-symbol override.
func (r *PostgresMtfConfig) SetSymbolOverride(ctx context.Context, symbol string, cfg domain.MtfConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		insert into mtf_symbol_config(symbol, settings) values ($1, $2)
		on conflict (symbol) do update set settings = excluded.settings
	`, symbol, raw)
	return err
}
