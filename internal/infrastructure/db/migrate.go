package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the tables and stored functions this app needs.
// This keeps setup simple (no external migration tool), but still gives
// persistence and the server-side guarantees (the dedupe unique index,
// the episode cooldown function) application code alone cannot enforce
// across multiple processes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists candles (
			symbol text not null,
			timeframe text not null,
			open_ts timestamptz not null,
			close_ts timestamptz not null,
			open numeric not null,
			high numeric not null,
			low numeric not null,
			close numeric not null,
			volume numeric not null default 0,
			primary key (symbol, timeframe, open_ts)
		);`,
		`create index if not exists candles_symbol_tf_close_idx on candles(symbol, timeframe, close_ts desc);`,

		`create table if not exists signals (
			signal_id uuid primary key,
			symbol text not null,
			direction text not null,
			confluence_type text not null,
			confluence_score numeric not null,
			strength text not null,
			p_win numeric not null,
			p_fill numeric not null,
			kelly numeric not null,
			reference_price numeric not null,
			effective_floor numeric not null,
			effective_ceiling numeric not null,
			generated_at timestamptz not null,
			expires_at timestamptz not null,
			status text not null,
			version int not null default 1
		);`,
		`create unique index if not exists signals_dedupe_idx
			on signals(symbol, confluence_type, (generated_at::date), effective_floor, effective_ceiling);`,
		`create index if not exists signals_symbol_status_idx on signals(symbol, status);`,
		`create index if not exists signals_expires_at_idx on signals(expires_at) where status = 'PUBLISHED';`,

		// trade_intents holds the immutable sizing+validation snapshot the
		// Execution Orchestrator builds for every delivery, approved or
		// rejected (§3, §6). It is created before signal_deliveries so that
		// table's intent_id column can reference it directly (I3: "no
		// TradeIntent without a preceding delivery row" — and, in the other
		// direction, no delivery may point at an intent that was never
		// persisted).
		`create table if not exists trade_intents (
			intent_id uuid primary key,
			signal_id uuid not null,
			user_broker_id uuid not null,
			decision text not null,
			quantity bigint not null default 0,
			limit_price numeric null,
			product_type text not null default 'MIS',
			errors text[] not null default '{}',
			broker_order_id text null,
			created_at timestamptz not null default now(),
			placed_at timestamptz null,
			filled_at timestamptz null
		);`,
		`create index if not exists trade_intents_signal_idx on trade_intents(signal_id);`,

		`create table if not exists signal_deliveries (
			delivery_id uuid primary key,
			signal_id uuid not null references signals(signal_id),
			user_broker_id uuid not null,
			user_id uuid not null,
			status text not null,
			intent_id uuid null references trade_intents(intent_id),
			created_at timestamptz not null default now(),
			delivered_at timestamptz null,
			consumed_at timestamptz null,
			user_action_at timestamptz null
		);`,
		`create index if not exists signal_deliveries_active_idx on signal_deliveries(status) where status in ('CREATED','DELIVERED');`,
		`create index if not exists signal_deliveries_signal_idx on signal_deliveries(signal_id);`,

		`create table if not exists trades (
			trade_id uuid primary key,
			signal_id uuid not null,
			user_broker_id uuid not null,
			portfolio_id uuid not null,
			symbol text not null,
			direction text not null,
			entry_price numeric not null,
			entry_qty bigint not null,
			entry_ts timestamptz not null,
			entry_effective_floor numeric not null,
			entry_effective_ceiling numeric not null,
			exit_target_price numeric not null default 0,
			trailing_active boolean not null default false,
			trailing_highest_price numeric not null default 0,
			trailing_stop_price numeric not null default 0,
			status text not null,
			closed_at timestamptz null,
			exit_price numeric null,
			exit_reason text null
		);`,
		`create index if not exists trades_symbol_idx on trades(symbol) where status = 'OPEN';`,
		`create index if not exists trades_portfolio_idx on trades(portfolio_id);`,

		`create table if not exists exit_signals (
			exit_signal_id uuid primary key,
			trade_id uuid not null references trades(trade_id),
			symbol text not null,
			direction text not null,
			reason text not null,
			exit_price numeric not null,
			brick_movement numeric not null default 0,
			favorable_movement boolean not null default false,
			episode_id bigint not null,
			status text not null,
			detected_at timestamptz not null default now(),
			unique (trade_id, reason, episode_id)
		);`,
		`create index if not exists exit_signals_trade_idx on exit_signals(trade_id);`,

		// exit_episode_cursor is the authoritative cooldown ledger behind
		// generate_episode: one row per (trade_id, reason), advanced under
		// row lock so concurrent exit detections on the same trade cannot
		// both win the 30-second window (§9, I5).
		`create table if not exists exit_episode_cursor (
			trade_id uuid not null,
			reason text not null,
			last_episode bigint not null default 0,
			last_generated_at timestamptz not null,
			primary key (trade_id, reason)
		);`,

		`create table if not exists exit_intents (
			exit_intent_id uuid primary key,
			exit_signal_id uuid null,
			trade_id uuid not null,
			user_broker_id uuid not null,
			reason text not null,
			episode_id bigint not null,
			status text not null,
			qualification_errors text[] not null default '{}',
			calculated_qty bigint not null default 0,
			order_type text not null default '',
			limit_price numeric null,
			product_type text not null default 'MIS',
			created_at timestamptz not null default now()
		);`,

		`create table if not exists portfolios (
			portfolio_id uuid primary key,
			user_id uuid not null unique,
			total_capital numeric not null default 0,
			available_capital numeric not null default 0,
			reserved_capital numeric not null default 0,
			deployed_capital numeric not null default 0,
			max_symbol_weight numeric not null default 0.2,
			max_per_trade numeric not null default 0,
			daily_loss_limit numeric not null default 0,
			weekly_loss_limit numeric not null default 0
		);`,

		`create table if not exists user_brokers (
			user_broker_id uuid primary key,
			user_id uuid not null,
			role text not null,
			enabled boolean not null default true,
			connected boolean not null default false
		);`,
		`create index if not exists user_brokers_role_idx on user_brokers(role) where enabled;`,

		`create table if not exists watchlist (
			symbol text primary key,
			enabled boolean not null default true
		);`,

		`create table if not exists mtf_global_config (
			id int primary key default 1,
			settings jsonb not null,
			check (id = 1)
		);`,

		`create table if not exists mtf_symbol_config (
			symbol text primary key,
			settings jsonb not null
		);`,

		// generate_episode is the single atomic entry point for the episode
		// counter SMS's exit coordinator reads through PostgresExitSignals.
		// The row lock on exit_episode_cursor serializes concurrent callers
		// for the same (trade_id, reason), so the 30-second check-then-set
		// can never race (§9).
		`create or replace function generate_episode(p_trade_id uuid, p_reason text)
		returns table(episode bigint, cooldown_active boolean) as $$
		declare
			v_last_at timestamptz;
			v_last_episode bigint;
		begin
			insert into exit_episode_cursor(trade_id, reason, last_episode, last_generated_at)
			values (p_trade_id, p_reason, 0, '-infinity')
			on conflict (trade_id, reason) do nothing;

			select last_episode, last_generated_at into v_last_episode, v_last_at
			from exit_episode_cursor
			where trade_id = p_trade_id and reason = p_reason
			for update;

			if now() - v_last_at < interval '30 seconds' then
				return query select v_last_episode, true;
				return;
			end if;

			update exit_episode_cursor
			set last_episode = last_episode + 1, last_generated_at = now()
			where trade_id = p_trade_id and reason = p_reason
			returning last_episode into v_last_episode;

			return query select v_last_episode, false;
		end;
		$$ language plpgsql;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
