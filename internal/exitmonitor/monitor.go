// Package exitmonitor implements the Exit Monitor (§4.16): for every tick,
// re-evaluates every open trade on that symbol against target, stop,
// trailing, and time rules, and delegates confirmed exits to SMS.
package exitmonitor

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/exits"
	"github.com/nse-mtf/core/internal/sms"
)

// Monitor evaluates open trades against every inbound tick. It never keeps
// its own open-trade set; the store is authoritative (§9).
type Monitor struct {
	trades      domain.TradeStore
	userBrokers domain.UserBrokerStore
	config      domain.MtfConfigStore
	brick       *exits.BrickMovementTracker
	coord       *sms.SMS
}

// Deps bundles the Monitor's collaborators.
type Deps struct {
	Trades      domain.TradeStore
	UserBrokers domain.UserBrokerStore
	Config      domain.MtfConfigStore
	Brick       *exits.BrickMovementTracker
	SMS         *sms.SMS
}

// New builds a Monitor.
func New(d Deps) *Monitor {
	return &Monitor{
		trades:      d.Trades,
		userBrokers: d.UserBrokers,
		config:      d.Config,
		brick:       d.Brick,
		coord:       d.SMS,
	}
}

// OnTick is the subscription entry point: the caller wires this as a
// listener on the tick feed alongside the candle builder (§4.16, §9 —
// downstream consumers subscribe rather than being called back inline by
// one another).
func (m *Monitor) OnTick(ctx context.Context, tick domain.Tick) {
	open, err := m.trades.FindBySymbol(ctx, tick.Symbol)
	if err != nil {
		log.Printf("exitmonitor: FindBySymbol(%s) failed: %v", tick.Symbol, err)
		return
	}

	cfg, err := m.config.Resolve(ctx, tick.Symbol)
	if err != nil {
		log.Printf("exitmonitor: config resolve for %s failed: %v", tick.Symbol, err)
		return
	}

	for _, t := range open {
		if t.Status != domain.TradeOpen {
			continue
		}
		m.evaluateTrade(ctx, t, tick, cfg)
	}
}

func (m *Monitor) evaluateTrade(ctx context.Context, t domain.Trade, tick domain.Tick, cfg domain.MtfConfig) {
	state := exits.UpdateTrailing(
		exits.TrailingState{Active: t.TrailingActive, HighestFavorable: t.TrailingHighestPrice, StopPrice: t.TrailingStopPrice},
		t.Direction, t.EntryPrice, tick.Last, cfg.TrailingStopActivationPct, cfg.TrailingStopDistancePct,
	)
	changed := state.Active != t.TrailingActive ||
		!state.HighestFavorable.Equal(t.TrailingHighestPrice) ||
		!state.StopPrice.Equal(t.TrailingStopPrice)

	t.TrailingActive = state.Active
	t.TrailingHighestPrice = state.HighestFavorable
	t.TrailingStopPrice = state.StopPrice

	if changed {
		if err := m.coord.UpdateTrade(ctx, t); err != nil {
			log.Printf("exitmonitor: persist trailing state for trade %s failed: %v", t.TradeID, err)
		}
	}

	reason, fired := m.reasonFor(t, tick, state, cfg)
	if !fired {
		return
	}
	if !m.brick.ShouldAllowExit(t.Symbol, t.Direction, tick.Last) {
		return
	}
	// LastExit must be read before RecordExit overwrites it, or brickMove
	// always compares tick.Last against the value just recorded (always 0).
	brickMove := decimal.Zero
	if last, ok := m.brick.LastExit(t.Symbol, t.Direction); ok {
		brickMove = tick.Last.Sub(last).Abs()
	}
	m.brick.RecordExit(t.Symbol, t.Direction, tick.Last)

	ub, found, err := m.userBrokers.FindByID(ctx, t.UserBrokerID)
	if err != nil || !found {
		log.Printf("exitmonitor: broker lookup for trade %s failed: %v", t.TradeID, err)
		return
	}

	m.coord.OnExitDetected(ctx, sms.ExitCandidate{
		TradeID:           t.TradeID,
		Symbol:            t.Symbol,
		Direction:         t.Direction,
		Reason:            reason,
		ExitPrice:         tick.Last,
		BrickMovement:     brickMove,
		FavorableMovement: true,
		Trade:             t,
		Broker:            ub,
		TS:                tick.Time(),
	})
}

// reasonFor evaluates the priority-ordered exit reasons of §4.16:
// TRAILING_STOP > TARGET_HIT > STOP_LOSS > TIME_BASED.
func (m *Monitor) reasonFor(t domain.Trade, tick domain.Tick, state exits.TrailingState, cfg domain.MtfConfig) (domain.ExitReason, bool) {
	if state.Hit(t.Direction, tick.Last) {
		return domain.ReasonTrailingStop, true
	}

	if !t.ExitTargetPrice.IsZero() {
		if t.Direction == domain.Buy && tick.Last.GreaterThanOrEqual(t.ExitTargetPrice) {
			return domain.ReasonTargetHit, true
		}
		if t.Direction == domain.Sell && tick.Last.LessThanOrEqual(t.ExitTargetPrice) {
			return domain.ReasonTargetHit, true
		}
	}

	if t.Direction == domain.Buy && tick.Last.LessThanOrEqual(t.EntryEffectiveFloor) {
		return domain.ReasonStopLoss, true
	}
	if t.Direction == domain.Sell && tick.Last.GreaterThanOrEqual(t.EntryEffectiveCeiling) {
		return domain.ReasonStopLoss, true
	}

	maxHold := time.Duration(cfg.MaxHoldDays) * 24 * time.Hour
	if maxHold > 0 && tick.Time().Sub(t.EntryTS) > maxHold {
		return domain.ReasonTimeBased, true
	}

	return "", false
}
