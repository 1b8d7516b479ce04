package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/session"
	"github.com/nse-mtf/core/internal/sizing"
)

// validateAndSize runs the ten-point validation gate of §4.15 and, if it
// clears, sizes the trade via the Position Sizer (§4.10). It returns a
// REJECTED intent (never an error) for any business-rule failure; a
// non-nil error return means the validation itself could not complete
// (store failure), and the caller must not treat the zero-value intent as
// a decision.
func (o *Orchestrator) validateAndSize(ctx context.Context, d domain.SignalDelivery) (domain.TradeIntent, domain.Trade, error) {
	now := time.Now().UTC()
	intent := domain.TradeIntent{
		IntentID:     uuid.New(),
		SignalID:     d.SignalID,
		UserBrokerID: d.UserBrokerID,
		CreatedAt:    now,
	}
	var trade domain.Trade

	reject := func(reason string) (domain.TradeIntent, domain.Trade, error) {
		intent.Decision = domain.IntentRejected
		intent.Errors = append(intent.Errors, reason)
		return intent, trade, nil
	}

	signal, found, err := o.signals.FindByID(ctx, d.SignalID)
	if err != nil {
		return intent, trade, err
	}
	if !found {
		return reject(domain.ErrTradeNotOpen)
	}
	// Every reject() call from here on carries the signal's symbol on the
	// (named-return, closed-over) trade value, so callers can route the
	// delivery's CONSUMED transition through the right symbol partition
	// (I6) even on a rejected decision.
	trade.Symbol = signal.Symbol

	ub, found, err := o.userBrokers.FindByID(ctx, d.UserBrokerID)
	if err != nil {
		return intent, trade, err
	}
	if !found || !ub.Enabled || !ub.Connected {
		if !found || !ub.Enabled {
			return reject(domain.ErrBrokerDisabled)
		}
		return reject(domain.ErrBrokerDisconnected)
	}

	portfolio, found, err := o.portfolios.FindByUserID(ctx, d.UserID)
	if err != nil {
		return intent, trade, err
	}
	if !found {
		return reject(domain.ErrBrokerDisabled)
	}

	watched, err := o.watchlist.IsWatched(ctx, signal.Symbol)
	if err != nil {
		return intent, trade, err
	}
	if !watched {
		return reject(domain.ErrSymbolNotWatchlisted)
	}

	dailyLoss, weeklyLoss, err := o.realizedLoss(ctx, portfolio.PortfolioID, now)
	if err != nil {
		return intent, trade, err
	}
	if portfolio.DailyLossLimit.IsPositive() && dailyLoss.GreaterThanOrEqual(portfolio.DailyLossLimit) {
		return reject(domain.ErrDailyLossLimit)
	}
	if portfolio.WeeklyLossLimit.IsPositive() && weeklyLoss.GreaterThanOrEqual(portfolio.WeeklyLossLimit) {
		return reject(domain.ErrWeeklyLossLimit)
	}

	cfg, err := o.config.Resolve(ctx, signal.Symbol)
	if err != nil {
		return intent, trade, err
	}

	if !signal.ConfluenceType.MeetsMinimum(cfg.MinConfluenceType) {
		return reject(domain.ErrConfluenceNotMet)
	}
	if signal.PWin.LessThan(cfg.MinPWinForValidation) {
		return reject(domain.ErrPWinTooLow)
	}
	if signal.Kelly.LessThan(cfg.MinKellyForValidation) {
		return reject(domain.ErrKellyTooLow)
	}

	price := o.cache.GetLastPrice(ctx, signal.Symbol)
	entry := signal.ReferencePrice
	if price.Tier != domain.TierUnavailable {
		entry = price.Price
	}

	sizeResult := sizing.CalculateEntrySize(sizing.EntryInput{
		Entry:                  entry,
		Floor:                  signal.EffectiveFloor,
		Ceiling:                signal.EffectiveCeiling,
		MaxDrop:                entry.Sub(signal.EffectiveFloor),
		CapSym:                 portfolio.MaxPerTrade,
		PFill:                  signal.PFill,
		KellyFraction:          cfg.KellyFraction,
		ConfluenceMultiplier:   confluenceMultiplier(signal.Strength, cfg),
		MaxKellyMultiplier:     cfg.MaxKellyMultiplier,
		Velocity:               decimal.NewFromInt(1),
		RemainingSymbolCapital: portfolio.AvailableCapital,
		MaxPositionLogLoss:     cfg.MaxPositionLogLoss,
		PortfolioLimitLogLoss:  cfg.MaxPortfolioLogLoss,
		PortfolioCap:           portfolio.AvailableCapital,
		SymbolLimitLogLoss:     cfg.MaxSymbolLogLoss,
		SymbolCap:              portfolio.MaxPerTrade,
		UtilityGatePassed:      true,
	})
	if sizeResult.Reason != "" {
		return reject(sizeResult.Reason)
	}
	if sizeResult.Quantity < 1 {
		return reject(domain.ErrQtyBelowOne)
	}

	value := entry.Mul(decimal.NewFromInt(sizeResult.Quantity))
	if value.LessThan(cfg.MinTradeValue) {
		return reject(domain.ErrValueBelowMinimum)
	}
	if value.GreaterThan(portfolio.MaxPerTrade) {
		return reject(domain.ErrValueAboveMaxPerTrade)
	}

	intent.Decision = domain.IntentApproved
	intent.Quantity = sizeResult.Quantity
	intent.ProductType = domain.ProductIntraday

	trade = domain.Trade{
		SignalID:              signal.SignalID,
		UserBrokerID:          ub.UserBrokerID,
		PortfolioID:           portfolio.PortfolioID,
		Symbol:                signal.Symbol,
		Direction:             signal.Direction,
		EntryPrice:            entry,
		EntryQty:              sizeResult.Quantity,
		EntryTS:               now,
		EntryEffectiveFloor:   signal.EffectiveFloor,
		EntryEffectiveCeiling: signal.EffectiveCeiling,
		Status:                domain.TradeOpen,
	}

	return intent, trade, nil
}

// realizedLoss sums the negative P&L of trades closed today and this week
// (IST calendar, matching session.DateKey) for one portfolio, clamped to
// a non-negative magnitude so it compares directly against the
// DailyLossLimit/WeeklyLossLimit caps (§4.15 point 10).
func (o *Orchestrator) realizedLoss(ctx context.Context, portfolioID uuid.UUID, now time.Time) (daily, weekly decimal.Decimal, err error) {
	closed, err := o.trades.FindByPortfolioID(ctx, portfolioID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	local := now.In(session.IST)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, session.IST)
	weekStart := dayStart.AddDate(0, 0, -int(local.Weekday()))

	for _, t := range closed {
		if t.Status != domain.TradeClosed || t.ClosedAt == nil || t.ExitPrice == nil {
			continue
		}
		pnl := t.ExitPrice.Sub(t.EntryPrice).Mul(decimal.NewFromInt(t.EntryQty))
		if t.Direction == domain.Sell {
			pnl = pnl.Neg()
		}
		if !pnl.IsNegative() {
			continue
		}
		loss := pnl.Neg()
		if !t.ClosedAt.Before(dayStart) {
			daily = daily.Add(loss)
		}
		if !t.ClosedAt.Before(weekStart) {
			weekly = weekly.Add(loss)
		}
	}
	return daily, weekly, nil
}

func confluenceMultiplier(strength domain.Strength, cfg domain.MtfConfig) decimal.Decimal {
	switch strength {
	case domain.VeryStrong:
		return cfg.StrengthMultiplierVeryStrong
	case domain.Strong:
		return cfg.StrengthMultiplierStrong
	case domain.Moderate:
		return cfg.StrengthMultiplierModerate
	default:
		return cfg.StrengthMultiplierWeak
	}
}
