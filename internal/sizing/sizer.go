package sizing

import (
	"github.com/shopspring/decimal"
)

// Constraint names one of the six quantity constraints the Position Sizer
// minimises over (§4.10).
type Constraint string

const (
	ConstraintLogSafe         Constraint = "LOG_SAFE"
	ConstraintKelly           Constraint = "KELLY"
	ConstraintFill            Constraint = "FILL"
	ConstraintCapital         Constraint = "CAPITAL"
	ConstraintPortfolioBudget Constraint = "PORTFOLIO_BUDGET"
	ConstraintSymbolBudget    Constraint = "SYMBOL_BUDGET"
)

// Rejection reason codes for a zero-quantity sizing result.
const (
	ReasonUtilityGateFailed   = "UTILITY_GATE_FAILED"
	ReasonAveragingGateFailed = "AVERAGING_GATE_FAILED"
)

// EntryInput carries every value the Position Sizer needs for a new
// (non-averaging) entry.
type EntryInput struct {
	Entry, Floor, Ceiling, MaxDrop decimal.Decimal
	CapSym                         decimal.Decimal // per-symbol capital cap
	PFill                          decimal.Decimal
	KellyFraction                  decimal.Decimal
	ConfluenceMultiplier            decimal.Decimal // strength multiplier from §4.7
	MaxKellyMultiplier              decimal.Decimal
	Velocity                        decimal.Decimal // final velocity from §4.9
	RemainingSymbolCapital          decimal.Decimal

	MaxPositionLogLoss decimal.Decimal

	PortfolioLimitLogLoss    decimal.Decimal
	PortfolioCurrentLogReturn decimal.Decimal
	PortfolioCap              decimal.Decimal

	SymbolLimitLogLoss     decimal.Decimal
	SymbolCurrentLogReturn decimal.Decimal
	SymbolCap              decimal.Decimal

	UtilityGatePassed bool
}

// Result is the outcome of a sizer invocation.
type Result struct {
	Quantity           int64
	LimitingConstraint Constraint
	Reason             string // set (and Quantity == 0) when a gate rejected the trade outright
	PWin               float64
	Kelly              float64
}

func floorQty(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v)
}

// CalculateEntrySize computes the per-trade quantity as the minimum of the
// six numeric constraints, after the Utility Asymmetry Gate precondition
// (§4.10).
func CalculateEntrySize(in EntryInput) Result {
	if !in.UtilityGatePassed {
		return Result{Quantity: 0, Reason: ReasonUtilityGateFailed}
	}

	pWin, kelly := Kelly(in.Entry, in.Floor, in.Ceiling, in.MaxDrop)
	kEff := kelly * f64(in.Velocity)

	entryF := f64(in.Entry)

	kellyQtyF := (f64(in.CapSym) * kEff * f64(in.KellyFraction) * f64(in.ConfluenceMultiplier) * f64(in.MaxKellyMultiplier)) / entryF
	kellyQty := floorQty(kellyQtyF)

	fillQty := floorQty(float64(kellyQty) * f64(in.PFill))

	capitalQty := floorQty(f64(in.RemainingSymbolCapital) / entryF)

	newTradeLogReturn := decimal.NewFromFloat(-1).Mul(in.MaxDrop.Div(in.Entry))

	portfolioQty := Headroom(in.PortfolioLimitLogLoss, in.PortfolioCurrentLogReturn, newTradeLogReturn, in.PortfolioCap, in.Entry)
	symbolQty := Headroom(in.SymbolLimitLogLoss, in.SymbolCurrentLogReturn, newTradeLogReturn, in.SymbolCap, in.Entry)

	logSafeQty := MaxLogSafeQty(0, decimal.Zero, in.Entry, in.Floor, in.MaxPositionLogLoss, in.CapSym)

	candidates := map[Constraint]int64{
		ConstraintLogSafe:         logSafeQty,
		ConstraintKelly:           kellyQty,
		ConstraintFill:            fillQty,
		ConstraintCapital:         capitalQty,
		ConstraintPortfolioBudget: portfolioQty,
		ConstraintSymbolBudget:    symbolQty,
	}

	qty, limiting := minConstraint(candidates)
	return Result{Quantity: qty, LimitingConstraint: limiting, PWin: pWin, Kelly: kelly}
}

// AddInput carries the averaging-specific inputs to CalculateAddSize.
type AddInput struct {
	EntryInput
	ExistingQty     int64
	ExistingAvgCost decimal.Decimal
	NearestFill     decimal.Decimal
	ATRDaily        decimal.Decimal
	MinReentrySpacingATRMultiplier decimal.Decimal
}

// CalculateAddSize computes the additional quantity to average into an
// existing position. It applies the averaging gate first (reduced
// strength multiplier 0.75 and p_fill 0.95 are the caller's
// responsibility to have set on EntryInput before calling, per §4.10).
func CalculateAddSize(in AddInput) Result {
	ok, reason := AveragingGate(in.Entry, in.NearestFill, in.ATRDaily, in.MinReentrySpacingATRMultiplier)
	if !ok {
		return Result{Quantity: 0, Reason: reason}
	}
	if !in.UtilityGatePassed {
		return Result{Quantity: 0, Reason: ReasonUtilityGateFailed}
	}

	pWin, kelly := Kelly(in.Entry, in.Floor, in.Ceiling, in.MaxDrop)
	kEff := kelly * f64(in.Velocity)
	entryF := f64(in.Entry)

	kellyQtyF := (f64(in.CapSym) * kEff * f64(in.KellyFraction) * f64(in.ConfluenceMultiplier) * f64(in.MaxKellyMultiplier)) / entryF
	kellyQty := floorQty(kellyQtyF)
	fillQty := floorQty(float64(kellyQty) * f64(in.PFill))
	capitalQty := floorQty(f64(in.RemainingSymbolCapital) / entryF)

	newTradeLogReturn := decimal.NewFromFloat(-1).Mul(in.MaxDrop.Div(in.Entry))
	portfolioQty := Headroom(in.PortfolioLimitLogLoss, in.PortfolioCurrentLogReturn, newTradeLogReturn, in.PortfolioCap, in.Entry)
	symbolQty := Headroom(in.SymbolLimitLogLoss, in.SymbolCurrentLogReturn, newTradeLogReturn, in.SymbolCap, in.Entry)

	logSafeQty := MaxLogSafeQty(in.ExistingQty, in.ExistingAvgCost, in.Entry, in.Floor, in.MaxPositionLogLoss, in.CapSym)

	candidates := map[Constraint]int64{
		ConstraintLogSafe:         logSafeQty,
		ConstraintKelly:           kellyQty,
		ConstraintFill:            fillQty,
		ConstraintCapital:         capitalQty,
		ConstraintPortfolioBudget: portfolioQty,
		ConstraintSymbolBudget:    symbolQty,
	}
	qty, limiting := minConstraint(candidates)
	return Result{Quantity: qty, LimitingConstraint: limiting, PWin: pWin, Kelly: kelly}
}

// order fixes a deterministic scan order for tie-breaking minConstraint so
// the recorded limiting constraint is reproducible.
var order = []Constraint{
	ConstraintLogSafe, ConstraintKelly, ConstraintFill,
	ConstraintCapital, ConstraintPortfolioBudget, ConstraintSymbolBudget,
}

func minConstraint(candidates map[Constraint]int64) (int64, Constraint) {
	best := candidates[order[0]]
	bestName := order[0]
	for _, name := range order[1:] {
		if v := candidates[name]; v < best {
			best = v
			bestName = name
		}
	}
	return best, bestName
}
