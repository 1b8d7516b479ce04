// Package exits implements the Exit Calculator & Trailing Stop (§4.11) and
// the Brick Movement Tracker (§4.12).
package exits

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

// LadderLevelName identifies one rung of the exit ladder.
type LadderLevelName string

const (
	LevelBreakeven   LadderLevelName = "BREAKEVEN"
	LevelMinProfit   LadderLevelName = "MIN_PROFIT"
	LevelLTFCeiling  LadderLevelName = "LTF_CEILING"
	LevelTarget      LadderLevelName = "TARGET"
	LevelITFCeiling  LadderLevelName = "ITF_CEILING"
	LevelStretch     LadderLevelName = "STRETCH"
	LevelHTFCeiling  LadderLevelName = "HTF_CEILING"
)

// LadderLevel is one priced, sized rung of the exit ladder.
type LadderLevel struct {
	Name     LadderLevelName
	Price    decimal.Decimal
	Fraction decimal.Decimal // fraction of the original position exited at this level
}

// LadderInput carries the prices the ladder is built from.
type LadderInput struct {
	AvgCost     decimal.Decimal
	MinProfitPct decimal.Decimal
	TargetRMultiple  decimal.Decimal
	StretchRMultiple decimal.Decimal
	LTFCeiling, ITFCeiling, HTFCeiling decimal.Decimal
}

var nearDuplicatePct = decimal.RequireFromString("0.005")

// rungFraction is how much of the remaining position each rung releases,
// applied in ascending-price order (§4.11).
var rungFraction = map[LadderLevelName]decimal.Decimal{
	LevelBreakeven:  decimal.Zero,
	LevelMinProfit:  decimal.RequireFromString("0.25"),
	LevelLTFCeiling: decimal.RequireFromString("0.25"),
	LevelTarget:     decimal.RequireFromString("0.50"),
	LevelITFCeiling: decimal.RequireFromString("0.50"),
	LevelStretch:    decimal.RequireFromString("0.75"),
	LevelHTFCeiling: decimal.NewFromInt(1),
}

// BuildLadder constructs the renormalised exit ladder (§4.11): levels
// strictly above avg_cost only, sorted ascending by price, near-duplicate
// prices (< 0.5% apart) merged keeping the higher fraction, and fractions
// renormalised so the total sums to 1.0.
func BuildLadder(in LadderInput) []LadderLevel {
	r := in.AvgCost.Mul(in.MinProfitPct)

	candidates := []LadderLevel{
		{LevelBreakeven, in.AvgCost, decimal.Zero},
		{LevelMinProfit, in.AvgCost.Mul(decimal.NewFromInt(1).Add(in.MinProfitPct)), decimal.Zero},
		{LevelLTFCeiling, in.LTFCeiling, decimal.Zero},
		{LevelTarget, in.AvgCost.Add(r.Mul(in.TargetRMultiple)), decimal.Zero},
		{LevelITFCeiling, in.ITFCeiling, decimal.Zero},
		{LevelStretch, in.AvgCost.Add(r.Mul(in.StretchRMultiple)), decimal.Zero},
		{LevelHTFCeiling, in.HTFCeiling, decimal.Zero},
	}

	included := candidates[:0:0]
	for _, c := range candidates {
		if c.Price.GreaterThan(in.AvgCost) {
			included = append(included, c)
		}
	}
	if len(included) == 0 {
		return nil
	}

	sort.SliceStable(included, func(i, j int) bool { return included[i].Price.LessThan(included[j].Price) })

	remaining := decimal.NewFromInt(1)
	for i := range included {
		frac := rungFraction[included[i].Name].Mul(remaining)
		included[i].Fraction = frac
		remaining = remaining.Sub(frac)
	}

	merged := mergeNearDuplicates(included)
	return renormalise(merged)
}

func mergeNearDuplicates(levels []LadderLevel) []LadderLevel {
	if len(levels) == 0 {
		return levels
	}
	out := []LadderLevel{levels[0]}
	for _, l := range levels[1:] {
		last := &out[len(out)-1]
		gap := l.Price.Sub(last.Price).Div(last.Price).Abs()
		if gap.LessThan(nearDuplicatePct) {
			if l.Fraction.GreaterThan(last.Fraction) {
				last.Fraction = l.Fraction
				last.Price = l.Price
				last.Name = l.Name
			}
			continue
		}
		out = append(out, l)
	}
	return out
}

func renormalise(levels []LadderLevel) []LadderLevel {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Fraction)
	}
	if total.IsZero() {
		return levels
	}
	for i := range levels {
		levels[i].Fraction = levels[i].Fraction.Div(total)
	}
	return levels
}

// TrailingState is the mutable per-trade trailing-stop state (§4.11,
// scenario 6).
type TrailingState struct {
	Active          bool
	HighestFavorable decimal.Decimal
	StopPrice        decimal.Decimal
}

// UpdateTrailing applies one price observation to the trailing-stop state,
// direction-aware. The stop only ever ratchets in the favourable
// direction and never crosses back past avg_cost (breakeven).
func UpdateTrailing(state TrailingState, direction domain.Direction, avgCost, currentPrice, activationPct, distancePct decimal.Decimal) TrailingState {
	if direction == domain.Buy {
		return updateTrailingLong(state, avgCost, currentPrice, activationPct, distancePct)
	}
	return updateTrailingShort(state, avgCost, currentPrice, activationPct, distancePct)
}

func updateTrailingLong(state TrailingState, avgCost, price, activationPct, distancePct decimal.Decimal) TrailingState {
	move := price.Sub(avgCost).Div(avgCost)
	if !state.Active {
		if move.LessThan(activationPct) {
			return state
		}
		state.Active = true
		state.HighestFavorable = price
		stop := price.Mul(decimal.NewFromInt(1).Sub(distancePct))
		if stop.LessThan(avgCost) {
			stop = avgCost
		}
		state.StopPrice = stop
		return state
	}

	if price.GreaterThan(state.HighestFavorable) {
		state.HighestFavorable = price
	}
	newStop := state.HighestFavorable.Mul(decimal.NewFromInt(1).Sub(distancePct))
	if newStop.LessThan(avgCost) {
		newStop = avgCost
	}
	if newStop.GreaterThan(state.StopPrice) {
		state.StopPrice = newStop
	}
	return state
}

func updateTrailingShort(state TrailingState, avgCost, price, activationPct, distancePct decimal.Decimal) TrailingState {
	move := avgCost.Sub(price).Div(avgCost)
	if !state.Active {
		if move.LessThan(activationPct) {
			return state
		}
		state.Active = true
		state.HighestFavorable = price
		stop := price.Mul(decimal.NewFromInt(1).Add(distancePct))
		if stop.GreaterThan(avgCost) {
			stop = avgCost
		}
		state.StopPrice = stop
		return state
	}

	if price.LessThan(state.HighestFavorable) {
		state.HighestFavorable = price
	}
	newStop := state.HighestFavorable.Mul(decimal.NewFromInt(1).Add(distancePct))
	if newStop.GreaterThan(avgCost) {
		newStop = avgCost
	}
	if newStop.LessThan(state.StopPrice) || state.StopPrice.IsZero() {
		state.StopPrice = newStop
	}
	return state
}

// Hit reports whether the current price has crossed the trailing stop
// (direction-aware): for a long, price <= stop; for a short, price >=
// stop.
func (s TrailingState) Hit(direction domain.Direction, price decimal.Decimal) bool {
	if !s.Active {
		return false
	}
	if direction == domain.Buy {
		return !price.GreaterThan(s.StopPrice)
	}
	return !price.LessThan(s.StopPrice)
}
