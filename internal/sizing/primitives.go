// Package sizing implements the Sizing Primitives (§4.9) and the Position
// Sizer (§4.10): Kelly fraction, log-safe quantity, portfolio/symbol
// log-loss headroom, Wilder ATR, velocity regime, body-ratio penalty,
// stress throttle, and the averaging gate, composed into the
// seven-constraint minimum that produces a trade's final quantity.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/infrastructure/indicators"
)

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Kelly computes the zone-based p_win, the win/loss ratio b, and the
// clamped Kelly fraction for an entry bounded by floor and ceiling (§4.9).
// maxDrop is the "one zone" unit: the configured maximum adverse price
// move the position tolerates before the floor is breached.
func Kelly(entry, floor, ceiling, maxDrop decimal.Decimal) (pWin, kelly float64) {
	e, f, c, drop := f64(entry), f64(floor), f64(ceiling), f64(maxDrop)
	if drop <= 0 {
		drop = 1
	}
	zonesToCeiling := (c - e) / drop
	zonesToFloor := (e - f) / drop
	if zonesToCeiling < 0 {
		zonesToCeiling = 0
	}
	if zonesToFloor < 0 {
		zonesToFloor = 0
	}
	denom := zonesToFloor + zonesToCeiling
	if denom <= 0 {
		pWin = 0.5
	} else {
		pWin = zonesToCeiling / denom
	}
	pWin = clamp(pWin, 0.10, 0.90)

	b := (c - e) / (e - f)
	if b <= 0 {
		return pWin, 0
	}
	k := (pWin*b - (1 - pWin)) / b
	if k < 0 {
		k = 0
	}
	if k > 1 {
		k = 1
	}
	return pWin, k
}

// MaxLogSafeQty finds the largest integer quantity q such that adding q
// shares at entry to an existing position of existingQty at existingAvg
// keeps the resulting average cost within exp(|maxPositionLogLoss|) of
// floor, and q*entry does not exceed capSym. Solved by monotonic binary
// search since average cost is monotonically non-decreasing in q when
// entry > existingAvg (and non-increasing otherwise), so feasibility is
// monotone in q either way (§4.9).
func MaxLogSafeQty(existingQty int64, existingAvg, entry, floor, maxPositionLogLoss, capSym decimal.Decimal) int64 {
	maxAvgCost := f64(floor) * math.Exp(math.Abs(f64(maxPositionLogLoss)))
	entryF := f64(entry)
	capF := f64(capSym)

	feasible := func(q int64) bool {
		if q < 0 {
			return false
		}
		if float64(q)*entryF > capF {
			return false
		}
		if existingQty+q == 0 {
			return true
		}
		avg := (float64(existingQty)*f64(existingAvg) + float64(q)*entryF) / float64(existingQty+q)
		return avg <= maxAvgCost
	}

	if !feasible(0) {
		return 0
	}

	lo, hi := int64(0), int64(1)
	for feasible(hi) {
		lo = hi
		hi *= 2
		if hi > 1_000_000_000 {
			break
		}
	}
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if feasible(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Headroom computes the remaining log-loss budget converted to a buyable
// quantity: headroom_exposure = (L - R) / ell_new (both L and R are
// non-positive log-returns), qty = floor(cap * e / entry) where e is the
// headroom_exposure fraction (§4.9).
func Headroom(limitLogLoss, currentLogReturn, newTradeLogReturn, cap, entry decimal.Decimal) int64 {
	L := f64(limitLogLoss)
	R := f64(currentLogReturn)
	ellNew := f64(newTradeLogReturn)
	if ellNew >= 0 {
		return 0
	}
	headroomExposure := (L - R) / ellNew
	if headroomExposure < 0 {
		headroomExposure = 0
	}
	capF := f64(cap)
	entryF := f64(entry)
	if entryF <= 0 {
		return 0
	}
	return int64(math.Floor(capF * headroomExposure / entryF))
}

// AveragingGate applies the two-gate averaging discipline (§4.9). pNear is
// the existing fill nearest to the current market price (ties broken by
// higher price, which the caller resolves before calling this). Pyramiding
// (newPrice above pNear) is always rejected.
func AveragingGate(newPrice, pNear, atrDaily, minReentrySpacingATRMultiplier decimal.Decimal) (ok bool, reason string) {
	if newPrice.GreaterThan(pNear) {
		return false, "AVERAGING_GATE_FAILED"
	}
	spacing := pNear.Sub(newPrice)
	required := atrDaily.Mul(minReentrySpacingATRMultiplier)
	if spacing.LessThan(required) {
		return false, "AVERAGING_GATE_FAILED"
	}
	return true, ""
}

// NearestFill returns the existing fill price closest to marketPrice,
// ties broken by the higher price (§4.9 P_near).
func NearestFill(fills []decimal.Decimal, marketPrice decimal.Decimal) (decimal.Decimal, bool) {
	if len(fills) == 0 {
		return decimal.Zero, false
	}
	best := fills[0]
	bestDist := best.Sub(marketPrice).Abs()
	for _, p := range fills[1:] {
		d := p.Sub(marketPrice).Abs()
		if d.LessThan(bestDist) || (d.Equal(bestDist) && p.GreaterThan(best)) {
			best = p
			bestDist = d
		}
	}
	return best, true
}

// ATRDaily computes Wilder ATR with period 14 on DAILY candles (oldest
// first), falling back to a 5-period simple average of true range when
// fewer than 15 candles (period+1) are available. Both paths need at
// least one prior candle for the initial true-range value.
func ATRDaily(candles []domain.Candle) (atr decimal.Decimal, ok bool) {
	if len(candles) < 2 {
		return decimal.Zero, false
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = f64(c.High)
		lows[i] = f64(c.Low)
		closes[i] = f64(c.Close)
	}

	if len(candles) >= 15 {
		series := indicators.CalculateATR(highs, lows, closes, 14)
		last := series[len(series)-1]
		if last == 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(last), true
	}

	// Fallback: simple average of true range over a 5-period window (or
	// fewer if unavailable), per §4.9.
	period := 5
	if period > len(candles)-1 {
		period = len(candles) - 1
	}
	if period < 1 {
		return decimal.Zero, false
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr := math.Max(hl, math.Max(hc, lc))
		sum += tr
	}
	return decimal.NewFromFloat(sum / float64(period)), true
}

// VelocityRegime buckets Range_ATR = (max_high - min_low)/ATR over the
// trailing rangeLookbackBars LTF candles (§4.9).
func VelocityRegime(ltfCandles []domain.Candle, atr decimal.Decimal, rangeLookbackBars int, cfg domain.MtfConfig) decimal.Decimal {
	if len(ltfCandles) == 0 || atr.IsZero() {
		return cfg.VelocityMultiplierNarrow
	}
	window := ltfCandles
	if len(window) > rangeLookbackBars {
		window = window[len(window)-rangeLookbackBars:]
	}
	maxHigh := window[0].High
	minLow := window[0].Low
	for _, c := range window[1:] {
		if c.High.GreaterThan(maxHigh) {
			maxHigh = c.High
		}
		if c.Low.LessThan(minLow) {
			minLow = c.Low
		}
	}
	rangeATR := maxHigh.Sub(minLow).Div(atr)

	switch {
	case rangeATR.GreaterThanOrEqual(cfg.RangeATRThresholdWide):
		return cfg.VelocityMultiplierWide
	case rangeATR.GreaterThanOrEqual(cfg.RangeATRThresholdHealthy):
		return cfg.VelocityMultiplierHealthy
	case rangeATR.GreaterThanOrEqual(cfg.RangeATRThresholdTight):
		return cfg.VelocityMultiplierTight
	default:
		return cfg.VelocityMultiplierNarrow
	}
}

// BodyRatioPenalty computes EMA_15(|close-open|)/ATR over ltfCandles
// (oldest first) and maps it to a penalty multiplier (§4.9). Penalty only;
// never amplifies above 1.00.
func BodyRatioPenalty(ltfCandles []domain.Candle, atr decimal.Decimal, cfg domain.MtfConfig) decimal.Decimal {
	if len(ltfCandles) < 15 || atr.IsZero() {
		return decimal.NewFromInt(1)
	}
	bodies := make([]float64, len(ltfCandles))
	for i, c := range ltfCandles {
		bodies[i] = math.Abs(f64(c.Close) - f64(c.Open))
	}
	ema := indicators.CalculateEMA(bodies, 15)
	lastEMA := ema[len(ema)-1]
	bodyRatio := lastEMA / f64(atr)

	low, _ := cfg.BodyRatioThresholdLow.Float64()
	critical, _ := cfg.BodyRatioThresholdCritical.Float64()
	switch {
	case bodyRatio < low:
		return cfg.BodyRatioPenaltyLow
	case bodyRatio < critical:
		return cfg.BodyRatioPenaltyCritical
	default:
		return decimal.NewFromInt(1)
	}
}

// StressThrottle maps portfolio drawdown ((value-peak)/peak, <= 0) to a
// throttle multiplier (§4.9).
func StressThrottle(value, peak, maxStressDrawdown decimal.Decimal, enabled bool) decimal.Decimal {
	if !enabled || peak.IsZero() {
		return decimal.NewFromInt(1)
	}
	drawdown := value.Sub(peak).Div(peak)
	if drawdown.IsZero() {
		return decimal.NewFromInt(1)
	}
	maxDD := maxStressDrawdown.Abs()
	dd := drawdown.Abs()
	if dd.GreaterThan(maxDD) {
		return decimal.RequireFromString("0.25")
	}
	// Linear interpolation from 1.00 (dd=0) down to 0.50 (dd=maxDD).
	frac := dd.Div(maxDD)
	return decimal.NewFromInt(1).Sub(frac.Mul(decimal.RequireFromString("0.50")))
}

// FinalVelocity combines the base velocity regime with the body-ratio
// penalty and stress throttle, floored at 0.0625 (§4.9).
func FinalVelocity(base, bodyPenalty, stressThrottle decimal.Decimal) decimal.Decimal {
	v := base.Mul(bodyPenalty).Mul(stressThrottle)
	floor := decimal.RequireFromString("0.0625")
	if v.LessThan(floor) {
		return floor
	}
	return v
}
