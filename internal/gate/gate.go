// Package gate implements the Utility Asymmetry Gate (§4.8): a piecewise
// log-utility check that rejects a candidate signal whenever its
// probability-weighted upside fails to clear a configured multiple of its
// probability-weighted downside. It runs before sizing and is the only
// place p_win may reject a signal on its own.
package gate

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

// Utility evaluates the piecewise power utility U(r) at r (a log-return):
// r^alpha for r >= 0, -lambda*(-r)^beta for r < 0.
func Utility(r, alpha, beta, lambda float64) float64 {
	if r >= 0 {
		return math.Pow(r, alpha)
	}
	return -lambda * math.Pow(-r, beta)
}

// LogReturns converts entry/floor/ceiling prices to the gate's pi (upside
// log-return, > 0) and ell (downside log-return, < 0).
func LogReturns(entry, floor, ceiling decimal.Decimal) (pi, ell float64) {
	e, _ := entry.Float64()
	f, _ := floor.Float64()
	c, _ := ceiling.Float64()
	return math.Log(c / e), math.Log(f / e)
}

// Outcome records the inputs and decision of one gate evaluation, kept for
// audit and for the diagnostic helpers below.
type Outcome struct {
	Passed         bool
	PWin           decimal.Decimal
	UtilityUp      float64
	UtilityDown    float64
	AdvantageRatio float64 // realised p_win*U(pi) / ((1-p_win)*|U(ell)|), +Inf if denominator is zero
	MinAdvantage   decimal.Decimal
}

// Evaluate applies the probability-weighted gate: p_win*U(pi) >=
// min_advantage_ratio*(1-p_win)*|U(ell)|. pWin falls back to
// cfg.DefaultPWin when the caller supplies no empirical estimate (§9: the
// gate never substitutes the Kelly zone-based p_win).
func Evaluate(pi, ell float64, pWin decimal.Decimal, cfg domain.MtfConfig) Outcome {
	if pWin.IsZero() {
		pWin = cfg.DefaultPWin
	}
	if !cfg.UtilityGateEnabled {
		return Outcome{Passed: true, PWin: pWin}
	}

	alpha, _ := cfg.UtilityAlpha.Float64()
	beta, _ := cfg.UtilityBeta.Float64()
	lambda, _ := cfg.UtilityLambda.Float64()
	minAdv, _ := cfg.MinAdvantageRatio.Float64()
	p, _ := pWin.Float64()

	uUp := Utility(pi, alpha, beta, lambda)
	uDown := Utility(ell, alpha, beta, lambda)
	absDown := math.Abs(uDown)

	lhs := p * uUp
	rhs := minAdv * (1 - p) * absDown

	ratio := math.Inf(1)
	denom := (1 - p) * absDown
	if denom > 0 {
		ratio = (p * uUp) / denom
	}

	return Outcome{
		Passed:         lhs >= rhs,
		PWin:           pWin,
		UtilityUp:      uUp,
		UtilityDown:    uDown,
		AdvantageRatio: ratio,
		MinAdvantage:   cfg.MinAdvantageRatio,
	}
}

// PassesDeterministic is the probability-free diagnostic form: U(pi) >=
// ratio * |U(ell)|, exposed for operator tooling that wants to reason
// about a setup independent of any probability estimate.
func PassesDeterministic(pi, ell, ratio, alpha, beta, lambda float64) bool {
	uUp := Utility(pi, alpha, beta, lambda)
	uDown := Utility(ell, alpha, beta, lambda)
	return uUp >= ratio*math.Abs(uDown)
}

// MinPWinToPass computes the minimum p_win that satisfies the gate for the
// given pi/ell/ratio, by solving p*U(pi) = ratio*(1-p)*|U(ell)| for p.
func MinPWinToPass(pi, ell, ratio, alpha, beta, lambda float64) float64 {
	uUp := Utility(pi, alpha, beta, lambda)
	uDown := math.Abs(Utility(ell, alpha, beta, lambda))
	denom := uUp + ratio*uDown
	if denom <= 0 {
		return 1
	}
	p := (ratio * uDown) / denom
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// RealisedAdvantageRatio computes p_win*U(pi) / ((1-p_win)*|U(ell)|), used
// for diagnostics on a rejected candidate (scenario 2 in §8 asserts this is
// < 3 on a rejection).
func RealisedAdvantageRatio(pi, ell, pWin, alpha, beta, lambda float64) float64 {
	uUp := Utility(pi, alpha, beta, lambda)
	uDown := math.Abs(Utility(ell, alpha, beta, lambda))
	denom := (1 - pWin) * uDown
	if denom <= 0 {
		return math.Inf(1)
	}
	return (pWin * uUp) / denom
}
