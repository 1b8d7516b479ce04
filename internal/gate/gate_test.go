package gate_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-mtf/core/internal/config"
	"github.com/nse-mtf/core/internal/gate"
)

func TestLogReturns(t *testing.T) {
	pi, ell := gate.LogReturns(decimal.RequireFromString("100"), decimal.RequireFromString("95"), decimal.RequireFromString("110"))
	assert.Greater(t, pi, 0.0)
	assert.Less(t, ell, 0.0)
}

// P4: the gate is monotone in p_win — raising p_win with everything else
// fixed never turns a passing outcome into a failing one.
func TestEvaluateMonotoneInPWin(t *testing.T) {
	cfg := config.Defaults()
	pi, ell := gate.LogReturns(decimal.RequireFromString("100"), decimal.RequireFromString("80"), decimal.RequireFromString("101"))

	low := gate.Evaluate(pi, ell, decimal.RequireFromString("0.40"), cfg)
	high := gate.Evaluate(pi, ell, decimal.RequireFromString("0.95"), cfg)

	assert.False(t, low.Passed)
	assert.True(t, high.Passed)
}

func TestEvaluateDisabledGatePasses(t *testing.T) {
	cfg := config.Defaults()
	cfg.UtilityGateEnabled = false
	pi, ell := gate.LogReturns(decimal.RequireFromString("100"), decimal.RequireFromString("50"), decimal.RequireFromString("101"))
	out := gate.Evaluate(pi, ell, decimal.RequireFromString("0.10"), cfg)
	assert.True(t, out.Passed)
}

// §7 log-safe invariant: floor/ceiling must stay strictly positive for
// LogReturns to be finite; callers upstream of the gate are responsible for
// that, but the gate's own math must not panic on a legal ratio.
func TestLogReturnsFiniteOnLegalInputs(t *testing.T) {
	pi, ell := gate.LogReturns(decimal.RequireFromString("50"), decimal.RequireFromString("1"), decimal.RequireFromString("100"))
	require.False(t, isNaNOrInf(pi))
	require.False(t, isNaNOrInf(ell))
}

func TestPassesDeterministicAndMinPWinToPass(t *testing.T) {
	cfg := config.Defaults()
	alpha, _ := cfg.UtilityAlpha.Float64()
	beta, _ := cfg.UtilityBeta.Float64()
	lambda, _ := cfg.UtilityLambda.Float64()
	ratio, _ := cfg.MinAdvantageRatio.Float64()

	pi, ell := gate.LogReturns(decimal.RequireFromString("100"), decimal.RequireFromString("95"), decimal.RequireFromString("110"))

	minP := gate.MinPWinToPass(pi, ell, ratio, alpha, beta, lambda)
	assert.GreaterOrEqual(t, minP, 0.0)
	assert.LessOrEqual(t, minP, 1.0)
	assert.True(t, gate.PassesDeterministic(pi, ell, ratio, alpha, beta, lambda))

	out := gate.Evaluate(pi, ell, decimal.NewFromFloat(minP+0.01), cfg)
	assert.True(t, out.Passed)

	out = gate.Evaluate(pi, ell, decimal.NewFromFloat(maxF(minP-0.05, 0)), cfg)
	assert.False(t, out.Passed)
}

func TestRealisedAdvantageRatioRejectionIsBelowThreshold(t *testing.T) {
	cfg := config.Defaults()
	alpha, _ := cfg.UtilityAlpha.Float64()
	beta, _ := cfg.UtilityBeta.Float64()
	lambda, _ := cfg.UtilityLambda.Float64()

	pi, ell := gate.LogReturns(decimal.RequireFromString("100"), decimal.RequireFromString("90"), decimal.RequireFromString("101"))
	out := gate.Evaluate(pi, ell, decimal.RequireFromString("0.40"), cfg)
	require.False(t, out.Passed)

	ratio := gate.RealisedAdvantageRatio(pi, ell, 0.40, alpha, beta, lambda)
	assert.Less(t, ratio, 3.0)
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
