package sizing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/sizing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestKellyBalancedZones(t *testing.T) {
	pWin, kelly := sizing.Kelly(dec("100"), dec("95"), dec("110"), dec("5"))
	assert.InDelta(t, 0.6667, pWin, 0.001)
	assert.InDelta(t, 0.5, kelly, 0.001)
}

func TestKellyClampsExtremeZones(t *testing.T) {
	// ceiling far above entry, floor barely below: p_win would exceed 0.90
	// unclamped but must be held at the 0.90 ceiling (§4.9).
	pWin, _ := sizing.Kelly(dec("100"), dec("99.9"), dec("500"), dec("0.1"))
	assert.LessOrEqual(t, pWin, 0.90)
}

func TestKellyNeverNegative(t *testing.T) {
	// floor above entry (shouldn't happen upstream, but Kelly must not
	// return a negative fraction on a degenerate input).
	_, kelly := sizing.Kelly(dec("100"), dec("101"), dec("102"), dec("1"))
	assert.GreaterOrEqual(t, kelly, 0.0)
}

func TestAveragingGateRejectsPyramiding(t *testing.T) {
	ok, reason := sizing.AveragingGate(dec("101"), dec("100"), dec("1"), dec("2"))
	assert.False(t, ok)
	assert.Equal(t, "AVERAGING_GATE_FAILED", reason)
}

func TestAveragingGateRejectsInsufficientSpacing(t *testing.T) {
	// spacing = 0.5, required = atr(1) * multiplier(2) = 2
	ok, _ := sizing.AveragingGate(dec("99.5"), dec("100"), dec("1"), dec("2"))
	assert.False(t, ok)
}

func TestAveragingGatePassesWithEnoughSpacing(t *testing.T) {
	ok, _ := sizing.AveragingGate(dec("97"), dec("100"), dec("1"), dec("2"))
	assert.True(t, ok)
}

func TestNearestFillPicksClosestTieBreakHigher(t *testing.T) {
	fills := []decimal.Decimal{dec("100"), dec("105"), dec("98")}
	best, ok := sizing.NearestFill(fills, dec("101"))
	require.True(t, ok)
	assert.True(t, best.Equal(dec("100")))

	tied := []decimal.Decimal{dec("99"), dec("101")}
	best, ok = sizing.NearestFill(tied, dec("100"))
	require.True(t, ok)
	assert.True(t, best.Equal(dec("101")), "ties break toward the higher price")
}

func TestATRDailyFallbackAverage(t *testing.T) {
	candles := []domain.Candle{
		{High: dec("105"), Low: dec("95"), Close: dec("100")},
		{High: dec("106"), Low: dec("96"), Close: dec("101")},
		{High: dec("107"), Low: dec("97"), Close: dec("102")},
	}
	atr, ok := sizing.ATRDaily(candles)
	require.True(t, ok)
	assert.True(t, atr.Equal(dec("10")))
}

func TestATRDailyInsufficientHistory(t *testing.T) {
	_, ok := sizing.ATRDaily([]domain.Candle{{High: dec("105"), Low: dec("95"), Close: dec("100")}})
	assert.False(t, ok)
}

func TestStressThrottleLinearInterpolation(t *testing.T) {
	mult := sizing.StressThrottle(dec("95"), dec("100"), dec("-0.10"), true)
	assert.True(t, mult.Equal(dec("0.75")))
}

func TestStressThrottleBeyondMaxDrawdown(t *testing.T) {
	mult := sizing.StressThrottle(dec("80"), dec("100"), dec("-0.10"), true)
	assert.True(t, mult.Equal(dec("0.25")))
}

func TestStressThrottleDisabledIsNoop(t *testing.T) {
	mult := sizing.StressThrottle(dec("50"), dec("100"), dec("-0.10"), false)
	assert.True(t, mult.Equal(decimal.NewFromInt(1)))
}

func TestFinalVelocityFloor(t *testing.T) {
	v := sizing.FinalVelocity(dec("0.01"), decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.True(t, v.Equal(dec("0.0625")))
}
