package exits_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/exits"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBrickMovementTrackerAllowsFirstExit(t *testing.T) {
	tr := exits.NewBrickMovementTracker(dec("0.005"))
	assert.True(t, tr.ShouldAllowExit("RELIANCE", domain.Buy, dec("2500")))
}

func TestBrickMovementTrackerBuySideRequiresFavourableMove(t *testing.T) {
	tr := exits.NewBrickMovementTracker(dec("0.005"))
	tr.RecordExit("RELIANCE", domain.Buy, dec("2500"))

	assert.False(t, tr.ShouldAllowExit("RELIANCE", domain.Buy, dec("2505")), "0.2% move is below the 0.5% brick")
	assert.True(t, tr.ShouldAllowExit("RELIANCE", domain.Buy, dec("2520")), "0.8% move clears the 0.5% brick")
}

func TestBrickMovementTrackerSellSideMovesOppositeDirection(t *testing.T) {
	tr := exits.NewBrickMovementTracker(dec("0.005"))
	tr.RecordExit("RELIANCE", domain.Sell, dec("2500"))

	assert.False(t, tr.ShouldAllowExit("RELIANCE", domain.Sell, dec("2495")))
	assert.True(t, tr.ShouldAllowExit("RELIANCE", domain.Sell, dec("2470")))
}

func TestBrickMovementTrackerIsPerSymbolAndDirection(t *testing.T) {
	tr := exits.NewBrickMovementTracker(dec("0.005"))
	tr.RecordExit("RELIANCE", domain.Buy, dec("2500"))

	assert.True(t, tr.ShouldAllowExit("TCS", domain.Buy, dec("2500")))
	assert.True(t, tr.ShouldAllowExit("RELIANCE", domain.Sell, dec("2500")))
}

func TestBrickMovementTrackerSeedAndLastExit(t *testing.T) {
	tr := exits.NewBrickMovementTracker(dec("0.005"))
	tr.Seed("RELIANCE", domain.Buy, dec("2500"))

	last, ok := tr.LastExit("RELIANCE", domain.Buy)
	assert.True(t, ok)
	assert.True(t, last.Equal(dec("2500")))
}
