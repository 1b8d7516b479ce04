package exits

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

type brickKey struct {
	symbol    string
	direction domain.Direction
}

// BrickMovementTracker is the process-wide per-(symbol, direction) cache
// of the last published exit's price (§4.12). It is a concurrent map, per
// §5, rebuildable from the store (callers may seed it from the most recent
// EXECUTED exit signal per key at startup).
type BrickMovementTracker struct {
	mu         sync.RWMutex
	lastExit   map[brickKey]decimal.Decimal
	minBrickPct decimal.Decimal
}

// NewBrickMovementTracker builds an empty tracker using minBrickPct as the
// minimum favourable move required between consecutive exits for the same
// (symbol, direction).
func NewBrickMovementTracker(minBrickPct decimal.Decimal) *BrickMovementTracker {
	return &BrickMovementTracker{
		lastExit:    make(map[brickKey]decimal.Decimal),
		minBrickPct: minBrickPct,
	}
}

// ShouldAllowExit reports true if there is no prior recorded exit for
// (symbol, direction), or if price has moved favourably past the last
// exit by more than min_brick_pct.
func (t *BrickMovementTracker) ShouldAllowExit(symbol string, direction domain.Direction, price decimal.Decimal) bool {
	t.mu.RLock()
	last, ok := t.lastExit[brickKey{symbol, direction}]
	t.mu.RUnlock()
	if !ok {
		return true
	}

	var move decimal.Decimal
	if direction == domain.Buy {
		move = price.Sub(last).Div(last)
	} else {
		move = last.Sub(price).Div(last)
	}
	return move.GreaterThan(t.minBrickPct)
}

// RecordExit updates the cache after an exit is published for (symbol,
// direction).
func (t *BrickMovementTracker) RecordExit(symbol string, direction domain.Direction, price decimal.Decimal) {
	t.mu.Lock()
	t.lastExit[brickKey{symbol, direction}] = price
	t.mu.Unlock()
}

// LastExit returns the last recorded exit price for (symbol, direction),
// if any, for callers that need to report the realised brick movement.
func (t *BrickMovementTracker) LastExit(symbol string, direction domain.Direction) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.lastExit[brickKey{symbol, direction}]
	return v, ok
}

// Seed pre-populates the tracker from durable state at startup, per §5's
// "rebuildable from the store" requirement.
func (t *BrickMovementTracker) Seed(symbol string, direction domain.Direction, price decimal.Decimal) {
	t.RecordExit(symbol, direction, price)
}
