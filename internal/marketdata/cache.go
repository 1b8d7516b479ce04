// Package marketdata implements the process-wide symbol -> latest Tick
// cache (§4.2). Writes are atomic whole-entry replacements; the only writer
// for a given symbol is that symbol's ingest worker (§5), but reads are
// unrestricted and concurrent, mirroring the teacher's priceCache pattern
// in usecase.AutoScalpingService.updatePriceCache (read-many/write-one map
// guarded by a mutex).
package marketdata

import (
	"context"
	"sync"

	"github.com/nse-mtf/core/internal/domain"
)

// Cache is the shared symbol -> latest Tick snapshot.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]domain.Tick

	candles domain.CandleStore
}

// New builds an empty cache backed by candles for the prev-day-close
// fallback tier.
func New(candles domain.CandleStore) *Cache {
	return &Cache{
		ticks:   make(map[string]domain.Tick),
		candles: candles,
	}
}

// Put atomically replaces the cached tick for tick.Symbol (§4.2: "atomic
// replacements of the whole entry, no partial updates").
func (c *Cache) Put(tick domain.Tick) {
	c.mu.Lock()
	c.ticks[tick.Symbol] = tick
	c.mu.Unlock()
}

// GetLastPrice implements the three-tier fallback of §4.2: live cached
// price, else most recent DAILY close, else unavailable.
func (c *Cache) GetLastPrice(ctx context.Context, symbol string) domain.PriceLookup {
	c.mu.RLock()
	tick, ok := c.ticks[symbol]
	c.mu.RUnlock()
	if ok {
		return domain.PriceLookup{Price: tick.Last, Tier: domain.TierLive}
	}

	if c.candles != nil {
		recent, err := c.candles.GetRecent(ctx, symbol, domain.DAILY, 1)
		if err == nil && len(recent) > 0 {
			return domain.PriceLookup{Price: recent[len(recent)-1].Close, Tier: domain.TierPrevDaily}
		}
	}

	return domain.PriceLookup{Tier: domain.TierUnavailable}
}

// Snapshot returns a copy of the current tick for symbol, if present.
func (c *Cache) Snapshot(symbol string) (domain.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.ticks[symbol]
	return t, ok
}
