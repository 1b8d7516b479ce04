// Package screener ties the Zone Detector, Confluence Calculator, and
// Utility Asymmetry Gate into the periodic scan that produces
// sms.Candidate values (§4.13 step 1), the way the teacher's
// usecase/screener.go ties indicator computation to its own periodic
// scan-and-notify loop.
package screener

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/nse-mtf/core/internal/confluence"
	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/gate"
	"github.com/nse-mtf/core/internal/marketdata"
	"github.com/nse-mtf/core/internal/sizing"
	"github.com/nse-mtf/core/internal/sms"
	"github.com/nse-mtf/core/internal/zone"
)

// ScanInterval governs how often the watchlist is re-screened; candles
// close far less often than this but the zone/confluence picture can
// shift on every tick via the live price, so the loop is tick-rate rather
// than candle-rate.
const ScanInterval = 5 * time.Second

// SignalExpiry is how long a PUBLISHED signal remains actionable before
// SMS's stale-signal scheduler expires it (§4.13).
const SignalExpiry = 15 * time.Minute

// MaxConcurrentScans bounds how many symbols are evaluated at once,
// generalizing the teacher's buffered-channel semaphore
// (`sem := make(chan struct{}, 10)` in usecase/screener.go) to
// golang.org/x/sync/semaphore per the sizing of the rest of this core's
// worker pools.
const MaxConcurrentScans = 8

// fillProbabilityAssumption stands in for a fill-microstructure model this
// system does not implement: no component in this codebase estimates
// probability-of-fill from order-book depth, so a conservative constant is
// used as the sizer's PFill input (see DESIGN.md).
var fillProbabilityAssumption = decimal.RequireFromString("0.95")

// Screener periodically evaluates every watchlisted symbol and reports a
// Candidate to SMS whenever confluence clears the configured minimum and
// the utility gate passes.
type Screener struct {
	watchlist domain.WatchlistStore
	config    domain.MtfConfigStore
	zones     *zone.Detector
	cache     *marketdata.Cache
	coord     *sms.SMS
	sem       *semaphore.Weighted
}

// New builds a Screener.
func New(watchlist domain.WatchlistStore, config domain.MtfConfigStore, zones *zone.Detector, cache *marketdata.Cache, coord *sms.SMS) *Screener {
	return &Screener{
		watchlist: watchlist,
		config:    config,
		zones:     zones,
		cache:     cache,
		coord:     coord,
		sem:       semaphore.NewWeighted(MaxConcurrentScans),
	}
}

// Run scans the watchlist every ScanInterval until ctx is cancelled.
func (s *Screener) Run(ctx context.Context) {
	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Screener) scan(ctx context.Context) {
	entries, err := s.watchlist.All(ctx)
	if err != nil {
		log.Printf("screener: watchlist read failed: %v", err)
		return
	}
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		symbol := e.Symbol
		go func() {
			defer s.sem.Release(1)
			s.evaluate(ctx, symbol)
		}()
	}
}

func (s *Screener) evaluate(ctx context.Context, symbol string) {
	cfg, err := s.config.Resolve(ctx, symbol)
	if err != nil {
		log.Printf("screener: config resolve for %s failed: %v", symbol, err)
		return
	}

	zones, err := s.zones.Compute(ctx, symbol, cfg)
	if err != nil {
		// domain.Insufficient is the expected steady-state outcome while a
		// symbol's candle history is still warming up; not an error.
		return
	}

	price := s.cache.GetLastPrice(ctx, symbol)
	if price.Tier == domain.TierUnavailable {
		return
	}

	result := confluence.Evaluate(price.Price, zones, cfg)
	if result.Type == domain.ConfluenceNone {
		return
	}

	floor := zones.HTF.Low
	ceiling := zones.HTF.High
	_, kelly := sizing.Kelly(price.Price, floor, ceiling, price.Price.Sub(floor))

	pi, ell := gate.LogReturns(price.Price, floor, ceiling)
	outcome := gate.Evaluate(pi, ell, cfg.DefaultPWin, cfg)
	if !outcome.Passed {
		return
	}

	now := time.Now().UTC()
	s.coord.OnSignalDetected(ctx, sms.Candidate{
		Symbol:           symbol,
		Direction:        domain.Buy,
		ConfluenceType:   result.Type,
		ConfluenceScore:  result.Score,
		Strength:         result.Strength,
		PWin:             outcome.PWin,
		PFill:            fillProbabilityAssumption,
		Kelly:            decimal.NewFromFloat(kelly),
		ReferencePrice:   price.Price,
		TFIndicators:     result.Indicators,
		EffectiveFloor:   floor,
		EffectiveCeiling: ceiling,
		TS:               now,
		ExpiresAt:        now.Add(SignalExpiry),
	})
}
