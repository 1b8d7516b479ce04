// Package aggregator rolls closed M1 candles up into M25/M125 bars aligned
// to session start (§4.4), persists them, and republishes them on an
// internal closed-candle channel so the signal pipeline can subscribe
// without being called back inline from the candle builder (§9).
package aggregator

import (
	"context"
	"log"
	"time"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/session"
)

// SweepInterval governs the fallback boundary check for symbols that
// receive no M1 close for an extended stretch (§4.4: "a boundary crossing
// with no emitted M1 bar ... still closes the coarser bars").
const SweepInterval = 5 * time.Second

type symbolState struct {
	m25  *domain.PartialCandle
	m125 *domain.PartialCandle
}

// Aggregator consumes closed M1 candles and produces closed M25/M125
// candles.
type Aggregator struct {
	store  domain.CandleStore
	in     <-chan domain.Candle
	closed chan domain.Candle

	state map[string]*symbolState
}

// New builds an Aggregator reading M1 closes from in.
func New(store domain.CandleStore, in <-chan domain.Candle, chanBuf int) *Aggregator {
	if chanBuf <= 0 {
		chanBuf = 1024
	}
	return &Aggregator{
		store:  store,
		in:     in,
		closed: make(chan domain.Candle, chanBuf),
		state:  make(map[string]*symbolState),
	}
}

// Closed returns the channel of closed M25/M125 candles.
func (a *Aggregator) Closed() <-chan domain.Candle { return a.closed }

// Run consumes M1 closes until ctx is cancelled or in is closed.
func (a *Aggregator) Run(ctx context.Context) {
	sweep := time.NewTicker(SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-a.in:
			if !ok {
				return
			}
			a.onM1Closed(ctx, c)
		case <-sweep.C:
			a.sweepBoundaries(ctx, time.Now().UTC())
		}
	}
}

func (a *Aggregator) stateFor(symbol string) *symbolState {
	s, ok := a.state[symbol]
	if !ok {
		s = &symbolState{}
		a.state[symbol] = s
	}
	return s
}

func (a *Aggregator) onM1Closed(ctx context.Context, m1 domain.Candle) {
	s := a.stateFor(m1.Symbol)
	a.roll(ctx, s, m1.Symbol, domain.M25, &s.m25, m1)
	a.roll(ctx, s, m1.Symbol, domain.M125, &s.m125, m1)
}

// roll folds one M1 candle into the coarser partial, closing it first if
// m1's close crosses the next session-aligned boundary (§4.4, P2).
func (a *Aggregator) roll(ctx context.Context, s *symbolState, symbol string, tf domain.Timeframe, slot **domain.PartialCandle, m1 domain.Candle) {
	bucketStart := session.FloorToIntervalFromSessionStart(m1.OpenTS, tf.Minutes())

	pc := *slot
	if pc != nil && bucketStart.After(pc.OpenTS) {
		a.emitClose(ctx, pc, pc.OpenTS.Add(time.Duration(tf.Minutes())*time.Minute))
		pc = nil
	}
	if pc == nil {
		pc = domain.NewPartialCandle(symbol, tf, bucketStart, m1.Open, m1.Volume, m1.CloseTS)
		pc.High = m1.High
		pc.Low = m1.Low
		pc.Close = m1.Close
		*slot = pc
		return
	}

	if m1.High.GreaterThan(pc.High) {
		pc.High = m1.High
	}
	if m1.Low.LessThan(pc.Low) {
		pc.Low = m1.Low
	}
	pc.Close = m1.Close
	pc.Volume = pc.Volume.Add(m1.Volume)
	pc.LastTickTS = m1.CloseTS
}

// sweepBoundaries force-closes coarser partials whose session-aligned
// boundary has passed even though no M1 close arrived to trigger it (e.g. a
// low-liquidity symbol with no trades in the bucket). The partial is closed
// with the values it already has, and the next bucket is opened as a flat
// partial at its last known close with zero volume, per §4.4.
func (a *Aggregator) sweepBoundaries(ctx context.Context, now time.Time) {
	for symbol, s := range a.state {
		a.sweepOne(ctx, symbol, domain.M25, &s.m25, now)
		a.sweepOne(ctx, symbol, domain.M125, &s.m125, now)
	}
}

func (a *Aggregator) sweepOne(ctx context.Context, symbol string, tf domain.Timeframe, slot **domain.PartialCandle, now time.Time) {
	pc := *slot
	if pc == nil {
		return
	}
	currentBucket := session.FloorToIntervalFromSessionStart(now, tf.Minutes())
	if !currentBucket.After(pc.OpenTS) {
		return
	}
	closeTS := pc.OpenTS.Add(time.Duration(tf.Minutes()) * time.Minute)
	a.emitClose(ctx, pc, closeTS)
	flat := domain.NewPartialCandle(symbol, tf, closeTS, pc.Close, pc.Volume.Sub(pc.Volume), closeTS)
	*slot = flat
}

func (a *Aggregator) emitClose(ctx context.Context, pc *domain.PartialCandle, closeTS time.Time) {
	c := pc.CloseAt(closeTS)
	if !c.Invariant() {
		log.Printf("aggregator: invariant violation for %s %s, refusing to emit", c.Symbol, c.TF)
		return
	}
	if a.store != nil {
		if err := a.store.Persist(ctx, c); err != nil {
			log.Printf("aggregator: persist failed for %s %s: %v", c.Symbol, c.TF, err)
			return
		}
	}
	select {
	case a.closed <- c:
	default:
		log.Printf("aggregator: closed-candle channel full, dropping notify for %s %s", c.Symbol, c.TF)
	}
}
