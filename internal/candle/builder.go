// Package candle implements the tick-to-candle pipeline (§4.3): a
// partitioned pool of single-writer workers, each owning the PartialCandle
// map for the symbols hashed to it, a 2-second watchdog sweep, and a
// closed-candle channel downstream consumers subscribe to instead of being
// called back inline (§9's callback-graph redesign).
package candle

import (
	"context"
	"hash/fnv"
	"log"
	"sync/atomic"
	"time"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/marketdata"
	"github.com/nse-mtf/core/internal/session"
)

// DefaultPartitions is used when Builder is constructed with partitions<=0;
// it mirrors the "max(8, cores)" sizing the spec gives for SMS partitions
// (§5), applied here too since the same single-writer-per-symbol shape
// applies to candle building.
const DefaultPartitions = 8

// QueueBound is the per-partition tick queue capacity. A full queue applies
// explicit back-pressure to the feed (§5, §9) rather than silently
// buffering without limit.
const QueueBound = 4096

// SweepInterval is how often the watchdog closes stale partial candles.
const SweepInterval = 2 * time.Second

// Builder owns the per-symbol PartialCandle state and the watchdog that
// force-closes stale buckets.
type Builder struct {
	store  domain.CandleStore
	cache  *marketdata.Cache
	parts  []*partition
	closed chan domain.Candle

	rejected int64
}

type partition struct {
	ticks   chan domain.Tick
	candles map[string]*domain.PartialCandle
}

// New constructs a Builder with the given number of partitions (<=0 uses
// DefaultPartitions) and a buffered closed-candle channel of capacity
// chanBuf.
func New(store domain.CandleStore, cache *marketdata.Cache, partitions, chanBuf int) *Builder {
	if partitions <= 0 {
		partitions = DefaultPartitions
	}
	if chanBuf <= 0 {
		chanBuf = 1024
	}
	b := &Builder{
		store:  store,
		cache:  cache,
		closed: make(chan domain.Candle, chanBuf),
	}
	for i := 0; i < partitions; i++ {
		b.parts = append(b.parts, &partition{
			ticks:   make(chan domain.Tick, QueueBound),
			candles: make(map[string]*domain.PartialCandle),
		})
	}
	return b
}

// Closed returns the channel of closed M1 candles for downstream
// subscribers (the aggregator).
func (b *Builder) Closed() <-chan domain.Candle { return b.closed }

// RejectedCount returns the number of ticks silently dropped at ingest.
func (b *Builder) RejectedCount() int64 { return atomic.LoadInt64(&b.rejected) }

// Run starts one goroutine per partition plus the watchdog sweep. It
// blocks until ctx is cancelled.
func (b *Builder) Run(ctx context.Context) {
	for _, p := range b.parts {
		go b.runPartition(ctx, p)
	}
	<-ctx.Done()
}

func (b *Builder) partitionFor(symbol string) *partition {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return b.parts[int(h.Sum32())%len(b.parts)]
}

// OnTick is the single entry point for inbound ticks (§4.3). It applies the
// ingest-time rejection rules, then routes the tick to its symbol's
// partition queue. Called at most once per tick per symbol by the feed
// adapter; this method itself is safe to call concurrently for distinct
// symbols since routing only reads the partition table.
func (b *Builder) OnTick(tick domain.Tick) {
	if _, ok := tick.Validate(); !ok {
		atomic.AddInt64(&b.rejected, 1)
		return
	}
	if !session.IsWithinSession(tick.Time()) {
		atomic.AddInt64(&b.rejected, 1)
		return
	}
	if b.cache != nil {
		b.cache.Put(tick)
	}
	p := b.partitionFor(tick.Symbol)
	select {
	case p.ticks <- tick:
	default:
		// Queue bound reached: explicit back-pressure: block the caller
		// rather than silently drop, per §5/§9.
		p.ticks <- tick
	}
}

func (b *Builder) runPartition(ctx context.Context, p *partition) {
	sweep := time.NewTicker(SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-p.ticks:
			b.applyTick(ctx, p, tick)
		case <-sweep.C:
			b.sweep(ctx, p, time.Now().UTC())
		}
	}
}

func (b *Builder) applyTick(ctx context.Context, p *partition, tick domain.Tick) {
	bucketStart := session.FloorToMinute(tick.Time())
	pc, ok := p.candles[tick.Symbol]

	if !ok {
		p.candles[tick.Symbol] = domain.NewPartialCandle(tick.Symbol, domain.M1, bucketStart, tick.Last, tick.Volume, tick.Time())
		return
	}

	if bucketStart.After(pc.OpenTS) {
		b.emitClose(ctx, pc, pc.OpenTS.Add(time.Minute))
		p.candles[tick.Symbol] = domain.NewPartialCandle(tick.Symbol, domain.M1, bucketStart, tick.Last, tick.Volume, tick.Time())
		return
	}

	pc.Update(tick.Last, tick.Volume, tick.Time())
}

// sweep force-closes any partial candle whose last tick is more than
// 2*tf_minutes stale (§4.3 step 3). It never backfills missed minutes.
func (b *Builder) sweep(ctx context.Context, p *partition, now time.Time) {
	for symbol, pc := range p.candles {
		if pc.Stale(now) {
			b.emitClose(ctx, pc, pc.OpenTS.Add(time.Duration(pc.TF.Minutes())*time.Minute))
			delete(p.candles, symbol)
		}
	}
}

func (b *Builder) emitClose(ctx context.Context, pc *domain.PartialCandle, closeTS time.Time) {
	c := pc.CloseAt(closeTS)
	if !c.Invariant() {
		log.Printf("candle: invariant violation for %s %s, refusing to emit", c.Symbol, c.TF)
		return
	}
	if b.store != nil {
		if err := b.store.Persist(ctx, c); err != nil {
			log.Printf("candle: persist failed for %s: %v", c.Symbol, err)
			return
		}
	}
	select {
	case b.closed <- c:
	default:
		log.Printf("candle: closed-candle channel full, dropping notify for %s (candle still persisted)", c.Symbol)
	}
}
