package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe enumerates the candle timeframes the MTF pipeline builds.
type Timeframe string

const (
	M1     Timeframe = "M1"
	M25    Timeframe = "M25"
	M125   Timeframe = "M125"
	DAILY  Timeframe = "DAILY"
)

// Minutes returns the timeframe's duration in minutes. DAILY has no fixed
// intraday minute count and panics if asked; callers must special-case it.
func (tf Timeframe) Minutes() int {
	switch tf {
	case M1:
		return 1
	case M25:
		return 25
	case M125:
		return 125
	default:
		panic("domain: Minutes() called on non-intraday timeframe " + string(tf))
	}
}

// Lookback returns the minimum number of closed candles the Candle Store
// must hold before the confluence analyser may run for this timeframe (§3).
func (tf Timeframe) Lookback() int {
	switch tf {
	case M1:
		return 375
	case M25:
		return 75
	case M125:
		return 175
	case DAILY:
		return 15
	default:
		return 0
	}
}

// Direction is the side of a signal, trade, or exit.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// TickRejectReason names why on_tick silently dropped an inbound tick.
type TickRejectReason string

const (
	RejectNonPositivePrice TickRejectReason = "NON_POSITIVE_PRICE"
	RejectNegativeVolume   TickRejectReason = "NEGATIVE_VOLUME"
	RejectOutsideSession   TickRejectReason = "OUTSIDE_SESSION"
)

// Tick is an immutable market-data sample.
type Tick struct {
	Symbol string
	Last   decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Volume decimal.Decimal
	TsMS   int64
}

// Time returns the tick timestamp as a UTC instant.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.TsMS).UTC()
}

// Validate applies the ingest-time rejection rules of §4.3. It does not
// check session membership; callers check that separately since it needs
// the session clock.
func (t Tick) Validate() (TickRejectReason, bool) {
	if !t.Last.IsPositive() {
		return RejectNonPositivePrice, false
	}
	if t.Volume.IsNegative() {
		return RejectNegativeVolume, false
	}
	return "", true
}

// Candle is an immutable closed bar.
type Candle struct {
	Symbol    string
	TF        Timeframe
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	OpenTS    time.Time
	CloseTS   time.Time
}

// Invariant checks P1: low <= min(open,close) <= max(open,close) <= high,
// and close_ts - open_ts == tf_minutes (skipped for DAILY, which has no
// fixed intraday span).
func (c Candle) Invariant() bool {
	lo := c.Open
	hi := c.Open
	if c.Close.LessThan(lo) {
		lo = c.Close
	}
	if c.Close.GreaterThan(hi) {
		hi = c.Close
	}
	if c.Low.GreaterThan(lo) || c.High.LessThan(hi) || c.Low.GreaterThan(c.High) {
		return false
	}
	if c.TF != DAILY {
		want := c.OpenTS.Add(time.Duration(c.TF.Minutes()) * time.Minute)
		if !c.CloseTS.Equal(want) {
			return false
		}
	}
	return true
}

// PartialCandle is the mutable, single-writer-owned in-progress bar for one
// symbol/timeframe bucket. Only the candle builder (for M1) or the
// aggregator (for M25/M125) may mutate an instance.
type PartialCandle struct {
	Symbol      string
	TF          Timeframe
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	OpenTS      time.Time
	LastTickTS  time.Time
	ticksSeen   int
}

// NewPartialCandle opens a fresh bucket with the given first sample.
func NewPartialCandle(symbol string, tf Timeframe, openTS time.Time, price, volume decimal.Decimal, sampleTS time.Time) *PartialCandle {
	return &PartialCandle{
		Symbol:     symbol,
		TF:         tf,
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		Volume:     volume,
		OpenTS:     openTS,
		LastTickTS: sampleTS,
		ticksSeen:  1,
	}
}

// Update folds a new price/volume sample into the bucket (§4.3 step 1).
func (p *PartialCandle) Update(price, volume decimal.Decimal, sampleTS time.Time) {
	if p.ticksSeen == 0 {
		p.Open = price
		p.High = price
		p.Low = price
	} else {
		if price.GreaterThan(p.High) {
			p.High = price
		}
		if price.LessThan(p.Low) {
			p.Low = price
		}
	}
	p.Close = price
	p.Volume = p.Volume.Add(volume)
	if sampleTS.After(p.LastTickTS) {
		p.LastTickTS = sampleTS
	}
	p.ticksSeen++
}

// CloseAt materialises the immutable Candle at the given close timestamp.
func (p *PartialCandle) CloseAt(closeTS time.Time) Candle {
	return Candle{
		Symbol:  p.Symbol,
		TF:      p.TF,
		Open:    p.Open,
		High:    p.High,
		Low:     p.Low,
		Close:   p.Close,
		Volume:  p.Volume,
		OpenTS:  p.OpenTS,
		CloseTS: closeTS,
	}
}

// Stale reports whether the watchdog sweep should force-close this bucket:
// now - last_tick_ts > 2 * tf_minutes (§4.3 step 3).
func (p *PartialCandle) Stale(now time.Time) bool {
	if p.TF == DAILY {
		return false
	}
	return now.Sub(p.LastTickTS) > 2*time.Duration(p.TF.Minutes())*time.Minute
}

// Zone is the buy-zone/sell-zone geometry for one (symbol, timeframe).
type Zone struct {
	Low            decimal.Decimal
	High           decimal.Decimal
	BuyZoneTop     decimal.Decimal
	SellZoneBottom decimal.Decimal
}

// InBuyZone reports low <= p <= buy_zone_top (P3).
func (z Zone) InBuyZone(p decimal.Decimal) bool {
	return !p.LessThan(z.Low) && !p.GreaterThan(z.BuyZoneTop)
}

// ZoneFromCandles derives a Zone from candle extrema and a buy-zone
// percentage (§4.6). Returns false if candles is empty.
func ZoneFromCandles(candles []Candle, buyZonePct decimal.Decimal) (Zone, bool) {
	if len(candles) == 0 {
		return Zone{}, false
	}
	lo := candles[0].Low
	hi := candles[0].High
	for _, c := range candles[1:] {
		if c.Low.LessThan(lo) {
			lo = c.Low
		}
		if c.High.GreaterThan(hi) {
			hi = c.High
		}
	}
	rng := hi.Sub(lo)
	return Zone{
		Low:            lo,
		High:           hi,
		BuyZoneTop:     lo.Add(rng.Mul(buyZonePct)),
		SellZoneBottom: hi.Sub(rng.Mul(buyZonePct)),
	}, true
}

// PriceTier tags where get_last_price sourced its answer from (§4.2).
type PriceTier string

const (
	TierLive        PriceTier = "LIVE"
	TierPrevDaily   PriceTier = "PREV_DAILY_CLOSE"
	TierUnavailable PriceTier = "UNAVAILABLE"
)

// PriceLookup is the result of MarketDataCache.GetLastPrice.
type PriceLookup struct {
	Price decimal.Decimal
	Tier  PriceTier
}
