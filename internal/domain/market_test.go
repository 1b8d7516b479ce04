package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-mtf/core/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCandleInvariant(t *testing.T) {
	open := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)
	good := domain.Candle{
		Symbol: "RELIANCE", TF: domain.M1,
		Open: dec("100"), High: dec("101"), Low: dec("99"), Close: dec("100.5"),
		Volume: dec("10"), OpenTS: open, CloseTS: open.Add(time.Minute),
	}
	assert.True(t, good.Invariant())

	t.Run("low above open/close is rejected", func(t *testing.T) {
		bad := good
		bad.Low = dec("100.2")
		assert.False(t, bad.Invariant())
	})

	t.Run("high below open/close is rejected", func(t *testing.T) {
		bad := good
		bad.High = dec("100.1")
		assert.False(t, bad.Invariant())
	})

	t.Run("wrong close_ts span is rejected", func(t *testing.T) {
		bad := good
		bad.CloseTS = open.Add(2 * time.Minute)
		assert.False(t, bad.Invariant())
	})

	t.Run("DAILY skips the span check", func(t *testing.T) {
		daily := good
		daily.TF = domain.DAILY
		daily.CloseTS = open.Add(36 * time.Hour)
		assert.True(t, daily.Invariant())
	})
}

func TestPartialCandleCloseAt(t *testing.T) {
	open := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)
	pc := domain.NewPartialCandle("TCS", domain.M1, open, dec("3500"), dec("5"), open)
	pc.Update(dec("3510"), dec("2"), open.Add(30*time.Second))
	pc.Update(dec("3495"), dec("3"), open.Add(45*time.Second))

	closed := pc.CloseAt(open.Add(time.Minute))
	require.True(t, closed.Invariant())
	assert.Equal(t, dec("3500"), closed.Open)
	assert.Equal(t, dec("3495"), closed.Close)
	assert.Equal(t, dec("3510"), closed.High)
	assert.Equal(t, dec("3495"), closed.Low)
	assert.True(t, dec("10").Equal(closed.Volume))
}

func TestPartialCandleStale(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	pc := domain.NewPartialCandle("TCS", domain.M1, now.Add(-5*time.Minute), dec("100"), dec("1"), now.Add(-3*time.Minute))
	assert.True(t, pc.Stale(now))

	fresh := domain.NewPartialCandle("TCS", domain.M1, now.Add(-1*time.Minute), dec("100"), dec("1"), now.Add(-10*time.Second))
	assert.False(t, fresh.Stale(now))

	daily := domain.NewPartialCandle("TCS", domain.DAILY, now.Add(-48*time.Hour), dec("100"), dec("1"), now.Add(-48*time.Hour))
	assert.False(t, daily.Stale(now))
}

func TestZoneInBuyZone(t *testing.T) {
	z := domain.Zone{Low: dec("100"), High: dec("120"), BuyZoneTop: dec("104"), SellZoneBottom: dec("116")}
	assert.True(t, z.InBuyZone(dec("100")))
	assert.True(t, z.InBuyZone(dec("104")))
	assert.False(t, z.InBuyZone(dec("104.01")))
	assert.False(t, z.InBuyZone(dec("99.99")))
}

func TestZoneFromCandles(t *testing.T) {
	_, ok := domain.ZoneFromCandles(nil, dec("0.5"))
	assert.False(t, ok)

	candles := []domain.Candle{
		{Low: dec("90"), High: dec("110")},
		{Low: dec("85"), High: dec("115")},
		{Low: dec("95"), High: dec("100")},
	}
	z, ok := domain.ZoneFromCandles(candles, dec("0.20"))
	require.True(t, ok)
	assert.True(t, dec("85").Equal(z.Low))
	assert.True(t, dec("115").Equal(z.High))
	// range = 30, buy_zone_top = 85 + 0.20*30 = 91
	assert.True(t, dec("91").Equal(z.BuyZoneTop))
	assert.True(t, dec("109").Equal(z.SellZoneBottom))
}

func TestTickValidate(t *testing.T) {
	ok := domain.Tick{Symbol: "X", Last: dec("100"), Volume: dec("1")}
	_, valid := ok.Validate()
	assert.True(t, valid)

	nonPositive := domain.Tick{Symbol: "X", Last: dec("0"), Volume: dec("1")}
	reason, valid := nonPositive.Validate()
	assert.False(t, valid)
	assert.Equal(t, domain.RejectNonPositivePrice, reason)

	negVol := domain.Tick{Symbol: "X", Last: dec("100"), Volume: dec("-1")}
	reason, valid = negVol.Validate()
	assert.False(t, valid)
	assert.Equal(t, domain.RejectNegativeVolume, reason)
}

func TestConfluenceTypeMeetsMinimum(t *testing.T) {
	assert.True(t, domain.ConfluenceTriple.MeetsMinimum(domain.ConfluenceDouble))
	assert.True(t, domain.ConfluenceDouble.MeetsMinimum(domain.ConfluenceDouble))
	assert.False(t, domain.ConfluenceSingle.MeetsMinimum(domain.ConfluenceDouble))
	assert.True(t, domain.ConfluenceDouble.MeetsMinimum(domain.ConfluenceNone))
}
