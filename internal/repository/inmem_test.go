package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/repository"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newSignal(symbol string, floor, ceiling decimal.Decimal, generatedAt time.Time) domain.Signal {
	return domain.Signal{
		SignalID:         uuid.New(),
		Symbol:           symbol,
		Direction:        domain.Buy,
		ConfluenceType:   domain.ConfluenceDouble,
		EffectiveFloor:   floor,
		EffectiveCeiling: ceiling,
		GeneratedAt:      generatedAt,
		ExpiresAt:        generatedAt.Add(15 * time.Minute),
		Status:           domain.SignalDetected,
		Version:          1,
	}
}

// P9: a second signal with the same (symbol, confluence_type, date,
// effective_floor, effective_ceiling) tuple is rejected as already handled
// rather than inserted as a duplicate row.
func TestInMemorySignalsDedupe(t *testing.T) {
	store := repository.NewInMemorySignals()
	token := domain.NewWriteToken()
	ctx := context.Background()
	ts := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	first := newSignal("RELIANCE", dec("2400"), dec("2500"), ts)
	require.NoError(t, store.Insert(ctx, token, first))

	dup := newSignal("RELIANCE", dec("2400"), dec("2500"), ts.Add(5*time.Minute))
	err := store.Insert(ctx, token, dup)
	require.Error(t, err)
	assert.True(t, domain.IsAlreadyHandled(err))

	// A different floor/ceiling is a distinct signal, not a duplicate.
	distinct := newSignal("RELIANCE", dec("2350"), dec("2450"), ts)
	assert.NoError(t, store.Insert(ctx, token, distinct))
}

func TestInMemorySignalsFindBySymbolAndStatusOrdersByGeneratedAt(t *testing.T) {
	store := repository.NewInMemorySignals()
	token := domain.NewWriteToken()
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	later := newSignal("TCS", dec("100"), dec("110"), base.Add(time.Hour))
	earlier := newSignal("TCS", dec("200"), dec("210"), base)
	require.NoError(t, store.Insert(ctx, token, later))
	require.NoError(t, store.Insert(ctx, token, earlier))

	found, err := store.FindBySymbolAndStatus(ctx, "TCS", domain.SignalDetected)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].GeneratedAt.Equal(base))
	assert.True(t, found[1].GeneratedAt.Equal(base.Add(time.Hour)))
}

// P8: episode numbers for one (trade_id, reason) are strictly increasing,
// and a second call inside the 30-second cooldown window is rejected.
func TestInMemoryExitSignalsGenerateEpisodeCooldown(t *testing.T) {
	store := repository.NewInMemoryExitSignals()
	token := domain.NewWriteToken()
	ctx := context.Background()
	tradeID := uuid.New()

	ep1, err := store.GenerateEpisode(ctx, token, tradeID, domain.ReasonTargetHit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ep1)

	_, err = store.GenerateEpisode(ctx, token, tradeID, domain.ReasonTargetHit)
	require.Error(t, err)
	assert.True(t, domain.IsAlreadyHandled(err))

	// A distinct reason on the same trade is a distinct counter, unaffected
	// by the cooldown on ReasonTargetHit.
	ep2, err := store.GenerateEpisode(ctx, token, tradeID, domain.ReasonStopLoss)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ep2)
}

func TestInMemoryCandlesGetRecentReturnsMostRecentNInOrder(t *testing.T) {
	store := repository.NewInMemoryCandles()
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		c := domain.Candle{
			Symbol: "TCS", TF: domain.M1,
			Open: dec("100"), High: dec("101"), Low: dec("99"), Close: dec("100"),
			Volume:  dec("1"),
			OpenTS:  base.Add(time.Duration(i) * time.Minute),
			CloseTS: base.Add(time.Duration(i+1) * time.Minute),
		}
		require.NoError(t, store.Persist(ctx, c))
	}

	recent, err := store.GetRecent(ctx, "TCS", domain.M1, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].OpenTS.Equal(base.Add(2*time.Minute)))
	assert.True(t, recent[2].OpenTS.Equal(base.Add(4*time.Minute)))
}
