package sms

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nse-mtf/core/internal/domain"
)

// RecordIntent persists a TradeIntent — approved or rejected — before the
// delivery that produced it is marked CONSUMED, so the FK/I3 ordering ("no
// TradeIntent without a preceding delivery row... no delivery consumed
// without a persisted intent") always holds. Routed through the signal's
// symbol partition, the same one ConsumeDelivery uses, so intent writes
// and the delivery's status transition stay totally ordered (I6).
func (s *SMS) RecordIntent(ctx context.Context, symbol string, ti domain.TradeIntent) error {
	errCh := make(chan error, 1)
	s.entry.Execute(symbol, func() {
		errCh <- s.intents.Insert(ctx, s.token, ti)
	})
	return <-errCh
}

// MarkIntentPlaced records the broker order id and placement/fill
// timestamps on an already-persisted, approved TradeIntent.
func (s *SMS) MarkIntentPlaced(ctx context.Context, symbol string, intentID uuid.UUID, brokerOrderID string, placedAt, filledAt time.Time) error {
	errCh := make(chan error, 1)
	s.entry.Execute(symbol, func() {
		errCh <- s.intents.MarkPlaced(ctx, s.token, intentID, brokerOrderID, placedAt, filledAt)
	})
	return <-errCh
}

// MarkIntentRejected flips an already-persisted APPROVED TradeIntent to
// REJECTED when the broker itself rejects or fails to place the order
// (§7).
func (s *SMS) MarkIntentRejected(ctx context.Context, symbol string, intentID uuid.UUID, errs []string) error {
	errCh := make(chan error, 1)
	s.entry.Execute(symbol, func() {
		errCh <- s.intents.MarkRejected(ctx, s.token, intentID, errs)
	})
	return <-errCh
}

// ConsumeDelivery transitions a delivery CREATED -> CONSUMED once the
// orchestrator has created an intent for it (§4.15). Routed through the
// delivery's symbol partition so it stays totally ordered with the rest of
// that symbol's signal/delivery mutations (I6).
func (s *SMS) ConsumeDelivery(ctx context.Context, symbol string, deliveryID, intentID uuid.UUID) error {
	errCh := make(chan error, 1)
	s.entry.Execute(symbol, func() {
		errCh <- s.deliveries.UpdateStatus(ctx, s.token, deliveryID, domain.DeliveryConsumed, &intentID)
	})
	return <-errCh
}

// CreateTrade inserts a new OPEN trade (§4.15: "on fill, create a
// Trade(OPEN)"). Routed through the trade's exit partition, the sole path
// by which Trade rows are mutated (§3's ownership note).
func (s *SMS) CreateTrade(ctx context.Context, t domain.Trade) error {
	errCh := make(chan error, 1)
	s.exit.Execute(t.TradeID.String(), func() {
		errCh <- s.trades.Insert(ctx, s.token, t)
	})
	return <-errCh
}

// UpdateTrade persists trailing-stop state or a closed trade. Routed
// through the same exit partition as every other mutation of this trade.
func (s *SMS) UpdateTrade(ctx context.Context, t domain.Trade) error {
	errCh := make(chan error, 1)
	s.exit.Execute(t.TradeID.String(), func() {
		errCh <- s.trades.Update(ctx, s.token, t)
	})
	return <-errCh
}
