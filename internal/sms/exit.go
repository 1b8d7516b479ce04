package sms

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/session"
)

// ExitCandidate is a detected exit condition, as surfaced by the Exit
// Monitor, before SMS decides whether it becomes a confirmed ExitSignal.
type ExitCandidate struct {
	TradeID           uuid.UUID
	Symbol            string
	Direction         domain.Direction
	Reason            domain.ExitReason
	ExitPrice         decimal.Decimal
	BrickMovement     decimal.Decimal
	FavorableMovement bool
	Trade             domain.Trade
	Broker            domain.UserBroker
	TS                time.Time
}

// OnExitDetected is §4.13's exit entry point. It applies the market-open
// and fast-path cooldown guards inline, then routes the authoritative
// episode generation and qualification through the trade's exit
// partition (I5, I6).
func (s *SMS) OnExitDetected(ctx context.Context, c ExitCandidate) {
	if !session.IsWithinSession(c.TS) {
		return
	}
	key := exitCooldownKey{TradeID: c.TradeID, Reason: c.Reason}
	if s.exitOnCooldown(key, c.TS) {
		return
	}

	s.exit.Execute(c.TradeID.String(), func() {
		s.handleExitDetected(ctx, c, key)
	})
}

func (s *SMS) handleExitDetected(ctx context.Context, c ExitCandidate, key exitCooldownKey) {
	episodeID, err := s.exitSignals.GenerateEpisode(ctx, s.token, c.TradeID, c.Reason)
	if err != nil {
		intent := domain.ExitIntent{
			ExitIntentID:        uuid.New(),
			TradeID:             c.TradeID,
			UserBrokerID:        c.Broker.UserBrokerID,
			Reason:              c.Reason,
			Status:              domain.ExitIntentRejected,
			QualificationErrors: []string{domain.ErrCooldownActive},
			CreatedAt:           c.TS,
		}
		if ierr := s.exitIntents.Insert(ctx, s.token, intent); ierr != nil {
			log.Printf("sms: insert cooldown-rejected exit intent for trade %s failed: %v", c.TradeID, ierr)
		}
		s.bus.EmitUserBroker(c.Broker.UserBrokerID, domain.EventExitIntentCooldownReject, intent, "sms")
		return
	}

	qr := Qualify(QualificationInput{
		Direction: c.Direction,
		Reason:    c.Reason,
		ExitPrice: c.ExitPrice,
		Trade:     c.Trade,
		Broker:    c.Broker,
	})

	status := domain.ExitIntentApproved
	if !qr.Passed {
		status = domain.ExitIntentRejected
	}
	intent := domain.ExitIntent{
		ExitIntentID:        uuid.New(),
		TradeID:             c.TradeID,
		UserBrokerID:        c.Broker.UserBrokerID,
		Reason:              c.Reason,
		EpisodeID:           episodeID,
		Status:              status,
		QualificationErrors: qr.Errors,
		CalculatedQty:       qr.CalculatedQty,
		OrderType:           qr.OrderType,
		LimitPrice:          qr.LimitPrice,
		ProductType:         qr.ProductType,
		CreatedAt:           c.TS,
	}
	if err := s.exitIntents.Insert(ctx, s.token, intent); err != nil {
		log.Printf("sms: insert exit intent for trade %s failed: %v", c.TradeID, err)
		return
	}

	if !qr.Passed {
		s.bus.EmitUserBroker(c.Broker.UserBrokerID, domain.EventExitIntentRejected, intent, "sms")
		return
	}

	sig := domain.ExitSignal{
		ExitSignalID:      uuid.New(),
		TradeID:           c.TradeID,
		Symbol:            c.Symbol,
		Direction:         c.Direction,
		Reason:            c.Reason,
		ExitPrice:         c.ExitPrice,
		BrickMovement:     c.BrickMovement,
		FavorableMovement: c.FavorableMovement,
		EpisodeID:         episodeID,
		Status:            domain.ExitSignalDetected,
		DetectedAt:        c.TS,
	}
	if err := s.exitSignals.Insert(ctx, s.token, sig); err != nil {
		log.Printf("sms: insert exit signal for trade %s failed: %v", c.TradeID, err)
		return
	}
	s.bus.Emit(domain.ScopeGlobal, domain.EventExitSignalDetected, sig, "sms")
	s.markExit(key, c.TS)
}

// ConfirmExitSignal transitions id from DETECTED to CONFIRMED (§4.13).
func (s *SMS) ConfirmExitSignal(ctx context.Context, id, tradeID uuid.UUID) {
	s.exit.Execute(tradeID.String(), func() {
		if err := s.exitSignals.UpdateStatus(ctx, s.token, id, domain.ExitSignalConfirmed); err != nil {
			log.Printf("sms: confirm exit signal %s failed: %v", id, err)
			return
		}
		s.bus.Emit(domain.ScopeGlobal, domain.EventExitSignalConfirmed, map[string]any{"exit_signal_id": id}, "sms")
	})
}

// CancelExitSignal cancels id from any pre-EXECUTED state (§4.13).
func (s *SMS) CancelExitSignal(ctx context.Context, id, tradeID uuid.UUID, reason string) {
	s.exit.Execute(tradeID.String(), func() {
		if err := s.exitSignals.Cancel(ctx, s.token, id, reason); err != nil {
			log.Printf("sms: cancel exit signal %s failed: %v", id, err)
			return
		}
		s.bus.Emit(domain.ScopeGlobal, domain.EventExitSignalCancelled, map[string]any{"exit_signal_id": id, "reason": reason}, "sms")
	})
}
