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

// Candidate is the generator's proposal for a new entry signal, produced
// by the confluence+gate+sizing pipeline, before SMS decides whether it
// becomes a PUBLISHED signal.
type Candidate struct {
	Symbol           string
	Direction        domain.Direction
	ConfluenceType   domain.ConfluenceType
	ConfluenceScore  decimal.Decimal
	Strength         domain.Strength
	PWin, PFill, Kelly decimal.Decimal
	ReferencePrice   decimal.Decimal
	TFIndicators     []domain.TFZoneIndicator
	EffectiveFloor   decimal.Decimal
	EffectiveCeiling decimal.Decimal
	TS               time.Time
	ExpiresAt        time.Time
}

// OnSignalDetected is the entry point for a freshly generated candidate
// (§4.13 step 1). It applies the market-close and out-of-order guards
// inline, then hands the mutating work to the symbol's entry partition so
// it is totally ordered with any other entry work for that symbol (I6).
func (s *SMS) OnSignalDetected(ctx context.Context, c Candidate) {
	if session.SessionCloseDistance(c.TS) <= MarketCloseGuard {
		return
	}
	if c.TS.Before(s.getLastProcessed(c.Symbol)) {
		return
	}

	s.entry.Execute(c.Symbol, func() {
		s.handleSignalDetected(ctx, c)
	})
}

func (s *SMS) handleSignalDetected(ctx context.Context, c Candidate) {
	active, err := s.signals.FindBySymbolAndStatus(ctx, c.Symbol, domain.SignalPublished)
	if err != nil {
		log.Printf("sms: FindBySymbolAndStatus(%s) failed: %v", c.Symbol, err)
		return
	}
	for _, existing := range active {
		if existing.Direction == c.Direction && zonesOverlap(existing, c) {
			if err := s.signals.UpdateStatus(ctx, s.token, existing.SignalID, domain.SignalSuperseded); err != nil {
				log.Printf("sms: supersede %s failed: %v", existing.SignalID, err)
				continue
			}
			s.index.RemoveSignal(existing.SignalID)
		}
	}

	sig := domain.Signal{
		SignalID:         uuid.New(),
		Symbol:           c.Symbol,
		Direction:        c.Direction,
		ConfluenceType:   c.ConfluenceType,
		ConfluenceScore:  c.ConfluenceScore,
		Strength:         c.Strength,
		PWin:             c.PWin,
		PFill:            c.PFill,
		Kelly:            c.Kelly,
		ReferencePrice:   c.ReferencePrice,
		TFIndicators:     c.TFIndicators,
		EffectiveFloor:   c.EffectiveFloor,
		EffectiveCeiling: c.EffectiveCeiling,
		GeneratedAt:      c.TS,
		ExpiresAt:        c.ExpiresAt,
		Status:           domain.SignalDetected,
		Version:          1,
	}

	if err := s.signals.Insert(ctx, s.token, sig); err != nil {
		if domain.IsAlreadyHandled(err) {
			// I2: dedupe collision, silently converted to a no-op.
			s.setLastProcessed(c.Symbol, c.TS)
			return
		}
		log.Printf("sms: insert signal %s failed: %v", sig.SignalID, err)
		return
	}

	if err := s.signals.UpdateStatus(ctx, s.token, sig.SignalID, domain.SignalPublished); err != nil {
		log.Printf("sms: publish signal %s failed: %v", sig.SignalID, err)
		return
	}
	s.bus.Emit(domain.ScopeGlobal, domain.EventSignalGenerated, sig, "sms")

	brokers, err := s.userBrokers.FindEnabledByRole(ctx, domain.RoleExec)
	if err != nil {
		log.Printf("sms: FindEnabledByRole failed: %v", err)
		s.setLastProcessed(c.Symbol, c.TS)
		return
	}
	for _, ub := range brokers {
		d := domain.SignalDelivery{
			DeliveryID:   uuid.New(),
			SignalID:     sig.SignalID,
			UserBrokerID: ub.UserBrokerID,
			UserID:       ub.UserID,
			Status:       domain.DeliveryCreated,
			CreatedAt:    c.TS,
		}
		if err := s.deliveries.Insert(ctx, s.token, d); err != nil {
			log.Printf("sms: insert delivery for %s/%s failed: %v", sig.SignalID, ub.UserBrokerID, err)
			continue
		}
		s.index.Add(d)
		s.bus.EmitUser(d.UserID, domain.EventSignalDelivered, d, "sms")
	}

	s.setLastProcessed(c.Symbol, c.TS)
}

func zonesOverlap(existing domain.Signal, c Candidate) bool {
	return !(existing.EffectiveCeiling.LessThan(c.EffectiveFloor) || existing.EffectiveFloor.GreaterThan(c.EffectiveCeiling))
}

// OnPriceUpdate invalidates any active signal for symbol whose zone price
// has broken (§4.13 step 2). Out-of-order ticks are ignored via the same
// last-processed guard as OnSignalDetected.
func (s *SMS) OnPriceUpdate(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) {
	if ts.Before(s.getLastProcessed(symbol)) {
		return
	}
	s.entry.Execute(symbol, func() {
		s.handlePriceUpdate(ctx, symbol, price, ts)
	})
}

func (s *SMS) handlePriceUpdate(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) {
	active, err := s.signals.FindBySymbolAndStatus(ctx, symbol, domain.SignalPublished)
	if err != nil {
		log.Printf("sms: FindBySymbolAndStatus(%s) failed: %v", symbol, err)
		return
	}
	for _, sig := range active {
		broken := sig.Direction == domain.Buy && (price.LessThan(sig.EffectiveFloor) || price.GreaterThan(sig.EffectiveCeiling))
		if broken {
			s.teardownSignal(ctx, sig.SignalID, "ZONE_BROKEN")
		}
	}
	s.setLastProcessed(symbol, ts)
}

// CancelSignal cancels id and tears down its deliveries (§4.13 step 3).
func (s *SMS) CancelSignal(ctx context.Context, id uuid.UUID, symbol, reason string) {
	s.entry.Execute(symbol, func() {
		s.teardownSignal(ctx, id, reason)
	})
}

func (s *SMS) teardownSignal(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.deliveries.CancelAllForSignal(ctx, s.token, id); err != nil {
		log.Printf("sms: cancel deliveries for %s failed: %v", id, err)
	}
	if err := s.signals.UpdateStatus(ctx, s.token, id, domain.SignalCancelled); err != nil {
		log.Printf("sms: cancel signal %s failed: %v", id, err)
		return
	}
	s.index.RemoveSignal(id)
	s.bus.Emit(domain.ScopeGlobal, domain.EventSignalCancelled, map[string]any{"signal_id": id, "reason": reason}, "sms")
}

// expireStaleSignals is the minute-tick scheduler of §4.13 step 4: finds
// signals past their expires_at and routes each expiry through its symbol
// partition.
func (s *SMS) expireStaleSignals(ctx context.Context) {
	expiring, err := s.signals.FindExpiringSoon(ctx, 0)
	if err != nil {
		log.Printf("sms: FindExpiringSoon failed: %v", err)
		return
	}
	now := time.Now().UTC()
	for _, sig := range expiring {
		if !now.After(sig.ExpiresAt) {
			continue
		}
		id := sig.SignalID
		symbol := sig.Symbol
		s.entry.Execute(symbol, func() {
			s.expireOne(ctx, id)
		})
	}
}

func (s *SMS) expireOne(ctx context.Context, id uuid.UUID) {
	if err := s.deliveries.ExpireAllForSignal(ctx, s.token, id); err != nil {
		log.Printf("sms: expire deliveries for %s failed: %v", id, err)
	}
	if err := s.signals.UpdateStatus(ctx, s.token, id, domain.SignalExpired); err != nil {
		log.Printf("sms: expire signal %s failed: %v", id, err)
		return
	}
	s.index.RemoveSignal(id)
	s.bus.Emit(domain.ScopeGlobal, domain.EventSignalExpired, map[string]any{"signal_id": id}, "sms")
}
