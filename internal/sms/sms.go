// Package sms implements Signal Management (§4.13): the sole mutator of
// signals, signal deliveries, exit signals, and exit intents. It owns two
// partitioned coordinators (entry by symbol, exit by trade_id), the
// in-memory SignalDeliveryIndex, and the single domain.NewWriteToken call
// site that gives the single-writer discipline a type-level check instead
// of a convention (§9).
package sms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nse-mtf/core/internal/domain"
)

// EntryQueueDepth/ExitQueueDepth are the per-partition queue depths of the
// entry and exit coordinators, each built with DefaultPartitionCount
// partitions.
const (
	EntryQueueDepth = 1024
	ExitQueueDepth  = 1024

	// ExitRearmCooldown is the fast-path, in-memory mirror of the database's
	// authoritative 30-second episode cooldown (§9: the DB function is
	// authoritative; this map is a pre-check only, never the source of
	// truth for I5).
	ExitRearmCooldown = 30 * time.Second

	// ExpiryTick is how often the stale-signal scheduler runs.
	ExpiryTick = 1 * time.Minute

	// MarketCloseGuard suppresses new signal detection this close to
	// session close (§4.13).
	MarketCloseGuard = 60 * time.Second
)

// SMS is the signal-management coordinator.
type SMS struct {
	token domain.WriteToken

	signals     domain.SignalStore
	deliveries  domain.SignalDeliveryStore
	intents     domain.TradeIntentStore
	exitSignals domain.ExitSignalStore
	exitIntents domain.ExitIntentStore
	trades      domain.TradeStore
	userBrokers domain.UserBrokerStore
	bus         domain.EventBus

	entry *Coordinator
	exit  *Coordinator

	index *DeliveryIndex

	mu              sync.Mutex
	lastProcessedTS map[string]time.Time    // AV-8 guard, keyed by symbol
	lastExitAt      map[exitCooldownKey]time.Time // fast-path mirror of the DB cooldown
}

type exitCooldownKey struct {
	TradeID uuid.UUID
	Reason  domain.ExitReason
}

// Deps bundles the durable repositories and event bus SMS needs.
type Deps struct {
	Signals     domain.SignalStore
	Deliveries  domain.SignalDeliveryStore
	Intents     domain.TradeIntentStore
	ExitSignals domain.ExitSignalStore
	ExitIntents domain.ExitIntentStore
	Trades      domain.TradeStore
	UserBrokers domain.UserBrokerStore
	Bus         domain.EventBus
}

// New constructs an SMS coordinator. This is the sole call site of
// domain.NewWriteToken in the repository.
func New(deps Deps) *SMS {
	return &SMS{
		token:           domain.NewWriteToken(),
		signals:         deps.Signals,
		deliveries:      deps.Deliveries,
		intents:         deps.Intents,
		exitSignals:     deps.ExitSignals,
		exitIntents:     deps.ExitIntents,
		trades:          deps.Trades,
		userBrokers:     deps.UserBrokers,
		bus:             deps.Bus,
		entry:           NewCoordinator(0, EntryQueueDepth),
		exit:            NewCoordinator(0, ExitQueueDepth),
		index:           NewDeliveryIndex(),
		lastProcessedTS: make(map[string]time.Time),
		lastExitAt:      make(map[exitCooldownKey]time.Time),
	}
}

// Run starts the entry and exit coordinator pools plus the expiry
// scheduler. It blocks until ctx is cancelled.
func (s *SMS) Run(ctx context.Context) {
	go s.entry.Run(ctx)
	go s.exit.Run(ctx)
	go s.runExpiryScheduler(ctx)
	<-ctx.Done()
}

// RebuildIndex loads the SignalDeliveryIndex from the store, per §4.13.
func (s *SMS) RebuildIndex(ctx context.Context) error {
	return s.index.Rebuild(ctx, s.deliveries)
}

// Index exposes the delivery index for the orchestrator's O(1)
// "has user X seen signal Y" lookups.
func (s *SMS) Index() *DeliveryIndex { return s.index }

func (s *SMS) getLastProcessed(symbol string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProcessedTS[symbol]
}

func (s *SMS) setLastProcessed(symbol string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.After(s.lastProcessedTS[symbol]) {
		s.lastProcessedTS[symbol] = ts
	}
}

func (s *SMS) exitOnCooldown(key exitCooldownKey, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastExitAt[key]
	if !ok {
		return false
	}
	return now.Sub(last) < ExitRearmCooldown
}

func (s *SMS) markExit(key exitCooldownKey, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExitAt[key] = now
}

func (s *SMS) runExpiryScheduler(ctx context.Context) {
	ticker := time.NewTicker(ExpiryTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireStaleSignals(ctx)
		}
	}
}
