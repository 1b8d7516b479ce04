package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CandleStore is the durable, typed repository for closed candles (§6).
type CandleStore interface {
	Persist(ctx context.Context, c Candle) error
	GetRecent(ctx context.Context, symbol string, tf Timeframe, n int) ([]Candle, error)
}

// SignalStore is the sole durable repository for Signal rows. Only
// internal/sms may call its mutating methods (§4.13, §9 single-writer
// discipline) — enforced here by accepting an unexported capability token
// minted by sms.New; see internal/sms/sms.go.
type SignalStore interface {
	Insert(ctx context.Context, w WriteToken, s Signal) error
	UpdateStatus(ctx context.Context, w WriteToken, id uuid.UUID, status SignalStatus) error
	FindBySymbolAndStatus(ctx context.Context, symbol string, status SignalStatus) ([]Signal, error)
	FindExpiringSoon(ctx context.Context, window time.Duration) ([]Signal, error)
	FindByID(ctx context.Context, id uuid.UUID) (Signal, bool, error)
}

// SignalDeliveryStore is the sole durable repository for SignalDelivery rows.
type SignalDeliveryStore interface {
	Insert(ctx context.Context, w WriteToken, d SignalDelivery) error
	FindAllActiveForIndex(ctx context.Context) ([]SignalDelivery, error)
	ExpireAllForSignal(ctx context.Context, w WriteToken, signalID uuid.UUID) error
	CancelAllForSignal(ctx context.Context, w WriteToken, signalID uuid.UUID) error
	UpdateStatus(ctx context.Context, w WriteToken, id uuid.UUID, status DeliveryStatus, intentID *uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (SignalDelivery, bool, error)
}

// ExitSignalStore is the sole durable repository for ExitSignal rows and the
// sole source of episode numbers (§4.13, §6, I5).
type ExitSignalStore interface {
	// GenerateEpisode atomically allocates the next episode number for
	// (tradeID, reason). It returns an *AlreadyHandled whose Reason is
	// ErrCooldownActive if the last exit for this key was generated less
	// than 30s ago.
	GenerateEpisode(ctx context.Context, w WriteToken, tradeID uuid.UUID, reason ExitReason) (int64, error)
	Insert(ctx context.Context, w WriteToken, e ExitSignal) error
	UpdateStatus(ctx context.Context, w WriteToken, id uuid.UUID, status ExitSignalStatus) error
	Cancel(ctx context.Context, w WriteToken, id uuid.UUID, reason string) error
	FindByTradeID(ctx context.Context, tradeID uuid.UUID) ([]ExitSignal, error)
	FindByID(ctx context.Context, id uuid.UUID) (ExitSignal, bool, error)
}

// ExitIntentStore is the sole durable repository for ExitIntent rows.
type ExitIntentStore interface {
	Insert(ctx context.Context, w WriteToken, ei ExitIntent) error
	UpdateStatus(ctx context.Context, w WriteToken, id uuid.UUID, status ExitIntentStatus) error
}

// TradeStore is the durable repository for Trade rows. The exclusive
// writers are the Execution Orchestrator (on fill) and the exit pipeline,
// both routed through SMS's exit coordinator (§3).
type TradeStore interface {
	Insert(ctx context.Context, w WriteToken, t Trade) error
	Update(ctx context.Context, w WriteToken, t Trade) error
	FindBySymbol(ctx context.Context, symbol string) ([]Trade, error)
	FindByPortfolioID(ctx context.Context, portfolioID uuid.UUID) ([]Trade, error)
	FindByID(ctx context.Context, id uuid.UUID) (Trade, bool, error)
}

// WriteToken is an unforgeable (outside this module tree) capability that
// gates every mutating Store method to SMS coordinators, per §9's
// single-writer discipline. See internal/sms for the only constructor.
type WriteToken struct{ guard *struct{} }

// NewWriteToken is exported only for use by internal/sms; other packages
// that import domain cannot mint a token and so cannot call the mutating
// Store methods, which gives the single-writer discipline a type-level
// check instead of a convention.
func NewWriteToken() WriteToken { return WriteToken{guard: new(struct{})} }

// TradeIntentStore is the durable repository for TradeIntent rows: the
// immutable snapshot of every sizing+validation decision the Execution
// Orchestrator makes (§3, §6). I3 requires a persisted row here before a
// SignalDelivery's intent_id may reference it, so the orchestrator always
// inserts before it calls SMS.ConsumeDelivery.
type TradeIntentStore interface {
	Insert(ctx context.Context, w WriteToken, ti TradeIntent) error
	// MarkPlaced records the broker's order id and placement/fill
	// timestamps once PlaceOrder succeeds for an approved intent.
	MarkPlaced(ctx context.Context, w WriteToken, id uuid.UUID, brokerOrderID string, placedAt, filledAt time.Time) error
	// MarkRejected flips a previously-inserted APPROVED intent to REJECTED
	// when PlaceOrder itself fails, appending the broker error (§7: broker
	// place-order failure "surfaced as a REJECTED intent").
	MarkRejected(ctx context.Context, w WriteToken, id uuid.UUID, errs []string) error
	FindByID(ctx context.Context, id uuid.UUID) (TradeIntent, bool, error)
}

// PortfolioStore is the read/write path for portfolio rows.
type PortfolioStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (Portfolio, bool, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (Portfolio, bool, error)
	Update(ctx context.Context, p Portfolio) error
}

// UserBrokerStore is the read path for user-broker linkage rows.
type UserBrokerStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (UserBroker, bool, error)
	FindEnabledByRole(ctx context.Context, role BrokerRole) ([]UserBroker, error)
}

// WatchlistStore is the read path for the symbol watchlist.
type WatchlistStore interface {
	IsWatched(ctx context.Context, symbol string) (bool, error)
	All(ctx context.Context) ([]WatchlistEntry, error)
}

// MtfConfigStore resolves the global config merged with a symbol override.
type MtfConfigStore interface {
	Global(ctx context.Context) (MtfConfig, error)
	Resolve(ctx context.Context, symbol string) (MtfConfig, error)
}

// Store bundles every repository the core depends on (§6), for convenient
// single-argument wiring at composition roots.
type Store struct {
	Candles       CandleStore
	Signals       SignalStore
	Deliveries    SignalDeliveryStore
	Intents       TradeIntentStore
	ExitSignals   ExitSignalStore
	ExitIntents   ExitIntentStore
	Trades        TradeStore
	Portfolios    PortfolioStore
	UserBrokers   UserBrokerStore
	Watchlist     WatchlistStore
	Config        MtfConfigStore
}
