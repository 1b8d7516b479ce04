package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentDecision is the outcome of the orchestrator's validation + sizing
// pipeline for one SignalDelivery.
type IntentDecision string

const (
	IntentApproved IntentDecision = "APPROVED"
	IntentRejected IntentDecision = "REJECTED"
)

// ProductType mirrors the broker's order product (intraday vs delivery);
// the core only ever passes it through, never interprets it.
type ProductType string

const (
	ProductIntraday ProductType = "MIS"
	ProductDelivery ProductType = "CNC"
)

// TradeIntent is the immutable snapshot of one sizing+validation decision.
type TradeIntent struct {
	IntentID      uuid.UUID
	SignalID      uuid.UUID
	UserBrokerID  uuid.UUID
	Decision      IntentDecision
	Quantity      int64
	LimitPrice    *decimal.Decimal
	ProductType   ProductType
	Errors        []string
	BrokerOrderID *string
	CreatedAt     time.Time
	PlacedAt      *time.Time
	FilledAt      *time.Time
}

// TradeStatus is the open/closed lifecycle of a Trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade is an open or closed position. The database is authoritative; no
// package in this repository may keep a parallel in-memory open-trade set.
type Trade struct {
	TradeID               uuid.UUID
	SignalID               uuid.UUID
	UserBrokerID            uuid.UUID
	PortfolioID             uuid.UUID
	Symbol                  string
	Direction               Direction
	EntryPrice              decimal.Decimal
	EntryQty                int64
	EntryTS                 time.Time
	EntryEffectiveFloor     decimal.Decimal
	EntryEffectiveCeiling   decimal.Decimal
	ExitTargetPrice         decimal.Decimal
	TrailingActive          bool
	TrailingHighestPrice    decimal.Decimal
	TrailingStopPrice       decimal.Decimal
	Status                  TradeStatus
	ClosedAt                *time.Time
	ExitPrice               *decimal.Decimal
	ExitReason              *string
}
