package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfluenceType classifies how many timeframes aligned on a signal.
type ConfluenceType string

const (
	ConfluenceNone   ConfluenceType = "NONE"
	ConfluenceSingle ConfluenceType = "SINGLE"
	ConfluenceDouble ConfluenceType = "DOUBLE"
	ConfluenceTriple ConfluenceType = "TRIPLE"
)

// rank orders confluence types so "at least X" comparisons are simple.
func (c ConfluenceType) rank() int {
	switch c {
	case ConfluenceTriple:
		return 3
	case ConfluenceDouble:
		return 2
	case ConfluenceSingle:
		return 1
	default:
		return 0
	}
}

// MeetsMinimum reports whether c satisfies a minimum confluence requirement.
func (c ConfluenceType) MeetsMinimum(min ConfluenceType) bool {
	return c.rank() >= min.rank()
}

// Strength is the qualitative bucket of a confluence score.
type Strength string

const (
	VeryStrong Strength = "VERY_STRONG"
	Strong     Strength = "STRONG"
	Moderate   Strength = "MODERATE"
	Weak       Strength = "WEAK"
)

// SignalStatus is the entry-signal lifecycle state (§3).
type SignalStatus string

const (
	SignalDetected   SignalStatus = "DETECTED"
	SignalPublished  SignalStatus = "PUBLISHED"
	SignalExpired    SignalStatus = "EXPIRED"
	SignalCancelled  SignalStatus = "CANCELLED"
	SignalSuperseded SignalStatus = "SUPERSEDED"
)

// TFZoneIndicator records whether a single timeframe was in its buy zone
// when the signal was generated, together with the zone bounds used.
type TFZoneIndicator struct {
	TF     Timeframe
	InZone bool
	Zone   Zone
}

// Signal is immutable once it transitions to PUBLISHED.
type Signal struct {
	SignalID        uuid.UUID
	Symbol          string
	Direction       Direction
	ConfluenceType  ConfluenceType
	ConfluenceScore decimal.Decimal
	Strength        Strength
	PWin            decimal.Decimal
	PFill           decimal.Decimal
	Kelly           decimal.Decimal
	ReferencePrice  decimal.Decimal
	TFIndicators    []TFZoneIndicator
	EffectiveFloor  decimal.Decimal
	EffectiveCeiling decimal.Decimal
	GeneratedAt     time.Time
	ExpiresAt       time.Time
	Status          SignalStatus
	Version         int
}

// DedupeKey is the tuple the unique index in §6 is built on:
// (symbol, confluence_type, date(generated_at), effective_floor, effective_ceiling).
type DedupeKey struct {
	Symbol           string
	ConfluenceType   ConfluenceType
	Date             string // YYYY-MM-DD in IST, see session.DateKey
	EffectiveFloor   decimal.Decimal
	EffectiveCeiling decimal.Decimal
}

// DeliveryStatus is the per-user-broker delivery lifecycle state.
type DeliveryStatus string

const (
	DeliveryCreated   DeliveryStatus = "CREATED"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryConsumed  DeliveryStatus = "CONSUMED"
	DeliveryExpired   DeliveryStatus = "EXPIRED"
	DeliveryRejected  DeliveryStatus = "REJECTED"
)

// SignalDelivery materialises a published signal for one recipient.
type SignalDelivery struct {
	DeliveryID    uuid.UUID
	SignalID      uuid.UUID
	UserBrokerID  uuid.UUID
	UserID        uuid.UUID
	Status        DeliveryStatus
	IntentID      *uuid.UUID
	CreatedAt     time.Time
	DeliveredAt   *time.Time
	ConsumedAt    *time.Time
	UserActionAt  *time.Time
}
