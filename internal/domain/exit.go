package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExitReason is why an exit condition fired (§3, §4.16).
type ExitReason string

const (
	ReasonTargetHit     ExitReason = "TARGET_HIT"
	ReasonStopLoss      ExitReason = "STOP_LOSS"
	ReasonTrailingStop  ExitReason = "TRAILING_STOP"
	ReasonTimeBased     ExitReason = "TIME_BASED"
)

// ExitSignalStatus is the detected-exit-condition lifecycle.
type ExitSignalStatus string

const (
	ExitSignalDetected  ExitSignalStatus = "DETECTED"
	ExitSignalConfirmed ExitSignalStatus = "CONFIRMED"
	ExitSignalPublished ExitSignalStatus = "PUBLISHED"
	ExitSignalExecuted  ExitSignalStatus = "EXECUTED"
	ExitSignalCancelled ExitSignalStatus = "CANCELLED"
)

// ExitSignal is one episode-numbered detected exit condition for a trade.
type ExitSignal struct {
	ExitSignalID       uuid.UUID
	TradeID            uuid.UUID
	Symbol             string
	Direction          Direction
	Reason             ExitReason
	ExitPrice          decimal.Decimal
	BrickMovement      decimal.Decimal
	FavorableMovement  bool
	EpisodeID          int64
	Status             ExitSignalStatus
	DetectedAt         time.Time
}

// ExitIntentStatus is the qualification+placement lifecycle for an exit.
type ExitIntentStatus string

const (
	ExitIntentApproved ExitIntentStatus = "APPROVED"
	ExitIntentRejected ExitIntentStatus = "REJECTED"
	ExitIntentPlaced   ExitIntentStatus = "PLACED"
	ExitIntentFilled   ExitIntentStatus = "FILLED"
	ExitIntentCancelled ExitIntentStatus = "CANCELLED"
)

// ExitIntent is the qualification outcome and placement state for one exit
// attempt on one user-broker.
type ExitIntent struct {
	ExitIntentID        uuid.UUID
	ExitSignalID        *uuid.UUID
	TradeID             uuid.UUID
	UserBrokerID        uuid.UUID
	Reason              ExitReason
	EpisodeID           int64
	Status              ExitIntentStatus
	QualificationErrors []string
	CalculatedQty       int64
	OrderType           string
	LimitPrice          *decimal.Decimal
	ProductType         ProductType
	CreatedAt           time.Time
}

// Rejection reason codes used on ExitIntent.QualificationErrors and
// TradeIntent.Errors (§7).
const (
	ErrUtilityGateFailed    = "UTILITY_GATE_FAILED"
	ErrAveragingGateFailed  = "AVERAGING_GATE_FAILED"
	ErrCooldownActive       = "EXIT_COOLDOWN_ACTIVE"
	ErrValidationTimeout    = "VALIDATION_TIMEOUT"
	ErrBrokerDisabled       = "BROKER_DISABLED"
	ErrBrokerDisconnected   = "BROKER_DISCONNECTED"
	ErrTradeNotOpen         = "TRADE_NOT_OPEN"
	ErrQuantityNonPositive  = "QUANTITY_NON_POSITIVE"
	ErrSymbolNotWatchlisted = "SYMBOL_NOT_WATCHLISTED"
	ErrConfluenceNotMet     = "CONFLUENCE_NOT_MET"
	ErrPWinTooLow           = "P_WIN_TOO_LOW"
	ErrKellyTooLow          = "KELLY_TOO_LOW"
	ErrQtyBelowOne          = "QTY_BELOW_ONE"
	ErrValueBelowMinimum    = "VALUE_BELOW_MINIMUM"
	ErrValueAboveMaxPerTrade = "VALUE_ABOVE_MAX_PER_TRADE"
	ErrDailyLossLimit       = "DAILY_LOSS_LIMIT"
	ErrWeeklyLossLimit      = "WEEKLY_LOSS_LIMIT"
	ErrBrickMovementBlocked = "BRICK_MOVEMENT_BLOCKED"
)
