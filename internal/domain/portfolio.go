package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is one user's capital and risk-budget ledger.
type Portfolio struct {
	PortfolioID      uuid.UUID
	UserID           uuid.UUID
	TotalCapital     decimal.Decimal
	AvailableCapital decimal.Decimal
	ReservedCapital  decimal.Decimal
	DeployedCapital  decimal.Decimal
	MaxSymbolWeight  decimal.Decimal
	MaxPerTrade      decimal.Decimal
	DailyLossLimit   decimal.Decimal
	WeeklyLossLimit  decimal.Decimal
}

// BrokerRole distinguishes the single market-data broker from execution
// brokers.
type BrokerRole string

const (
	RoleData BrokerRole = "DATA"
	RoleExec BrokerRole = "EXEC"
)

// UserBroker is one user's linkage to a broker account.
type UserBroker struct {
	UserBrokerID uuid.UUID
	UserID       uuid.UUID
	Role         BrokerRole
	Enabled      bool
	Connected    bool
}
