package domain

import "context"

// BrokerFeed is the injected market-data transport collaborator (§6).
// Implementations deliver ticks to every registered listener; ordering
// across symbols is not guaranteed and the core tolerates reordering by
// timestamp (§5, §9).
type BrokerFeed interface {
	OnTick(listener func(Tick))
}

// TradeOrderIntent is the subset of a TradeIntent/ExitIntent the broker
// needs to place an order.
type TradeOrderIntent struct {
	IntentID    string
	Symbol      string
	Direction   Direction
	Quantity    int64
	ProductType ProductType
	LimitPrice  *float64
}

// BrokerExecutor is the injected order-placement collaborator (§6).
// PlaceOrder must be idempotent on intent.IntentID (P11): calling it twice
// with the same IntentID returns the same order id without placing a
// second order.
type BrokerExecutor interface {
	PlaceOrder(ctx context.Context, intent TradeOrderIntent) (orderID string, err error)
}
