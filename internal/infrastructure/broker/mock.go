// Package broker supplies the BrokerFeed/BrokerExecutor adapters this
// repository runs with when no real NSE broker SDK is wired. None of the
// teacher's or the pack's example repos ship an NSE broker client
// (the pack's execution dependencies are Binance-specific), so this is a
// deterministic in-process stand-in: MockFeed lets a test or a local run
// inject ticks, MockExecutor fills every order immediately and is
// idempotent on IntentID per P11.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/nse-mtf/core/internal/domain"
)

// MockFeed is a domain.BrokerFeed whose ticks are injected by calling
// Publish, standing in for a real broker's market-data websocket.
type MockFeed struct {
	mu        sync.RWMutex
	listeners []func(domain.Tick)
}

// NewMockFeed builds an empty feed.
func NewMockFeed() *MockFeed {
	return &MockFeed{}
}

func (f *MockFeed) OnTick(listener func(domain.Tick)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, listener)
}

// Publish fans tick out to every registered listener, synchronously, the
// way a production client's read loop would deliver one frame at a time.
func (f *MockFeed) Publish(tick domain.Tick) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.listeners {
		l(tick)
	}
}

// MockExecutor is a domain.BrokerExecutor that fills every order at
// request time and memoises the result per IntentID, so a retried
// PlaceOrder call for the same intent returns the original order id
// instead of placing a second order (P11).
type MockExecutor struct {
	mu     sync.Mutex
	orders map[string]string
	seq    int
}

// NewMockExecutor builds an empty executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{orders: make(map[string]string)}
}

func (e *MockExecutor) PlaceOrder(_ context.Context, intent domain.TradeOrderIntent) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if orderID, ok := e.orders[intent.IntentID]; ok {
		return orderID, nil
	}
	e.seq++
	orderID := fmt.Sprintf("MOCK-%d", e.seq)
	e.orders[intent.IntentID] = orderID
	return orderID, nil
}
