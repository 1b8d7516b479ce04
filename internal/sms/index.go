package sms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nse-mtf/core/internal/domain"
)

// DeliveryIndex is the in-memory SignalDeliveryIndex (§4.13): three views
// over the set of active deliveries, kept consistent under a single
// mutex, rebuildable from the store at startup.
type DeliveryIndex struct {
	mu sync.RWMutex

	byUserBroker map[uuid.UUID]map[uuid.UUID]struct{} // user_broker -> set(signal)
	bySignal     map[uuid.UUID]map[uuid.UUID]struct{} // signal -> set(user_broker)
	byDelivery   map[uuid.UUID]deliveryKey             // delivery -> (signal, user_broker)
}

type deliveryKey struct {
	SignalID     uuid.UUID
	UserBrokerID uuid.UUID
}

// NewDeliveryIndex builds an empty index.
func NewDeliveryIndex() *DeliveryIndex {
	return &DeliveryIndex{
		byUserBroker: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		bySignal:     make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byDelivery:   make(map[uuid.UUID]deliveryKey),
	}
}

// Rebuild reloads the index from every active delivery in the store (§4.13:
// "rebuilt on startup by loading all active deliveries from the store").
func (idx *DeliveryIndex) Rebuild(ctx context.Context, store domain.SignalDeliveryStore) error {
	active, err := store.FindAllActiveForIndex(ctx)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byUserBroker = make(map[uuid.UUID]map[uuid.UUID]struct{})
	idx.bySignal = make(map[uuid.UUID]map[uuid.UUID]struct{})
	idx.byDelivery = make(map[uuid.UUID]deliveryKey)
	for _, d := range active {
		idx.addLocked(d)
	}
	return nil
}

// Add records one new delivery in all three views.
func (idx *DeliveryIndex) Add(d domain.SignalDelivery) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(d)
}

func (idx *DeliveryIndex) addLocked(d domain.SignalDelivery) {
	if idx.byUserBroker[d.UserBrokerID] == nil {
		idx.byUserBroker[d.UserBrokerID] = make(map[uuid.UUID]struct{})
	}
	idx.byUserBroker[d.UserBrokerID][d.SignalID] = struct{}{}

	if idx.bySignal[d.SignalID] == nil {
		idx.bySignal[d.SignalID] = make(map[uuid.UUID]struct{})
	}
	idx.bySignal[d.SignalID][d.UserBrokerID] = struct{}{}

	idx.byDelivery[d.DeliveryID] = deliveryKey{SignalID: d.SignalID, UserBrokerID: d.UserBrokerID}
}

// HasSeen answers "has this user-broker already received this signal?" in
// O(1).
func (idx *DeliveryIndex) HasSeen(userBrokerID, signalID uuid.UUID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set, ok := idx.byUserBroker[userBrokerID]
	if !ok {
		return false
	}
	_, ok = set[signalID]
	return ok
}

// RemoveSignal tears down every view's entries for signalID (bulk teardown
// on expiry/cancel, §4.13).
func (idx *DeliveryIndex) RemoveSignal(signalID uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	brokers := idx.bySignal[signalID]
	for ub := range brokers {
		delete(idx.byUserBroker[ub], signalID)
	}
	delete(idx.bySignal, signalID)
	for delID, k := range idx.byDelivery {
		if k.SignalID == signalID {
			delete(idx.byDelivery, delID)
		}
	}
}

// Snapshot returns every (delivery, signal, user_broker) triple currently
// indexed, for P12's equality check against a freshly rebuilt index.
func (idx *DeliveryIndex) Snapshot() map[uuid.UUID]deliveryKey {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[uuid.UUID]deliveryKey, len(idx.byDelivery))
	for k, v := range idx.byDelivery {
		out[k] = v
	}
	return out
}
