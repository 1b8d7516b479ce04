package domain

import "github.com/google/uuid"

// EventScope is the fan-out breadth of an emitted event (§6).
type EventScope string

const (
	ScopeGlobal      EventScope = "GLOBAL"
	ScopeUser        EventScope = "USER"
	ScopeUserBroker  EventScope = "USER_BROKER"
)

// EventType is the core's event vocabulary (§6).
type EventType string

const (
	EventSignalGenerated         EventType = "SIGNAL_GENERATED"
	EventSignalDelivered         EventType = "SIGNAL_DELIVERED"
	EventSignalExpired           EventType = "SIGNAL_EXPIRED"
	EventSignalCancelled         EventType = "SIGNAL_CANCELLED"
	EventExitSignalDetected      EventType = "EXIT_SIGNAL_DETECTED"
	EventExitSignalConfirmed     EventType = "EXIT_SIGNAL_CONFIRMED"
	EventExitSignalCancelled     EventType = "EXIT_SIGNAL_CANCELLED"
	EventExitIntentCreated       EventType = "EXIT_INTENT_CREATED"
	EventExitIntentApproved      EventType = "EXIT_INTENT_APPROVED"
	EventExitIntentRejected      EventType = "EXIT_INTENT_REJECTED"
	EventExitIntentCooldownReject EventType = "EXIT_INTENT_COOLDOWN_REJECTED"
	EventTradeCreated            EventType = "TRADE_CREATED"
	EventTradeClosed             EventType = "TRADE_CLOSED"
	EventCandleClosed            EventType = "CANDLE_CLOSED"

	// EventTradeIntentRejected is not in §6's literal vocabulary table (which
	// only lists exit-intent events), but §7 requires every rejection path
	// to "emit a corresponding event with reason populated" and an entry
	// intent is not an exit intent; reusing EVENT_EXIT_INTENT_REJECTED for
	// an entry-side rejection would mislabel it, so this is a supplemented
	// addition in the same TRADE_* family as EventTradeCreated.
	EventTradeIntentRejected EventType = "TRADE_INTENT_REJECTED"
)

// EventBus is the injected fan-out facade (§6). The core never depends on
// a concrete transport; internal/eventbus supplies adapters.
type EventBus interface {
	Emit(scope EventScope, evtType EventType, payload any, source string)
	// EmitUser scopes an event to one user (portfolio updates, deliveries).
	EmitUser(userID uuid.UUID, evtType EventType, payload any, source string)
	// EmitUserBroker scopes an event to one user-broker (intents, trades).
	EmitUserBroker(userBrokerID uuid.UUID, evtType EventType, payload any, source string)
}
