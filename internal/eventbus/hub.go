// Package eventbus implements domain.EventBus over two sinks: a websocket
// fan-out hub for every connected client (GLOBAL scope, with per-client
// subscription filtering for USER/USER_BROKER scope) and an optional FCM
// push sink for USER-scoped events when the recipient is not connected —
// adapting the teacher's broadcast-loop handler
// (internal/delivery/websocket/handler.go) from a polling single-repo feed
// to a multi-scope push model.
package eventbus

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/infrastructure/fcm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// envelope is the wire shape every event is sent as.
type envelope struct {
	Scope     domain.EventScope `json:"scope"`
	Type      domain.EventType  `json:"type"`
	Payload   any               `json:"payload"`
	Source    string            `json:"source"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// client is one connected websocket subscriber, optionally scoped to a
// single user/user-broker so it only receives the events relevant to it.
type client struct {
	conn         *websocket.Conn
	send         chan envelope
	userID       *uuid.UUID
	userBrokerID *uuid.UUID
}

// Hub is the websocket-backed GLOBAL/USER/USER_BROKER event fan-out, the
// concrete implementation of domain.EventBus this repository wires at its
// composition root.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	fcm     *fcm.Client
	tokens  map[uuid.UUID][]string // userID -> registered device tokens
}

// New builds a Hub. pushClient may be nil, in which case EmitUser falls
// back to websocket-only delivery (FCM disabled, matching fcm.Client's own
// no-credentials degrade path).
func New(pushClient *fcm.Client) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		fcm:     pushClient,
		tokens:  make(map[uuid.UUID][]string),
	}
}

// RegisterDeviceToken associates an FCM device token with a user, so
// EmitUser can reach them even when no websocket connection is open.
func (h *Hub) RegisterDeviceToken(userID uuid.UUID, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.tokens[userID] {
		if t == token {
			return
		}
	}
	h.tokens[userID] = append(h.tokens[userID], token)
}

// ServeHTTP upgrades the connection and registers it as a GLOBAL-scoped
// subscriber. Pass userID/userBrokerID query params (?user_id=...,
// ?user_broker_id=...) to additionally receive that scope's events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("eventbus: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan envelope, 64)}
	if uid, err := uuid.Parse(r.URL.Query().Get("user_id")); err == nil {
		c.userID = &uid
	}
	if ubid, err := uuid.Parse(r.URL.Query().Get("user_broker_id")); err == nil {
		c.userBrokerID = &ubid
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Println("eventbus: client connected")
	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames (this is a push-only feed) purely to
// detect disconnects via the read error.
func (h *Hub) readLoop(c *client) {
	defer h.disconnect(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for env := range c.send {
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) broadcast(env envelope, match func(*client) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- env:
		default:
			log.Printf("eventbus: dropping event for slow client (%s)", env.Type)
		}
	}
}

// Emit fans evtType out to every GLOBAL subscriber.
func (h *Hub) Emit(scope domain.EventScope, evtType domain.EventType, payload any, source string) {
	env := envelope{Scope: scope, Type: evtType, Payload: payload, Source: source, EmittedAt: time.Now().UTC()}
	h.broadcast(env, func(*client) bool { return true })
}

// EmitUser pushes to every websocket subscriber registered for userID, and
// falls back to FCM for that user's registered device tokens so the event
// still lands when no socket is open.
func (h *Hub) EmitUser(userID uuid.UUID, evtType domain.EventType, payload any, source string) {
	env := envelope{Scope: domain.ScopeUser, Type: evtType, Payload: payload, Source: source, EmittedAt: time.Now().UTC()}
	delivered := false
	h.broadcast(env, func(c *client) bool {
		hit := c.userID != nil && *c.userID == userID
		if hit {
			delivered = true
		}
		return hit
	})

	if delivered || h.fcm == nil || !h.fcm.IsEnabled() {
		return
	}
	h.mu.RLock()
	tokens := append([]string(nil), h.tokens[userID]...)
	h.mu.RUnlock()
	if len(tokens) == 0 {
		return
	}
	body, _ := json.Marshal(payload)
	if err := h.fcm.SendMulticast(tokens, string(evtType), string(body), map[string]string{"type": string(evtType)}); err != nil {
		log.Printf("eventbus: FCM push for user %s failed: %v", userID, err)
	}
}

// EmitUserBroker pushes to every websocket subscriber registered for
// userBrokerID (intents, trades, order fills — operational events that are
// not worth an offline push).
func (h *Hub) EmitUserBroker(userBrokerID uuid.UUID, evtType domain.EventType, payload any, source string) {
	env := envelope{Scope: domain.ScopeUserBroker, Type: evtType, Payload: payload, Source: source, EmittedAt: time.Now().UTC()}
	h.broadcast(env, func(c *client) bool {
		return c.userBrokerID != nil && *c.userBrokerID == userBrokerID
	})
}

var _ domain.EventBus = (*Hub)(nil)
