// Package repository implements domain.Store: an in-memory set of
// repositories for local development and tests, and (in the postgres_*.go
// files) a durable pgx-backed set for production, following the teacher's
// split between repository.InMemoryScreenerRepository and
// repository.PostgresAutoScalpRepository/PostgresBinanceAPIRepository.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/session"
)

// InMemoryCandles is a process-local domain.CandleStore, keyed by
// (symbol, timeframe), append-only and sorted by close time on read.
type InMemoryCandles struct {
	mu   sync.RWMutex
	data map[candleKey][]domain.Candle
}

type candleKey struct {
	symbol string
	tf     domain.Timeframe
}

// NewInMemoryCandles builds an empty candle store.
func NewInMemoryCandles() *InMemoryCandles {
	return &InMemoryCandles{data: make(map[candleKey][]domain.Candle)}
}

func (r *InMemoryCandles) Persist(_ context.Context, c domain.Candle) error {
	k := candleKey{c.Symbol, c.TF}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[k] = append(r.data[k], c)
	return nil
}

func (r *InMemoryCandles) GetRecent(_ context.Context, symbol string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	k := candleKey{symbol, tf}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.data[k]
	if len(list) <= n {
		out := make([]domain.Candle, len(list))
		copy(out, list)
		return out, nil
	}
	out := make([]domain.Candle, n)
	copy(out, list[len(list)-n:])
	return out, nil
}

// InMemorySignals is a process-local domain.SignalStore enforcing the §6
// unique dedupe index in application code (a real Postgres unique index
// backs the same rule in postgres_signals.go).
type InMemorySignals struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.Signal
	keys map[domain.DedupeKey]uuid.UUID
}

// NewInMemorySignals builds an empty signal store.
func NewInMemorySignals() *InMemorySignals {
	return &InMemorySignals{
		rows: make(map[uuid.UUID]domain.Signal),
		keys: make(map[domain.DedupeKey]uuid.UUID),
	}
}

func (r *InMemorySignals) Insert(_ context.Context, _ domain.WriteToken, s domain.Signal) error {
	dk := domain.DedupeKey{
		Symbol:           s.Symbol,
		ConfluenceType:   s.ConfluenceType,
		Date:             session.DateKey(s.GeneratedAt),
		EffectiveFloor:   s.EffectiveFloor,
		EffectiveCeiling: s.EffectiveCeiling,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[dk]; exists {
		return &domain.AlreadyHandled{Reason: "signal dedupe collision"}
	}
	r.keys[dk] = s.SignalID
	r.rows[s.SignalID] = s
	return nil
}

func (r *InMemorySignals) UpdateStatus(_ context.Context, _ domain.WriteToken, id uuid.UUID, status domain.SignalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil
	}
	s.Status = status
	r.rows[id] = s
	return nil
}

func (r *InMemorySignals) FindBySymbolAndStatus(_ context.Context, symbol string, status domain.SignalStatus) ([]domain.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Signal
	for _, s := range r.rows {
		if s.Symbol == symbol && s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.Before(out[j].GeneratedAt) })
	return out, nil
}

func (r *InMemorySignals) FindExpiringSoon(_ context.Context, window time.Duration) ([]domain.Signal, error) {
	cutoff := time.Now().UTC().Add(window)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Signal
	for _, s := range r.rows {
		if s.Status == domain.SignalPublished && s.ExpiresAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *InMemorySignals) FindByID(_ context.Context, id uuid.UUID) (domain.Signal, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	return s, ok, nil
}

// InMemoryDeliveries is a process-local domain.SignalDeliveryStore.
type InMemoryDeliveries struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.SignalDelivery
}

// NewInMemoryDeliveries builds an empty delivery store.
func NewInMemoryDeliveries() *InMemoryDeliveries {
	return &InMemoryDeliveries{rows: make(map[uuid.UUID]domain.SignalDelivery)}
}

func (r *InMemoryDeliveries) Insert(_ context.Context, _ domain.WriteToken, d domain.SignalDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[d.DeliveryID] = d
	return nil
}

func (r *InMemoryDeliveries) FindAllActiveForIndex(_ context.Context) ([]domain.SignalDelivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.SignalDelivery
	for _, d := range r.rows {
		if d.Status == domain.DeliveryCreated || d.Status == domain.DeliveryDelivered {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *InMemoryDeliveries) ExpireAllForSignal(_ context.Context, _ domain.WriteToken, signalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.rows {
		if d.SignalID == signalID && (d.Status == domain.DeliveryCreated || d.Status == domain.DeliveryDelivered) {
			d.Status = domain.DeliveryExpired
			r.rows[id] = d
		}
	}
	return nil
}

func (r *InMemoryDeliveries) CancelAllForSignal(_ context.Context, _ domain.WriteToken, signalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.rows {
		if d.SignalID == signalID && (d.Status == domain.DeliveryCreated || d.Status == domain.DeliveryDelivered) {
			d.Status = domain.DeliveryRejected
			r.rows[id] = d
		}
	}
	return nil
}

func (r *InMemoryDeliveries) UpdateStatus(_ context.Context, _ domain.WriteToken, id uuid.UUID, status domain.DeliveryStatus, intentID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil
	}
	d.Status = status
	d.IntentID = intentID
	r.rows[id] = d
	return nil
}

func (r *InMemoryDeliveries) FindByID(_ context.Context, id uuid.UUID) (domain.SignalDelivery, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.rows[id]
	return d, ok, nil
}

// InMemoryExitSignals is a process-local domain.ExitSignalStore. It is
// also the sole in-process source of episode numbers when Postgres is not
// configured; GenerateEpisode enforces the same 30-second cooldown the
// real stored function enforces (§6, I5).
type InMemoryExitSignals struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]domain.ExitSignal
	episodes  map[episodeKey]int64
	lastEpoch map[episodeKey]time.Time
}

type episodeKey struct {
	TradeID uuid.UUID
	Reason  domain.ExitReason
}

// NewInMemoryExitSignals builds an empty exit-signal store.
func NewInMemoryExitSignals() *InMemoryExitSignals {
	return &InMemoryExitSignals{
		rows:      make(map[uuid.UUID]domain.ExitSignal),
		episodes:  make(map[episodeKey]int64),
		lastEpoch: make(map[episodeKey]time.Time),
	}
}

// cooldown mirrors sms.ExitRearmCooldown; duplicated here since the store
// must enforce it independent of any in-process caller (§9: "the database
// function is authoritative").
const exitEpisodeCooldown = 30 * time.Second

func (r *InMemoryExitSignals) GenerateEpisode(_ context.Context, _ domain.WriteToken, tradeID uuid.UUID, reason domain.ExitReason) (int64, error) {
	k := episodeKey{tradeID, reason}
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastEpoch[k]; ok && now.Sub(last) < exitEpisodeCooldown {
		return 0, &domain.AlreadyHandled{Reason: domain.ErrCooldownActive}
	}
	r.episodes[k]++
	r.lastEpoch[k] = now
	return r.episodes[k], nil
}

func (r *InMemoryExitSignals) Insert(_ context.Context, _ domain.WriteToken, e domain.ExitSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[e.ExitSignalID] = e
	return nil
}

func (r *InMemoryExitSignals) UpdateStatus(_ context.Context, _ domain.WriteToken, id uuid.UUID, status domain.ExitSignalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil
	}
	e.Status = status
	r.rows[id] = e
	return nil
}

func (r *InMemoryExitSignals) Cancel(_ context.Context, _ domain.WriteToken, id uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil
	}
	e.Status = domain.ExitSignalCancelled
	r.rows[id] = e
	return nil
}

func (r *InMemoryExitSignals) FindByTradeID(_ context.Context, tradeID uuid.UUID) ([]domain.ExitSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExitSignal
	for _, e := range r.rows {
		if e.TradeID == tradeID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpisodeID < out[j].EpisodeID })
	return out, nil
}

func (r *InMemoryExitSignals) FindByID(_ context.Context, id uuid.UUID) (domain.ExitSignal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	return e, ok, nil
}

// InMemoryExitIntents is a process-local domain.ExitIntentStore.
type InMemoryExitIntents struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.ExitIntent
}

// NewInMemoryExitIntents builds an empty exit-intent store.
func NewInMemoryExitIntents() *InMemoryExitIntents {
	return &InMemoryExitIntents{rows: make(map[uuid.UUID]domain.ExitIntent)}
}

func (r *InMemoryExitIntents) Insert(_ context.Context, _ domain.WriteToken, ei domain.ExitIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[ei.ExitIntentID] = ei
	return nil
}

func (r *InMemoryExitIntents) UpdateStatus(_ context.Context, _ domain.WriteToken, id uuid.UUID, status domain.ExitIntentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ei, ok := r.rows[id]
	if !ok {
		return nil
	}
	ei.Status = status
	r.rows[id] = ei
	return nil
}

// InMemoryTradeIntents is a process-local domain.TradeIntentStore.
type InMemoryTradeIntents struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.TradeIntent
}

// NewInMemoryTradeIntents builds an empty trade-intent store.
func NewInMemoryTradeIntents() *InMemoryTradeIntents {
	return &InMemoryTradeIntents{rows: make(map[uuid.UUID]domain.TradeIntent)}
}

func (r *InMemoryTradeIntents) Insert(_ context.Context, _ domain.WriteToken, ti domain.TradeIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[ti.IntentID] = ti
	return nil
}

func (r *InMemoryTradeIntents) MarkPlaced(_ context.Context, _ domain.WriteToken, id uuid.UUID, brokerOrderID string, placedAt, filledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ti, ok := r.rows[id]
	if !ok {
		return nil
	}
	ti.BrokerOrderID = &brokerOrderID
	ti.PlacedAt = &placedAt
	ti.FilledAt = &filledAt
	r.rows[id] = ti
	return nil
}

func (r *InMemoryTradeIntents) MarkRejected(_ context.Context, _ domain.WriteToken, id uuid.UUID, errs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ti, ok := r.rows[id]
	if !ok {
		return nil
	}
	ti.Decision = domain.IntentRejected
	ti.Errors = errs
	r.rows[id] = ti
	return nil
}

func (r *InMemoryTradeIntents) FindByID(_ context.Context, id uuid.UUID) (domain.TradeIntent, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.rows[id]
	return ti, ok, nil
}

// InMemoryTrades is a process-local domain.TradeStore.
type InMemoryTrades struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.Trade
}

// NewInMemoryTrades builds an empty trade store.
func NewInMemoryTrades() *InMemoryTrades {
	return &InMemoryTrades{rows: make(map[uuid.UUID]domain.Trade)}
}

func (r *InMemoryTrades) Insert(_ context.Context, _ domain.WriteToken, t domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.TradeID] = t
	return nil
}

func (r *InMemoryTrades) Update(_ context.Context, _ domain.WriteToken, t domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.TradeID] = t
	return nil
}

func (r *InMemoryTrades) FindBySymbol(_ context.Context, symbol string) ([]domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Trade
	for _, t := range r.rows {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *InMemoryTrades) FindByPortfolioID(_ context.Context, portfolioID uuid.UUID) ([]domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Trade
	for _, t := range r.rows {
		if t.PortfolioID == portfolioID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *InMemoryTrades) FindByID(_ context.Context, id uuid.UUID) (domain.Trade, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rows[id]
	return t, ok, nil
}

// InMemoryPortfolios is a process-local domain.PortfolioStore.
type InMemoryPortfolios struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.Portfolio
}

// NewInMemoryPortfolios builds a portfolio store seeded with rows.
func NewInMemoryPortfolios(rows ...domain.Portfolio) *InMemoryPortfolios {
	p := &InMemoryPortfolios{rows: make(map[uuid.UUID]domain.Portfolio)}
	for _, r := range rows {
		p.rows[r.PortfolioID] = r
	}
	return p
}

func (r *InMemoryPortfolios) FindByID(_ context.Context, id uuid.UUID) (domain.Portfolio, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.rows[id]
	return p, ok, nil
}

func (r *InMemoryPortfolios) FindByUserID(_ context.Context, userID uuid.UUID) (domain.Portfolio, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.rows {
		if p.UserID == userID {
			return p, true, nil
		}
	}
	return domain.Portfolio{}, false, nil
}

func (r *InMemoryPortfolios) Update(_ context.Context, p domain.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.PortfolioID] = p
	return nil
}

// InMemoryUserBrokers is a process-local domain.UserBrokerStore.
type InMemoryUserBrokers struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.UserBroker
}

// NewInMemoryUserBrokers builds a user-broker store seeded with rows.
func NewInMemoryUserBrokers(rows ...domain.UserBroker) *InMemoryUserBrokers {
	u := &InMemoryUserBrokers{rows: make(map[uuid.UUID]domain.UserBroker)}
	for _, r := range rows {
		u.rows[r.UserBrokerID] = r
	}
	return u
}

func (r *InMemoryUserBrokers) FindByID(_ context.Context, id uuid.UUID) (domain.UserBroker, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	return u, ok, nil
}

func (r *InMemoryUserBrokers) FindEnabledByRole(_ context.Context, role domain.BrokerRole) ([]domain.UserBroker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.UserBroker
	for _, u := range r.rows {
		if u.Role == role && u.Enabled {
			out = append(out, u)
		}
	}
	return out, nil
}

// InMemoryWatchlist is a process-local domain.WatchlistStore.
type InMemoryWatchlist struct {
	mu   sync.RWMutex
	rows map[string]domain.WatchlistEntry
}

// NewInMemoryWatchlist builds a watchlist store seeded with symbols.
func NewInMemoryWatchlist(entries ...domain.WatchlistEntry) *InMemoryWatchlist {
	w := &InMemoryWatchlist{rows: make(map[string]domain.WatchlistEntry)}
	for _, e := range entries {
		w.rows[e.Symbol] = e
	}
	return w
}

func (r *InMemoryWatchlist) IsWatched(_ context.Context, symbol string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rows[symbol]
	return ok && e.Enabled, nil
}

func (r *InMemoryWatchlist) All(_ context.Context) ([]domain.WatchlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WatchlistEntry, 0, len(r.rows))
	for _, e := range r.rows {
		out = append(out, e)
	}
	return out, nil
}

// InMemoryMtfConfig is a process-local domain.MtfConfigStore: one global
// row plus optional per-symbol full overrides (§3: "resolution is
// symbol-override -> global").
type InMemoryMtfConfig struct {
	mu       sync.RWMutex
	global   domain.MtfConfig
	overrides map[string]domain.MtfConfig
}

// NewInMemoryMtfConfig builds a config store seeded with global.
func NewInMemoryMtfConfig(global domain.MtfConfig) *InMemoryMtfConfig {
	return &InMemoryMtfConfig{global: global, overrides: make(map[string]domain.MtfConfig)}
}

// SetOverride installs a full per-symbol override, replacing the global
// config for that symbol.
func (r *InMemoryMtfConfig) SetOverride(symbol string, cfg domain.MtfConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[symbol] = cfg
}

func (r *InMemoryMtfConfig) Global(_ context.Context) (domain.MtfConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global, nil
}

func (r *InMemoryMtfConfig) Resolve(_ context.Context, symbol string) (domain.MtfConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if override, ok := r.overrides[symbol]; ok {
		return override, nil
	}
	return r.global, nil
}
