// Package orchestrator implements the Execution Orchestrator (§4.15): it
// converts every CREATED SignalDelivery into a per-user-broker TradeIntent
// through a ten-point validation gate, places approved intents via the
// injected BrokerExecutor, and opens a Trade on fill.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/marketdata"
	"github.com/nse-mtf/core/internal/sms"
)

// ValidationTimeout is the hard cap on one delivery's validation (§4.15,
// §5).
const ValidationTimeout = 5 * time.Second

// PollInterval governs how often the orchestrator sweeps for CREATED
// deliveries; ticks themselves do not drive this component.
const PollInterval = 2 * time.Second

// Orchestrator fans validated, sized signal deliveries out to broker
// orders.
type Orchestrator struct {
	sms         *sms.SMS
	deliveries  domain.SignalDeliveryStore
	signals     domain.SignalStore
	userBrokers domain.UserBrokerStore
	portfolios  domain.PortfolioStore
	watchlist   domain.WatchlistStore
	config      domain.MtfConfigStore
	trades      domain.TradeStore
	cache       *marketdata.Cache
	broker      domain.BrokerExecutor
	bus         domain.EventBus
}

// Deps bundles the Orchestrator's collaborators.
type Deps struct {
	SMS         *sms.SMS
	Deliveries  domain.SignalDeliveryStore
	Signals     domain.SignalStore
	UserBrokers domain.UserBrokerStore
	Portfolios  domain.PortfolioStore
	Watchlist   domain.WatchlistStore
	Config      domain.MtfConfigStore
	Trades      domain.TradeStore
	Cache       *marketdata.Cache
	Broker      domain.BrokerExecutor
	Bus         domain.EventBus
}

// New builds an Orchestrator.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		sms:         d.SMS,
		deliveries:  d.Deliveries,
		signals:     d.Signals,
		userBrokers: d.UserBrokers,
		portfolios:  d.Portfolios,
		watchlist:   d.Watchlist,
		config:      d.Config,
		trades:      d.Trades,
		cache:       d.Cache,
		broker:      d.Broker,
		bus:         d.Bus,
	}
}

// Run polls for CREATED deliveries and fans them out concurrently, each
// under its own 5-second validation timeout, until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweep(ctx)
		}
	}
}

func (o *Orchestrator) sweep(ctx context.Context) {
	active, err := o.deliveries.FindAllActiveForIndex(ctx)
	if err != nil {
		log.Printf("orchestrator: list active deliveries failed: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, d := range active {
		if d.Status != domain.DeliveryCreated {
			continue
		}
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.processDelivery(ctx, d)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) processDelivery(ctx context.Context, d domain.SignalDelivery) {
	vctx, cancel := context.WithTimeout(ctx, ValidationTimeout)
	defer cancel()

	intent, trade, err := o.validateAndSize(vctx, d)
	if err != nil {
		if vctx.Err() != nil {
			intent = domain.TradeIntent{
				IntentID:     uuid.New(),
				SignalID:     d.SignalID,
				UserBrokerID: d.UserBrokerID,
				Decision:     domain.IntentRejected,
				Errors:       []string{domain.ErrValidationTimeout},
				CreatedAt:    time.Now().UTC(),
			}
			o.rejectDelivery(ctx, d, trade.Symbol, intent)
		}
		return
	}

	if intent.Decision == domain.IntentApproved {
		// Persist the APPROVED snapshot before attempting placement, so an
		// audit row exists even if PlaceOrder itself never returns (§7:
		// "the core never silently consumes a signal for a user without
		// leaving an audit trail").
		if err := o.sms.RecordIntent(ctx, trade.Symbol, intent); err != nil {
			log.Printf("orchestrator: persist intent %s failed: %v", intent.IntentID, err)
			return
		}

		orderID, perr := o.broker.PlaceOrder(ctx, domain.TradeOrderIntent{
			IntentID:    intent.IntentID.String(),
			Symbol:      trade.Symbol,
			Direction:   trade.Direction,
			Quantity:    intent.Quantity,
			ProductType: intent.ProductType,
			LimitPrice:  floatPtr(intent.LimitPrice),
		})
		if perr != nil {
			intent.Decision = domain.IntentRejected
			intent.Errors = append(intent.Errors, perr.Error())
			if err := o.sms.MarkIntentRejected(ctx, trade.Symbol, intent.IntentID, intent.Errors); err != nil {
				log.Printf("orchestrator: mark intent %s rejected failed: %v", intent.IntentID, err)
			}
			o.bus.EmitUserBroker(d.UserBrokerID, domain.EventTradeIntentRejected, intent, "orchestrator")
			if err := o.sms.ConsumeDelivery(ctx, trade.Symbol, d.DeliveryID, intent.IntentID); err != nil {
				log.Printf("orchestrator: consume delivery %s failed: %v", d.DeliveryID, err)
			}
			return
		}

		now := time.Now().UTC()
		intent.BrokerOrderID = &orderID
		intent.PlacedAt = &now
		intent.FilledAt = &now
		if err := o.sms.MarkIntentPlaced(ctx, trade.Symbol, intent.IntentID, orderID, now, now); err != nil {
			log.Printf("orchestrator: mark intent %s placed failed: %v", intent.IntentID, err)
			return
		}

		trade.TradeID = uuid.New()
		if err := o.sms.CreateTrade(ctx, trade); err != nil {
			log.Printf("orchestrator: create trade for intent %s failed: %v", intent.IntentID, err)
			return
		}
		o.bus.EmitUserBroker(d.UserBrokerID, domain.EventTradeCreated, trade, "orchestrator")

		if err := o.sms.ConsumeDelivery(ctx, trade.Symbol, d.DeliveryID, intent.IntentID); err != nil {
			log.Printf("orchestrator: consume delivery %s failed: %v", d.DeliveryID, err)
		}
		return
	}

	o.rejectDelivery(ctx, d, trade.Symbol, intent)
}

// rejectDelivery persists the rejected TradeIntent, emits the
// corresponding rejection event with its reason populated (§7: "every
// rejection path emits a corresponding event... the core never silently
// consumes a signal for a user without leaving an audit trail"), and then
// marks the delivery CONSUMED — an intent row now exists for it, approved
// or not, per §4.15's delivery-transition rule. symbol routes both writes
// through the correct partition for I6; it is only empty in the
// degenerate case where the delivery's signal itself could not be found.
func (o *Orchestrator) rejectDelivery(ctx context.Context, d domain.SignalDelivery, symbol string, intent domain.TradeIntent) {
	if err := o.sms.RecordIntent(ctx, symbol, intent); err != nil {
		log.Printf("orchestrator: persist rejected intent %s failed: %v", intent.IntentID, err)
	}
	o.bus.EmitUserBroker(d.UserBrokerID, domain.EventTradeIntentRejected, intent, "orchestrator")
	if err := o.sms.ConsumeDelivery(ctx, symbol, d.DeliveryID, intent.IntentID); err != nil {
		log.Printf("orchestrator: consume delivery %s failed: %v", d.DeliveryID, err)
	}
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}
