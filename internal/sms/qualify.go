package sms

import (
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

// QualificationInput carries the exit-qualification checks of §4.14.
type QualificationInput struct {
	Direction domain.Direction
	Reason    domain.ExitReason
	ExitPrice decimal.Decimal
	Trade     domain.Trade
	Broker    domain.UserBroker
	Quantity  int64
}

// QualificationResult is the outcome of one exit qualification.
type QualificationResult struct {
	Passed        bool
	Errors        []string
	CalculatedQty int64
	OrderType     string
	LimitPrice    *decimal.Decimal
	ProductType   domain.ProductType
}

// Qualify applies the Exit Qualification checks (§4.14): broker
// enabled/connected, trade still OPEN, quantity positive. Direction, Reason
// and ExitPrice are not checked: no price sanity check against the trade's
// stop/target levels is made.
func Qualify(in QualificationInput) QualificationResult {
	var errs []string

	if !in.Broker.Enabled {
		errs = append(errs, domain.ErrBrokerDisabled)
	}
	if !in.Broker.Connected {
		errs = append(errs, domain.ErrBrokerDisconnected)
	}
	if in.Trade.Status != domain.TradeOpen {
		errs = append(errs, domain.ErrTradeNotOpen)
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = in.Trade.EntryQty
	}
	if qty <= 0 {
		errs = append(errs, domain.ErrQuantityNonPositive)
	}

	if len(errs) > 0 {
		return QualificationResult{Passed: false, Errors: errs, CalculatedQty: 0, OrderType: "MARKET", ProductType: domain.ProductIntraday}
	}

	return QualificationResult{
		Passed:        true,
		CalculatedQty: qty,
		OrderType:     "MARKET",
		ProductType:   domain.ProductIntraday,
	}
}
