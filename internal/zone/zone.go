// Package zone implements the Zone Detector (§4.6): derives
// low/high/buy_zone_top/sell_zone_bottom geometry for each of the three
// timeframes a symbol is screened on, from lookback-enforced candle
// history.
package zone

import (
	"context"

	"github.com/nse-mtf/core/internal/candlestore"
	"github.com/nse-mtf/core/internal/domain"
)

// Detector derives per-timeframe Zones from the candle store.
type Detector struct {
	store *candlestore.Store
}

// New builds a Detector over store.
func New(store *candlestore.Store) *Detector {
	return &Detector{store: store}
}

// Zones is the HTF/ITF/LTF zone geometry for one symbol, computed from the
// current lookback window.
type Zones struct {
	HTF domain.Zone
	ITF domain.Zone
	LTF domain.Zone
}

// Compute returns the HTF (M125), ITF (M25), and LTF (M1) zones for symbol,
// using the per-TF buy-zone percentages in cfg. Returns a *domain.
// Insufficient if any timeframe's lookback window is not yet fully
// populated (§4.6: "returns missing if any candle list is shorter than
// its TF's lookback").
func (d *Detector) Compute(ctx context.Context, symbol string, cfg domain.MtfConfig) (Zones, error) {
	htfCandles, err := d.store.GetForAnalysis(ctx, symbol, domain.M125)
	if err != nil {
		return Zones{}, err
	}
	itfCandles, err := d.store.GetForAnalysis(ctx, symbol, domain.M25)
	if err != nil {
		return Zones{}, err
	}
	ltfCandles, err := d.store.GetForAnalysis(ctx, symbol, domain.M1)
	if err != nil {
		return Zones{}, err
	}

	htf, ok := domain.ZoneFromCandles(htfCandles, cfg.BuyZonePctHTF)
	if !ok {
		return Zones{}, &domain.Insufficient{What: "HTF candles for " + symbol, Have: 0, Need: domain.M125.Lookback()}
	}
	itf, ok := domain.ZoneFromCandles(itfCandles, cfg.BuyZonePctITF)
	if !ok {
		return Zones{}, &domain.Insufficient{What: "ITF candles for " + symbol, Have: 0, Need: domain.M25.Lookback()}
	}
	ltf, ok := domain.ZoneFromCandles(ltfCandles, cfg.BuyZonePctLTF)
	if !ok {
		return Zones{}, &domain.Insufficient{What: "LTF candles for " + symbol, Have: 0, Need: domain.M1.Lookback()}
	}

	return Zones{HTF: htf, ITF: itf, LTF: ltf}, nil
}
