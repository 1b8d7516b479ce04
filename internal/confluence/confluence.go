// Package confluence implements the Confluence Calculator (§4.7): combines
// the three per-timeframe zone indicators into a composite score, maps the
// score to a strength bucket, and determines whether the symbol clears the
// configured minimum confluence type.
package confluence

import (
	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/zone"
)

// Result is the outcome of one confluence evaluation.
type Result struct {
	RawType    domain.ConfluenceType // actual HTF/ITF/LTF alignment, before the minimum-type gate
	Type       domain.ConfluenceType // RawType if it meets cfg.MinConfluenceType, else NONE
	Score      decimal.Decimal
	Strength   domain.Strength
	Multiplier decimal.Decimal
	Indicators []domain.TFZoneIndicator
}

var (
	weightHalf    = decimal.RequireFromString("0.5")
	weightThird   = decimal.RequireFromString("0.3")
	weightFifth   = decimal.RequireFromString("0.2")
	one           = decimal.NewFromInt(1)
	zero          = decimal.Zero
	scoreVeryStrong = decimal.RequireFromString("1.00")
	scoreStrong     = decimal.RequireFromString("0.80")
	scoreModerate   = decimal.RequireFromString("0.50")
)

func indicator(inZone bool) decimal.Decimal {
	if inZone {
		return one
	}
	return zero
}

// Evaluate computes the composite score and confluence type for a symbol
// whose zones are z and whose current price (as seen by the candidate
// generator) is price. The per-timeframe buy-zone membership tests against
// z are performed here.
func Evaluate(price decimal.Decimal, z zone.Zones, cfg domain.MtfConfig) Result {
	htfIn := z.HTF.InBuyZone(price)
	itfIn := z.ITF.InBuyZone(price)
	ltfIn := z.LTF.InBuyZone(price)

	score := weightHalf.Mul(indicator(htfIn)).
		Add(weightThird.Mul(indicator(itfIn))).
		Add(weightFifth.Mul(indicator(ltfIn)))

	rawType := determineType(htfIn, itfIn, ltfIn)
	strength := strengthFor(score, cfg)

	finalType := rawType
	if !rawType.MeetsMinimum(cfg.MinConfluenceType) {
		finalType = domain.ConfluenceNone
	}

	return Result{
		RawType:  rawType,
		Type:     finalType,
		Score:    score,
		Strength: strength,
		Multiplier: strengthMultiplier(strength, cfg),
		Indicators: []domain.TFZoneIndicator{
			{TF: domain.M125, InZone: htfIn, Zone: z.HTF},
			{TF: domain.M25, InZone: itfIn, Zone: z.ITF},
			{TF: domain.M1, InZone: ltfIn, Zone: z.LTF},
		},
	}
}

// determineType applies "HTF presence plus how many finer TFs are also in
// zone (HTF required for non-NONE)".
func determineType(htfIn, itfIn, ltfIn bool) domain.ConfluenceType {
	if !htfIn {
		return domain.ConfluenceNone
	}
	finerCount := 0
	if itfIn {
		finerCount++
	}
	if ltfIn {
		finerCount++
	}
	switch finerCount {
	case 2:
		return domain.ConfluenceTriple
	case 1:
		return domain.ConfluenceDouble
	default:
		return domain.ConfluenceSingle
	}
}

func strengthFor(score decimal.Decimal, cfg domain.MtfConfig) domain.Strength {
	veryStrongMin := cfg.StrengthVeryStrongMin
	strongMin := cfg.StrengthStrongMin
	moderateMin := cfg.StrengthModerateMin
	if veryStrongMin.IsZero() {
		veryStrongMin = scoreVeryStrong
	}
	if strongMin.IsZero() {
		strongMin = scoreStrong
	}
	if moderateMin.IsZero() {
		moderateMin = scoreModerate
	}

	switch {
	case score.GreaterThanOrEqual(veryStrongMin):
		return domain.VeryStrong
	case score.GreaterThanOrEqual(strongMin):
		return domain.Strong
	case score.GreaterThanOrEqual(moderateMin):
		return domain.Moderate
	default:
		return domain.Weak
	}
}

// strengthMultiplier applies the sizing-time strength multipliers (1.20 /
// 1.00 / 0.75 / 0.50). Applied later during sizing, never during
// screening, per §4.7.
func strengthMultiplier(s domain.Strength, cfg domain.MtfConfig) decimal.Decimal {
	switch s {
	case domain.VeryStrong:
		return cfg.StrengthMultiplierVeryStrong
	case domain.Strong:
		return cfg.StrengthMultiplierStrong
	case domain.Moderate:
		return cfg.StrengthMultiplierModerate
	default:
		return cfg.StrengthMultiplierWeak
	}
}
