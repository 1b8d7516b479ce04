package domain

import "github.com/shopspring/decimal"

// MtfConfig enumerates every tunable scalar referenced across §4. No code
// path outside internal/config reads a tunable by string name; all reads
// elsewhere are field accesses on an already-resolved value of this type.
type MtfConfig struct {
	// Zone detector (§4.6)
	BuyZonePctHTF decimal.Decimal
	BuyZonePctITF decimal.Decimal
	BuyZonePctLTF decimal.Decimal

	// Confluence calculator (§4.7)
	WeightHTF               decimal.Decimal
	WeightITF               decimal.Decimal
	WeightLTF               decimal.Decimal
	StrengthVeryStrongMin   decimal.Decimal
	StrengthStrongMin       decimal.Decimal
	StrengthModerateMin     decimal.Decimal
	StrengthMultiplierVeryStrong decimal.Decimal
	StrengthMultiplierStrong     decimal.Decimal
	StrengthMultiplierModerate   decimal.Decimal
	StrengthMultiplierWeak       decimal.Decimal
	MinConfluenceType       ConfluenceType

	// Utility asymmetry gate (§4.8)
	UtilityAlpha       decimal.Decimal
	UtilityBeta        decimal.Decimal
	UtilityLambda      decimal.Decimal
	MinAdvantageRatio  decimal.Decimal
	UtilityGateEnabled bool
	DefaultPWin        decimal.Decimal

	// Sizing primitives (§4.9)
	MaxPositionLogLoss              decimal.Decimal
	MaxPortfolioLogLoss             decimal.Decimal
	MaxSymbolLogLoss                decimal.Decimal
	KellyFraction                   decimal.Decimal
	MaxKellyMultiplier               decimal.Decimal
	MinReentrySpacingATRMultiplier  decimal.Decimal
	RangeATRThresholdWide           decimal.Decimal
	RangeATRThresholdHealthy        decimal.Decimal
	RangeATRThresholdTight          decimal.Decimal
	VelocityMultiplierWide          decimal.Decimal
	VelocityMultiplierHealthy       decimal.Decimal
	VelocityMultiplierTight         decimal.Decimal
	VelocityMultiplierNarrow        decimal.Decimal
	BodyRatioThresholdLow           decimal.Decimal
	BodyRatioThresholdCritical      decimal.Decimal
	BodyRatioPenaltyLow             decimal.Decimal
	BodyRatioPenaltyCritical        decimal.Decimal
	RangeLookbackBars               int
	StressThrottleEnabled           bool
	MaxStressDrawdown               decimal.Decimal

	// Exit calculator & trailing stop (§4.11)
	TrailingStopActivationPct decimal.Decimal
	TrailingStopDistancePct   decimal.Decimal
	TargetRMultiple           decimal.Decimal
	StretchRMultiple          decimal.Decimal
	MinProfitPct              decimal.Decimal

	// Brick movement tracker (§4.12)
	MinBrickPct decimal.Decimal

	// Exit monitor (§4.16)
	MaxHoldDays int

	// Orchestrator gates (§4.15)
	MinPWinForValidation decimal.Decimal
	MinKellyForValidation decimal.Decimal
	MinTradeValue         decimal.Decimal
}

// WatchlistEntry is a symbol enabled for signal generation.
type WatchlistEntry struct {
	Symbol  string
	Enabled bool
}
