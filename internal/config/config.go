// Package config resolves the MtfGlobalConfig/MtfSymbolConfig tunables of
// §3 into a single domain.MtfConfig, the way the teacher resolves runtime
// settings from the environment in cmd/server/main.go
// (resolveDatabaseURL and friends): os.Getenv with a hard-coded default,
// read once at startup, never by string name from hot-path code.
package config

import (
	"os"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/nse-mtf/core/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Defaults returns the MtfConfig populated with every default named in
// §4.9-§4.11 and §9. It is the fallback the Postgres-backed
// MtfConfigStore falls back to when no row exists.
func Defaults() domain.MtfConfig {
	return domain.MtfConfig{
		BuyZonePctHTF: d("0.50"),
		BuyZonePctITF: d("0.35"),
		BuyZonePctLTF: d("0.20"),

		WeightHTF: d("0.5"),
		WeightITF: d("0.3"),
		WeightLTF: d("0.2"),
		StrengthVeryStrongMin:        d("1.00"),
		StrengthStrongMin:            d("0.80"),
		StrengthModerateMin:          d("0.50"),
		StrengthMultiplierVeryStrong: d("1.20"),
		StrengthMultiplierStrong:     d("1.00"),
		StrengthMultiplierModerate:   d("0.75"),
		StrengthMultiplierWeak:       d("0.50"),
		MinConfluenceType:            domain.ConfluenceDouble,

		UtilityAlpha:       d("0.60"),
		UtilityBeta:        d("1.40"),
		UtilityLambda:      d("1.00"),
		MinAdvantageRatio:  d("3.0"),
		UtilityGateEnabled: true,
		DefaultPWin:        d("0.65"),

		MaxPositionLogLoss:             d("0.05"),
		MaxPortfolioLogLoss:            d("0.15"),
		MaxSymbolLogLoss:               d("0.08"),
		KellyFraction:                  d("0.25"),
		MaxKellyMultiplier:             d("1.0"),
		MinReentrySpacingATRMultiplier: d("2.0"),
		RangeATRThresholdWide:          d("8"),
		RangeATRThresholdHealthy:       d("5"),
		RangeATRThresholdTight:         d("3"),
		VelocityMultiplierWide:         d("1.00"),
		VelocityMultiplierHealthy:      d("0.75"),
		VelocityMultiplierTight:        d("0.50"),
		VelocityMultiplierNarrow:       d("0.25"),
		BodyRatioThresholdLow:          d("0.15"),
		BodyRatioThresholdCritical:     d("0.30"),
		BodyRatioPenaltyLow:            d("0.75"),
		BodyRatioPenaltyCritical:       d("0.90"),
		RangeLookbackBars:              100,
		StressThrottleEnabled:          true,
		MaxStressDrawdown:              d("-0.10"),

		TrailingStopActivationPct: d("0.01"),
		TrailingStopDistancePct:   d("0.005"),
		TargetRMultiple:           d("2.0"),
		StretchRMultiple:          d("3.0"),
		MinProfitPct:              d("0.0025"),

		MinBrickPct: d("0.005"),

		MaxHoldDays: 30,

		MinPWinForValidation:  d("0.35"),
		MinKellyForValidation: d("0.02"),
		MinTradeValue:         d("1000"),
	}
}

// FromEnv overlays environment-variable overrides on top of Defaults, for
// the handful of knobs operators commonly tune without a database round
// trip (mirrors the teacher's BINANCE_BASE_URL-style env override).
func FromEnv() domain.MtfConfig {
	cfg := Defaults()
	if v, ok := envDecimal("MTF_MIN_ADVANTAGE_RATIO"); ok {
		cfg.MinAdvantageRatio = v
	}
	if v, ok := envDecimal("MTF_KELLY_FRACTION"); ok {
		cfg.KellyFraction = v
	}
	if v, ok := envInt("MTF_MAX_HOLD_DAYS"); ok {
		cfg.MaxHoldDays = v
	}
	if v := os.Getenv("MTF_MIN_CONFLUENCE_TYPE"); v != "" {
		cfg.MinConfluenceType = domain.ConfluenceType(v)
	}
	return cfg
}

func envDecimal(key string) (decimal.Decimal, bool) {
	v := os.Getenv(key)
	if v == "" {
		return decimal.Decimal{}, false
	}
	parsed, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return parsed, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Resolve merges a nullable per-symbol override onto base, field by field,
// per §3's "resolution is symbol-override -> global". A nil override
// field (represented here by the zero value, since MtfConfig has no
// pointer fields) leaves the global value untouched.
func Resolve(base domain.MtfConfig, override *domain.MtfConfig) domain.MtfConfig {
	if override == nil {
		return base
	}
	out := base
	src := reflect.ValueOf(*override)
	dst := reflect.ValueOf(&out).Elem()
	for i := 0; i < src.NumField(); i++ {
		if f := src.Field(i); !f.IsZero() {
			dst.Field(i).Set(f)
		}
	}
	return out
}
