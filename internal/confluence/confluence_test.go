package confluence_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nse-mtf/core/internal/config"
	"github.com/nse-mtf/core/internal/confluence"
	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/zone"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// zoneWithTop builds a Zone with a fixed low/high and a buy-zone top either
// above or below the test price of 5, to force membership.
func zoneWithTop(inZone bool) domain.Zone {
	top := dec("4")
	if inZone {
		top = dec("6")
	}
	return domain.Zone{Low: dec("0"), High: dec("10"), BuyZoneTop: top, SellZoneBottom: dec("9")}
}

func TestEvaluateTripleConfluence(t *testing.T) {
	cfg := config.Defaults()
	z := zone.Zones{HTF: zoneWithTop(true), ITF: zoneWithTop(true), LTF: zoneWithTop(true)}

	res := confluence.Evaluate(dec("5"), z, cfg)
	assert.Equal(t, domain.ConfluenceTriple, res.RawType)
	assert.Equal(t, domain.ConfluenceTriple, res.Type)
	assert.Equal(t, domain.VeryStrong, res.Strength)
	assert.True(t, res.Score.Equal(dec("1.0")))
}

func TestEvaluateDoubleConfluenceMeetsMinimum(t *testing.T) {
	cfg := config.Defaults() // MinConfluenceType = DOUBLE
	z := zone.Zones{HTF: zoneWithTop(true), ITF: zoneWithTop(true), LTF: zoneWithTop(false)}

	res := confluence.Evaluate(dec("5"), z, cfg)
	assert.Equal(t, domain.ConfluenceDouble, res.RawType)
	assert.Equal(t, domain.ConfluenceDouble, res.Type)
	assert.Equal(t, domain.Strong, res.Strength)
	assert.True(t, res.Score.Equal(dec("0.8")))
}

func TestEvaluateSingleConfluenceBelowMinimumIsSuppressed(t *testing.T) {
	cfg := config.Defaults() // MinConfluenceType = DOUBLE
	z := zone.Zones{HTF: zoneWithTop(true), ITF: zoneWithTop(false), LTF: zoneWithTop(false)}

	res := confluence.Evaluate(dec("5"), z, cfg)
	assert.Equal(t, domain.ConfluenceSingle, res.RawType)
	assert.Equal(t, domain.ConfluenceNone, res.Type, "single confluence must not clear a DOUBLE minimum")
}

func TestEvaluateRequiresHTF(t *testing.T) {
	cfg := config.Defaults()
	z := zone.Zones{HTF: zoneWithTop(false), ITF: zoneWithTop(true), LTF: zoneWithTop(true)}

	res := confluence.Evaluate(dec("5"), z, cfg)
	assert.Equal(t, domain.ConfluenceNone, res.RawType, "HTF is required for any non-NONE type")
	assert.Equal(t, domain.ConfluenceNone, res.Type)
}

func TestEvaluateIndicatorsRecordAllThreeTimeframes(t *testing.T) {
	cfg := config.Defaults()
	z := zone.Zones{HTF: zoneWithTop(true), ITF: zoneWithTop(false), LTF: zoneWithTop(true)}

	res := confluence.Evaluate(dec("5"), z, cfg)
	assert.Len(t, res.Indicators, 3)

	byTF := map[domain.Timeframe]bool{}
	for _, ind := range res.Indicators {
		byTF[ind.TF] = ind.InZone
	}
	assert.True(t, byTF[domain.M125])
	assert.False(t, byTF[domain.M25])
	assert.True(t, byTF[domain.M1])
}
