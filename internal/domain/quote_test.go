package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ZeroSellPrice(t *testing.T) {
	v := Classify(Quote{BuyPrice: 5, SellPrice: 0, BuyVolume: 500000, SellVolume: 500000})
	assert.False(t, v.IsGoodBuy)
	assert.Equal(t, ReasonManipulation, v.Reason)
	assert.True(t, math.IsInf(v.ProfitPercent, 1))
}

func TestClassify_AllZero(t *testing.T) {
	// 0/0 también es +Inf por definición, no NaN
	v := Classify(Quote{})
	assert.Equal(t, ReasonManipulation, v.Reason)
	assert.False(t, v.IsGoodBuy)
}

func TestClassify_DecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		q      Quote
		good   bool
		reason string
	}{
		{"manipulation", Quote{BuyPrice: 900, SellPrice: 100, BuyVolume: 1e6, SellVolume: 1e6}, false, ReasonManipulation},
		{"high profit good liquidity", Quote{BuyPrice: 40, SellPrice: 100, BuyVolume: 200000, SellVolume: 150000}, true, ReasonHighProfitGoodLiq},
		{"high profit low liquidity", Quote{BuyPrice: 40, SellPrice: 100, BuyVolume: 200000, SellVolume: 5000}, true, ReasonHighProfitLowLiq},
		{"profitable low liquidity", Quote{BuyPrice: 20, SellPrice: 100, BuyVolume: 9000, SellVolume: 50000}, false, ReasonProfitableLowLiq},
		{"good liquidity low profit", Quote{BuyPrice: 5, SellPrice: 100, BuyVolume: 20000, SellVolume: 50000}, true, ReasonGoodLiqLowProfit},
		{"mid profit mid liquidity", Quote{BuyPrice: 20, SellPrice: 100, BuyVolume: 20000, SellVolume: 50000}, false, ReasonLowProfitLowLiq},
		{"high profit mid liquidity", Quote{BuyPrice: 40, SellPrice: 100, BuyVolume: 200000, SellVolume: 50000}, false, ReasonLowProfitLowLiq},
		{"exactly 30 percent", Quote{BuyPrice: 30, SellPrice: 100, BuyVolume: 5000, SellVolume: 5000}, false, ReasonLowProfitLowLiq},
		{"exactly 10 percent", Quote{BuyPrice: 10, SellPrice: 100, BuyVolume: 50000, SellVolume: 50000}, false, ReasonLowProfitLowLiq},
		{"exactly 800 percent", Quote{BuyPrice: 800, SellPrice: 100, BuyVolume: 200000, SellVolume: 200000}, true, ReasonHighProfitGoodLiq},
		{"low profit low liquidity", Quote{BuyPrice: 5, SellPrice: 100, BuyVolume: 100, SellVolume: 100}, false, ReasonLowProfitLowLiq},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.q)
			assert.Equal(t, tt.good, v.IsGoodBuy)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestClassify_DerivedValues(t *testing.T) {
	v := Classify(Quote{BuyPrice: 40, SellPrice: 100, BuyVolume: 200000, SellVolume: 50000})
	assert.InDelta(t, 40.0, v.ProfitPercent, 1e-9)
	assert.InDelta(t, 50000.0, v.Liquidity, 1e-9)
}

func TestClassify_InvalidInputsCoercedToZero(t *testing.T) {
	// NaN en volúmenes → liquidez 0
	v := Classify(Quote{BuyPrice: 40, SellPrice: 100, BuyVolume: math.NaN(), SellVolume: 50000})
	assert.Equal(t, 0.0, v.Liquidity)
	assert.Equal(t, ReasonHighProfitLowLiq, v.Reason)

	// precio de venta negativo → 0 → +Inf
	v = Classify(Quote{BuyPrice: 40, SellPrice: -3})
	assert.Equal(t, ReasonManipulation, v.Reason)

	v = Classify(Quote{BuyPrice: math.Inf(1), SellPrice: 100, BuyVolume: 50000, SellVolume: 50000})
	assert.InDelta(t, 0.0, v.ProfitPercent, 1e-9)
	assert.Equal(t, ReasonGoodLiqLowProfit, v.Reason)
}

func TestVerdict_Label(t *testing.T) {
	assert.Equal(t, "Yes", Verdict{IsGoodBuy: true}.Label())
	assert.Equal(t, "No", Verdict{}.Label())
}
