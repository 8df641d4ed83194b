package domain

import (
	"math"
	"time"
)

// Umbrales de la tabla de decisión.
const (
	manipulationPercent = 800
	highProfitPercent   = 30
	lowProfitPercent    = 10
	goodLiquidity       = 100000
	lowLiquidity        = 10000
)

// Motivos posibles de un Verdict. El conjunto es cerrado.
const (
	ReasonManipulation      = "Likely market manipulation"
	ReasonHighProfitGoodLiq = "High profit percent and good liquidity."
	ReasonHighProfitLowLiq  = "High profit percent, but liquidity is low."
	ReasonProfitableLowLiq  = "Profitable, but liquidity is low."
	ReasonGoodLiqLowProfit  = "Good liquidity, but low profit percent."
	ReasonLowProfitLowLiq   = "Low profit and low liquidity."
)

// Quote es un snapshot del precio y volumen de un producto del bazaar.
// Se recrea en cada poll y nunca se persiste.
type Quote struct {
	ProductID  string
	BuyPrice   float64
	SellPrice  float64
	BuyVolume  float64
	SellVolume float64
	FetchedAt  time.Time
}

// Verdict es el resultado de clasificar un Quote.
type Verdict struct {
	IsGoodBuy     bool
	Reason        string
	ProfitPercent float64 // +Inf si SellPrice == 0
	Liquidity     float64
}

// Label devuelve "Yes"/"No" para mostrar en tablas.
func (v Verdict) Label() string {
	if v.IsGoodBuy {
		return "Yes"
	}
	return "No"
}

// ProfitPercent calcula buyPrice*100/sellPrice.
// Con sellPrice == 0 devuelve +Inf de forma explícita, lo que enruta a la regla de manipulación.
func ProfitPercent(buyPrice, sellPrice float64) float64 {
	buyPrice, sellPrice = sanitize(buyPrice), sanitize(sellPrice)
	if sellPrice == 0 {
		return math.Inf(1)
	}
	return buyPrice * 100 / sellPrice
}

// Liquidity es el menor de los dos volúmenes.
func Liquidity(buyVolume, sellVolume float64) float64 {
	return math.Min(sanitize(buyVolume), sanitize(sellVolume))
}

// Classify aplica la tabla de decisión al quote. La primera regla que coincide gana.
// Nunca falla: entradas inválidas se tratan como 0.
func Classify(q Quote) Verdict {
	pp := ProfitPercent(q.BuyPrice, q.SellPrice)
	liq := Liquidity(q.BuyVolume, q.SellVolume)

	v := Verdict{ProfitPercent: pp, Liquidity: liq}
	switch {
	case pp > manipulationPercent:
		v.Reason = ReasonManipulation
	case pp > highProfitPercent && liq > goodLiquidity:
		v.IsGoodBuy, v.Reason = true, ReasonHighProfitGoodLiq
	case pp > highProfitPercent && liq < lowLiquidity:
		v.IsGoodBuy, v.Reason = true, ReasonHighProfitLowLiq
	case pp > lowProfitPercent && pp < highProfitPercent && liq < lowLiquidity:
		v.Reason = ReasonProfitableLowLiq
	case pp < lowProfitPercent && liq > lowLiquidity:
		v.IsGoodBuy, v.Reason = true, ReasonGoodLiqLowProfit
	default:
		v.Reason = ReasonLowProfitLowLiq
	}
	return v
}

// sanitize convierte NaN, ±Inf y negativos en 0.
func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return x
}
