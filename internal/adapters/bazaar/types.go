package bazaar

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// DTOs raw de la API del bazaar. Solo se usan dentro de este paquete.
// La conversión a domain.Quote se hace en mapping.go.

// feedResponse es la respuesta de GET /skyblock/bazaar.
type feedResponse struct {
	Success     bool                  `json:"success"`
	Cause       string                `json:"cause"`
	LastUpdated int64                 `json:"lastUpdated"`
	Products    map[string]productDTO `json:"products"`
}

// productDTO es la entrada de un producto.
type productDTO struct {
	ProductID   string         `json:"product_id"`
	SellSummary []summaryEntry `json:"sell_summary"`
	BuySummary  []summaryEntry `json:"buy_summary"`
	QuickStatus quickStatus    `json:"quick_status"`
}

// summaryEntry es un nivel de precio del resumen de órdenes.
type summaryEntry struct {
	Amount       flexFloat `json:"amount"`
	PricePerUnit flexFloat `json:"pricePerUnit"`
	Orders       flexFloat `json:"orders"`
}

// quickStatus contiene los agregados del producto.
type quickStatus struct {
	ProductID      string    `json:"productId"`
	SellPrice      flexFloat `json:"sellPrice"`
	SellVolume     flexFloat `json:"sellVolume"`
	SellMovingWeek flexFloat `json:"sellMovingWeek"`
	SellOrders     flexFloat `json:"sellOrders"`
	BuyPrice       flexFloat `json:"buyPrice"`
	BuyVolume      flexFloat `json:"buyVolume"`
	BuyMovingWeek  flexFloat `json:"buyMovingWeek"`
	BuyOrders      flexFloat `json:"buyOrders"`
}

// flexFloat acepta números, strings numéricos o null. Cualquier otra cosa queda en 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}
