package bazaar

import (
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
)

// NormalizeProductID aplica el mismo formato que usa el feed: trim + mayúsculas.
func NormalizeProductID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// mapQuote convierte un productDTO a domain.Quote.
// Precios y volúmenes ausentes quedan en 0.
func mapQuote(productID string, p productDTO, now time.Time) domain.Quote {
	q := domain.Quote{
		ProductID:  productID,
		BuyVolume:  float64(p.QuickStatus.BuyVolume),
		SellVolume: float64(p.QuickStatus.SellVolume),
		FetchedAt:  now,
	}
	if len(p.SellSummary) > 0 {
		q.SellPrice = float64(p.SellSummary[0].PricePerUnit)
	}
	if len(p.BuySummary) > 0 {
		q.BuyPrice = float64(p.BuySummary[0].PricePerUnit)
	}
	return q
}

// suggest ordena primero los ids que empiezan por el prefijo y luego los que lo contienen.
func suggest(ids []string, prefix string, limit int) []string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return nil
	}

	var starts, contains []string
	for _, id := range ids {
		lower := strings.ToLower(id)
		switch {
		case strings.HasPrefix(lower, p):
			starts = append(starts, id)
		case strings.Contains(lower, p):
			contains = append(contains, id)
		}
	}
	sort.Strings(starts)
	sort.Strings(contains)

	out := append(starts, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
