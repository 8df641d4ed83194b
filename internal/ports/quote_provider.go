package ports

import (
	"context"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
)

// QuoteProvider obtiene el quote actual de un producto del bazaar.
type QuoteProvider interface {
	// FetchQuote devuelve el quote del producto. Puede servir desde caché
	// si el feed se descargó hace menos del TTL configurado.
	FetchQuote(ctx context.Context, productID string) (domain.Quote, error)

	// RefreshQuote ignora la caché y descarga el feed de nuevo.
	// Se usa antes de aplicar un trade para no operar con un precio viejo.
	RefreshQuote(ctx context.Context, productID string) (domain.Quote, error)
}

// ProductCatalog lista los productos disponibles en el feed.
type ProductCatalog interface {
	// Suggest devuelve hasta limit product ids que coinciden con el prefijo.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}
