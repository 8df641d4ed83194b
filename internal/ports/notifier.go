package ports

import (
	"context"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
)

// Notifier presenta el resultado de cada poll al usuario.
type Notifier interface {
	// Notify muestra el quote y su veredicto.
	Notify(ctx context.Context, q domain.Quote, v domain.Verdict) error

	// Clear limpia la vista tras un fallo o producto no encontrado.
	Clear(ctx context.Context) error
}
