package ports

import (
	"context"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
)

// KVStore es un almacén clave-valor de strings.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetMany escribe todas las claves atómicamente.
	SetMany(ctx context.Context, values map[string]string) error
	Clear(ctx context.Context) error
	Close() error
}

// LedgerStorage persiste el LedgerState completo.
type LedgerStorage interface {
	// Load devuelve el estado persistido, o uno nuevo con initialBalance si no hay nada guardado.
	Load(ctx context.Context, initialBalance float64) (domain.LedgerState, error)

	// Save escribe balance, inventario e historial en una sola transacción.
	Save(ctx context.Context, state domain.LedgerState) error

	// Reset borra todo el estado persistido.
	Reset(ctx context.Context) error
}
