package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/alejandrodnm/bazaarbot/internal/ports"
)

// Claves fijas del ledger.
const (
	KeyBalance   = "balance"
	KeyInventory = "inventory"
	KeyHistory   = "history"
)

// transactionDTO es el formato persistido de una domain.Transaction.
type transactionDTO struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	ProductID string  `json:"productId"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
	Timestamp string  `json:"timestamp"` // RFC3339Nano
}

// LedgerStore implementa ports.LedgerStorage sobre cualquier ports.KVStore.
type LedgerStore struct {
	kv ports.KVStore
}

// NewLedgerStore crea un LedgerStore.
func NewLedgerStore(kv ports.KVStore) *LedgerStore {
	return &LedgerStore{kv: kv}
}

// Load lee las tres claves. Las que faltan toman su valor por defecto;
// un valor corrupto es un error (no se sobreescribe en silencio).
func (l *LedgerStore) Load(ctx context.Context, initialBalance float64) (domain.LedgerState, error) {
	state := domain.NewLedgerState(initialBalance)

	raw, ok, err := l.kv.Get(ctx, KeyBalance)
	if err != nil {
		return state, fmt.Errorf("storage.Load: %w", err)
	}
	if ok {
		b, err := strconv.ParseFloat(raw, 64)
		if err != nil || b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			return state, fmt.Errorf("storage.Load: corrupt balance %q", raw)
		}
		state.Balance = b
	}

	raw, ok, err = l.kv.Get(ctx, KeyInventory)
	if err != nil {
		return state, fmt.Errorf("storage.Load: %w", err)
	}
	if ok {
		inv := make(map[string]int64)
		if err := json.Unmarshal([]byte(raw), &inv); err != nil {
			return state, fmt.Errorf("storage.Load: decode inventory: %w", err)
		}
		for k, v := range inv {
			if v > 0 {
				state.Inventory[k] = v
			}
		}
	}

	raw, ok, err = l.kv.Get(ctx, KeyHistory)
	if err != nil {
		return state, fmt.Errorf("storage.Load: %w", err)
	}
	if ok {
		var dtos []transactionDTO
		if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
			return state, fmt.Errorf("storage.Load: decode history: %w", err)
		}
		state.History = make([]domain.Transaction, 0, len(dtos))
		for _, d := range dtos {
			tx, err := fromDTO(d)
			if err != nil {
				return state, fmt.Errorf("storage.Load: %w", err)
			}
			state.History = append(state.History, tx)
		}
	}

	return state, nil
}

// Save serializa el estado completo y lo escribe atómicamente.
func (l *LedgerStore) Save(ctx context.Context, state domain.LedgerState) error {
	inv := state.Inventory
	if inv == nil {
		inv = map[string]int64{}
	}
	invJSON, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("storage.Save: encode inventory: %w", err)
	}

	dtos := make([]transactionDTO, 0, len(state.History))
	for _, tx := range state.History {
		dtos = append(dtos, toDTO(tx))
	}
	histJSON, err := json.Marshal(dtos)
	if err != nil {
		return fmt.Errorf("storage.Save: encode history: %w", err)
	}

	if err := l.kv.SetMany(ctx, map[string]string{
		KeyBalance:   strconv.FormatFloat(state.Balance, 'f', -1, 64),
		KeyInventory: string(invJSON),
		KeyHistory:   string(histJSON),
	}); err != nil {
		return fmt.Errorf("storage.Save: %w", err)
	}
	return nil
}

// Reset borra todo lo persistido.
func (l *LedgerStore) Reset(ctx context.Context) error {
	if err := l.kv.Clear(ctx); err != nil {
		return fmt.Errorf("storage.Reset: %w", err)
	}
	return nil
}

func toDTO(tx domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:        tx.ID,
		Kind:      string(tx.Kind),
		ProductID: tx.ProductID,
		Quantity:  tx.Quantity,
		UnitPrice: tx.UnitPrice,
		Total:     tx.Total,
		Timestamp: tx.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func fromDTO(d transactionDTO) (domain.Transaction, error) {
	ts, err := time.Parse(time.RFC3339Nano, d.Timestamp)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: bad timestamp %q: %w", d.ID, d.Timestamp, err)
	}
	kind := domain.TradeKind(d.Kind)
	if kind != domain.TradeBuy && kind != domain.TradeSell {
		return domain.Transaction{}, fmt.Errorf("transaction %s: unknown kind %q", d.ID, d.Kind)
	}
	return domain.Transaction{
		ID:        d.ID,
		Kind:      kind,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: d.UnitPrice,
		Total:     d.Total,
		Timestamp: ts,
	}, nil
}
