package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBalance is the starting virtual balance after a reset.
const DefaultBalance = 10000.0

// TradeKind is the side of a simulated trade.
type TradeKind string

const (
	TradeBuy  TradeKind = "BUY"
	TradeSell TradeKind = "SELL"
)

// Rejection reasons. Matchable with errors.Is.
var (
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidBalance        = errors.New("invalid balance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// RejectionError reports a ledger transition that was refused.
// The state passed to the transition is left untouched.
type RejectionError struct {
	Op     string // "buy", "sell", "set_balance"
	Reason error
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: %v", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s rejected: %v (%s)", e.Op, e.Reason, e.Detail)
}

func (e *RejectionError) Unwrap() error { return e.Reason }

// IsRejection reports whether err is a ledger rejection (as opposed to an I/O failure).
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Transaction is an accepted trade. Immutable once created.
type Transaction struct {
	ID        string
	Kind      TradeKind
	ProductID string
	Quantity  int64
	UnitPrice float64
	Total     float64
	Timestamp time.Time
}

// LedgerState is the whole simulated account: balance, holdings and history.
type LedgerState struct {
	Balance   float64
	Inventory map[string]int64
	History   []Transaction
}

// NewLedgerState returns a fresh state with the given balance.
// A non-positive or non-finite balance falls back to DefaultBalance.
func NewLedgerState(balance float64) LedgerState {
	if balance <= 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		balance = DefaultBalance
	}
	return LedgerState{
		Balance:   balance,
		Inventory: make(map[string]int64),
	}
}

// Holding returns how many units of productID are held (0 if none).
func (s LedgerState) Holding(productID string) int64 {
	return s.Inventory[productID]
}

// NetWorth values the inventory of the quoted product at its sell price.
func (s LedgerState) NetWorth(q Quote) float64 {
	return s.Balance + float64(s.Holding(q.ProductID))*sanitize(q.SellPrice)
}

// Realized returns sell proceeds minus buy costs over the whole history.
func (s LedgerState) Realized() float64 {
	total := 0.0
	for _, tx := range s.History {
		switch tx.Kind {
		case TradeBuy:
			total -= tx.Total
		case TradeSell:
			total += tx.Total
		}
	}
	return total
}

// Equal compares two states field by field.
func (s LedgerState) Equal(o LedgerState) bool {
	if s.Balance != o.Balance || len(s.Inventory) != len(o.Inventory) || len(s.History) != len(o.History) {
		return false
	}
	for k, v := range s.Inventory {
		if ov, ok := o.Inventory[k]; !ok || ov != v {
			return false
		}
	}
	for i := range s.History {
		a, b := s.History[i], o.History[i]
		if a.ID != b.ID || a.Kind != b.Kind || a.ProductID != b.ProductID ||
			a.Quantity != b.Quantity || a.UnitPrice != b.UnitPrice ||
			a.Total != b.Total || !a.Timestamp.Equal(b.Timestamp) {
			return false
		}
	}
	return true
}

// Clone copies the mutable parts so callers and transitions never alias each other.
func (s LedgerState) Clone() LedgerState {
	inv := make(map[string]int64, len(s.Inventory))
	for k, v := range s.Inventory {
		inv[k] = v
	}
	hist := make([]Transaction, len(s.History), len(s.History)+1)
	copy(hist, s.History)
	return LedgerState{Balance: s.Balance, Inventory: inv, History: hist}
}

// Buy debits quantity*unitPrice and credits the inventory.
func Buy(s LedgerState, productID string, quantity int64, unitPrice float64, now time.Time) (LedgerState, error) {
	if err := validateTrade("buy", quantity, unitPrice); err != nil {
		return s, err
	}
	if quantity > math.MaxInt64-s.Holding(productID) {
		return s, &RejectionError{
			Op:     "buy",
			Reason: ErrInvalidQuantity,
			Detail: fmt.Sprintf("holding of %s would overflow", productID),
		}
	}
	cost := float64(quantity) * unitPrice
	// !(>=) also rejects a NaN balance
	if !(s.Balance >= cost) {
		return s, &RejectionError{
			Op:     "buy",
			Reason: ErrInsufficientBalance,
			Detail: fmt.Sprintf("cost %.2f > balance %.2f", cost, s.Balance),
		}
	}

	next := s.Clone()
	next.Balance -= cost
	next.Inventory[productID] += quantity
	next.History = append(next.History, newTransaction(TradeBuy, productID, quantity, unitPrice, now))
	return next, nil
}

// Sell removes quantity units from the inventory and credits the proceeds.
func Sell(s LedgerState, productID string, quantity int64, unitPrice float64, now time.Time) (LedgerState, error) {
	if err := validateTrade("sell", quantity, unitPrice); err != nil {
		return s, err
	}
	held := s.Holding(productID)
	if held < quantity {
		return s, &RejectionError{
			Op:     "sell",
			Reason: ErrInsufficientInventory,
			Detail: fmt.Sprintf("have %d %s, want %d", held, productID, quantity),
		}
	}

	proceeds := float64(quantity) * unitPrice
	if math.IsInf(s.Balance+proceeds, 0) {
		return s, &RejectionError{Op: "sell", Reason: ErrInvalidPrice, Detail: "proceeds overflow balance"}
	}

	next := s.Clone()
	next.Inventory[productID] = held - quantity
	if next.Inventory[productID] == 0 {
		delete(next.Inventory, productID)
	}
	next.Balance += proceeds
	next.History = append(next.History, newTransaction(TradeSell, productID, quantity, unitPrice, now))
	return next, nil
}

// SetBalance replaces the balance. Inventory and history are kept.
func SetBalance(s LedgerState, balance float64) (LedgerState, error) {
	if balance < 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		return s, &RejectionError{Op: "set_balance", Reason: ErrInvalidBalance}
	}
	next := s.Clone()
	next.Balance = balance
	return next, nil
}

// ParseQuantity parses user input as a positive whole number of units.
func ParseQuantity(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, &RejectionError{Op: "parse", Reason: ErrInvalidQuantity, Detail: strconv.Quote(raw)}
	}
	return n, nil
}

// ParseBalance parses user input as a non-negative finite balance.
func ParseBalance(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	b, err := strconv.ParseFloat(raw, 64)
	if err != nil || b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0, &RejectionError{Op: "parse", Reason: ErrInvalidBalance, Detail: strconv.Quote(raw)}
	}
	return b, nil
}

func validateTrade(op string, quantity int64, unitPrice float64) error {
	if quantity <= 0 {
		return &RejectionError{Op: op, Reason: ErrInvalidQuantity}
	}
	if unitPrice < 0 || math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) {
		return &RejectionError{Op: op, Reason: ErrInvalidPrice}
	}
	return nil
}

func newTransaction(kind TradeKind, productID string, quantity int64, unitPrice float64, now time.Time) Transaction {
	return Transaction{
		ID:        uuid.New().String(),
		Kind:      kind,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     float64(quantity) * unitPrice,
		Timestamp: now,
	}
}
