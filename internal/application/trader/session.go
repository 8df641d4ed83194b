package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/alejandrodnm/bazaarbot/internal/metrics"
	"github.com/alejandrodnm/bazaarbot/internal/ports"
)

const defaultQuoteTimeout = 10 * time.Second

// Config holds trading session settings.
type Config struct {
	InitialBalance float64
	QuoteTimeout   time.Duration
}

// TradeResult is what an accepted trade produced.
type TradeResult struct {
	Quote       domain.Quote
	Transaction domain.Transaction
	Balance     float64
}

// Session owns the single live LedgerState. Every mutation is applied to a
// copy, persisted, and only then made current: memory and storage never diverge.
type Session struct {
	mu     sync.Mutex
	state  domain.LedgerState
	store  ports.LedgerStorage
	quotes ports.QuoteProvider
	cfg    Config
	now    func() time.Time
}

// Open loads the persisted ledger and returns a ready session.
func Open(ctx context.Context, cfg Config, store ports.LedgerStorage, quotes ports.QuoteProvider) (*Session, error) {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = domain.DefaultBalance
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = defaultQuoteTimeout
	}

	state, err := store.Load(ctx, cfg.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("trader.Open: %w", err)
	}
	metrics.Balance.Set(state.Balance)

	slog.Debug("ledger loaded",
		"balance", state.Balance,
		"products", len(state.Inventory),
		"transactions", len(state.History),
	)
	return &Session{
		state:  state,
		store:  store,
		quotes: quotes,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// State returns a copy of the current ledger.
func (s *Session) State() domain.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Buy re-fetches the quote and buys quantity units at its buy price.
func (s *Session) Buy(ctx context.Context, productID string, quantity int64) (TradeResult, error) {
	return s.trade(ctx, domain.TradeBuy, productID, quantity)
}

// Sell re-fetches the quote and sells quantity units at its sell price.
func (s *Session) Sell(ctx context.Context, productID string, quantity int64) (TradeResult, error) {
	return s.trade(ctx, domain.TradeSell, productID, quantity)
}

// SetBalance replaces the balance and persists it.
func (s *Session) SetBalance(ctx context.Context, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := domain.SetBalance(s.state, balance)
	if err != nil {
		recordRejection(err)
		return err
	}
	if err := s.commit(ctx, next); err != nil {
		return fmt.Errorf("trader.SetBalance: %w", err)
	}
	slog.Info("balance set", "balance", balance)
	return nil
}

// Reset clears everything persisted and goes back to the initial balance.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("trader.Reset: %w", err)
	}
	s.state = domain.NewLedgerState(s.cfg.InitialBalance)
	metrics.Balance.Set(s.state.Balance)
	slog.Info("ledger reset", "balance", s.state.Balance)
	return nil
}

func (s *Session) trade(ctx context.Context, kind domain.TradeKind, productID string, quantity int64) (TradeResult, error) {
	op := "buy"
	if kind == domain.TradeSell {
		op = "sell"
	}

	// cantidad inválida no necesita red
	if quantity <= 0 {
		err := &domain.RejectionError{Op: op, Reason: domain.ErrInvalidQuantity}
		s.countTrade(kind, err)
		return TradeResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Nunca se opera contra un precio ya mostrado: se pide el quote de nuevo.
	qctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	q, err := s.quotes.RefreshQuote(qctx, productID)
	cancel()
	if err != nil {
		metrics.TradesTotal.WithLabelValues(string(kind), "error").Inc()
		return TradeResult{}, fmt.Errorf("trader.%s: quote: %w", op, err)
	}

	price := q.BuyPrice
	if kind == domain.TradeSell {
		price = q.SellPrice
	}
	if price <= 0 {
		err := &domain.RejectionError{Op: op, Reason: domain.ErrInvalidPrice, Detail: "no price quoted for " + q.ProductID}
		s.countTrade(kind, err)
		return TradeResult{}, err
	}

	var next domain.LedgerState
	if kind == domain.TradeBuy {
		next, err = domain.Buy(s.state, q.ProductID, quantity, price, s.now())
	} else {
		next, err = domain.Sell(s.state, q.ProductID, quantity, price, s.now())
	}
	if err != nil {
		s.countTrade(kind, err)
		return TradeResult{}, err
	}

	if err := s.commit(ctx, next); err != nil {
		metrics.TradesTotal.WithLabelValues(string(kind), "error").Inc()
		return TradeResult{}, fmt.Errorf("trader.%s: %w", op, err)
	}

	tx := next.History[len(next.History)-1]
	s.countTrade(kind, nil)
	slog.Info("trade accepted",
		"kind", tx.Kind,
		"product", tx.ProductID,
		"quantity", tx.Quantity,
		"unit_price", tx.UnitPrice,
		"total", tx.Total,
		"balance", next.Balance,
	)
	return TradeResult{Quote: q, Transaction: tx, Balance: next.Balance}, nil
}

// commit persiste next y solo entonces lo hace el estado actual. Requiere s.mu.
func (s *Session) commit(ctx context.Context, next domain.LedgerState) error {
	if err := s.store.Save(ctx, next); err != nil {
		slog.Error("ledger persist failed, state unchanged", "err", err)
		return err
	}
	s.state = next
	metrics.Balance.Set(next.Balance)
	return nil
}

func (s *Session) countTrade(kind domain.TradeKind, err error) {
	if err == nil {
		metrics.TradesTotal.WithLabelValues(string(kind), "accepted").Inc()
		return
	}
	metrics.TradesTotal.WithLabelValues(string(kind), "rejected").Inc()
	recordRejection(err)
}

func recordRejection(err error) {
	var re *domain.RejectionError
	if errors.As(err, &re) {
		metrics.RejectionsTotal.WithLabelValues(re.Reason.Error()).Inc()
		slog.Warn("ledger rejected", "op", re.Op, "reason", re.Reason, "detail", re.Detail)
	}
}
