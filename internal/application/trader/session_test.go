package trader_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alejandrodnm/bazaarbot/internal/adapters/bazaar"
	"github.com/alejandrodnm/bazaarbot/internal/adapters/storage"
	"github.com/alejandrodnm/bazaarbot/internal/application/trader"
	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotes struct {
	mu      sync.Mutex
	quotes  map[string]domain.Quote
	err     error
	refresh int
}

func (f *fakeQuotes) FetchQuote(_ context.Context, productID string) (domain.Quote, error) {
	return domain.Quote{}, errors.New("trades must not read cached quotes")
}

func (f *fakeQuotes) RefreshQuote(_ context.Context, productID string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	q, ok := f.quotes[bazaar.NormalizeProductID(productID)]
	if !ok {
		return domain.Quote{}, fmt.Errorf("fake: %s: %w", productID, bazaar.ErrProductNotFound)
	}
	return q, nil
}

func (f *fakeQuotes) set(q domain.Quote) {
	f.mu.Lock()
	f.quotes[q.ProductID] = q
	f.mu.Unlock()
}

// memStore guarda el último estado; saveErr fuerza un fallo de persistencia.
type memStore struct {
	state   *domain.LedgerState
	saves   int
	saveErr error
}

func (m *memStore) Load(_ context.Context, initial float64) (domain.LedgerState, error) {
	if m.state == nil {
		return domain.NewLedgerState(initial), nil
	}
	return m.state.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s domain.LedgerState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	c := s.Clone()
	m.state = &c
	return nil
}

func (m *memStore) Reset(context.Context) error {
	m.state = nil
	return nil
}

func newSession(t *testing.T, balance float64) (*trader.Session, *fakeQuotes, *memStore) {
	t.Helper()
	quotes := &fakeQuotes{quotes: map[string]domain.Quote{
		"WHEAT": {ProductID: "WHEAT", BuyPrice: 2.5, SellPrice: 3},
	}}
	store := &memStore{}
	s, err := trader.Open(context.Background(), trader.Config{InitialBalance: balance}, store, quotes)
	require.NoError(t, err)
	return s, quotes, store
}

func TestOpen_DefaultsBalance(t *testing.T) {
	s, _, _ := newSession(t, 0)
	assert.Equal(t, domain.DefaultBalance, s.State().Balance)
}

func TestBuySell_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, quotes, store := newSession(t, 100)

	res, err := s.Buy(ctx, "wheat", 10)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, res.Balance, 1e-9)
	assert.Equal(t, domain.TradeBuy, res.Transaction.Kind)
	assert.Equal(t, 2.5, res.Transaction.UnitPrice)
	assert.Equal(t, int64(10), s.State().Holding("WHEAT"))

	res, err = s.Sell(ctx, "WHEAT", 4)
	require.NoError(t, err)
	assert.InDelta(t, 87.0, res.Balance, 1e-9) // vende al sell price
	assert.Equal(t, int64(6), s.State().Holding("WHEAT"))

	assert.Equal(t, 2, quotes.refresh, "cada trade re-consulta el precio")
	assert.Equal(t, 2, store.saves)
	require.NotNil(t, store.state)
	assert.True(t, store.state.Equal(s.State()))
}

func TestBuy_UsesFreshPrice(t *testing.T) {
	ctx := context.Background()
	s, quotes, _ := newSession(t, 100)

	quotes.set(domain.Quote{ProductID: "WHEAT", BuyPrice: 5, SellPrice: 6})
	res, err := s.Buy(ctx, "WHEAT", 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Transaction.UnitPrice)
	assert.Equal(t, 90.0, res.Balance)
}

func TestBuy_InsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, quotes, store := newSession(t, 40)
	quotes.set(domain.Quote{ProductID: "WHEAT", BuyPrice: 5, SellPrice: 6})

	before := s.State()
	_, err := s.Buy(ctx, "WHEAT", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, domain.IsRejection(err))
	assert.True(t, before.Equal(s.State()))
	assert.Equal(t, 0, store.saves)
}

func TestSell_InsufficientInventory(t *testing.T) {
	s, _, store := newSession(t, 100)

	_, err := s.Sell(context.Background(), "WHEAT", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, 0, store.saves)
}

func TestTrade_InvalidQuantitySkipsFetch(t *testing.T) {
	s, quotes, _ := newSession(t, 100)

	_, err := s.Buy(context.Background(), "WHEAT", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = s.Sell(context.Background(), "WHEAT", -3)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 0, quotes.refresh)
}

func TestTrade_ZeroPriceRejected(t *testing.T) {
	s, quotes, _ := newSession(t, 100)
	quotes.set(domain.Quote{ProductID: "WHEAT", BuyPrice: 0, SellPrice: 3})

	_, err := s.Buy(context.Background(), "WHEAT", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.Equal(t, 100.0, s.State().Balance)
}

func TestTrade_QuoteErrorIsNotRejection(t *testing.T) {
	s, quotes, _ := newSession(t, 100)
	quotes.err = errors.New("feed down")

	_, err := s.Buy(context.Background(), "WHEAT", 1)
	require.Error(t, err)
	assert.False(t, domain.IsRejection(err))

	quotes.err = nil
	_, err = s.Buy(context.Background(), "NOPE", 1)
	assert.ErrorIs(t, err, bazaar.ErrProductNotFound)
}

func TestTrade_SaveFailureRollsBack(t *testing.T) {
	s, _, store := newSession(t, 100)
	store.saveErr = errors.New("disk full")

	_, err := s.Buy(context.Background(), "WHEAT", 4)
	require.Error(t, err)
	assert.False(t, domain.IsRejection(err))

	st := s.State()
	assert.Equal(t, 100.0, st.Balance)
	assert.Empty(t, st.Inventory)
	assert.Empty(t, st.History)
}

func TestSetBalance(t *testing.T) {
	ctx := context.Background()
	s, _, store := newSession(t, 100)

	require.NoError(t, s.SetBalance(ctx, 0))
	assert.Equal(t, 0.0, s.State().Balance)

	err := s.SetBalance(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidBalance)
	assert.Equal(t, 0.0, s.State().Balance)
	assert.Equal(t, 1, store.saves)

	store.saveErr = errors.New("locked")
	assert.Error(t, s.SetBalance(ctx, 500))
	assert.Equal(t, 0.0, s.State().Balance)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, _, store := newSession(t, 250)

	_, err := s.Buy(ctx, "WHEAT", 10)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	st := s.State()
	assert.Equal(t, 250.0, st.Balance)
	assert.Empty(t, st.Inventory)
	assert.Empty(t, st.History)
	assert.Nil(t, store.state)
}

func TestState_IsACopy(t *testing.T) {
	s, _, _ := newSession(t, 100)
	_, err := s.Buy(context.Background(), "WHEAT", 2)
	require.NoError(t, err)

	st := s.State()
	st.Inventory["WHEAT"] = 999
	assert.Equal(t, int64(2), s.State().Holding("WHEAT"))
}

// El estado sobrevive a reabrir la sesión sobre el mismo SQLite.
func TestSession_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	kv, err := storage.NewSQLiteKV(":memory:")
	require.NoError(t, err)
	defer kv.Close()
	store := storage.NewLedgerStore(kv)

	quotes := &fakeQuotes{quotes: map[string]domain.Quote{
		"WHEAT": {ProductID: "WHEAT", BuyPrice: 2.5, SellPrice: 3},
	}}
	s1, err := trader.Open(ctx, trader.Config{InitialBalance: 100}, store, quotes)
	require.NoError(t, err)
	_, err = s1.Buy(ctx, "WHEAT", 8)
	require.NoError(t, err)

	s2, err := trader.Open(ctx, trader.Config{InitialBalance: 100}, store, quotes)
	require.NoError(t, err)
	assert.True(t, s1.State().Equal(s2.State()))
	assert.Equal(t, 80.0, s2.State().Balance)
}
