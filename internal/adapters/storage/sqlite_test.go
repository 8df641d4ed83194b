package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/adapters/storage"
	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKV(t *testing.T) *storage.SQLiteKV {
	t.Helper()
	kv, err := storage.NewSQLiteKV(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKV_GetSetClear(t *testing.T) {
	kv := newKV(t)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "balance")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "balance", "10"))
	require.NoError(t, kv.Set(ctx, "balance", "20"))

	v, ok, err := kv.Get(ctx, "balance")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20", v)

	require.NoError(t, kv.Clear(ctx))
	_, ok, err = kv.Get(ctx, "balance")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteKV_SetMany(t *testing.T) {
	kv := newKV(t)
	ctx := context.Background()

	require.NoError(t, kv.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, kv.SetMany(ctx, nil))

	a, _, _ := kv.Get(ctx, "a")
	b, _, _ := kv.Get(ctx, "b")
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)
}

func TestLedgerStore_LoadEmptyReturnsDefaults(t *testing.T) {
	store := storage.NewLedgerStore(newKV(t))

	state, err := store.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBalance, state.Balance)
	assert.Empty(t, state.Inventory)
	assert.Empty(t, state.History)
}

func TestLedgerStore_RoundTrip(t *testing.T) {
	store := storage.NewLedgerStore(newKV(t))
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 123456789, time.UTC)

	state := domain.NewLedgerState(1000)
	state, err := domain.Buy(state, "ENCHANTED_DIAMOND", 3, 33.3, now)
	require.NoError(t, err)
	state, err = domain.Buy(state, "WHEAT", 10, 0.1, now.Add(time.Second))
	require.NoError(t, err)
	state, err = domain.Sell(state, "ENCHANTED_DIAMOND", 1, 40.05, now.Add(2*time.Second))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, 0)
	require.NoError(t, err)
	assert.True(t, state.Equal(loaded), "want %+v, got %+v", state, loaded)
	assert.Equal(t, int64(2), loaded.Inventory["ENCHANTED_DIAMOND"])
	require.Len(t, loaded.History, 3)
	assert.Equal(t, domain.TradeSell, loaded.History[2].Kind)
}

func TestLedgerStore_Reset(t *testing.T) {
	store := storage.NewLedgerStore(newKV(t))
	ctx := context.Background()

	state, err := domain.SetBalance(domain.NewLedgerState(0), 42)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, state))

	require.NoError(t, store.Reset(ctx))

	loaded, err := store.Load(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBalance, loaded.Balance)
}

func TestLedgerStore_CorruptValues(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name, key, value string
	}{
		{"balance", storage.KeyBalance, "lots"},
		{"negative balance", storage.KeyBalance, "-5"},
		{"NaN balance", storage.KeyBalance, "NaN"},
		{"infinite balance", storage.KeyBalance, "Inf"},
		{"signed infinite balance", storage.KeyBalance, "+Inf"},
		{"inventory", storage.KeyInventory, "{oops"},
		{"history", storage.KeyHistory, "[{]"},
		{"history kind", storage.KeyHistory, `[{"id":"x","kind":"HOLD","timestamp":"2026-01-01T00:00:00Z"}]`},
		{"history timestamp", storage.KeyHistory, `[{"id":"x","kind":"BUY","timestamp":"yesterday"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newKV(t)
			require.NoError(t, kv.Set(ctx, tt.key, tt.value))
			_, err := storage.NewLedgerStore(kv).Load(ctx, 0)
			assert.Error(t, err)
		})
	}
}

func TestLedgerStore_PersistedFormat(t *testing.T) {
	kv := newKV(t)
	store := storage.NewLedgerStore(kv)
	ctx := context.Background()

	state := domain.NewLedgerState(250.5)
	state.Inventory["WHEAT"] = 7
	require.NoError(t, store.Save(ctx, state))

	balance, _, _ := kv.Get(ctx, storage.KeyBalance)
	inventory, _, _ := kv.Get(ctx, storage.KeyInventory)
	history, _, _ := kv.Get(ctx, storage.KeyHistory)
	assert.Equal(t, "250.5", balance)
	assert.JSONEq(t, `{"WHEAT":7}`, inventory)
	assert.JSONEq(t, `[]`, history)
}
