package account_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/papertrade/internal/account"
	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

func newService(t *testing.T) (*account.Service, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return account.NewService(ms, decimal.Zero, nil), ms
}

func addStock(t *testing.T, ms *store.MemoryStore, id, name string, price int64) {
	t.Helper()
	require.NoError(t, ms.CreateStock(context.Background(), &model.Stock{ID: id, Name: name, Price: decimal.NewFromInt(price)}))
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(account.DefaultInitialCapital))
	assert.True(t, p.InitialCapital.Equal(account.DefaultInitialCapital))

	_, err = svc.Register(ctx, "alice")
	assert.ErrorIs(t, err, model.ErrDataDuplicated)

	_, err = svc.Register(ctx, "   ")
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestRegister_ConfiguredCapital(t *testing.T) {
	svc := account.NewService(store.NewMemoryStore(), decimal.NewFromInt(500), nil)
	p, err := svc.Register(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "500", p.Balance.String())
}

func TestPortfolio(t *testing.T) {
	svc, ms := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	addStock(t, ms, "s1", "ACME", 10)
	require.NoError(t, ms.Update(ctx, func(tx store.Tx) error {
		return tx.PutHolding(ctx, &model.Holding{PlayerID: "alice", StockID: "s1", Quantity: 4})
	}))

	pf, err := svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pf.Stocks, 1)
	assert.Equal(t, "ACME", pf.Stocks[0].StockName)
	assert.EqualValues(t, 4, pf.Stocks[0].Quantity)

	_, err = svc.Portfolio(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestList_OrderedByIDAndPaged(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, id := range []string{"carol", "alice", "dave", "bob"} {
		_, err := svc.Register(ctx, id)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.List, 2)
	assert.Equal(t, "carol", page.List[0].ID)
	assert.Equal(t, "dave", page.List[1].ID)

	page, err = svc.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page.List)
	assert.NotNil(t, page.List)
}

func TestDelete_Cascades(t *testing.T) {
	svc, ms := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	addStock(t, ms, "s1", "ACME", 10)
	require.NoError(t, svc.Watch(ctx, "alice", "s1"))
	require.NoError(t, ms.Update(ctx, func(tx store.Tx) error {
		return tx.PutHolding(ctx, &model.Holding{PlayerID: "alice", StockID: "s1", Quantity: 1})
	}))

	require.NoError(t, svc.Delete(ctx, "alice"))
	_, err = ms.GetHolding(ctx, "alice", "s1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "alice"), model.ErrNotFound)

	// The stock is free to delete once its only holder is gone.
	assert.NoError(t, ms.DeleteStock(ctx, "s1"))
}

func TestWatchlist(t *testing.T) {
	svc, ms := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	addStock(t, ms, "s1", "ACME", 10)
	addStock(t, ms, "s2", "GLOBEX", 20)

	require.NoError(t, svc.Watch(ctx, "alice", "s2"))
	require.NoError(t, svc.Watch(ctx, "alice", "s1"))
	assert.ErrorIs(t, svc.Watch(ctx, "alice", "s1"), model.ErrDataDuplicated)
	assert.ErrorIs(t, svc.Watch(ctx, "alice", "missing"), model.ErrNotFound)
	assert.ErrorIs(t, svc.Watch(ctx, "alice", ""), model.ErrInvalidParameter)

	items, err := svc.Watchlist(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "GLOBEX", items[0].StockName)
	assert.Equal(t, "ACME", items[1].StockName)

	require.NoError(t, svc.Unwatch(ctx, "alice", "s2"))
	assert.ErrorIs(t, svc.Unwatch(ctx, "alice", "s2"), model.ErrNotFound)

	items, err = svc.Watchlist(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.Watchlist(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
