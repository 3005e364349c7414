package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/market"
	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCreate(t *testing.T) {
	svc := market.NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()

	st, err := svc.Create(ctx, " ACME ", d(12.345))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if st.ID == "" || st.Name != "ACME" {
		t.Errorf("unexpected stock %+v", st)
	}
	if !st.Price.Equal(d(12.35)) {
		t.Errorf("price should round half up to 12.35, got %s", st.Price)
	}

	if _, err := svc.Create(ctx, "ACME", d(5)); !errors.Is(err, model.ErrDataDuplicated) {
		t.Errorf("duplicate name: expected ErrDataDuplicated, got %v", err)
	}

	invalid := []struct {
		name  string
		price float64
	}{
		{"", 10},
		{"Zero", 0},
		{"Negative", -1},
		{"Dust", 0.001},
	}
	for _, tt := range invalid {
		if _, err := svc.Create(ctx, tt.name, d(tt.price)); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("Create(%q, %v): expected ErrInvalidParameter, got %v", tt.name, tt.price, err)
		}
	}
}

func TestListInCreationOrder(t *testing.T) {
	svc := market.NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()
	for _, name := range []string{"Zeta", "Alpha", "Mu"} {
		if _, err := svc.Create(ctx, name, d(1)); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.List(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Count != 2 || page.List[0].Name != "Zeta" || page.List[1].Name != "Alpha" {
		t.Errorf("unexpected first page %+v", page)
	}
	page, _ = svc.List(ctx, 1, 2)
	if page.Count != 1 || page.List[0].Name != "Mu" {
		t.Errorf("unexpected second page %+v", page)
	}
}

func TestRenameKeepsPrice(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := market.NewService(ms, nil)
	ctx := context.Background()

	st, _ := svc.Create(ctx, "Old", d(10))
	other, _ := svc.Create(ctx, "Other", d(10))
	if err := ms.PutPrices(ctx, []model.PriceUpdate{{StockID: st.ID, Price: d(11.5)}}); err != nil {
		t.Fatal(err)
	}

	renamed, err := svc.Rename(ctx, st.ID, "New")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != "New" || !renamed.Price.Equal(d(11.5)) {
		t.Errorf("rename should keep ticked price, got %+v", renamed)
	}

	if _, err := svc.Rename(ctx, other.ID, "New"); !errors.Is(err, model.ErrDataDuplicated) {
		t.Errorf("expected ErrDataDuplicated, got %v", err)
	}
	if _, err := svc.Rename(ctx, "missing", "X"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Rename(ctx, st.ID, ""); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := market.NewService(ms, nil)
	ctx := context.Background()

	st, _ := svc.Create(ctx, "Held", d(10))
	_ = ms.CreatePlayer(ctx, &model.Player{ID: "p1", Balance: d(100), InitialCapital: d(100)})
	_ = ms.Update(ctx, func(tx store.Tx) error {
		return tx.PutHolding(ctx, &model.Holding{PlayerID: "p1", StockID: st.ID, Quantity: 1})
	})

	if err := svc.Delete(ctx, st.ID); !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("delete of held stock: expected ErrInvalidParameter, got %v", err)
	}

	_ = ms.Update(ctx, func(tx store.Tx) error { return tx.DeleteHolding(ctx, "p1", st.ID) })
	if err := svc.Delete(ctx, st.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, st.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, st.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	svc := market.NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()

	n, err := svc.SeedDefaults(ctx, market.DefaultListings)
	if err != nil || n != len(market.DefaultListings) {
		t.Fatalf("SeedDefaults = %d, %v", n, err)
	}
	n, err = svc.SeedDefaults(ctx, market.DefaultListings)
	if err != nil || n != 0 {
		t.Errorf("second seed should be a no-op, got %d, %v", n, err)
	}
	page, _ := svc.List(ctx, 0, 100)
	if page.Total != len(market.DefaultListings) {
		t.Errorf("expected %d stocks, got %d", len(market.DefaultListings), page.Total)
	}
}
