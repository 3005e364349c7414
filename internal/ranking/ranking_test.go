package ranking_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/ranking"
	"github.com/papertrade/papertrade/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func player(id string, balance, initial float64) model.Player {
	return model.Player{ID: id, Balance: d(balance), InitialCapital: d(initial)}
}

func TestCompute_Example(t *testing.T) {
	players := []model.Player{
		player("B", 110000, 100000),
		player("A", 50000, 100000),
	}
	holdings := []model.Holding{{PlayerID: "A", StockID: "s1", Quantity: 1000}}
	prices := map[string]decimal.Decimal{"s1": d(100)}

	got := ranking.Compute(players, holdings, prices)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].PlayerID != "A" || got[0].Rank != 1 || !got[0].ProfitRate.Equal(d(0.5)) {
		t.Errorf("first entry = %+v, want A rank 1 rate 0.5", got[0])
	}
	if !got[0].TotalAssets.Equal(d(150000)) {
		t.Errorf("A total assets = %s, want 150000", got[0].TotalAssets)
	}
	if got[1].PlayerID != "B" || got[1].Rank != 2 || !got[1].ProfitRate.Equal(d(0.1)) {
		t.Errorf("second entry = %+v, want B rank 2 rate 0.1", got[1])
	}
}

func TestCompute_TiesKeepEnumerationOrder(t *testing.T) {
	players := []model.Player{
		player("c", 100, 100),
		player("a", 120, 100),
		player("b", 100, 100),
		player("d", 100, 100),
	}
	got := ranking.Compute(players, nil, nil)

	want := []string{"a", "c", "b", "d"}
	for i, e := range got {
		if e.PlayerID != want[i] {
			t.Errorf("position %d = %s, want %s", i, e.PlayerID, want[i])
		}
		if e.Rank != i+1 {
			t.Errorf("position %d rank = %d, want %d", i, e.Rank, i+1)
		}
	}
}

func TestCompute_NonPositiveCapital(t *testing.T) {
	players := []model.Player{
		player("zero", 500, 0),
		player("neg", 500, -10),
		player("loser", 50, 100),
	}
	got := ranking.Compute(players, nil, nil)

	for _, e := range got {
		if (e.PlayerID == "zero" || e.PlayerID == "neg") && !e.ProfitRate.IsZero() {
			t.Errorf("%s profit rate = %s, want 0", e.PlayerID, e.ProfitRate)
		}
	}
	if got[2].PlayerID != "loser" || !got[2].ProfitRate.Equal(d(-0.5)) {
		t.Errorf("last entry = %+v, want loser at -0.5", got[2])
	}
}

func TestCompute_MissingStockContributesNothing(t *testing.T) {
	players := []model.Player{player("p", 1000, 1000)}
	holdings := []model.Holding{
		{PlayerID: "p", StockID: "gone", Quantity: 50},
		{PlayerID: "p", StockID: "s1", Quantity: 2},
	}
	got := ranking.Compute(players, holdings, map[string]decimal.Decimal{"s1": d(5)})
	if !got[0].TotalAssets.Equal(d(1010)) {
		t.Errorf("total assets = %s, want 1010", got[0].TotalAssets)
	}
}

func TestCompute_Empty(t *testing.T) {
	got := ranking.Compute(nil, nil, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestGetRanking_FromStore(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Now().UTC()

	for _, p := range []model.Player{player("A", 50000, 100000), player("B", 110000, 100000)} {
		p.CreatedAt = now
		if err := ms.CreatePlayer(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	if err := ms.CreateStock(ctx, &model.Stock{ID: "s1", Name: "ACME", Price: d(100), CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	err := ms.Update(ctx, func(tx store.Tx) error {
		return tx.PutHolding(ctx, &model.Holding{PlayerID: "A", StockID: "s1", Quantity: 1000})
	})
	if err != nil {
		t.Fatal(err)
	}

	eng := ranking.NewEngine(ms)
	first, err := eng.GetRanking(ctx)
	if err != nil {
		t.Fatalf("GetRanking: %v", err)
	}
	if first[0].PlayerID != "A" || first[1].PlayerID != "B" {
		t.Fatalf("unexpected order: %+v", first)
	}

	second, err := eng.GetRanking(ctx)
	if err != nil {
		t.Fatalf("GetRanking: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ranking not idempotent:\n%+v\n%+v", first, second)
	}

	// A price move is visible on the next call.
	if err := ms.PutPrices(ctx, []model.PriceUpdate{{StockID: "s1", Price: d(50)}}); err != nil {
		t.Fatal(err)
	}
	third, err := eng.GetRanking(ctx)
	if err != nil {
		t.Fatalf("GetRanking: %v", err)
	}
	if third[0].PlayerID != "B" {
		t.Errorf("after price drop B should lead, got %+v", third)
	}
}

func TestGetRanking_NoPlayers(t *testing.T) {
	got, err := ranking.NewEngine(store.NewMemoryStore()).GetRanking(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
