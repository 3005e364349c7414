// Package ranking builds the leaderboard. Every request recomputes it from
// the ledger; nothing is cached between calls.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/metrics"
	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

// Engine computes rankings from a store.
type Engine struct {
	store store.Store
}

// NewEngine creates a ranking engine over st.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// GetRanking reads every player, holding and stock and returns the sorted
// leaderboard. Reads are not synchronised with trades, so a ranking may mix
// pre- and post-trade state across different players.
func (e *Engine) GetRanking(ctx context.Context) ([]model.RankingEntry, error) {
	start := time.Now()
	defer func() { metrics.RankingDuration.Observe(time.Since(start).Seconds()) }()

	players, err := e.store.ListPlayers(ctx)
	if err != nil {
		return nil, model.AsSystem(fmt.Errorf("list players: %w", err))
	}
	holdings, err := e.store.ListAllHoldings(ctx)
	if err != nil {
		return nil, model.AsSystem(fmt.Errorf("list holdings: %w", err))
	}
	stocks, err := e.store.ListStocks(ctx)
	if err != nil {
		return nil, model.AsSystem(fmt.Errorf("list stocks: %w", err))
	}

	prices := make(map[string]decimal.Decimal, len(stocks))
	for _, s := range stocks {
		prices[s.ID] = s.Price
	}
	return Compute(players, holdings, prices), nil
}

// Compute ranks players by profit rate, highest first. Players with equal
// rates keep their order in players. Holdings of stocks missing from prices
// are valued at zero.
func Compute(players []model.Player, holdings []model.Holding, prices map[string]decimal.Decimal) []model.RankingEntry {
	value := make(map[string]decimal.Decimal, len(players))
	for _, h := range holdings {
		price, ok := prices[h.StockID]
		if !ok {
			continue
		}
		value[h.PlayerID] = value[h.PlayerID].Add(price.Mul(decimal.NewFromInt(h.Quantity)))
	}

	entries := make([]model.RankingEntry, len(players))
	for i, p := range players {
		total := p.Balance.Add(value[p.ID])
		entries[i] = model.RankingEntry{
			PlayerID:    p.ID,
			TotalAssets: total,
			ProfitRate:  ProfitRate(total, p.InitialCapital),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ProfitRate.GreaterThan(entries[j].ProfitRate)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// ProfitRate returns (total - initial) / initial, or zero when initial <= 0.
func ProfitRate(total, initial decimal.Decimal) decimal.Decimal {
	if !initial.IsPositive() {
		return decimal.Zero
	}
	return total.Sub(initial).Div(initial)
}
