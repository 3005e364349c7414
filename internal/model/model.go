// Package model defines the core domain types shared across papertrade.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places stock prices are kept at.
const PriceScale int32 = 2

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Player is a participant with a cash balance. InitialCapital is fixed at
// registration and never changes; Balance is mutated only by trades.
type Player struct {
	ID             string          `json:"player_id" db:"id"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	InitialCapital decimal.Decimal `json:"initial_capital" db:"initial_capital"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Stock is a tradable instrument. Price is only ever written by the price
// oracle once the stock exists.
type Stock struct {
	ID        string          `json:"stock_id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Holding is a player's quantity of one stock. A persisted holding always has
// Quantity >= 1; selling everything removes the row.
type Holding struct {
	PlayerID string `json:"player_id" db:"player_id"`
	StockID  string `json:"stock_id" db:"stock_id"`
	Quantity int64  `json:"quantity" db:"quantity"`
}

// PriceUpdate is one element of a price tick batch.
type PriceUpdate struct {
	StockID string
	Price   decimal.Decimal
}

// TradeResult describes a committed buy or sell.
type TradeResult struct {
	PlayerID        string          `json:"player_id"`
	StockID         string          `json:"stock_id"`
	Side            string          `json:"side"`
	Quantity        int64           `json:"quantity"`
	Price           decimal.Decimal `json:"price"`            // execution price
	Amount          decimal.Decimal `json:"amount"`           // quantity × price
	Balance         decimal.Decimal `json:"balance"`          // balance after the trade
	HoldingQuantity int64           `json:"holding_quantity"` // 0 when the holding was removed
}

// RankingEntry is one leaderboard row. It is derived on every request and
// never persisted.
type RankingEntry struct {
	Rank        int             `json:"rank"`
	PlayerID    string          `json:"player_id"`
	ProfitRate  decimal.Decimal `json:"profit_rate"`
	TotalAssets decimal.Decimal `json:"total_assets"`
}

// PortfolioItem is a holding joined with its stock.
type PortfolioItem struct {
	StockID    string          `json:"stock_id"`
	StockName  string          `json:"stock_name"`
	StockPrice decimal.Decimal `json:"stock_price"`
	Quantity   int64           `json:"quantity"`
}

// Portfolio is a player's balance together with every holding.
type Portfolio struct {
	PlayerID string          `json:"player_id"`
	Balance  decimal.Decimal `json:"balance"`
	Stocks   []PortfolioItem `json:"stocks"`
}

// WatchlistItem is a stock a player follows.
type WatchlistItem struct {
	PlayerID   string          `json:"player_id"`
	StockID    string          `json:"stock_id"`
	StockName  string          `json:"stock_name"`
	StockPrice decimal.Decimal `json:"stock_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Page is one window of a listing.
type Page[T any] struct {
	Total  int `json:"total"`
	Count  int `json:"count"`
	Offset int `json:"offset"`
	List   []T `json:"list"`
}

// Paginate returns the zero-based page number offset, count items per page.
// Pages past the end yield an empty list.
func Paginate[T any](items []T, offset, count int) Page[T] {
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		count = 10
	}
	page := Page[T]{Total: len(items), Offset: offset, List: []T{}}
	if len(items) == 0 || offset > (len(items)-1)/count {
		return page
	}
	start := offset * count
	end := len(items)
	if count < end-start {
		end = start + count
	}
	page.List = append(page.List, items[start:end]...)
	page.Count = len(page.List)
	return page
}
