// Package store defines the ledger persistence interface for papertrade.
// Implementations include PostgreSQL (source of truth) and in-memory
// (for testing and single-process development).
package store

import (
	"context"

	"github.com/papertrade/papertrade/internal/model"
)

// Store is the ledger store: key-value access to players, stocks and
// holdings plus a transaction scope for trades. Lookups of absent rows
// return an error wrapping model.ErrNotFound.
type Store interface {
	// --- Players ---

	// CreatePlayer persists a new player; model.ErrDataDuplicated if the ID exists.
	CreatePlayer(ctx context.Context, p *model.Player) error

	// GetPlayer retrieves a player by ID.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)

	// ListPlayers returns every player in creation order.
	ListPlayers(ctx context.Context) ([]model.Player, error)

	// DeletePlayer removes a player together with its holdings and watchlist.
	DeletePlayer(ctx context.Context, id string) error

	// --- Stocks ---

	// CreateStock persists a new stock; model.ErrDataDuplicated if the name is taken.
	CreateStock(ctx context.Context, s *model.Stock) error

	// GetStock retrieves a stock by ID.
	GetStock(ctx context.Context, id string) (*model.Stock, error)

	// ListStocks returns every stock in creation order.
	ListStocks(ctx context.Context) ([]model.Stock, error)

	// RenameStock changes a stock's display name. The price is untouched.
	RenameStock(ctx context.Context, id, name string) error

	// DeleteStock removes a stock and any watchlist rows pointing at it.
	// model.ErrInvalidParameter while any holding references it.
	DeleteStock(ctx context.Context, id string) error

	// PutPrices writes a tick batch. Each stock's price is replaced
	// atomically; IDs that no longer exist are skipped.
	PutPrices(ctx context.Context, updates []model.PriceUpdate) error

	// --- Holdings ---

	// GetHolding retrieves the holding for (playerID, stockID).
	GetHolding(ctx context.Context, playerID, stockID string) (*model.Holding, error)

	// ListHoldingsByPlayer returns a player's holdings.
	ListHoldingsByPlayer(ctx context.Context, playerID string) ([]model.Holding, error)

	// ListAllHoldings returns every holding row.
	ListAllHoldings(ctx context.Context) ([]model.Holding, error)

	// --- Watchlist ---

	// AddWatch adds stockID to the player's watchlist; model.ErrDataDuplicated
	// if it is already there.
	AddWatch(ctx context.Context, playerID, stockID string) error

	// RemoveWatch removes stockID from the player's watchlist.
	RemoveWatch(ctx context.Context, playerID, stockID string) error

	// ListWatch returns the player's watchlist joined with current stock data.
	ListWatch(ctx context.Context, playerID string) ([]model.WatchlistItem, error)

	// --- Transactions ---

	// Update runs fn in a transaction. Writes made through tx commit together
	// when fn returns nil and are discarded otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write scope of one Update call. Reads observe the transaction's
// own pending writes.
type Tx interface {
	// GetPlayer reads a player row, locking it where the backend supports it.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)

	// PutPlayer overwrites a player row.
	PutPlayer(ctx context.Context, p *model.Player) error

	// GetHolding reads a holding row, locking it where the backend supports it.
	GetHolding(ctx context.Context, playerID, stockID string) (*model.Holding, error)

	// PutHolding inserts or overwrites a holding. Quantity must be >= 1.
	PutHolding(ctx context.Context, h *model.Holding) error

	// DeleteHolding removes a holding row.
	DeleteHolding(ctx context.Context, playerID, stockID string) error
}
