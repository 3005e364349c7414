// Package account manages players and their watchlists.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

// DefaultInitialCapital is the balance a new player starts with.
var DefaultInitialCapital = decimal.NewFromInt(100000)

// Service registers players and serves their portfolios and watchlists.
type Service struct {
	store          store.Store
	initialCapital decimal.Decimal
	log            *slog.Logger
}

// NewService creates an account service. A non-positive capital falls back
// to DefaultInitialCapital.
func NewService(st store.Store, initialCapital decimal.Decimal, logger *slog.Logger) *Service {
	if !initialCapital.IsPositive() {
		initialCapital = DefaultInitialCapital
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, initialCapital: initialCapital, log: logger}
}

// Register creates a player with the configured starting capital.
func (s *Service) Register(ctx context.Context, playerID string) (*model.Player, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player_id is required", model.ErrInvalidParameter)
	}

	p := &model.Player{
		ID:             playerID,
		Balance:        s.initialCapital,
		InitialCapital: s.initialCapital,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return nil, model.AsSystem(err)
	}
	s.log.Info("player registered", "player", playerID, "capital", s.initialCapital.String())
	return p, nil
}

// Portfolio returns the player's balance and every holding joined with the
// stock's current name and price.
func (s *Service) Portfolio(ctx context.Context, playerID string) (*model.Portfolio, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, model.AsSystem(err)
	}
	holdings, err := s.store.ListHoldingsByPlayer(ctx, playerID)
	if err != nil {
		return nil, model.AsSystem(err)
	}

	out := &model.Portfolio{PlayerID: p.ID, Balance: p.Balance, Stocks: make([]model.PortfolioItem, 0, len(holdings))}
	for _, h := range holdings {
		st, err := s.store.GetStock(ctx, h.StockID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, model.AsSystem(err)
		}
		out.Stocks = append(out.Stocks, model.PortfolioItem{
			StockID:    st.ID,
			StockName:  st.Name,
			StockPrice: st.Price,
			Quantity:   h.Quantity,
		})
	}
	return out, nil
}

// List returns one page of players ordered by ID.
func (s *Service) List(ctx context.Context, offset, count int) (model.Page[model.Player], error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return model.Page[model.Player]{}, model.AsSystem(err)
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return model.Paginate(players, offset, count), nil
}

// Delete removes a player with its holdings and watchlist.
func (s *Service) Delete(ctx context.Context, playerID string) error {
	if err := s.store.DeletePlayer(ctx, playerID); err != nil {
		return model.AsSystem(err)
	}
	s.log.Info("player deleted", "player", playerID)
	return nil
}

// Watch adds stockID to the player's watchlist.
func (s *Service) Watch(ctx context.Context, playerID, stockID string) error {
	if stockID == "" {
		return fmt.Errorf("%w: stock_id is required", model.ErrInvalidParameter)
	}
	return model.AsSystem(s.store.AddWatch(ctx, playerID, stockID))
}

// Unwatch removes stockID from the player's watchlist.
func (s *Service) Unwatch(ctx context.Context, playerID, stockID string) error {
	return model.AsSystem(s.store.RemoveWatch(ctx, playerID, stockID))
}

// Watchlist returns the stocks the player follows, oldest first.
func (s *Service) Watchlist(ctx context.Context, playerID string) ([]model.WatchlistItem, error) {
	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		return nil, model.AsSystem(err)
	}
	items, err := s.store.ListWatch(ctx, playerID)
	if err != nil {
		return nil, model.AsSystem(err)
	}
	return items, nil
}
