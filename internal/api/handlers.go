package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/identity"
	"github.com/papertrade/papertrade/internal/model"
)

// TradeRequest is the JSON body for POST /api/players/buy and /sell.
type TradeRequest struct {
	StockID  string `json:"stock_id"`
	Quantity int64  `json:"quantity"`
}

// RegisterRequest is the JSON body for POST /api/players.
type RegisterRequest struct {
	PlayerID string `json:"player_id"`
}

// CreateStockRequest is the JSON body for POST /api/stocks.
type CreateStockRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// RenameStockRequest is the JSON body for PUT /api/stocks/{stockID}.
type RenameStockRequest struct {
	Name string `json:"name"`
}

// WatchRequest is the JSON body for POST /api/watchlist.
type WatchRequest struct {
	StockID string `json:"stock_id"`
}

// --- Trading ---

type tradeFunc func(ctx context.Context, playerID, stockID string, quantity int64) (*model.TradeResult, error)

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.Trader.Buy)
}

func (s *Server) sell(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.Trader.Sell)
}

func (s *Server) trade(w http.ResponseWriter, r *http.Request, exec tradeFunc) {
	var req TradeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	playerID, _ := identity.PlayerFrom(r.Context())

	res, err := exec(r.Context(), playerID, req.StockID, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Ranker.GetRanking(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Players ---

func (s *Server) registerPlayer(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.Accounts.Register(r.Context(), req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	offset, count, err := pageParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	page, err := s.Accounts.List(r.Context(), offset, count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	pf, err := s.Accounts.Portfolio(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

func (s *Server) deletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.Accounts.Delete(r.Context(), chi.URLParam(r, "playerID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Stocks ---

func (s *Server) createStock(w http.ResponseWriter, r *http.Request) {
	var req CreateStockRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.Market.Create(r.Context(), req.Name, req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) listStocks(w http.ResponseWriter, r *http.Request) {
	offset, count, err := pageParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	page, err := s.Market.List(r.Context(), offset, count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getStock(w http.ResponseWriter, r *http.Request) {
	st, err := s.Market.Get(r.Context(), chi.URLParam(r, "stockID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) renameStock(w http.ResponseWriter, r *http.Request) {
	var req RenameStockRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.Market.Rename(r.Context(), chi.URLParam(r, "stockID"), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deleteStock(w http.ResponseWriter, r *http.Request) {
	if err := s.Market.Delete(r.Context(), chi.URLParam(r, "stockID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Watchlist ---

func (s *Server) listWatch(w http.ResponseWriter, r *http.Request) {
	playerID, _ := identity.PlayerFrom(r.Context())
	items, err := s.Accounts.Watchlist(r.Context(), playerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) addWatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	playerID, _ := identity.PlayerFrom(r.Context())
	if err := s.Accounts.Watch(r.Context(), playerID, req.StockID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeWatch(w http.ResponseWriter, r *http.Request) {
	playerID, _ := identity.PlayerFrom(r.Context())
	if err := s.Accounts.Unwatch(r.Context(), playerID, chi.URLParam(r, "stockID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
