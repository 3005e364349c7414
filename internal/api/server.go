// Package api exposes papertrade over HTTP with a chi router and JSON
// bodies. Handlers only decode, delegate and encode; the rules live in the
// trade, ranking, account and market packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/papertrade/papertrade/internal/account"
	"github.com/papertrade/papertrade/internal/identity"
	"github.com/papertrade/papertrade/internal/market"
	"github.com/papertrade/papertrade/internal/metrics"
	"github.com/papertrade/papertrade/internal/model"
)

// Trader executes trades. trade.Engine satisfies it.
type Trader interface {
	Buy(ctx context.Context, playerID, stockID string, quantity int64) (*model.TradeResult, error)
	Sell(ctx context.Context, playerID, stockID string, quantity int64) (*model.TradeResult, error)
}

// Ranker produces the leaderboard. ranking.Engine satisfies it.
type Ranker interface {
	GetRanking(ctx context.Context) ([]model.RankingEntry, error)
}

// Server holds the HTTP handlers' collaborators.
type Server struct {
	Trader   Trader
	Ranker   Ranker
	Accounts *account.Service
	Market   *market.Service
	Identity identity.Resolver
	// WS serves GET /api/ws; nil disables the endpoint.
	WS  http.HandlerFunc
	Log *slog.Logger
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.Identity == nil {
		s.Identity = identity.NewHeaderResolver("")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors(append([]string{"Content-Type"}, identity.RequestHeaders(s.Identity)...)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "papertrade"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.WS != nil {
			r.Get("/ws", s.WS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/ranking", s.getRanking)

			r.Route("/players", func(r chi.Router) {
				r.Get("/", s.listPlayers)
				r.Post("/", s.registerPlayer)

				r.Group(func(r chi.Router) {
					r.Use(identity.Middleware(s.Identity, s.writeError))
					r.Post("/buy", s.buy)
					r.Post("/sell", s.sell)
				})

				r.Get("/{playerID}", s.getPlayer)
				r.Delete("/{playerID}", s.deletePlayer)
			})

			r.Route("/stocks", func(r chi.Router) {
				r.Get("/", s.listStocks)
				r.Post("/", s.createStock)
				r.Get("/{stockID}", s.getStock)
				r.Put("/{stockID}", s.renameStock)
				r.Delete("/{stockID}", s.deleteStock)
			})

			r.Route("/watchlist", func(r chi.Router) {
				r.Use(identity.Middleware(s.Identity, s.writeError))
				r.Get("/", s.listWatch)
				r.Post("/", s.addWatch)
				r.Delete("/{stockID}", s.removeWatch)
			})
		})
	})
	return r
}

// cors allows the browser front-end on another origin to send headers.
func cors(headers []string) func(http.Handler) http.Handler {
	allowed := strings.Join(headers, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowed)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// StatusFor maps an error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDataDuplicated):
		return http.StatusConflict
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, model.ErrInsufficientQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Code: model.Code(err), Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", model.ErrInvalidParameter)
	}
	return nil
}

// pageParams reads ?offset=&count=. Missing values fall back to the first
// page of ten.
func pageParams(r *http.Request) (offset, count int, err error) {
	q := r.URL.Query()
	if offset, err = intParam(q.Get("offset"), 0); err != nil {
		return 0, 0, err
	}
	if count, err = intParam(q.Get("count"), 10); err != nil {
		return 0, 0, err
	}
	if offset < 0 || count < 1 {
		return 0, 0, fmt.Errorf("%w: offset must be >= 0 and count >= 1", model.ErrInvalidParameter)
	}
	return offset, count, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", model.ErrInvalidParameter, raw)
	}
	return n, nil
}
