// Package trade executes buy and sell orders against the ledger at the
// price the oracle holds at execution time.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/events"
	"github.com/papertrade/papertrade/internal/lock"
	"github.com/papertrade/papertrade/internal/metrics"
	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

// PriceReader returns the current price of a stock. pricing.Oracle
// satisfies it.
type PriceReader interface {
	GetPrice(ctx context.Context, stockID string) (decimal.Decimal, error)
}

// Engine runs trades. A trade holds the player's balance key and the
// (player, stock) holding key for its whole read-modify-write, so trades
// on unrelated players never wait on each other.
type Engine struct {
	store  store.Store
	prices PriceReader
	locker lock.Locker
	pub    events.Publisher
	log    *slog.Logger
}

// NewEngine creates a trading engine. A nil locker falls back to an
// in-process KeyedLocker; a nil publisher discards events.
func NewEngine(st store.Store, prices PriceReader, locker lock.Locker, pub events.Publisher, logger *slog.Logger) *Engine {
	if locker == nil {
		locker = lock.NewKeyedLocker()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, prices: prices, locker: locker, pub: pub, log: logger}
}

// Buy debits quantity × current price from the player and adds quantity to
// the holding, creating it if absent.
func (e *Engine) Buy(ctx context.Context, playerID, stockID string, quantity int64) (*model.TradeResult, error) {
	return e.execute(ctx, model.SideBuy, playerID, stockID, quantity, e.buy)
}

// Sell removes quantity from the holding and credits quantity × current
// price. Selling the whole holding deletes the row.
func (e *Engine) Sell(ctx context.Context, playerID, stockID string, quantity int64) (*model.TradeResult, error) {
	return e.execute(ctx, model.SideSell, playerID, stockID, quantity, e.sell)
}

type applyFunc func(ctx context.Context, tx store.Tx, res *model.TradeResult) error

func (e *Engine) execute(ctx context.Context, side, playerID, stockID string, quantity int64, apply applyFunc) (res *model.TradeResult, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = model.Code(err)
		}
		metrics.TradesTotal.WithLabelValues(side, result).Inc()
		metrics.TradeLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())
	}()

	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1, got %d", model.ErrInvalidParameter, quantity)
	}
	if playerID == "" || stockID == "" {
		return nil, fmt.Errorf("%w: player and stock are required", model.ErrInvalidParameter)
	}

	unlock, err := e.locker.Lock(ctx, lock.PlayerKey(playerID), lock.HoldingKey(playerID, stockID))
	if err != nil {
		return nil, model.AsSystem(fmt.Errorf("acquire trade lock: %w", err))
	}
	defer unlock()

	res = &model.TradeResult{PlayerID: playerID, StockID: stockID, Side: side, Quantity: quantity}
	err = e.store.Update(ctx, func(tx store.Tx) error {
		return apply(ctx, tx, res)
	})
	if err != nil {
		err = model.AsSystem(err)
		if errors.Is(err, model.ErrSystem) {
			e.log.Error("trade failed", "side", side, "player", playerID, "stock", stockID, "err", err)
		}
		return nil, err
	}

	e.log.Info("trade executed",
		"side", side,
		"player", playerID,
		"stock", stockID,
		"quantity", quantity,
		"price", res.Price.String(),
		"amount", res.Amount.String(),
	)
	e.pub.Publish(events.Event{
		Type:     events.TypeTradeExecuted,
		StockID:  stockID,
		Price:    res.Price.StringFixed(model.PriceScale),
		PlayerID: playerID,
		Side:     side,
		Quantity: quantity,
		At:       time.Now().UTC(),
	})
	return res, nil
}

func (e *Engine) buy(ctx context.Context, tx store.Tx, res *model.TradeResult) error {
	player, price, err := e.load(ctx, tx, res)
	if err != nil {
		return err
	}

	cost := price.Mul(decimal.NewFromInt(res.Quantity))
	if player.Balance.Sub(cost).IsNegative() {
		return fmt.Errorf("%w: cost %s exceeds balance %s", model.ErrInsufficientFunds, cost, player.Balance)
	}

	held := int64(0)
	h, err := tx.GetHolding(ctx, res.PlayerID, res.StockID)
	switch {
	case err == nil:
		held = h.Quantity
	case !errors.Is(err, model.ErrNotFound):
		return err
	}

	player.Balance = player.Balance.Sub(cost)
	if err := tx.PutPlayer(ctx, player); err != nil {
		return err
	}
	next := &model.Holding{PlayerID: res.PlayerID, StockID: res.StockID, Quantity: held + res.Quantity}
	if err := tx.PutHolding(ctx, next); err != nil {
		return err
	}

	res.Price = price
	res.Amount = cost
	res.Balance = player.Balance
	res.HoldingQuantity = next.Quantity
	return nil
}

func (e *Engine) sell(ctx context.Context, tx store.Tx, res *model.TradeResult) error {
	player, price, err := e.load(ctx, tx, res)
	if err != nil {
		return err
	}

	h, err := tx.GetHolding(ctx, res.PlayerID, res.StockID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: player %s does not own stock %s", model.ErrNotFound, res.PlayerID, res.StockID)
		}
		return err
	}
	if h.Quantity < res.Quantity {
		return fmt.Errorf("%w: holding %d, requested %d", model.ErrInsufficientQuantity, h.Quantity, res.Quantity)
	}

	remaining := h.Quantity - res.Quantity
	if remaining == 0 {
		err = tx.DeleteHolding(ctx, res.PlayerID, res.StockID)
	} else {
		err = tx.PutHolding(ctx, &model.Holding{PlayerID: res.PlayerID, StockID: res.StockID, Quantity: remaining})
	}
	if err != nil {
		return err
	}

	proceeds := price.Mul(decimal.NewFromInt(res.Quantity))
	player.Balance = player.Balance.Add(proceeds)
	if err := tx.PutPlayer(ctx, player); err != nil {
		return err
	}

	res.Price = price
	res.Amount = proceeds
	res.Balance = player.Balance
	res.HoldingQuantity = remaining
	return nil
}

// load reads the player (locking its row) and the current price. Missing
// player is reported before missing stock.
func (e *Engine) load(ctx context.Context, tx store.Tx, res *model.TradeResult) (*model.Player, decimal.Decimal, error) {
	player, err := tx.GetPlayer(ctx, res.PlayerID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	price, err := e.prices.GetPrice(ctx, res.StockID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return player, price, nil
}
