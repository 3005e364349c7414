// Package events fans out price-tick and trade notifications to live
// subscribers: WebSocket clients and, optionally, a NATS subject tree.
package events

import (
	"time"
)

// Event types.
const (
	TypePriceUpdated  = "price_updated"
	TypeTradeExecuted = "trade_executed"
)

// Event is the JSON payload sent to subscribers.
type Event struct {
	Type      string    `json:"type"`
	StockID   string    `json:"stock_id"`
	StockName string    `json:"stock_name,omitempty"`
	Price     string    `json:"price"`
	PlayerID  string    `json:"player_id,omitempty"`
	Side      string    `json:"side,omitempty"`
	Quantity  int64     `json:"quantity,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Publish must not block the caller on slow
// subscribers; delivery is best effort.
type Publisher interface {
	Publish(e Event)
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
