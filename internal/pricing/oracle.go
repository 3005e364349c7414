// Package pricing owns the authoritative stock prices and drifts them on a
// fixed period. The oracle is the only writer of Stock.Price after a stock
// is created.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/events"
	"github.com/papertrade/papertrade/internal/metrics"
	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

const (
	// DefaultInterval is the tick period used when none is configured.
	DefaultInterval = 5 * time.Second

	// MaxChange bounds one tick's relative move: c is drawn from [-MaxChange, +MaxChange).
	MaxChange = 0.05
)

// MinPrice is the floor applied after rounding so a price never reaches zero.
var MinPrice = decimal.New(1, -model.PriceScale)

// Oracle advances every stock's price on each tick and serves current prices.
type Oracle struct {
	store    store.Store
	interval time.Duration
	pub      events.Publisher
	log      *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithRand replaces the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(o *Oracle) { o.rand = r }
}

// WithPublisher sends a price_updated event per stock after every tick.
func WithPublisher(p events.Publisher) Option {
	return func(o *Oracle) {
		if p != nil {
			o.pub = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOracle creates an oracle over st. It does not tick until Start.
func NewOracle(st store.Store, opts ...Option) *Oracle {
	o := &Oracle{
		store:    st,
		interval: DefaultInterval,
		pub:      events.Nop{},
		log:      slog.Default(),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Interval returns the tick period.
func (o *Oracle) Interval() time.Duration {
	return o.interval
}

// GetPrice returns the latest committed price of stockID.
func (o *Oracle) GetPrice(ctx context.Context, stockID string) (decimal.Decimal, error) {
	st, err := o.store.GetStock(ctx, stockID)
	if err != nil {
		return decimal.Zero, err
	}
	return st.Price, nil
}

// NextPrice applies a relative change to price, rounds half-up to cents and
// floors the result at MinPrice.
func NextPrice(price decimal.Decimal, change float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(change))
	next := price.Mul(factor).Round(model.PriceScale)
	if next.LessThan(MinPrice) {
		return MinPrice
	}
	return next
}

// drawChange returns a uniform draw from [-MaxChange, +MaxChange).
func (o *Oracle) drawChange() float64 {
	o.randMu.Lock()
	defer o.randMu.Unlock()
	return (o.rand.Float64() - 0.5) * 2 * MaxChange
}

// Tick moves every known stock once and writes the batch. A tick that
// finds no stocks does nothing.
func (o *Oracle) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	stocks, err := o.store.ListStocks(ctx)
	if err != nil {
		return fmt.Errorf("list stocks: %w", err)
	}
	if len(stocks) == 0 {
		return nil
	}

	updates := make([]model.PriceUpdate, len(stocks))
	for i, st := range stocks {
		updates[i] = model.PriceUpdate{StockID: st.ID, Price: NextPrice(st.Price, o.drawChange())}
	}
	if err := o.store.PutPrices(ctx, updates); err != nil {
		return fmt.Errorf("put prices: %w", err)
	}
	metrics.StocksTracked.Set(float64(len(updates)))

	now := time.Now().UTC()
	for i, u := range updates {
		o.pub.Publish(events.Event{
			Type:      events.TypePriceUpdated,
			StockID:   u.StockID,
			StockName: stocks[i].Name,
			Price:     u.Price.StringFixed(model.PriceScale),
			At:        now,
		})
	}
	return nil
}

// Start launches the periodic tick loop. Calling Start on a running oracle
// is a no-op.
func (o *Oracle) Start(ctx context.Context) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	go o.run(ctx, o.done)
	o.log.Info("price oracle started", "interval", o.interval.String())
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
func (o *Oracle) Stop() {
	o.runMu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	o.log.Info("price oracle stopped")
}

func (o *Oracle) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed tick is not retried; the next one starts from
			// whatever prices are committed.
			if err := o.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.PriceTicksTotal.WithLabelValues("error").Inc()
				o.log.Error("price tick failed", "err", err)
				continue
			}
			metrics.PriceTicksTotal.WithLabelValues("ok").Inc()
		}
	}
}
