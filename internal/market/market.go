// Package market administers the list of tradable stocks. After a stock is
// created only the price oracle changes its price.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/model"
	"github.com/papertrade/papertrade/internal/store"
)

// Service creates, lists, renames and deletes stocks.
type Service struct {
	store store.Store
	log   *slog.Logger
}

// NewService creates a market service.
func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, log: logger}
}

// Create lists a new stock. The name must be non-empty and unique; the price
// is rounded to cents and must be positive afterwards.
func (s *Service) Create(ctx context.Context, name string, price decimal.Decimal) (*model.Stock, error) {
	name = strings.TrimSpace(name)
	price = price.Round(model.PriceScale)
	if name == "" || !price.IsPositive() {
		return nil, fmt.Errorf("%w: name must be non-empty and price positive", model.ErrInvalidParameter)
	}

	now := time.Now().UTC()
	st := &model.Stock{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateStock(ctx, st); err != nil {
		return nil, model.AsSystem(err)
	}
	s.log.Info("stock listed", "stock", st.ID, "name", name, "price", price.String())
	return st, nil
}

// Get returns one stock.
func (s *Service) Get(ctx context.Context, stockID string) (*model.Stock, error) {
	st, err := s.store.GetStock(ctx, stockID)
	if err != nil {
		return nil, model.AsSystem(err)
	}
	return st, nil
}

// List returns one page of stocks in listing order.
func (s *Service) List(ctx context.Context, offset, count int) (model.Page[model.Stock], error) {
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return model.Page[model.Stock]{}, model.AsSystem(err)
	}
	return model.Paginate(stocks, offset, count), nil
}

// Rename changes a stock's display name.
func (s *Service) Rename(ctx context.Context, stockID, name string) (*model.Stock, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must be non-empty", model.ErrInvalidParameter)
	}
	if err := s.store.RenameStock(ctx, stockID, name); err != nil {
		return nil, model.AsSystem(err)
	}
	return s.Get(ctx, stockID)
}

// Delete removes a stock. It fails with model.ErrInvalidParameter while any
// player still holds it.
func (s *Service) Delete(ctx context.Context, stockID string) error {
	if err := s.store.DeleteStock(ctx, stockID); err != nil {
		return model.AsSystem(err)
	}
	s.log.Info("stock delisted", "stock", stockID)
	return nil
}

// Listing is a stock to seed.
type Listing struct {
	Name  string
	Price decimal.Decimal
}

// DefaultListings are seeded into an empty market at startup.
var DefaultListings = []Listing{
	{"Cobalt Dynamics", decimal.NewFromInt(130)},
	{"Nimbus Labs", decimal.NewFromInt(95)},
	{"Rustic Systems", decimal.NewFromInt(115)},
	{"Pylon Networks", decimal.NewFromInt(80)},
	{"Javolt Cloud", decimal.NewFromInt(105)},
	{"Swiftr Mobile", decimal.NewFromInt(150)},
	{"Nodeon Runtime", decimal.NewFromInt(120)},
	{"Vectra AI", decimal.NewFromInt(165)},
	{"Fusion Grid", decimal.NewFromInt(110)},
	{"Lumina Health", decimal.NewFromInt(102)},
}

// SeedDefaults creates listings when the market has no stocks. A market that
// already has stocks is left alone. It returns the number of stocks created.
func (s *Service) SeedDefaults(ctx context.Context, listings []Listing) (int, error) {
	existing, err := s.store.ListStocks(ctx)
	if err != nil {
		return 0, model.AsSystem(err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, l := range listings {
		if _, err := s.Create(ctx, l.Name, l.Price); err != nil {
			return i, fmt.Errorf("seed %q: %w", l.Name, err)
		}
	}
	return len(listings), nil
}
