package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/papertrade/papertrade/internal/model"
)

type holdingKey struct {
	playerID string
	stockID  string
}

type watchEntry struct {
	stockID   string
	createdAt time.Time
}

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Every read and write takes the store's RWMutex for the duration of a
// single map access, so a single price or balance is never observed half
// written. Serialising a trade's read-modify-write is the caller's job.
type MemoryStore struct {
	mu          sync.RWMutex
	players     map[string]*model.Player
	playerOrder []string
	stocks      map[string]*model.Stock
	stockOrder  []string
	holdings    map[holdingKey]int64
	watch       map[string][]watchEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:  make(map[string]*model.Player),
		stocks:   make(map[string]*model.Stock),
		holdings: make(map[holdingKey]int64),
		watch:    make(map[string][]watchEntry),
	}
}

// --- Players ---

func (s *MemoryStore) CreatePlayer(_ context.Context, p *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("%w: player %s already exists", model.ErrDataDuplicated, p.ID)
	}
	// Store a copy to avoid external mutation.
	cp := *p
	s.players[p.ID] = &cp
	s.playerOrder = append(s.playerOrder, p.ID)
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", model.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]model.Player, 0, len(s.playerOrder))
	for _, id := range s.playerOrder {
		players = append(players, *s.players[id])
	}
	return players, nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; !ok {
		return fmt.Errorf("%w: player %s", model.ErrNotFound, id)
	}
	delete(s.players, id)
	s.playerOrder = slices.DeleteFunc(s.playerOrder, func(v string) bool { return v == id })
	for k := range s.holdings {
		if k.playerID == id {
			delete(s.holdings, k)
		}
	}
	delete(s.watch, id)
	return nil
}

// --- Stocks ---

func (s *MemoryStore) CreateStock(_ context.Context, st *model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stocks[st.ID]; ok {
		return fmt.Errorf("%w: stock %s already exists", model.ErrDataDuplicated, st.ID)
	}
	for _, existing := range s.stocks {
		if existing.Name == st.Name {
			return fmt.Errorf("%w: stock named %q already exists", model.ErrDataDuplicated, st.Name)
		}
	}
	cp := *st
	s.stocks[st.ID] = &cp
	s.stockOrder = append(s.stockOrder, st.ID)
	return nil
}

func (s *MemoryStore) GetStock(_ context.Context, id string) (*model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) ListStocks(_ context.Context) ([]model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stocks := make([]model.Stock, 0, len(s.stockOrder))
	for _, id := range s.stockOrder {
		stocks = append(stocks, *s.stocks[id])
	}
	return stocks, nil
}

func (s *MemoryStore) RenameStock(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stocks[id]
	if !ok {
		return fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	for otherID, other := range s.stocks {
		if otherID != id && other.Name == name {
			return fmt.Errorf("%w: stock named %q already exists", model.ErrDataDuplicated, name)
		}
	}
	st.Name = name
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DeleteStock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stocks[id]; !ok {
		return fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	for k := range s.holdings {
		if k.stockID == id {
			return fmt.Errorf("%w: stock %s is still held by players", model.ErrInvalidParameter, id)
		}
	}
	delete(s.stocks, id)
	s.stockOrder = slices.DeleteFunc(s.stockOrder, func(v string) bool { return v == id })
	for playerID, entries := range s.watch {
		s.watch[playerID] = slices.DeleteFunc(entries, func(e watchEntry) bool { return e.stockID == id })
	}
	return nil
}

func (s *MemoryStore) PutPrices(_ context.Context, updates []model.PriceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range updates {
		st, ok := s.stocks[u.StockID]
		if !ok {
			continue // deleted since the tick listed it
		}
		st.Price = u.Price
		st.UpdatedAt = now
	}
	return nil
}

// --- Holdings ---

func (s *MemoryStore) GetHolding(_ context.Context, playerID, stockID string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.holdingLocked(playerID, stockID)
}

func (s *MemoryStore) holdingLocked(playerID, stockID string) (*model.Holding, error) {
	qty, ok := s.holdings[holdingKey{playerID, stockID}]
	if !ok {
		return nil, fmt.Errorf("%w: holding %s/%s", model.ErrNotFound, playerID, stockID)
	}
	return &model.Holding{PlayerID: playerID, StockID: stockID, Quantity: qty}, nil
}

func (s *MemoryStore) ListHoldingsByPlayer(_ context.Context, playerID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Holding
	for k, qty := range s.holdings {
		if k.playerID == playerID {
			result = append(result, model.Holding{PlayerID: k.playerID, StockID: k.stockID, Quantity: qty})
		}
	}
	sortHoldings(result)
	return result, nil
}

func (s *MemoryStore) ListAllHoldings(_ context.Context) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Holding, 0, len(s.holdings))
	for k, qty := range s.holdings {
		result = append(result, model.Holding{PlayerID: k.playerID, StockID: k.stockID, Quantity: qty})
	}
	sortHoldings(result)
	return result, nil
}

func sortHoldings(h []model.Holding) {
	sort.Slice(h, func(i, j int) bool {
		if h[i].PlayerID != h[j].PlayerID {
			return h[i].PlayerID < h[j].PlayerID
		}
		return h[i].StockID < h[j].StockID
	})
}

// --- Watchlist ---

func (s *MemoryStore) AddWatch(_ context.Context, playerID, stockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; !ok {
		return fmt.Errorf("%w: player %s", model.ErrNotFound, playerID)
	}
	if _, ok := s.stocks[stockID]; !ok {
		return fmt.Errorf("%w: stock %s", model.ErrNotFound, stockID)
	}
	for _, e := range s.watch[playerID] {
		if e.stockID == stockID {
			return fmt.Errorf("%w: stock %s already in watchlist", model.ErrDataDuplicated, stockID)
		}
	}
	s.watch[playerID] = append(s.watch[playerID], watchEntry{stockID: stockID, createdAt: time.Now().UTC()})
	return nil
}

func (s *MemoryStore) RemoveWatch(_ context.Context, playerID, stockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.watch[playerID]
	idx := slices.IndexFunc(entries, func(e watchEntry) bool { return e.stockID == stockID })
	if idx < 0 {
		return fmt.Errorf("%w: stock %s not in watchlist", model.ErrNotFound, stockID)
	}
	s.watch[playerID] = slices.Delete(entries, idx, idx+1)
	return nil
}

func (s *MemoryStore) ListWatch(_ context.Context, playerID string) ([]model.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.WatchlistItem, 0, len(s.watch[playerID]))
	for _, e := range s.watch[playerID] {
		st, ok := s.stocks[e.stockID]
		if !ok {
			continue
		}
		items = append(items, model.WatchlistItem{
			PlayerID:   playerID,
			StockID:    st.ID,
			StockName:  st.Name,
			StockPrice: st.Price,
			CreatedAt:  e.createdAt,
		})
	}
	return items, nil
}

// --- Transactions ---

// Update buffers fn's writes and applies them under one write lock. The
// commit is rejected as a whole if a touched player or stock vanished in
// the meantime.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		store:    s,
		players:  make(map[string]model.Player),
		holdings: make(map[holdingKey]holdingWrite),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.players {
		if _, ok := s.players[id]; !ok {
			return fmt.Errorf("%w: player %s", model.ErrNotFound, id)
		}
	}
	for k, w := range tx.holdings {
		if w.deleted {
			continue
		}
		if _, ok := s.players[k.playerID]; !ok {
			return fmt.Errorf("%w: player %s", model.ErrNotFound, k.playerID)
		}
		if _, ok := s.stocks[k.stockID]; !ok {
			return fmt.Errorf("%w: stock %s", model.ErrNotFound, k.stockID)
		}
	}

	for id, p := range tx.players {
		cp := p
		s.players[id] = &cp
	}
	for k, w := range tx.holdings {
		if w.deleted {
			delete(s.holdings, k)
			continue
		}
		s.holdings[k] = w.quantity
	}
	return nil
}

type holdingWrite struct {
	quantity int64
	deleted  bool
}

type memTx struct {
	store    *MemoryStore
	players  map[string]model.Player
	holdings map[holdingKey]holdingWrite
}

func (t *memTx) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	if p, ok := t.players[id]; ok {
		return &p, nil
	}
	return t.store.GetPlayer(ctx, id)
}

func (t *memTx) PutPlayer(_ context.Context, p *model.Player) error {
	t.players[p.ID] = *p
	return nil
}

func (t *memTx) GetHolding(ctx context.Context, playerID, stockID string) (*model.Holding, error) {
	if w, ok := t.holdings[holdingKey{playerID, stockID}]; ok {
		if w.deleted {
			return nil, fmt.Errorf("%w: holding %s/%s", model.ErrNotFound, playerID, stockID)
		}
		return &model.Holding{PlayerID: playerID, StockID: stockID, Quantity: w.quantity}, nil
	}
	return t.store.GetHolding(ctx, playerID, stockID)
}

func (t *memTx) PutHolding(_ context.Context, h *model.Holding) error {
	if h.Quantity < 1 {
		return fmt.Errorf("%w: holding quantity must be >= 1, got %d", model.ErrInvalidParameter, h.Quantity)
	}
	t.holdings[holdingKey{h.PlayerID, h.StockID}] = holdingWrite{quantity: h.Quantity}
	return nil
}

func (t *memTx) DeleteHolding(_ context.Context, playerID, stockID string) error {
	t.holdings[holdingKey{playerID, stockID}] = holdingWrite{deleted: true}
	return nil
}
