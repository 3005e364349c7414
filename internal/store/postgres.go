package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/papertrade/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes mapped onto the domain taxonomy.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a tuned connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// --- Players ---

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, balance, initial_capital, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4)`,
		p.ID, p.Balance.String(), p.InitialCapital.String(), p.CreatedAt,
	)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("%w: player %s already exists", model.ErrDataDuplicated, p.ID)
	}
	return err
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return getPlayer(ctx, s.pool, id, "")
}

func (s *PostgresStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, balance::TEXT, initial_capital::TEXT, created_at
		 FROM players ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) DeletePlayer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s", model.ErrNotFound, id)
	}
	return nil
}

// --- Stocks ---

func (s *PostgresStore) CreateStock(ctx context.Context, st *model.Stock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stocks (id, name, price, created_at, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		st.ID, st.Name, st.Price.String(), st.CreatedAt, st.UpdatedAt,
	)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("%w: stock named %q already exists", model.ErrDataDuplicated, st.Name)
	}
	return err
}

func (s *PostgresStore) GetStock(ctx context.Context, id string) (*model.Stock, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, price::TEXT, created_at, updated_at
		 FROM stocks WHERE id = $1`, id)
	st, err := scanStock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", id, err)
	}
	return st, nil
}

func (s *PostgresStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, price::TEXT, created_at, updated_at
		 FROM stocks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, *st)
	}
	return stocks, rows.Err()
}

func (s *PostgresStore) RenameStock(ctx context.Context, id, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE stocks SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("%w: stock named %q already exists", model.ErrDataDuplicated, name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) DeleteStock(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stocks WHERE id = $1`, id)
	if isPgCode(err, pgForeignKeyViolation) {
		return fmt.Errorf("%w: stock %s is still held by players", model.ErrInvalidParameter, id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock %s", model.ErrNotFound, id)
	}
	return nil
}

// PutPrices sends the whole tick as one batch inside a transaction. Each
// UPDATE replaces a single row, so readers see either the old or the new
// price of a stock and nothing in between.
func (s *PostgresStore) PutPrices(ctx context.Context, updates []model.PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(
			`UPDATE stocks SET price = $2::NUMERIC, updated_at = now() WHERE id = $1`,
			u.StockID, u.Price.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("put prices: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Holdings ---

func (s *PostgresStore) GetHolding(ctx context.Context, playerID, stockID string) (*model.Holding, error) {
	return getHolding(ctx, s.pool, playerID, stockID, "")
}

func (s *PostgresStore) ListHoldingsByPlayer(ctx context.Context, playerID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT player_id, stock_id, quantity FROM holdings
		 WHERE player_id = $1 ORDER BY stock_id`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHoldings(rows)
}

func (s *PostgresStore) ListAllHoldings(ctx context.Context) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT player_id, stock_id, quantity FROM holdings
		 ORDER BY player_id, stock_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHoldings(rows)
}

// --- Watchlist ---

func (s *PostgresStore) AddWatch(ctx context.Context, playerID, stockID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchlist (player_id, stock_id) VALUES ($1, $2)`, playerID, stockID)
	switch {
	case isPgCode(err, pgUniqueViolation):
		return fmt.Errorf("%w: stock %s already in watchlist", model.ErrDataDuplicated, stockID)
	case isPgCode(err, pgForeignKeyViolation):
		return fmt.Errorf("%w: player %s or stock %s", model.ErrNotFound, playerID, stockID)
	}
	return err
}

func (s *PostgresStore) RemoveWatch(ctx context.Context, playerID, stockID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM watchlist WHERE player_id = $1 AND stock_id = $2`, playerID, stockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock %s not in watchlist", model.ErrNotFound, stockID)
	}
	return nil
}

func (s *PostgresStore) ListWatch(ctx context.Context, playerID string) ([]model.WatchlistItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.player_id, s.id, s.name, s.price::TEXT, w.created_at
		 FROM watchlist w
		 JOIN stocks s ON s.id = w.stock_id
		 WHERE w.player_id = $1
		 ORDER BY w.created_at`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.WatchlistItem{}
	for rows.Next() {
		var it model.WatchlistItem
		var priceS string
		if err := rows.Scan(&it.PlayerID, &it.StockID, &it.StockName, &priceS, &it.CreatedAt); err != nil {
			return nil, err
		}
		if it.StockPrice, err = decimal.NewFromString(priceS); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", it.StockID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- Transactions ---

// Update runs fn in a READ COMMITTED transaction. Tx reads use
// SELECT ... FOR UPDATE, so the rows a trade touches stay locked until
// commit even across service instances.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return getPlayer(ctx, t.tx, id, "FOR UPDATE")
}

func (t *pgTx) PutPlayer(ctx context.Context, p *model.Player) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE players SET balance = $2::NUMERIC WHERE id = $1`, p.ID, p.Balance.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s", model.ErrNotFound, p.ID)
	}
	return nil
}

func (t *pgTx) GetHolding(ctx context.Context, playerID, stockID string) (*model.Holding, error) {
	return getHolding(ctx, t.tx, playerID, stockID, "FOR UPDATE")
}

func (t *pgTx) PutHolding(ctx context.Context, h *model.Holding) error {
	if h.Quantity < 1 {
		return fmt.Errorf("%w: holding quantity must be >= 1, got %d", model.ErrInvalidParameter, h.Quantity)
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO holdings (player_id, stock_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, stock_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		h.PlayerID, h.StockID, h.Quantity)
	if isPgCode(err, pgForeignKeyViolation) {
		return fmt.Errorf("%w: player %s or stock %s", model.ErrNotFound, h.PlayerID, h.StockID)
	}
	return err
}

func (t *pgTx) DeleteHolding(ctx context.Context, playerID, stockID string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM holdings WHERE player_id = $1 AND stock_id = $2`, playerID, stockID)
	return err
}

// --- Scan helpers ---

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getPlayer(ctx context.Context, q querier, id, lock string) (*model.Player, error) {
	row := q.QueryRow(ctx,
		`SELECT id, balance::TEXT, initial_capital::TEXT, created_at
		 FROM players WHERE id = $1 `+lock, id)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", id, err)
	}
	return p, nil
}

func getHolding(ctx context.Context, q querier, playerID, stockID, lock string) (*model.Holding, error) {
	var h model.Holding
	err := q.QueryRow(ctx,
		`SELECT player_id, stock_id, quantity FROM holdings
		 WHERE player_id = $1 AND stock_id = $2 `+lock, playerID, stockID).
		Scan(&h.PlayerID, &h.StockID, &h.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: holding %s/%s", model.ErrNotFound, playerID, stockID)
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s/%s: %w", playerID, stockID, err)
	}
	return &h, nil
}

func scanPlayer(row scanner) (*model.Player, error) {
	var p model.Player
	var balanceS, initialS string
	if err := row.Scan(&p.ID, &balanceS, &initialS, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Balance, err = decimal.NewFromString(balanceS); err != nil {
		return nil, fmt.Errorf("parse balance of %s: %w", p.ID, err)
	}
	if p.InitialCapital, err = decimal.NewFromString(initialS); err != nil {
		return nil, fmt.Errorf("parse initial capital of %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanStock(row scanner) (*model.Stock, error) {
	var st model.Stock
	var priceS string
	if err := row.Scan(&st.ID, &st.Name, &priceS, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if st.Price, err = decimal.NewFromString(priceS); err != nil {
		return nil, fmt.Errorf("parse price of %s: %w", st.ID, err)
	}
	return &st, nil
}

func scanHoldings(rows pgx.Rows) ([]model.Holding, error) {
	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.PlayerID, &h.StockID, &h.Quantity); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
