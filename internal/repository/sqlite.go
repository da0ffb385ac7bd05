package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"marketplace/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore транзакционное хранилище. Уникальность и внешние ключи проверяет сама БД,
// каждая мутация коммитится атомарно до возврата.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore открывает базу (":memory:" для тестов) и применяет схему
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single connection: serializes writers and keeps one :memory: database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db, log: logger}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("sqlite store ready", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

type sqlTx struct {
	owner *SQLiteStore
	tx    *sql.Tx
}

func (s *SQLiteStore) txFrom(ctx context.Context) *sql.Tx {
	if t, ok := ctx.Value(sqlTxKey{}).(*sqlTx); ok && t.owner == s {
		return t.tx
	}
	return nil
}

// q возвращает транзакцию из контекста, если она есть
func (s *SQLiteStore) q(ctx context.Context) querier {
	if tx := s.txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *SQLiteStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, sqlTxKey{}, &sqlTx{owner: s, tx: tx})); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// isUniqueViolation only for plain inserts into markets and products, where a key is the only constraint that can fail
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	// extended codes disabled: the primary code is still CONSTRAINT
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *SQLiteStore) AddMarket(ctx context.Context, m domain.Market) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO markets (id, name, address) VALUES (?, ?, ?)`,
		m.ID.String(), m.Name, m.Address)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("market %s: %w", m.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindMarketByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name, address FROM markets WHERE id = ?`, id.String(),
	).Scan(&m.ID, &m.Name, &m.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query market by id: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT id, name, address FROM markets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	markets := make([]domain.Market, 0)
	for rows.Next() {
		var m domain.Market
		if err := rows.Scan(&m.ID, &m.Name, &m.Address); err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return markets, nil
}

func (s *SQLiteStore) AddProduct(ctx context.Context, p domain.Product) error {
	_, err := s.q(ctx).ExecContext(ctx, `INSERT INTO products (name) VALUES (?)`, p.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %q: %w", p.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var p domain.Product
	err := s.q(ctx).QueryRowContext(ctx, `SELECT name FROM products WHERE name = ?`, name).Scan(&p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by name: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) StockProduct(ctx context.Context, marketID uuid.UUID, productName string, delta int, price decimal.Decimal) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		var current int
		err := s.q(ctx).QueryRowContext(ctx,
			`SELECT amount FROM products_in_markets WHERE market_id = ? AND product_name = ?`,
			marketID.String(), productName,
		).Scan(&current)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if delta < 0 {
				return ErrNegativeAmount
			}
			if _, err := s.q(ctx).ExecContext(ctx,
				`INSERT INTO products_in_markets (market_id, product_name, amount, price) VALUES (?, ?, ?, ?)`,
				marketID.String(), productName, delta, FormatPrice(price),
			); err != nil {
				return fmt.Errorf("insert product in market: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("query product in market: %w", err)
		}

		amount, err := AddAmount(current, delta)
		if err != nil {
			return fmt.Errorf("stock %q: %w", productName, err)
		}
		if amount < 0 {
			return ErrNegativeAmount
		}
		if price.IsPositive() {
			_, err = s.q(ctx).ExecContext(ctx,
				`UPDATE products_in_markets SET amount = ?, price = ? WHERE market_id = ? AND product_name = ?`,
				amount, FormatPrice(price), marketID.String(), productName)
		} else {
			_, err = s.q(ctx).ExecContext(ctx,
				`UPDATE products_in_markets SET amount = ? WHERE market_id = ? AND product_name = ?`,
				amount, marketID.String(), productName)
		}
		if err != nil {
			return fmt.Errorf("update product in market: %w", err)
		}
		return nil
	})
}

// lines читает строки остатков в порядке вставки (rowid), фильтр задаётся where
func (s *SQLiteStore) lines(ctx context.Context, where string, args ...any) ([]domain.ProductInMarket, error) {
	query := `SELECT market_id, product_name, amount, price FROM products_in_markets`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY rowid"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products in markets: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductInMarket
	for rows.Next() {
		var l domain.ProductInMarket
		if err := rows.Scan(&l.MarketID, &l.ProductName, &l.Amount, &l.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product in market: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CheapestMarketForProduct(ctx context.Context, productName string) (*domain.Market, error) {
	var market *domain.Market
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.lines(ctx, "product_name = ? AND amount > 0", productName)
		if err != nil {
			return err
		}
		l, ok := cheapestLine(lines, productName)
		if !ok {
			return ErrNotFound
		}
		market, err = s.FindMarketByID(ctx, l.MarketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return market, nil
}

func (s *SQLiteStore) AffordableProducts(ctx context.Context, marketID uuid.UUID, budget decimal.Decimal) (map[string]int, error) {
	lines, err := s.lines(ctx, "market_id = ? AND amount > 0", marketID.String())
	if err != nil {
		return nil, err
	}
	return affordable(lines, marketID, budget), nil
}

func (s *SQLiteStore) TotalCost(ctx context.Context, marketID uuid.UUID, items []domain.PurchaseItem) (decimal.Decimal, error) {
	lines, err := s.lines(ctx, "market_id = ?", marketID.String())
	if err != nil {
		return decimal.Zero, err
	}
	return totalCost(lines, marketID, items)
}

func (s *SQLiteStore) CheapestMarketForBatch(ctx context.Context, items []domain.PurchaseItem) (*domain.Market, error) {
	var best *domain.Market
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		markets, err := s.ListMarkets(ctx)
		if err != nil {
			return err
		}
		lines, err := s.lines(ctx, "")
		if err != nil {
			return err
		}
		m, ok := cheapestBatch(markets, lines, items)
		if !ok {
			return ErrNotFound
		}
		best = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return best, nil
}
