package repository

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists нарушение уникальности ключа (имя товара, id магазина)
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientStock сигнал TotalCost: строки нет или остатка не хватает
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNegativeAmount мутация оставила бы отрицательный остаток, состояние не изменено
	ErrNegativeAmount = errors.New("amount would become negative")
	// ErrAmountOverflow остаток не помещается в int, состояние не изменено
	ErrAmountOverflow = errors.New("amount overflows int")
)

// AddAmount складывает количества без переполнения int
func AddAmount(a, b int) (int, error) {
	if (b > 0 && a > math.MaxInt-b) || (b < 0 && a < math.MinInt-b) {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// FormatPrice текстовая запись цены для хранилищ: точка как разделитель, масштаб сохраняется ("2.50")
func FormatPrice(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// Repository хранилище магазинов, товаров и остатков вместе с ценовыми запросами.
// Обе реализации (SQLiteStore, FileStore) обязаны вести себя одинаково.
type Repository interface {
	AddMarket(ctx context.Context, m domain.Market) error
	FindMarketByID(ctx context.Context, id uuid.UUID) (*domain.Market, error)
	ListMarkets(ctx context.Context) ([]domain.Market, error)

	AddProduct(ctx context.Context, p domain.Product) error
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)

	// StockProduct добавляет delta к остатку (создаёт строку при отсутствии).
	// Цена заменяется только если price > 0.
	StockProduct(ctx context.Context, marketID uuid.UUID, productName string, delta int, price decimal.Decimal) error

	CheapestMarketForProduct(ctx context.Context, productName string) (*domain.Market, error)
	AffordableProducts(ctx context.Context, marketID uuid.UUID, budget decimal.Decimal) (map[string]int, error)
	TotalCost(ctx context.Context, marketID uuid.UUID, items []domain.PurchaseItem) (decimal.Decimal, error)
	CheapestMarketForBatch(ctx context.Context, items []domain.PurchaseItem) (*domain.Market, error)
}

// TxManager абстракция транзакции. Вложенные вызовы присоединяются к внешней.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store то, что выбирается при старте: хранилище плюс его транзакции
type Store interface {
	Repository
	TxManager
	Close() error
}
