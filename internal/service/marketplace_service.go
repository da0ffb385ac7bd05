package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

var tracer = otel.Tracer("marketplace/internal/service")

// MarketPlaceService проверяет входные данные, вызывает хранилище и переводит
// любой исход в Response. Ошибки наружу не выходят.
type MarketPlaceService struct {
	repo repository.Repository
	tx   repository.TxManager
	log  *zap.Logger
}

func NewMarketPlaceService(repo repository.Repository, tx repository.TxManager, logger *zap.Logger) *MarketPlaceService {
	return &MarketPlaceService{repo: repo, tx: tx, log: logger}
}

// call одна операция сервиса: имя и её span
type call struct {
	op   string
	span trace.Span
}

func begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, call) {
	ctx, span := tracer.Start(ctx, "MarketPlaceService."+op, trace.WithAttributes(attrs...))
	return ctx, call{op: op, span: span}
}

// finish закрывает операцию: код в span, лог для внутренних ошибок
func finish[T any](log *zap.Logger, c call, data T, msg string, err error) Response[T] {
	defer c.span.End()
	if err == nil {
		c.span.SetAttributes(attribute.String("marketplace.code", string(CodeSuccess)))
		return Response[T]{Code: CodeSuccess, Message: msg, Data: data}
	}

	code := codeOf(err)
	c.span.SetAttributes(attribute.String("marketplace.code", string(code)))
	var zero T
	if code == CodeInternalError {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
		log.Error("operation failed", zap.String("op", c.op), zap.Error(err))
		return Response[T]{Code: code, Message: MsgInternalError, Data: zero}
	}
	log.Debug("operation rejected", zap.String("op", c.op), zap.String("code", string(code)), zap.Error(err))
	return Response[T]{Code: code, Message: err.Error(), Data: zero}
}

func (s *MarketPlaceService) AddMarket(ctx context.Context, name, address string) Response[string] {
	ctx, c := begin(ctx, "AddMarket")
	m := domain.Market{ID: uuid.New(), Name: name, Address: address}
	if err := s.repo.AddMarket(ctx, m); err != nil {
		return finish(s.log, c, "", "", err)
	}
	s.log.Info("market added", zap.Stringer("market_id", m.ID), zap.String("name", name))
	return finish(s.log, c, m.ID.String(), MsgMarketAdded, nil)
}

func (s *MarketPlaceService) GetMarketByID(ctx context.Context, marketID string) Response[*domain.Market] {
	ctx, c := begin(ctx, "GetMarketByID", attribute.String("market.id", marketID))
	m, err := s.market(ctx, marketID)
	return finish(s.log, c, m, MsgMarketFound, err)
}

func (s *MarketPlaceService) ListMarkets(ctx context.Context) Response[[]domain.Market] {
	ctx, c := begin(ctx, "ListMarkets")
	markets, err := s.repo.ListMarkets(ctx)
	return finish(s.log, c, markets, MsgMarketsListed, err)
}

func (s *MarketPlaceService) AddProduct(ctx context.Context, name string) Response[string] {
	ctx, c := begin(ctx, "AddProduct", attribute.String("product.name", name))
	_, err := s.repo.FindProductByName(ctx, name)
	switch {
	case err == nil:
		return finish(s.log, c, "", "", fail(ErrProductExists, "Product with name '%s' already exists.", name))
	case !errors.Is(err, repository.ErrNotFound):
		return finish(s.log, c, "", "", err)
	}
	if err := s.repo.AddProduct(ctx, domain.Product{Name: name}); err != nil {
		return finish(s.log, c, "", "", err)
	}
	s.log.Info("product added", zap.String("name", name))
	return finish(s.log, c, name, MsgProductAdded, nil)
}

func (s *MarketPlaceService) GetProductByName(ctx context.Context, name string) Response[*domain.Product] {
	ctx, c := begin(ctx, "GetProductByName", attribute.String("product.name", name))
	p, err := s.product(ctx, name)
	return finish(s.log, c, p, MsgProductFound, err)
}

// AddProductToMarket завозит товар в магазин: новая строка или пополнение существующей
func (s *MarketPlaceService) AddProductToMarket(ctx context.Context, marketID, productName string, amount int, price decimal.Decimal) Response[string] {
	ctx, c := begin(ctx, "AddProductToMarket",
		attribute.String("market.id", marketID),
		attribute.String("product.name", productName),
		attribute.Int("amount", amount),
	)
	if amount < 0 {
		return finish(s.log, c, "", "", fail(ErrInvalidNumber, "Amount can't be less than zero (%d).", amount))
	}
	if !price.IsPositive() {
		return finish(s.log, c, "", "", fail(ErrInvalidNumber, "Price can't be zero or less (%s).", price))
	}
	m, err := s.market(ctx, marketID)
	if err != nil {
		return finish(s.log, c, "", "", err)
	}
	if _, err := s.product(ctx, productName); err != nil {
		return finish(s.log, c, "", "", err)
	}
	err = s.repo.StockProduct(ctx, m.ID, productName, amount, price)
	if errors.Is(err, repository.ErrAmountOverflow) {
		err = fail(ErrInvalidNumber, "Amount %d would overflow the stock of '%s'.", amount, productName)
	}
	if err != nil {
		return finish(s.log, c, "", "", err)
	}
	s.log.Info("product stocked",
		zap.Stringer("market_id", m.ID),
		zap.String("product", productName),
		zap.Int("amount", amount),
		zap.Stringer("price", price),
	)
	return finish(s.log, c, productName, MsgProductAddedToMarket, nil)
}

func (s *MarketPlaceService) CheapestMarketForProduct(ctx context.Context, productName string) Response[*domain.Market] {
	ctx, c := begin(ctx, "CheapestMarketForProduct", attribute.String("product.name", productName))
	m, err := s.repo.CheapestMarketForProduct(ctx, productName)
	if errors.Is(err, repository.ErrNotFound) {
		err = fail(repository.ErrNotFound, "No market sells the product '%s'.", productName)
	}
	return finish(s.log, c, m, MsgCheapestMarketFound, err)
}

// AffordableProducts сколько штук каждого товара можно купить, потратив весь бюджет только на него
func (s *MarketPlaceService) AffordableProducts(ctx context.Context, marketID string, budget decimal.Decimal) Response[map[string]int] {
	ctx, c := begin(ctx, "AffordableProducts", attribute.String("market.id", marketID))
	if budget.IsNegative() {
		return finish[map[string]int](s.log, c, nil, "", fail(ErrInvalidNumber, "Budget can't be less than zero (%s).", budget))
	}
	m, err := s.market(ctx, marketID)
	if err != nil {
		return finish[map[string]int](s.log, c, nil, "", err)
	}
	products, err := s.repo.AffordableProducts(ctx, m.ID, budget)
	return finish(s.log, c, products, MsgAvailableProducts, err)
}

// BuyProducts считает полную стоимость и только потом списывает остатки, всё в одной транзакции
func (s *MarketPlaceService) BuyProducts(ctx context.Context, marketID string, items []domain.PurchaseItem) Response[decimal.Decimal] {
	ctx, c := begin(ctx, "BuyProducts",
		attribute.String("market.id", marketID),
		attribute.Int("items", len(items)),
	)
	m, err := s.market(ctx, marketID)
	if err != nil {
		return finish(s.log, c, decimal.Zero, "", err)
	}
	items, err = s.validateItems(ctx, items, "Can't buy less than zero products (%d).")
	if err != nil {
		return finish(s.log, c, decimal.Zero, "", err)
	}

	var total decimal.Decimal
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cost, err := s.repo.TotalCost(ctx, m.ID, items)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return fail(repository.ErrInsufficientStock, "Not enough stock to complete the purchase.")
		}
		if err != nil {
			return err
		}
		for _, it := range items {
			// zero price keeps the current one
			if err := s.repo.StockProduct(ctx, m.ID, it.ProductName, -it.Amount, decimal.Zero); err != nil {
				return err
			}
		}
		total = cost
		return nil
	})
	if err != nil {
		return finish(s.log, c, decimal.Zero, "", err)
	}
	s.log.Info("purchase completed", zap.Stringer("market_id", m.ID), zap.Int("items", len(items)), zap.Stringer("total", total))
	return finish(s.log, c, total, MsgPurchaseCompleted, nil)
}

func (s *MarketPlaceService) BestMarketForBatch(ctx context.Context, items []domain.PurchaseItem) Response[*domain.Market] {
	ctx, c := begin(ctx, "BestMarketForBatch", attribute.Int("items", len(items)))
	items, err := s.validateItems(ctx, items, "Can't request less than zero products (%d).")
	if err != nil {
		return finish[*domain.Market](s.log, c, nil, "", err)
	}
	m, err := s.repo.CheapestMarketForBatch(ctx, items)
	if errors.Is(err, repository.ErrNotFound) {
		err = fail(repository.ErrNotFound, "No market can fulfill the batch purchase requirements.")
	}
	return finish(s.log, c, m, MsgBestMarketForBatchFound, err)
}

func (s *MarketPlaceService) market(ctx context.Context, marketID string) (*domain.Market, error) {
	id, err := uuid.Parse(marketID)
	if err != nil {
		return nil, fail(ErrInvalidMarketID, "Market ID '%s' is not a valid identifier.", marketID)
	}
	m, err := s.repo.FindMarketByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(repository.ErrNotFound, "Market with ID %s was not found.", marketID)
	}
	return m, err
}

func (s *MarketPlaceService) product(ctx context.Context, name string) (*domain.Product, error) {
	p, err := s.repo.FindProductByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(repository.ErrNotFound, "Product '%s' was not found.", name)
	}
	return p, err
}

// validateItems проверяет позиции в порядке запроса (первая ошибка побеждает)
// и склеивает повторы одного товара, сохраняя позицию первого вхождения
func (s *MarketPlaceService) validateItems(ctx context.Context, items []domain.PurchaseItem, negativeMsg string) ([]domain.PurchaseItem, error) {
	merged := make([]domain.PurchaseItem, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		if it.Amount < 0 {
			return nil, fail(ErrInvalidNumber, negativeMsg, it.Amount)
		}
		if i, ok := pos[it.ProductName]; ok {
			sum, err := repository.AddAmount(merged[i].Amount, it.Amount)
			if err != nil {
				return nil, fail(ErrInvalidNumber, "Total amount of '%s' is too large.", it.ProductName)
			}
			merged[i].Amount = sum
			continue
		}
		if _, err := s.product(ctx, it.ProductName); err != nil {
			return nil, err
		}
		pos[it.ProductName] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}
