package service

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

func setup(t *testing.T) *MarketPlaceService {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewMarketPlaceService(store, store, zap.NewNop())
}

func setupFile(t *testing.T) *MarketPlaceService {
	t.Helper()
	store, err := repository.NewFileStore(repository.LedgersIn(t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	return NewMarketPlaceService(store, store, zap.NewNop())
}

func setupSQLiteFile(t *testing.T) *MarketPlaceService {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "marketplace.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewMarketPlaceService(store, store, zap.NewNop())
}

var backends = map[string]func(*testing.T) *MarketPlaceService{
	"sqlite":      setup,
	"sqlite-file": setupSQLiteFile,
	"file":        setupFile,
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustMarket(t *testing.T, s *MarketPlaceService, name string) string {
	t.Helper()
	r := s.AddMarket(context.Background(), name, name+" street")
	require.True(t, r.OK(), r.Message)
	return r.Data
}

func mustProduct(t *testing.T, s *MarketPlaceService, names ...string) {
	t.Helper()
	for _, n := range names {
		r := s.AddProduct(context.Background(), n)
		require.True(t, r.OK(), r.Message)
	}
}

func mustStock(t *testing.T, s *MarketPlaceService, marketID, product string, amount int, price string) {
	t.Helper()
	r := s.AddProductToMarket(context.Background(), marketID, product, amount, dec(price))
	require.True(t, r.OK(), r.Message)
}

func TestMarkets(t *testing.T) {
	ctx := context.Background()
	s := setup(t)

	r := s.AddMarket(ctx, "Corner", "Main 1")
	require.Equal(t, CodeSuccess, r.Code)
	assert.Equal(t, MsgMarketAdded, r.Message)
	_, err := uuid.Parse(r.Data)
	require.NoError(t, err)

	got := s.GetMarketByID(ctx, r.Data)
	require.Equal(t, CodeSuccess, got.Code)
	assert.Equal(t, "Corner", got.Data.Name)
	assert.Equal(t, "Main 1", got.Data.Address)

	missing := uuid.NewString()
	nf := s.GetMarketByID(ctx, missing)
	assert.Equal(t, CodeNotFound, nf.Code)
	assert.Contains(t, nf.Message, missing)
	assert.Nil(t, nf.Data)

	assert.Equal(t, CodeBadRequest, s.GetMarketByID(ctx, "not-a-uuid").Code)

	second := mustMarket(t, s, "Second")
	list := s.ListMarkets(ctx)
	require.Equal(t, CodeSuccess, list.Code)
	require.Len(t, list.Data, 2)
	assert.Equal(t, r.Data, list.Data[0].ID.String())
	assert.Equal(t, second, list.Data[1].ID.String())
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	s := setup(t)

	r := s.AddProduct(ctx, "apple")
	require.Equal(t, CodeSuccess, r.Code)
	assert.Equal(t, "apple", r.Data)

	dup := s.AddProduct(ctx, "apple")
	assert.Equal(t, CodeConflict, dup.Code)
	assert.Equal(t, "Product with name 'apple' already exists.", dup.Message)

	assert.Equal(t, CodeSuccess, s.AddProduct(ctx, "Apple").Code, "names are case sensitive")

	got := s.GetProductByName(ctx, "apple")
	require.Equal(t, CodeSuccess, got.Code)
	assert.Equal(t, "apple", got.Data.Name)

	assert.Equal(t, CodeNotFound, s.GetProductByName(ctx, "pear").Code)
}

func TestAddProductToMarket_Validation(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	m := mustMarket(t, s, "A")
	mustProduct(t, s, "apple")

	cases := []struct {
		name    string
		market  string
		product string
		amount  int
		price   string
		want    Code
	}{
		{"negative amount", m, "apple", -1, "1", CodeBadRequest},
		{"zero price", m, "apple", 1, "0", CodeBadRequest},
		{"negative price", m, "apple", 1, "-2", CodeBadRequest},
		// amount is checked before the market
		{"amount before market", uuid.NewString(), "apple", -1, "1", CodeBadRequest},
		{"unknown market", uuid.NewString(), "apple", 1, "1", CodeNotFound},
		{"invalid market id", "42", "apple", 1, "1", CodeBadRequest},
		{"unknown product", m, "pear", 1, "1", CodeNotFound},
		{"zero amount", m, "apple", 0, "1", CodeSuccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := s.AddProductToMarket(ctx, tc.market, tc.product, tc.amount, dec(tc.price))
			assert.Equal(t, tc.want, r.Code, r.Message)
		})
	}
}

func TestCheapestMarketForProduct(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	mustProduct(t, s, "milk", "bread")
	a := mustMarket(t, s, "A")
	b := mustMarket(t, s, "B")
	mustStock(t, s, a, "milk", 2, "1.10")
	mustStock(t, s, b, "milk", 1, "1.05")

	r := s.CheapestMarketForProduct(ctx, "milk")
	require.Equal(t, CodeSuccess, r.Code)
	assert.Equal(t, b, r.Data.ID.String())

	assert.Equal(t, CodeNotFound, s.CheapestMarketForProduct(ctx, "bread").Code)
	assert.Equal(t, CodeNotFound, s.CheapestMarketForProduct(ctx, "caviar").Code)
}

func TestAffordableProducts(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	mustProduct(t, s, "apple", "banana")
	m := mustMarket(t, s, "A")
	mustStock(t, s, m, "apple", 10, "2.00")
	mustStock(t, s, m, "banana", 5, "1.00")

	r := s.AffordableProducts(ctx, m, dec("9"))
	require.Equal(t, CodeSuccess, r.Code)
	assert.Equal(t, map[string]int{"apple": 4, "banana": 5}, r.Data)

	assert.Equal(t, CodeBadRequest, s.AffordableProducts(ctx, m, dec("-1")).Code)
	assert.Equal(t, CodeNotFound, s.AffordableProducts(ctx, uuid.NewString(), dec("1")).Code)
}

func TestBuyProducts(t *testing.T) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)
			mustProduct(t, s, "apple", "banana")
			m := mustMarket(t, s, "A")
			mustStock(t, s, m, "apple", 10, "2.00")
			mustStock(t, s, m, "banana", 5, "1.00")

			r := s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "apple", Amount: 3}})
			require.Equal(t, CodeSuccess, r.Code, r.Message)
			assert.True(t, dec("6").Equal(r.Data), "total %s", r.Data)

			left := s.AffordableProducts(ctx, m, dec("100"))
			assert.Equal(t, 7, left.Data["apple"])

			// all or nothing: banana is short, apple must stay at 7
			short := s.BuyProducts(ctx, m, []domain.PurchaseItem{
				{ProductName: "apple", Amount: 1},
				{ProductName: "banana", Amount: 6},
			})
			assert.Equal(t, CodeInsufficientStock, short.Code)
			left = s.AffordableProducts(ctx, m, dec("100"))
			assert.Equal(t, map[string]int{"apple": 7, "banana": 5}, left.Data)

			// duplicates are merged before the stock check
			merged := s.BuyProducts(ctx, m, []domain.PurchaseItem{
				{ProductName: "banana", Amount: 3},
				{ProductName: "banana", Amount: 3},
			})
			assert.Equal(t, CodeInsufficientStock, merged.Code)

			// buying out a line keeps it with zero amount
			out := s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "banana", Amount: 5}})
			require.Equal(t, CodeSuccess, out.Code)
			assert.Equal(t, CodeNotFound, s.CheapestMarketForProduct(ctx, "banana").Code)
		})
	}
}

func TestBuyProducts_Validation(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	mustProduct(t, s, "apple", "pear")
	m := mustMarket(t, s, "A")
	mustStock(t, s, m, "apple", 10, "2.00")

	// first failing item wins
	r := s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "ghost", Amount: 1}, {ProductName: "apple", Amount: -1}})
	assert.Equal(t, CodeNotFound, r.Code)
	r = s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "apple", Amount: -1}, {ProductName: "ghost", Amount: 1}})
	assert.Equal(t, CodeBadRequest, r.Code)

	// product exists but this market never stocked it
	r = s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "pear", Amount: 1}})
	assert.Equal(t, CodeInsufficientStock, r.Code)

	assert.Equal(t, CodeNotFound, s.BuyProducts(ctx, uuid.NewString(), nil).Code)

	empty := s.BuyProducts(ctx, m, nil)
	require.Equal(t, CodeSuccess, empty.Code)
	assert.True(t, empty.Data.IsZero())
}

func TestBestMarketForBatch(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	mustProduct(t, s, "apple", "banana")
	a := mustMarket(t, s, "A")
	b := mustMarket(t, s, "B")
	mustStock(t, s, a, "apple", 10, "1.00")
	mustStock(t, s, a, "banana", 1, "1.00")
	mustStock(t, s, b, "apple", 10, "1.20")
	mustStock(t, s, b, "banana", 10, "0.50")

	r := s.BestMarketForBatch(ctx, []domain.PurchaseItem{{ProductName: "apple", Amount: 2}, {ProductName: "banana", Amount: 1}})
	require.Equal(t, CodeSuccess, r.Code)
	// a: 3.00, b: 2.90
	assert.Equal(t, b, r.Data.ID.String())

	r = s.BestMarketForBatch(ctx, []domain.PurchaseItem{{ProductName: "banana", Amount: 1}, {ProductName: "banana", Amount: 1}})
	require.Equal(t, CodeSuccess, r.Code)
	assert.Equal(t, b, r.Data.ID.String(), "merged banana amount is 2, only b has it")

	nf := s.BestMarketForBatch(ctx, []domain.PurchaseItem{{ProductName: "apple", Amount: 11}})
	assert.Equal(t, CodeNotFound, nf.Code)
	assert.Nil(t, nf.Data)

	assert.Equal(t, CodeNotFound, s.BestMarketForBatch(ctx, []domain.PurchaseItem{{ProductName: "ghost", Amount: 1}}).Code)
	assert.Equal(t, CodeBadRequest, s.BestMarketForBatch(ctx, []domain.PurchaseItem{{ProductName: "apple", Amount: -2}}).Code)
}

func TestInternalErrorIsLoggedAndHidden(t *testing.T) {
	store, err := repository.NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewMarketPlaceService(store, store, zap.New(core))
	// closed database: every query fails with a driver error
	require.NoError(t, store.Close())

	r := s.ListMarkets(context.Background())
	assert.Equal(t, CodeInternalError, r.Code)
	assert.Equal(t, MsgInternalError, r.Message)
	require.Equal(t, 1, logs.FilterMessage("operation failed").Len())
	assert.Equal(t, "ListMarkets", logs.FilterMessage("operation failed").All()[0].ContextMap()["op"])
}

func TestCodeHTTPStatus(t *testing.T) {
	assert.Equal(t, 200, CodeSuccess.HTTPStatus())
	assert.Equal(t, 409, CodeConflict.HTTPStatus())
	assert.Equal(t, 404, CodeNotFound.HTTPStatus())
	assert.Equal(t, 400, CodeBadRequest.HTTPStatus())
	assert.Equal(t, 400, CodeInsufficientStock.HTTPStatus())
	assert.Equal(t, 500, CodeInternalError.HTTPStatus())
}

func TestBuyProducts_MergedAmountOverflow(t *testing.T) {
	ctx := context.Background()
	s := setup(t)
	mustProduct(t, s, "apple")
	m := mustMarket(t, s, "A")
	mustStock(t, s, m, "apple", 10, "2")

	r := s.BuyProducts(ctx, m, []domain.PurchaseItem{
		{ProductName: "apple", Amount: math.MaxInt},
		{ProductName: "apple", Amount: math.MaxInt},
		{ProductName: "apple", Amount: 3},
	})
	assert.Equal(t, CodeBadRequest, r.Code, r.Message)
	assert.True(t, r.Data.IsZero())

	left := s.AffordableProducts(ctx, m, dec("1000"))
	assert.Equal(t, 10, left.Data["apple"])

	batch := s.BestMarketForBatch(ctx, []domain.PurchaseItem{
		{ProductName: "apple", Amount: math.MaxInt},
		{ProductName: "apple", Amount: 1},
	})
	assert.Equal(t, CodeBadRequest, batch.Code)
}

func TestAddProductToMarket_Overflow(t *testing.T) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)
			mustProduct(t, s, "apple")
			m := mustMarket(t, s, "A")
			mustStock(t, s, m, "apple", 10, "2")

			r := s.AddProductToMarket(ctx, m, "apple", math.MaxInt, dec("2"))
			assert.Equal(t, CodeBadRequest, r.Code, r.Message)

			left := s.AffordableProducts(ctx, m, dec("1000"))
			assert.Equal(t, 10, left.Data["apple"])
		})
	}
}

func TestConcurrentPurchasesAndRestocks(t *testing.T) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)
			mustProduct(t, s, "apple")
			m := mustMarket(t, s, "A")
			mustStock(t, s, m, "apple", 100, "1")

			var wg sync.WaitGroup
			codes := make(chan Code, 150)
			for i := 0; i < 150; i++ {
				wg.Add(1)
				go func(buy bool) {
					defer wg.Done()
					if buy {
						codes <- s.BuyProducts(ctx, m, []domain.PurchaseItem{{ProductName: "apple", Amount: 1}}).Code
						return
					}
					codes <- s.AddProductToMarket(ctx, m, "apple", 1, dec("1")).Code
				}(i%3 != 2)
			}
			wg.Wait()
			close(codes)
			for c := range codes {
				require.Equal(t, CodeSuccess, c)
			}

			// 100 buys and 50 restocks of one apple each
			left := s.AffordableProducts(ctx, m, dec("1000"))
			require.Equal(t, CodeSuccess, left.Code)
			assert.Equal(t, 50, left.Data["apple"])
		})
	}
}
