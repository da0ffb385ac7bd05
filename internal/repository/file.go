package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace/internal/domain"
)

// Заголовки и разделитель CSV-леджеров. Экранирования нет: запятая в имени или адресе ломает файл.
const (
	ProductsHeader          = "Name"
	MarketsHeader           = "MarketId,MarketName,Address"
	ProductsInMarketsHeader = "MarketId,ProductName,Amount,Price"

	delimiter = ","
)

// Ledgers пути к трём файлам FileStore
type Ledgers struct {
	Products          string
	Markets           string
	ProductsInMarkets string
}

// LedgersIn стандартные имена леджеров внутри каталога
func LedgersIn(dir string) Ledgers {
	return Ledgers{
		Products:          filepath.Join(dir, "products.csv"),
		Markets:           filepath.Join(dir, "markets.csv"),
		ProductsInMarkets: filepath.Join(dir, "productsInMarkets.csv"),
	}
}

// FileStore хранилище поверх трёх плоских файлов. Всё состояние держится в памяти,
// каждая мутация сначала меняет кэш и затем синхронно перезаписывает затронутый файл целиком.
// Безопасно только для одного процесса.
type FileStore struct {
	mu      sync.RWMutex
	ledgers Ledgers
	log     *zap.Logger

	products []domain.Product
	markets  []domain.Market
	lines    []domain.ProductInMarket
}

var _ Store = (*FileStore)(nil)

// NewFileStore создаёт отсутствующие леджеры с заголовками и загружает их в кэш
func NewFileStore(ledgers Ledgers, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{ledgers: ledgers, log: logger}
	for _, f := range []struct{ path, header string }{
		{ledgers.Products, ProductsHeader},
		{ledgers.Markets, MarketsHeader},
		{ledgers.ProductsInMarkets, ProductsInMarketsHeader},
	} {
		if err := ensureLedger(f.path, f.header); err != nil {
			return nil, err
		}
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Debug("file store loaded",
		zap.Int("products", len(s.products)),
		zap.Int("markets", len(s.markets)),
		zap.Int("lines", len(s.lines)),
	)
	return s, nil
}

func ensureLedger(path, header string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(header+"\n"), 0o644); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) load() error {
	rows, err := readLedger(s.ledgers.Products, ProductsHeader)
	if err != nil {
		return err
	}
	for _, r := range rows {
		s.products = append(s.products, domain.Product{Name: r.fields[0]})
	}

	rows, err = readLedger(s.ledgers.Markets, MarketsHeader)
	if err != nil {
		return err
	}
	for _, r := range rows {
		m, err := parseMarket(r.fields)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", s.ledgers.Markets, r.num, err)
		}
		s.markets = append(s.markets, m)
	}

	rows, err = readLedger(s.ledgers.ProductsInMarkets, ProductsInMarketsHeader)
	if err != nil {
		return err
	}
	for _, r := range rows {
		l, err := parseLine(r.fields)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", s.ledgers.ProductsInMarkets, r.num, err)
		}
		s.lines = append(s.lines, l)
	}
	return nil
}

type ledgerRow struct {
	num    int
	fields []string
}

func readLedger(path, header string) ([]ledgerRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	raw := strings.Split(text, "\n")
	if strings.TrimSpace(raw[0]) != header {
		return nil, fmt.Errorf("%s: unexpected header %q", path, raw[0])
	}
	want := len(strings.Split(header, delimiter))
	rows := make([]ledgerRow, 0, len(raw))
	for i, line := range raw[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, delimiter)
		if len(fields) != want {
			return nil, fmt.Errorf("%s:%d: expected %d fields, got %d", path, i+2, want, len(fields))
		}
		rows = append(rows, ledgerRow{num: i + 2, fields: fields})
	}
	return rows, nil
}

func parseMarket(f []string) (domain.Market, error) {
	id, err := uuid.Parse(f[0])
	if err != nil {
		return domain.Market{}, fmt.Errorf("market id: %w", err)
	}
	return domain.Market{ID: id, Name: f[1], Address: f[2]}, nil
}

func parseLine(f []string) (domain.ProductInMarket, error) {
	id, err := uuid.Parse(f[0])
	if err != nil {
		return domain.ProductInMarket{}, fmt.Errorf("market id: %w", err)
	}
	amount, err := strconv.Atoi(f[2])
	if err != nil {
		return domain.ProductInMarket{}, fmt.Errorf("amount: %w", err)
	}
	price, err := decimal.NewFromString(f[3])
	if err != nil {
		return domain.ProductInMarket{}, fmt.Errorf("price: %w", err)
	}
	return domain.ProductInMarket{MarketID: id, ProductName: f[1], Amount: amount, Price: price}, nil
}

// writeLedger пишет во временный файл и переименовывает его, читатель не увидит половину файла
func writeLedger(path, header string, rows []string) error {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) flushProducts() error {
	rows := make([]string, len(s.products))
	for i, p := range s.products {
		rows[i] = p.Name
	}
	return writeLedger(s.ledgers.Products, ProductsHeader, rows)
}

func (s *FileStore) flushMarkets() error {
	rows := make([]string, len(s.markets))
	for i, m := range s.markets {
		rows[i] = strings.Join([]string{m.ID.String(), m.Name, m.Address}, delimiter)
	}
	return writeLedger(s.ledgers.Markets, MarketsHeader, rows)
}

func (s *FileStore) flushLines() error {
	rows := make([]string, len(s.lines))
	for i, l := range s.lines {
		rows[i] = formatLine(l)
	}
	return writeLedger(s.ledgers.ProductsInMarkets, ProductsInMarketsHeader, rows)
}

// formatLine цена в инвариантной записи: точка, без разделителя тысяч, масштаб как при вводе
func formatLine(l domain.ProductInMarket) string {
	return strings.Join([]string{
		l.MarketID.String(),
		l.ProductName,
		strconv.Itoa(l.Amount),
		FormatPrice(l.Price),
	}, delimiter)
}

// transaction-aware locking helpers
type fileTxKey struct{}

func (s *FileStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(fileTxKey{}).(*FileStore)
	return owner == s
}

func (s *FileStore) rlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.RLock()
	}
}
func (s *FileStore) runlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.RUnlock()
	}
}
func (s *FileStore) wlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.Lock()
	}
}
func (s *FileStore) wunlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithTransaction держит блокировку записи на всё время fn. При ошибке кэш
// откатывается к снимку и леджеры перезаписываются.
func (s *FileStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, markets, lines := slices.Clone(s.products), slices.Clone(s.markets), slices.Clone(s.lines)
	if err := fn(context.WithValue(ctx, fileTxKey{}, s)); err != nil {
		s.products, s.markets, s.lines = products, markets, lines
		if ferr := errors.Join(s.flushProducts(), s.flushMarkets(), s.flushLines()); ferr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", ferr))
		}
		return err
	}
	return nil
}

func (s *FileStore) AddMarket(ctx context.Context, m domain.Market) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if s.marketIndex(m.ID) >= 0 {
		return fmt.Errorf("market %s: %w", m.ID, ErrAlreadyExists)
	}
	s.markets = append(s.markets, m)
	if err := s.flushMarkets(); err != nil {
		s.markets = s.markets[:len(s.markets)-1]
		return err
	}
	s.log.Debug("market ledger flushed", zap.Int("markets", len(s.markets)))
	return nil
}

func (s *FileStore) FindMarketByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	i := s.marketIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	cp := s.markets[i]
	return &cp, nil
}

func (s *FileStore) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make([]domain.Market, len(s.markets))
	copy(out, s.markets)
	return out, nil
}

func (s *FileStore) AddProduct(ctx context.Context, p domain.Product) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if s.productIndex(p.Name) >= 0 {
		return fmt.Errorf("product %q: %w", p.Name, ErrAlreadyExists)
	}
	s.products = append(s.products, p)
	if err := s.flushProducts(); err != nil {
		s.products = s.products[:len(s.products)-1]
		return err
	}
	s.log.Debug("product ledger flushed", zap.Int("products", len(s.products)))
	return nil
}

func (s *FileStore) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	i := s.productIndex(name)
	if i < 0 {
		return nil, ErrNotFound
	}
	cp := s.products[i]
	return &cp, nil
}

func (s *FileStore) StockProduct(ctx context.Context, marketID uuid.UUID, productName string, delta int, price decimal.Decimal) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)

	i := slices.IndexFunc(s.lines, func(l domain.ProductInMarket) bool {
		return l.MarketID == marketID && l.ProductName == productName
	})
	if i < 0 {
		if delta < 0 {
			return ErrNegativeAmount
		}
		s.lines = append(s.lines, domain.ProductInMarket{MarketID: marketID, ProductName: productName, Amount: delta, Price: price})
		if err := s.flushLines(); err != nil {
			s.lines = s.lines[:len(s.lines)-1]
			return err
		}
		return nil
	}

	prev := s.lines[i]
	next := prev
	amount, err := AddAmount(prev.Amount, delta)
	if err != nil {
		return fmt.Errorf("stock %q: %w", productName, err)
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	next.Amount = amount
	if price.IsPositive() {
		next.Price = price
	}
	s.lines[i] = next
	if err := s.flushLines(); err != nil {
		s.lines[i] = prev
		return err
	}
	return nil
}

func (s *FileStore) CheapestMarketForProduct(ctx context.Context, productName string) (*domain.Market, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	l, ok := cheapestLine(s.lines, productName)
	if !ok {
		return nil, ErrNotFound
	}
	i := s.marketIndex(l.MarketID)
	if i < 0 {
		return nil, ErrNotFound
	}
	cp := s.markets[i]
	return &cp, nil
}

func (s *FileStore) AffordableProducts(ctx context.Context, marketID uuid.UUID, budget decimal.Decimal) (map[string]int, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	return affordable(s.lines, marketID, budget), nil
}

func (s *FileStore) TotalCost(ctx context.Context, marketID uuid.UUID, items []domain.PurchaseItem) (decimal.Decimal, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	return totalCost(s.lines, marketID, items)
}

func (s *FileStore) CheapestMarketForBatch(ctx context.Context, items []domain.PurchaseItem) (*domain.Market, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	m, ok := cheapestBatch(s.markets, s.lines, items)
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) marketIndex(id uuid.UUID) int {
	return slices.IndexFunc(s.markets, func(m domain.Market) bool { return m.ID == id })
}

func (s *FileStore) productIndex(name string) int {
	return slices.IndexFunc(s.products, func(p domain.Product) bool { return p.Name == name })
}
