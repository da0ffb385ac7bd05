package repository

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain"
)

// Ценовые алгоритмы общие для обоих хранилищ. Строки передаются в порядке вставки,
// поэтому при равных ценах побеждает первая встреченная строка (или магазин).

func cheapestLine(lines []domain.ProductInMarket, productName string) (domain.ProductInMarket, bool) {
	var best domain.ProductInMarket
	found := false
	for _, l := range lines {
		if l.ProductName != productName || l.Amount <= 0 {
			continue
		}
		// strictly lower only: ties keep the earlier line
		if found && !l.Price.LessThan(best.Price) {
			continue
		}
		best = l
		found = true
	}
	return best, found
}

// affordable считает для каждого товара отдельно, сколько штук можно купить на весь бюджет
func affordable(lines []domain.ProductInMarket, marketID uuid.UUID, budget decimal.Decimal) map[string]int {
	out := make(map[string]int)
	for _, l := range lines {
		if l.MarketID != marketID || l.Amount <= 0 {
			continue
		}
		if !l.Price.IsPositive() || l.Price.GreaterThan(budget) {
			continue
		}
		out[l.ProductName] = maxAffordable(budget, l.Price, l.Amount)
	}
	return out
}

// maxAffordable = min(floor(budget/price), amount), без перехода к float
func maxAffordable(budget, price decimal.Decimal, amount int) int {
	q, _ := budget.QuoRem(price, 0)
	if q.LessThan(decimal.NewFromInt(int64(amount))) {
		return int(q.IntPart())
	}
	return amount
}

func totalCost(lines []domain.ProductInMarket, marketID uuid.UUID, items []domain.PurchaseItem) (decimal.Decimal, error) {
	stock := make(map[string]domain.ProductInMarket)
	for _, l := range lines {
		if l.MarketID != marketID {
			continue
		}
		if _, ok := stock[l.ProductName]; !ok {
			stock[l.ProductName] = l
		}
	}
	total := decimal.Zero
	for _, it := range items {
		l, ok := stock[it.ProductName]
		if !ok || l.Amount < it.Amount {
			return decimal.Zero, ErrInsufficientStock
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(it.Amount))))
	}
	return total, nil
}

func cheapestBatch(markets []domain.Market, lines []domain.ProductInMarket, items []domain.PurchaseItem) (*domain.Market, bool) {
	var best *domain.Market
	var lowest decimal.Decimal
	for i := range markets {
		cost, err := totalCost(lines, markets[i].ID, items)
		if err != nil {
			continue
		}
		if best != nil && !cost.LessThan(lowest) {
			continue
		}
		m := markets[i]
		best = &m
		lowest = cost
	}
	return best, best != nil
}
