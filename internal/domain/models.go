package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Market точка продаж. ID генерируется при создании и больше не меняется.
type Market struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}

// Product товар каталога, имя является натуральным ключом (регистр важен)
type Product struct {
	Name string `json:"name"`
}

// ProductInMarket строка остатков: сколько товара есть в магазине и по какой цене
type ProductInMarket struct {
	MarketID    uuid.UUID       `json:"market_id"`
	ProductName string          `json:"product_name"`
	Amount      int             `json:"amount"`
	Price       decimal.Decimal `json:"price"`
}

// PurchaseItem позиция в запросе на покупку или подбор магазина
type PurchaseItem struct {
	ProductName string `json:"product_name" binding:"required"`
	Amount      int    `json:"amount"`
}
