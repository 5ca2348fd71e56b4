package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale channels. Reseller exists in the schema for parity with the channel
// column but no entry point records reseller-channel sales yet.
const (
	ChannelStore    = "store"
	ChannelReseller = "reseller"
	ChannelManual   = "manual"
)

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	StockQty      int             `json:"stock_qty"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	RetailPrice   decimal.Decimal `json:"retail_price"`
	ResellerPrice decimal.Decimal `json:"reseller_price"`
	MinLevel      int             `json:"min_level"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockIn is an append-only receipt record. CostPerUnit is the resolved cost
// actually paid; the price overrides are nullable and only present when the
// receipt also repriced the product.
type StockIn struct {
	ID               int64               `json:"id"`
	ProductID        int64               `json:"product_id"`
	Qty              int                 `json:"qty"`
	CostPerUnit      decimal.Decimal     `json:"cost_per_unit"`
	NewRetailPrice   decimal.NullDecimal `json:"new_retail_price"`
	NewResellerPrice decimal.NullDecimal `json:"new_reseller_price"`
	CreatedAt        time.Time           `json:"created_at"`
}

type Sale struct {
	ID          int64           `json:"id"`
	Ref         string          `json:"ref"`
	Channel     string          `json:"channel"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []SaleItem      `json:"items,omitempty"`
}

// SaleItem snapshots the unit price at the time of sale. Later product price
// changes never alter historical sales.
type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku,omitempty"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type Reseller struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type ResellerInventory struct {
	ID          int64           `json:"id"`
	ResellerID  int64           `json:"reseller_id"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         int             `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
