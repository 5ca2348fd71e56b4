package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/models"
	"github.com/wicaksono/tokopos/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := dec(t, s)
	return &d
}

func createProduct(t *testing.T, db *sql.DB, sku, name, retailPrice string) *models.Product {
	t.Helper()
	product, err := store.UpsertProduct(context.Background(), db, store.UpsertProductRequest{
		SKU:         sku,
		Name:        name,
		RetailPrice: dec(t, retailPrice),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return product
}

func receiveStock(t *testing.T, db *sql.DB, sku string, qty int, costPerUnit string) *models.StockIn {
	t.Helper()
	receipt, err := store.ApplyStockIn(context.Background(), db, store.StockInRequest{
		SKU:         sku,
		Qty:         qty,
		CostPerUnit: decPtr(t, costPerUnit),
	})
	if err != nil {
		t.Fatalf("stock in %s: %v", sku, err)
	}
	return receipt
}

// insertSaleAt and insertStockInAt write events with explicit timestamps so
// ledger date-window tests can pin events to specific days.
func insertSaleAt(t *testing.T, db *sql.DB, productID int64, ref string, qty int, price string, at time.Time) {
	t.Helper()

	var saleID int64
	total := dec(t, price).Mul(decimal.NewFromInt(int64(qty)))
	err := db.QueryRow(
		`INSERT INTO sales (ref, channel, total_amount, created_at)
		 VALUES ($1, 'store', $2, $3)
		 RETURNING id`,
		ref, total, at).Scan(&saleID)
	if err != nil {
		t.Fatalf("insert sale %s: %v", ref, err)
	}

	_, err = db.Exec(
		`INSERT INTO sale_items (sale_id, product_id, qty, price)
		 VALUES ($1, $2, $3, $4)`,
		saleID, productID, qty, dec(t, price))
	if err != nil {
		t.Fatalf("insert sale item for %s: %v", ref, err)
	}
}

func insertStockInAt(t *testing.T, db *sql.DB, productID int64, qty int, cost string, at time.Time) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO stock_in (product_id, qty, cost_per_unit, created_at)
		 VALUES ($1, $2, $3, $4)`,
		productID, qty, dec(t, cost), at)
	if err != nil {
		t.Fatalf("insert stock_in: %v", err)
	}
}
