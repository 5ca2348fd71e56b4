package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/database"
	"github.com/wicaksono/tokopos/internal/models"
)

type StockInRequest struct {
	SKU string
	Qty int

	// CostPerUnit nil means carry-forward: reuse the product's stored cost.
	CostPerUnit *decimal.Decimal

	// Price overrides. Nil leaves the corresponding product price untouched.
	NewRetailPrice   *decimal.Decimal
	NewResellerPrice *decimal.Decimal
}

// ApplyStockIn records a stock receipt and mutates the product in one
// transaction: append the stock_in row, increment stock, overwrite the
// stored cost with the resolved cost (cost tracks the latest purchase, not a
// weighted average) and apply any price overrides. Either everything
// persists or nothing does.
//
// The product must already exist; stock-in never auto-creates products.
func ApplyStockIn(ctx context.Context, db *sql.DB, req StockInRequest) (*models.StockIn, error) {
	if req.Qty <= 0 {
		return nil, fmt.Errorf("%w: stock-in qty must be > 0, got %d", database.ErrInvalidInput, req.Qty)
	}

	var receipt *models.StockIn

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var productID int64
		var currentCost decimal.Decimal

		err := tx.QueryRowContext(ctx,
			`SELECT id, cost_price
			 FROM products
			 WHERE sku = $1
			 FOR UPDATE`,
			req.SKU).Scan(&productID, &currentCost)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product %s: %w", req.SKU, err)
		}

		cost := currentCost
		if req.CostPerUnit != nil {
			cost = *req.CostPerUnit
		}

		newRetail := nullDecimal(req.NewRetailPrice)
		newReseller := nullDecimal(req.NewResellerPrice)

		receipt = &models.StockIn{
			ProductID:        productID,
			Qty:              req.Qty,
			CostPerUnit:      cost,
			NewRetailPrice:   newRetail,
			NewResellerPrice: newReseller,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO stock_in (product_id, qty, cost_per_unit, new_retail_price, new_reseller_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, created_at`,
			productID, req.Qty, cost, newRetail, newReseller,
		).Scan(&receipt.ID, &receipt.CreatedAt)
		if err != nil {
			return fmt.Errorf("create stock_in: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products
			 SET stock_qty = stock_qty + $1,
			     cost_price = $2,
			     retail_price = COALESCE($3, retail_price),
			     reseller_price = COALESCE($4, reseller_price),
			     updated_at = NOW()
			 WHERE id = $5`,
			req.Qty, cost, newRetail, newReseller, productID)
		if err != nil {
			return fmt.Errorf("apply stock_in to product: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
