package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/database"
	"github.com/wicaksono/tokopos/internal/models"
)

type UpsertProductRequest struct {
	SKU           string
	Name          string
	Unit          string
	RetailPrice   decimal.Decimal
	ResellerPrice decimal.Decimal
	MinLevel      int
	Notes         string
}

// UpsertProduct creates or updates a product keyed on SKU. It only touches
// the descriptive fields and prices; stock and cost are owned by the
// stock-in and sale paths.
func UpsertProduct(ctx context.Context, db *sql.DB, req UpsertProductRequest) (*models.Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", database.ErrInvalidInput)
	}
	if req.Unit == "" {
		req.Unit = "pcs"
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, unit, stock_qty, cost_price, retail_price, reseller_price, min_level, notes, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			unit = EXCLUDED.unit,
			retail_price = EXCLUDED.retail_price,
			reseller_price = EXCLUDED.reseller_price,
			min_level = EXCLUDED.min_level,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, sku, name, unit, stock_qty, cost_price, retail_price, reseller_price, min_level, notes, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		req.SKU, req.Name, req.Unit, req.RetailPrice, req.ResellerPrice, req.MinLevel, req.Notes,
	).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Unit,
		&product.StockQty,
		&product.CostPrice,
		&product.RetailPrice,
		&product.ResellerPrice,
		&product.MinLevel,
		&product.Notes,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	return product, nil
}

func GetProductBySKU(ctx context.Context, db *sql.DB, sku string) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, unit, stock_qty, cost_price, retail_price, reseller_price, min_level, notes, created_at, updated_at
		FROM products
		WHERE sku = $1`

	err := db.QueryRowContext(ctx, query, sku).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Unit,
		&product.StockQty,
		&product.CostPrice,
		&product.RetailPrice,
		&product.ResellerPrice,
		&product.MinLevel,
		&product.Notes,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// SearchProducts lists products ordered by name, optionally filtered by a
// case-insensitive substring match on SKU or name. Dashboard listing, so the
// result is capped rather than paginated.
func SearchProducts(ctx context.Context, db *sql.DB, q string, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, sku, name, unit, stock_qty, cost_price, retail_price, reseller_price, min_level, notes, created_at, updated_at
		FROM products`

	args := []interface{}{}
	if q != "" {
		args = append(args, "%"+q+"%")
		query += ` WHERE sku ILIKE $1 OR name ILIKE $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY name ASC LIMIT $%d`, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Unit,
			&product.StockQty,
			&product.CostPrice,
			&product.RetailPrice,
			&product.ResellerPrice,
			&product.MinLevel,
			&product.Notes,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

type DashboardTotals struct {
	ProductCount int64           `json:"product_count"`
	TotalQty     int64           `json:"total_qty"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// GetDashboardTotals sums the catalog: product count, units on hand and the
// retail value of the stock.
func GetDashboardTotals(ctx context.Context, db *sql.DB) (*DashboardTotals, error) {
	totals := &DashboardTotals{}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(stock_qty), 0),
		       COALESCE(SUM(stock_qty * retail_price), 0)
		FROM products`

	err := db.QueryRowContext(ctx, query).Scan(
		&totals.ProductCount,
		&totals.TotalQty,
		&totals.TotalValue,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	return totals, nil
}
