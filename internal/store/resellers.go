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

func CreateReseller(ctx context.Context, db *sql.DB, name, phone string) (*models.Reseller, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: reseller name is required", database.ErrInvalidInput)
	}

	reseller := &models.Reseller{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO resellers (name, phone, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING id, name, phone, created_at`,
		name, phone).Scan(
		&reseller.ID,
		&reseller.Name,
		&reseller.Phone,
		&reseller.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: reseller %q already exists", database.ErrDuplicate, name)
		}
		return nil, fmt.Errorf("create reseller: %w", err)
	}

	return reseller, nil
}

func ListResellers(ctx context.Context, db *sql.DB) ([]models.Reseller, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, phone, created_at
		 FROM resellers
		 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list resellers: %w", err)
	}
	defer rows.Close()

	var resellers []models.Reseller
	for rows.Next() {
		var reseller models.Reseller
		err := rows.Scan(
			&reseller.ID,
			&reseller.Name,
			&reseller.Phone,
			&reseller.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reseller: %w", err)
		}
		resellers = append(resellers, reseller)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return resellers, nil
}

// UpsertResellerInventory sets the per-reseller quantity and price override
// for one product. The pair (reseller, product) is unique. The override table
// is informational only; sale and ledger paths do not consult it.
func UpsertResellerInventory(ctx context.Context, db *sql.DB, resellerID int64, sku string, qty int, price decimal.Decimal) (*models.ResellerInventory, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: qty must be >= 0, got %d", database.ErrInvalidInput, qty)
	}

	row := &models.ResellerInventory{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM resellers WHERE id = $1)`,
			resellerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check reseller exists: %w", err)
		}
		if !exists {
			return database.ErrResellerNotFound
		}

		var productID int64
		var productName string
		err = tx.QueryRowContext(ctx,
			`SELECT id, name FROM products WHERE sku = $1`,
			sku).Scan(&productID, &productName)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product %s: %w", sku, err)
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO reseller_inventory (reseller_id, product_id, qty, price, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (reseller_id, product_id) DO UPDATE SET
				qty = EXCLUDED.qty,
				price = EXCLUDED.price,
				updated_at = NOW()
			 RETURNING id, reseller_id, product_id, qty, price, updated_at`,
			resellerID, productID, qty, price).Scan(
			&row.ID,
			&row.ResellerID,
			&row.ProductID,
			&row.Qty,
			&row.Price,
			&row.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert reseller inventory: %w", err)
		}

		row.SKU = sku
		row.ProductName = productName
		return nil
	})
	if err != nil {
		return nil, err
	}

	return row, nil
}

func ListResellerInventory(ctx context.Context, db *sql.DB, resellerID int64) ([]models.ResellerInventory, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM resellers WHERE id = $1)`,
		resellerID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check reseller exists: %w", err)
	}
	if !exists {
		return nil, database.ErrResellerNotFound
	}

	rows, err := db.QueryContext(ctx,
		`SELECT ri.id, ri.reseller_id, ri.product_id, p.sku, p.name, ri.qty, ri.price, ri.updated_at
		 FROM reseller_inventory ri
		 JOIN products p ON p.id = ri.product_id
		 WHERE ri.reseller_id = $1
		 ORDER BY p.name ASC`,
		resellerID)
	if err != nil {
		return nil, fmt.Errorf("list reseller inventory: %w", err)
	}
	defer rows.Close()

	var inventory []models.ResellerInventory
	for rows.Next() {
		var row models.ResellerInventory
		err := rows.Scan(
			&row.ID,
			&row.ResellerID,
			&row.ProductID,
			&row.SKU,
			&row.ProductName,
			&row.Qty,
			&row.Price,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reseller inventory: %w", err)
		}
		inventory = append(inventory, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return inventory, nil
}
