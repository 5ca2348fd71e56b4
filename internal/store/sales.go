package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/database"
	"github.com/wicaksono/tokopos/internal/models"
)

const (
	refPrefixStore  = "STORE"
	refPrefixManual = "OFF"
)

// generateSaleRef builds a human-readable transaction code like
// STORE-240131-A3F09C. It is for tracing on receipts, not a dedup key.
func generateSaleRef(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("060102"), suffix)
}

type saleLine struct {
	sku   string
	qty   int
	price *decimal.Decimal // nil means current retail price
}

// Checkout turns a cart (SKU -> qty) into one Sale. Every line must have
// sufficient stock; the first line that fails aborts the whole transaction,
// so stock already decremented for earlier lines is rolled back.
func Checkout(ctx context.Context, db *sql.DB, cart map[string]int) (*models.Sale, error) {
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", database.ErrInvalidInput)
	}

	lines := make([]saleLine, 0, len(cart))
	for sku, qty := range cart {
		lines = append(lines, saleLine{sku: sku, qty: qty})
	}

	return recordSale(ctx, db, refPrefixStore, models.ChannelStore, lines)
}

// RecordManualSale records a single-line offline sale typed by an operator.
// A nil price falls back to the product's current retail price.
func RecordManualSale(ctx context.Context, db *sql.DB, sku string, qty int, price *decimal.Decimal) (*models.Sale, error) {
	return recordSale(ctx, db, refPrefixManual, models.ChannelManual, []saleLine{
		{sku: sku, qty: qty, price: price},
	})
}

func recordSale(ctx context.Context, db *sql.DB, prefix, channel string, lines []saleLine) (*models.Sale, error) {
	ref := generateSaleRef(prefix)
	var sale *models.Sale

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var saleID int64
		var createdAt time.Time

		err := tx.QueryRowContext(ctx,
			`INSERT INTO sales (ref, channel, total_amount, created_at)
			 VALUES ($1, $2, 0, NOW())
			 RETURNING id, created_at`,
			ref, channel).Scan(&saleID, &createdAt)
		if err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		total := decimal.Zero
		items := make([]models.SaleItem, 0, len(lines))

		for _, line := range lines {
			item, err := applySaleLine(ctx, tx, saleID, line.sku, line.qty, line.price)
			if err != nil {
				return err
			}
			total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Qty))))
			items = append(items, *item)
		}

		// total_amount is written once here and never recomputed later.
		_, err = tx.ExecContext(ctx,
			`UPDATE sales SET total_amount = $1 WHERE id = $2`,
			total, saleID)
		if err != nil {
			return fmt.Errorf("finalize sale total: %w", err)
		}

		sale = &models.Sale{
			ID:          saleID,
			Ref:         ref,
			Channel:     channel,
			TotalAmount: total,
			CreatedAt:   createdAt,
			Items:       items,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sale, nil
}

// applySaleLine validates and applies one sale line inside the caller's
// transaction: lock the product, check availability, snapshot the unit
// price, insert the sale_item and decrement stock. Cost and the other prices
// are never touched by a sale.
func applySaleLine(ctx context.Context, tx *sql.Tx, saleID int64, sku string, qty int, unitPrice *decimal.Decimal) (*models.SaleItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: sale qty must be > 0, got %d", database.ErrInvalidInput, qty)
	}

	var productID int64
	var stockQty int
	var retailPrice decimal.Decimal

	err := tx.QueryRowContext(ctx,
		`SELECT id, stock_qty, retail_price
		 FROM products
		 WHERE sku = $1
		 FOR UPDATE`,
		sku).Scan(&productID, &stockQty, &retailPrice)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %s: %w", sku, err)
	}

	if stockQty < qty {
		return nil, &database.InsufficientStockError{
			SKU:       sku,
			Requested: qty,
			Available: stockQty,
		}
	}

	price := retailPrice
	if unitPrice != nil {
		price = *unitPrice
	}

	item := &models.SaleItem{
		SaleID:    saleID,
		ProductID: productID,
		SKU:       sku,
		Qty:       qty,
		Price:     price,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sale_items (sale_id, product_id, qty, price)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		saleID, productID, qty, price).Scan(&item.ID)
	if err != nil {
		return nil, fmt.Errorf("create sale item: %w", err)
	}

	// Guarded decrement: the row lock above already serializes writers, the
	// stock_qty >= $1 condition keeps the non-negative invariant even so.
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_qty = stock_qty - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_qty >= $1`,
		qty, productID)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, &database.InsufficientStockError{
			SKU:       sku,
			Requested: qty,
			Available: stockQty,
		}
	}

	return item, nil
}

func GetSale(ctx context.Context, db *sql.DB, id int64) (*models.Sale, error) {
	sale := &models.Sale{}

	err := db.QueryRowContext(ctx,
		`SELECT id, ref, channel, total_amount, created_at
		 FROM sales
		 WHERE id = $1`,
		id).Scan(
		&sale.ID,
		&sale.Ref,
		&sale.Channel,
		&sale.TotalAmount,
		&sale.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT si.id, si.sale_id, si.product_id, p.sku, si.qty, si.price
		 FROM sale_items si
		 JOIN products p ON p.id = si.product_id
		 WHERE si.sale_id = $1
		 ORDER BY si.id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()

	var items []models.SaleItem
	for rows.Next() {
		var item models.SaleItem
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.ProductID,
			&item.SKU,
			&item.Qty,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sale.Items = items

	return sale, nil
}
