// Package ledger builds the merged cash-flow view: sale and stock-in events
// reconciled into one time-ordered list with running balances. Sales are
// money in (positive amounts), stock receipts are money out (negative).
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/database"
)

type EventKind string

const (
	KindSale    EventKind = "sale"
	KindStockIn EventKind = "stockin"
)

const (
	dateLayout    = "2006-01-02"
	maxRows       = 500
	maxTopSellers = 20
)

// Event is the common projection of both kinds. Amount is signed:
// +qty*price for sales, -qty*cost for stock-ins.
type Event struct {
	Time        time.Time       `json:"time"`
	Ref         string          `json:"ref"`
	Kind        EventKind       `json:"kind"`
	Channel     string          `json:"channel,omitempty"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

type Filter struct {
	DateFrom string // YYYY-MM-DD, inclusive from local midnight
	DateTo   string // YYYY-MM-DD, inclusive through end of day
	Text     string // case-insensitive substring on SKU or product name
}

type TopSeller struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	QtySold     int64           `json:"qty_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type Report struct {
	Rows []Event `json:"rows"`

	// BalanceRange sums every event matching the filter, not just the
	// capped Rows slice.
	BalanceRange decimal.Decimal `json:"balance_range"`

	// All-time figures ignore the filter entirely. BalanceAllTime trusts
	// sales.total_amount rather than re-summing sale_items.
	BalanceAllTime  decimal.Decimal `json:"balance_all_time"`
	TotalInAllTime  decimal.Decimal `json:"total_in_all_time"`
	TotalOutAllTime decimal.Decimal `json:"total_out_all_time"`

	TopSellers []TopSeller `json:"top_sellers"`
}

type dateRange struct {
	from *time.Time // inclusive
	to   *time.Time // exclusive
	text string
}

// parseFilter turns calendar-date strings into timestamp bounds. The lower
// bound is local midnight; the upper bound is the start of the day after
// DateTo, used exclusively, so a day-granularity "to" captures the whole day.
func parseFilter(f Filter) (dateRange, error) {
	var r dateRange
	r.text = strings.TrimSpace(f.Text)

	if f.DateFrom != "" {
		t, err := time.ParseInLocation(dateLayout, f.DateFrom, time.Local)
		if err != nil {
			return r, fmt.Errorf("%w: date_from %q must be YYYY-MM-DD", database.ErrInvalidInput, f.DateFrom)
		}
		r.from = &t
	}
	if f.DateTo != "" {
		t, err := time.ParseInLocation(dateLayout, f.DateTo, time.Local)
		if err != nil {
			return r, fmt.Errorf("%w: date_to %q must be YYYY-MM-DD", database.ErrInvalidInput, f.DateTo)
		}
		end := t.AddDate(0, 0, 1)
		r.to = &end
	}

	return r, nil
}

// Build assembles the full ledger report for one filter. A malformed date
// fails the whole query; no partial results are returned.
func Build(ctx context.Context, db *sql.DB, f Filter) (*Report, error) {
	r, err := parseFilter(f)
	if err != nil {
		return nil, err
	}

	saleEvents, err := querySaleEvents(ctx, db, r)
	if err != nil {
		return nil, err
	}
	stockInEvents, err := queryStockInEvents(ctx, db, r)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	report.Rows, report.BalanceRange = mergeEvents(saleEvents, stockInEvents, maxRows)

	report.TotalInAllTime, report.TotalOutAllTime, err = queryAllTimeTotals(ctx, db)
	if err != nil {
		return nil, err
	}
	report.BalanceAllTime = report.TotalInAllTime.Sub(report.TotalOutAllTime)

	report.TopSellers, err = queryTopSellers(ctx, db, r)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// whereClause renders the shared predicates against per-query column names,
// so both halves of the union are filtered identically before merging.
func whereClause(r dateRange, timeCol, skuCol, nameCol string) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if r.from != nil {
		args = append(args, *r.from)
		conds = append(conds, fmt.Sprintf("%s >= $%d", timeCol, len(args)))
	}
	if r.to != nil {
		args = append(args, *r.to)
		conds = append(conds, fmt.Sprintf("%s < $%d", timeCol, len(args)))
	}
	if r.text != "" {
		args = append(args, "%"+r.text+"%")
		conds = append(conds, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d)", skuCol, len(args), nameCol, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func querySaleEvents(ctx context.Context, db *sql.DB, r dateRange) ([]Event, error) {
	where, args := whereClause(r, "s.created_at", "p.sku", "p.name")

	query := `
		SELECT s.created_at, s.ref, s.channel, p.sku, p.name, si.qty, si.price
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id` +
		where + `
		ORDER BY s.created_at DESC, si.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sale events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev := Event{Kind: KindSale}
		err := rows.Scan(
			&ev.Time,
			&ev.Ref,
			&ev.Channel,
			&ev.SKU,
			&ev.ProductName,
			&ev.Qty,
			&ev.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale event: %w", err)
		}
		ev.Amount = ev.UnitPrice.Mul(decimal.NewFromInt(int64(ev.Qty)))
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func queryStockInEvents(ctx context.Context, db *sql.DB, r dateRange) ([]Event, error) {
	where, args := whereClause(r, "si.created_at", "p.sku", "p.name")

	query := `
		SELECT si.created_at, si.id, p.sku, p.name, si.qty, si.cost_per_unit
		FROM stock_in si
		JOIN products p ON p.id = si.product_id` +
		where + `
		ORDER BY si.created_at DESC, si.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock-in events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev := Event{Kind: KindStockIn}
		var id int64
		err := rows.Scan(
			&ev.Time,
			&id,
			&ev.SKU,
			&ev.ProductName,
			&ev.Qty,
			&ev.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stock-in event: %w", err)
		}
		ev.Ref = fmt.Sprintf("IN-%d", id)
		ev.Amount = ev.UnitPrice.Mul(decimal.NewFromInt(int64(ev.Qty))).Neg()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

// mergeEvents merges two time-descending streams into one, keeping at most
// limit rows for display. The balance is accumulated over every event of
// both streams so capping the row list never changes it. On equal
// timestamps sale events come first.
func mergeEvents(sales, stockIns []Event, limit int) ([]Event, decimal.Decimal) {
	rows := make([]Event, 0, min(len(sales)+len(stockIns), limit))
	balance := decimal.Zero

	i, j := 0, 0
	for i < len(sales) || j < len(stockIns) {
		var next Event
		switch {
		case j >= len(stockIns):
			next = sales[i]
			i++
		case i >= len(sales):
			next = stockIns[j]
			j++
		case stockIns[j].Time.After(sales[i].Time):
			next = stockIns[j]
			j++
		default:
			next = sales[i]
			i++
		}

		balance = balance.Add(next.Amount)
		if len(rows) < limit {
			rows = append(rows, next)
		}
	}

	return rows, balance
}

func queryAllTimeTotals(ctx context.Context, db *sql.DB) (in, out decimal.Decimal, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM sales`).Scan(&in)
	if err != nil {
		return in, out, fmt.Errorf("sum sales: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(qty * cost_per_unit), 0) FROM stock_in`).Scan(&out)
	if err != nil {
		return in, out, fmt.Errorf("sum stock-in: %w", err)
	}

	return in, out, nil
}

func queryTopSellers(ctx context.Context, db *sql.DB, r dateRange) ([]TopSeller, error) {
	where, args := whereClause(r, "s.created_at", "p.sku", "p.name")

	query := `
		SELECT p.sku, p.name, COALESCE(SUM(si.qty), 0), COALESCE(SUM(si.qty * si.price), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id` +
		where + `
		GROUP BY p.sku, p.name
		ORDER BY SUM(si.qty) DESC, p.name ASC`

	args = append(args, maxTopSellers)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer rows.Close()

	var sellers []TopSeller
	for rows.Next() {
		var s TopSeller
		err := rows.Scan(&s.SKU, &s.ProductName, &s.QtySold, &s.Revenue)
		if err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		sellers = append(sellers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sellers, nil
}
