package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wicaksono/tokopos/internal/database"
	"github.com/wicaksono/tokopos/internal/ledger"
	"github.com/wicaksono/tokopos/internal/store"
)

func TestLedgerMergesSalesAndStockIns(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createProduct(t, db, "SKU-1", "Kopi Arabica", "10.00")
	receiveStock(t, db, "SKU-1", 10, "4.00") // money out: 40.00

	if _, err := store.Checkout(ctx, db, map[string]int{"SKU-1": 3}); err != nil {
		t.Fatalf("Checkout: %v", err) // money in: 30.00
	}

	report, err := ledger.Build(ctx, db, ledger.Filter{})
	if err != nil {
		t.Fatalf("Build ledger: %v", err)
	}

	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 ledger rows, got %d", len(report.Rows))
	}

	// Newest first: the sale happened after the stock-in.
	if report.Rows[0].Kind != ledger.KindSale {
		t.Errorf("Expected first row to be the sale, got %s", report.Rows[0].Kind)
	}
	if !report.Rows[0].Amount.Equal(dec(t, "30.00")) {
		t.Errorf("Expected sale amount +30.00, got %s", report.Rows[0].Amount)
	}
	if report.Rows[1].Kind != ledger.KindStockIn {
		t.Errorf("Expected second row to be the stock-in, got %s", report.Rows[1].Kind)
	}
	if !report.Rows[1].Amount.Equal(dec(t, "-40.00")) {
		t.Errorf("Expected stock-in amount -40.00, got %s", report.Rows[1].Amount)
	}
	if report.Rows[1].Ref == "" || report.Rows[1].Ref[:3] != "IN-" {
		t.Errorf("Expected synthesized IN- ref, got %q", report.Rows[1].Ref)
	}

	if !report.BalanceRange.Equal(dec(t, "-10.00")) {
		t.Errorf("Expected range balance -10.00, got %s", report.BalanceRange)
	}
	if !report.BalanceAllTime.Equal(dec(t, "-10.00")) {
		t.Errorf("Expected all-time balance -10.00, got %s", report.BalanceAllTime)
	}
	if !report.TotalInAllTime.Equal(dec(t, "30.00")) {
		t.Errorf("Expected total in 30.00, got %s", report.TotalInAllTime)
	}
	if !report.TotalOutAllTime.Equal(dec(t, "40.00")) {
		t.Errorf("Expected total out 40.00, got %s", report.TotalOutAllTime)
	}

	if len(report.TopSellers) != 1 {
		t.Fatalf("Expected 1 top seller, got %d", len(report.TopSellers))
	}
	top := report.TopSellers[0]
	if top.SKU != "SKU-1" || top.QtySold != 3 || !top.Revenue.Equal(dec(t, "30.00")) {
		t.Errorf("Unexpected top seller: %+v", top)
	}
}

func TestLedgerDateWindowIsInclusivePerDay(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := createProduct(t, db, "SKU-1", "Kopi Arabica", "10.00")

	// One event late on Jan 1, one at exactly midnight Jan 2.
	lateJan1 := time.Date(2024, 1, 1, 23, 59, 59, 0, time.Local)
	midnightJan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)

	insertSaleAt(t, db, product.ID, "STORE-240101-AAAAAA", 1, "10.00", lateJan1)
	insertSaleAt(t, db, product.ID, "STORE-240102-BBBBBB", 1, "20.00", midnightJan2)
	insertStockInAt(t, db, product.ID, 2, "3.00", lateJan1)

	report, err := ledger.Build(ctx, db, ledger.Filter{
		DateFrom: "2024-01-01",
		DateTo:   "2024-01-01",
	})
	if err != nil {
		t.Fatalf("Build ledger: %v", err)
	}

	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 rows inside Jan 1, got %d", len(report.Rows))
	}
	for _, row := range report.Rows {
		if row.Ref == "STORE-240102-BBBBBB" {
			t.Error("Jan 2 00:00:00 event must be excluded from a Jan 1 window")
		}
	}

	// 10.00 sale - 6.00 stock-in, Jan 2 excluded.
	if !report.BalanceRange.Equal(dec(t, "4.00")) {
		t.Errorf("Expected range balance 4.00, got %s", report.BalanceRange)
	}

	// The all-time balance ignores the window: 10 + 20 - 6.
	if !report.BalanceAllTime.Equal(dec(t, "24.00")) {
		t.Errorf("Expected all-time balance 24.00, got %s", report.BalanceAllTime)
	}
}

func TestLedgerTextFilterAppliesToBothStreams(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createProduct(t, db, "SKU-1", "Kopi Arabica", "10.00")
	createProduct(t, db, "SKU-2", "Teh Hijau", "4.00")
	receiveStock(t, db, "SKU-1", 5, "4.00")
	receiveStock(t, db, "SKU-2", 5, "1.00")

	if _, err := store.Checkout(ctx, db, map[string]int{"SKU-1": 1, "SKU-2": 1}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	report, err := ledger.Build(ctx, db, ledger.Filter{Text: "kopi"})
	if err != nil {
		t.Fatalf("Build ledger: %v", err)
	}

	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 kopi rows (sale + stock-in), got %d", len(report.Rows))
	}
	for _, row := range report.Rows {
		if row.SKU != "SKU-1" {
			t.Errorf("Text filter leaked row for %s", row.SKU)
		}
	}

	// Balance over the filtered set only: +10.00 sale - 20.00 stock-in.
	if !report.BalanceRange.Equal(dec(t, "-10.00")) {
		t.Errorf("Expected filtered range balance -10.00, got %s", report.BalanceRange)
	}

	// All-time still counts everything: (10+4) - (20+5).
	if !report.BalanceAllTime.Equal(dec(t, "-11.00")) {
		t.Errorf("Expected all-time balance -11.00, got %s", report.BalanceAllTime)
	}

	if len(report.TopSellers) != 1 || report.TopSellers[0].SKU != "SKU-1" {
		t.Errorf("Expected top sellers filtered to SKU-1, got %+v", report.TopSellers)
	}
}

func TestLedgerTopSellersOrderedByQty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createProduct(t, db, "SKU-1", "Kopi Arabica", "10.00")
	createProduct(t, db, "SKU-2", "Teh Hijau", "4.00")
	receiveStock(t, db, "SKU-1", 10, "4.00")
	receiveStock(t, db, "SKU-2", 10, "1.00")

	if _, err := store.Checkout(ctx, db, map[string]int{"SKU-1": 2}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := store.Checkout(ctx, db, map[string]int{"SKU-2": 3}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := store.Checkout(ctx, db, map[string]int{"SKU-2": 2}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	report, err := ledger.Build(ctx, db, ledger.Filter{})
	if err != nil {
		t.Fatalf("Build ledger: %v", err)
	}

	if len(report.TopSellers) != 2 {
		t.Fatalf("Expected 2 top sellers, got %d", len(report.TopSellers))
	}
	if report.TopSellers[0].SKU != "SKU-2" || report.TopSellers[0].QtySold != 5 {
		t.Errorf("Expected SKU-2 first with qty 5, got %+v", report.TopSellers[0])
	}
	if !report.TopSellers[0].Revenue.Equal(dec(t, "20.00")) {
		t.Errorf("Expected SKU-2 revenue 20.00, got %s", report.TopSellers[0].Revenue)
	}
}

func TestLedgerMalformedDate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := ledger.Build(context.Background(), db, ledger.Filter{DateFrom: "01/02/2024"})
	if !errors.Is(err, database.ErrInvalidInput) {
		t.Errorf("Expected invalid input for malformed date, got: %v", err)
	}
}

func TestLedgerAllTimeBalanceTrustsSaleTotals(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := createProduct(t, db, "SKU-1", "Kopi Arabica", "10.00")
	insertSaleAt(t, db, product.ID, "STORE-240101-CCCCCC", 2, "10.00",
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local))

	// Skew the header total away from the item sum. balance_all_time reads
	// the header; the row amounts read the items. Known reconciliation
	// risk, preserved on purpose.
	if _, err := db.Exec(`UPDATE sales SET total_amount = 99.00`); err != nil {
		t.Fatalf("Skew sale total: %v", err)
	}

	report, err := ledger.Build(ctx, db, ledger.Filter{})
	if err != nil {
		t.Fatalf("Build ledger: %v", err)
	}

	if !report.BalanceAllTime.Equal(dec(t, "99.00")) {
		t.Errorf("Expected all-time balance 99.00 from header, got %s", report.BalanceAllTime)
	}
	if !report.BalanceRange.Equal(dec(t, "20.00")) {
		t.Errorf("Expected range balance 20.00 from items, got %s", report.BalanceRange)
	}
}
