package service_test

import (
	"strings"
	"testing"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/rowsource"
	"go-stock-ledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newReconciler(t *testing.T, db *gorm.DB) service.ReconcileService {
	t.Helper()
	stockRepo := repository.NewStockRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	ledger := service.NewLedgerService(stockRepo, saleRepo, db, newTestLogger(), nil)
	return service.NewReconcileService(stockRepo, saleRepo, ledger, db, newTestLogger())
}

func TestMergeStockCreatesNewProducts(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	rec := newReconciler(t, db)

	report, err := rec.MergeStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity": "5", "price": "2.50", "supplier": "Acme"},
		{"product_name": "Gadget"},
	}})
	if err != nil {
		t.Fatalf("MergeStock: %v", err)
	}
	if report.RowsSeen != 2 || report.RowsApplied != 2 || report.RowsSkipped != 0 {
		t.Fatalf("report = %+v, want 2 seen, 2 applied", report)
	}

	var widget model.Stock
	if err := db.First(&widget, "user_id = ? AND product_name = ?", owner.ID, "Widget").Error; err != nil {
		t.Fatalf("find Widget: %v", err)
	}
	if widget.Quantity != 5 || widget.Supplier != "Acme" {
		t.Errorf("Widget = qty %d supplier %q, want 5/Acme", widget.Quantity, widget.Supplier)
	}

	// Absent numeric fields default to zero
	var gadget model.Stock
	if err := db.First(&gadget, "user_id = ? AND product_name = ?", owner.ID, "Gadget").Error; err != nil {
		t.Fatalf("find Gadget: %v", err)
	}
	if gadget.Quantity != 0 || !gadget.Price.IsZero() {
		t.Errorf("Gadget = qty %d price %s, want 0/0", gadget.Quantity, gadget.Price)
	}
}

func TestMergeStockAdditiveQuantityIdempotentMetadata(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	rec := newReconciler(t, db)

	row := rowsource.Row{"product_name": "Widget", "quantity": "5", "supplier": "Acme", "category": "Tools"}

	for i := 0; i < 2; i++ {
		if _, err := rec.MergeStock(owner.ID, &sliceSource{rows: []rowsource.Row{row}}); err != nil {
			t.Fatalf("MergeStock pass %d: %v", i+1, err)
		}
	}

	var stock model.Stock
	if err := db.First(&stock, "user_id = ? AND product_name = ?", owner.ID, "Widget").Error; err != nil {
		t.Fatalf("find Widget: %v", err)
	}
	if stock.Quantity != 10 {
		t.Errorf("quantity = %d, want additive 10", stock.Quantity)
	}
	if stock.Supplier != "Acme" || stock.Category != "Tools" {
		t.Errorf("metadata = %q/%q, want idempotent Acme/Tools", stock.Supplier, stock.Category)
	}
}

func TestMergeStockRetainsFieldsTheRowOmits(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	stock := createStock(t, db, owner.ID, "Widget", 6, "2.50", 2)
	rec := newReconciler(t, db)

	report, err := rec.MergeStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity": "5", "price": ""},
	}})
	if err != nil {
		t.Fatalf("MergeStock: %v", err)
	}
	if report.RowsApplied != 1 {
		t.Fatalf("applied = %d, want 1", report.RowsApplied)
	}

	got := reloadStock(t, db, stock.ID)
	if got.Quantity != 11 {
		t.Errorf("quantity = %d, want 11", got.Quantity)
	}
	if !got.Price.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("price = %s, want unchanged 2.50", got.Price)
	}
	if got.MinStock != 2 {
		t.Errorf("min stock = %d, want unchanged 2", got.MinStock)
	}
}

func TestMergeStockRowLevelIsolation(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	rec := newReconciler(t, db)

	rows := make([]rowsource.Row, 0, 10)
	for _, name := range []string{"P1", "P2", "P3", "P4"} {
		rows = append(rows, rowsource.Row{"product_name": name, "quantity": "1"})
	}
	rows = append(rows, rowsource.Row{"product_name": "P5", "quantity": "not-a-number"})
	for _, name := range []string{"P6", "P7", "P8", "P9", "P10"} {
		rows = append(rows, rowsource.Row{"product_name": name, "quantity": "1"})
	}

	report, err := rec.MergeStock(owner.ID, &sliceSource{rows: rows})
	if err != nil {
		t.Fatalf("MergeStock: %v", err)
	}

	if report.RowsSeen != 10 || report.RowsApplied != 9 || report.RowsSkipped != 1 {
		t.Fatalf("report = %+v, want 10/9/1", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].RowIndex != 5 {
		t.Fatalf("errors = %+v, want row 5 only", report.Errors)
	}
	if !strings.Contains(report.Errors[0].Reason, "quantity") {
		t.Errorf("reason = %q, want quantity parse failure", report.Errors[0].Reason)
	}

	var count int64
	db.Model(&model.Stock{}).Where("user_id = ?", owner.ID).Count(&count)
	if count != 9 {
		t.Errorf("stock rows = %d, want 9", count)
	}
}

func TestMergeStockSkipsRowsWithoutKey(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	rec := newReconciler(t, db)

	report, err := rec.MergeStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"quantity": "5"},
		{"product_name": "  "},
		{"product_name": "Widget", "quantity": "1"},
	}})
	if err != nil {
		t.Fatalf("MergeStock: %v", err)
	}
	if report.RowsApplied != 1 || report.RowsSkipped != 2 {
		t.Fatalf("report = %+v, want 1 applied, 2 skipped", report)
	}
}

func TestReplaceStockSwapsSnapshot(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	other := createOwner(t, db, "other@test.local")
	createStock(t, db, owner.ID, "Old1", 1, "1.00", 0)
	createStock(t, db, owner.ID, "Old2", 1, "1.00", 0)
	foreign := createStock(t, db, other.ID, "Foreign", 7, "1.00", 0)
	rec := newReconciler(t, db)

	report, err := rec.ReplaceStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "New1", "quantity": "3", "price": "4.00"},
		{"product_name": "New2", "quantity": "4"},
	}})
	if err != nil {
		t.Fatalf("ReplaceStock: %v", err)
	}
	if report.RowsApplied != 2 {
		t.Fatalf("applied = %d, want 2", report.RowsApplied)
	}

	var names []string
	db.Model(&model.Stock{}).Where("user_id = ?", owner.ID).Order("product_name").Pluck("product_name", &names)
	if len(names) != 2 || names[0] != "New1" || names[1] != "New2" {
		t.Errorf("names = %v, want [New1 New2]", names)
	}

	// The replace never leaks into another owner's partition
	if got := reloadStock(t, db, foreign.ID); got.Quantity != 7 {
		t.Errorf("foreign quantity = %d, want untouched 7", got.Quantity)
	}
}

func TestReplaceStockAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	createStock(t, db, owner.ID, "Old1", 1, "1.00", 0)
	createStock(t, db, owner.ID, "Old2", 2, "1.00", 0)
	rec := newReconciler(t, db)

	_, err := rec.ReplaceStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "New1", "quantity": "3"},
		{"product_name": "New2", "quantity": "boom"},
	}})
	if err == nil {
		t.Fatal("expected replace to fail on the malformed row")
	}

	// A malformed snapshot aborts before anything is written
	var names []string
	db.Model(&model.Stock{}).Where("user_id = ?", owner.ID).Order("product_name").Pluck("product_name", &names)
	if len(names) != 2 || names[0] != "Old1" || names[1] != "Old2" {
		t.Errorf("names = %v, want pre-replace [Old1 Old2]", names)
	}
}

func TestReplaceStockKeepsSalesOfSurvivingProducts(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	kept := createStock(t, db, owner.ID, "Widget", 6, "2.50", 0)
	dropped := createStock(t, db, owner.ID, "Gadget", 4, "1.00", 0)
	rec := newReconciler(t, db)
	ledger := service.NewLedgerService(repository.NewStockRepo(db), repository.NewSaleRepo(db), db, newTestLogger(), nil)

	for _, stockID := range []uuid.UUID{kept.ID, dropped.ID} {
		if _, err := ledger.RecordSale(owner.ID, &service.SaleRequest{
			StockID:      stockID,
			QuantitySold: 1,
		}, false); err != nil {
			t.Fatalf("seed sale: %v", err)
		}
	}

	report, err := rec.ReplaceStock(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity": "20", "price": "3.00"},
	}})
	if err != nil {
		t.Fatalf("ReplaceStock: %v", err)
	}
	if report.RowsApplied != 1 {
		t.Fatalf("applied = %d, want 1", report.RowsApplied)
	}

	// The surviving product keeps its identity and takes the snapshot values
	got := reloadStock(t, db, kept.ID)
	if got.Quantity != 20 || !got.Price.Equal(decimal.RequireFromString("3.00")) {
		t.Errorf("kept = qty %d price %s, want 20/3.00", got.Quantity, got.Price)
	}

	var stockCount int64
	db.Model(&model.Stock{}).Where("user_id = ?", owner.ID).Count(&stockCount)
	if stockCount != 1 {
		t.Errorf("stock rows = %d, want 1 (Gadget pruned)", stockCount)
	}

	var keptSales, droppedSales int64
	db.Model(&model.Sale{}).Where("stock_id = ?", kept.ID).Count(&keptSales)
	db.Model(&model.Sale{}).Where("stock_id = ?", dropped.ID).Count(&droppedSales)
	if keptSales != 1 {
		t.Errorf("sales on surviving product = %d, want 1", keptSales)
	}
	if droppedSales != 0 {
		t.Errorf("sales on pruned product = %d, want 0", droppedSales)
	}
}

func TestApplySalesRecordsAndDecrements(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	stock := createStock(t, db, owner.ID, "Widget", 10, "2.50", 0)
	rec := newReconciler(t, db)

	report, err := rec.ApplySales(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity_sold": "4", "sale_date": "2025-06-01 10:30:00"},
	}})
	if err != nil {
		t.Fatalf("ApplySales: %v", err)
	}
	if report.RowsApplied != 1 {
		t.Fatalf("applied = %d, want 1", report.RowsApplied)
	}

	if got := reloadStock(t, db, stock.ID).Quantity; got != 6 {
		t.Errorf("quantity = %d, want 6", got)
	}

	var sale model.Sale
	if err := db.First(&sale, "stock_id = ?", stock.ID).Error; err != nil {
		t.Fatalf("find sale: %v", err)
	}
	// Price falls back to the stock's current price
	if !sale.UnitPrice.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("unit price = %s, want 2.50", sale.UnitPrice)
	}
	want := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if !sale.SaleDate.Equal(want) {
		t.Errorf("sale date = %s, want %s", sale.SaleDate, want)
	}
}

func TestApplySalesDateFallbackChain(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	stock := createStock(t, db, owner.ID, "Widget", 100, "1.00", 0)
	rec := newReconciler(t, db)

	before := time.Now().Add(-time.Second)
	report, err := rec.ApplySales(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity_sold": "1", "sale_date": "2025-06-02"},
		{"product_name": "Widget", "quantity_sold": "1", "sale_date": "junk"},
	}})
	if err != nil {
		t.Fatalf("ApplySales: %v", err)
	}
	if report.RowsApplied != 2 {
		t.Fatalf("applied = %d, want 2", report.RowsApplied)
	}

	var sales []model.Sale
	if err := db.Order("created_at").Find(&sales, "stock_id = ?", stock.ID).Error; err != nil {
		t.Fatalf("find sales: %v", err)
	}
	dateOnly := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var sawDateOnly, sawFallback bool
	for _, s := range sales {
		if s.SaleDate.Equal(dateOnly) {
			sawDateOnly = true
		}
		if s.SaleDate.After(before) {
			sawFallback = true
		}
	}
	if !sawDateOnly {
		t.Error("date-only format was not parsed")
	}
	if !sawFallback {
		t.Error("unparseable date did not fall back to processing time")
	}
}

func TestApplySalesSkipsUnknownAndUnavailable(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	stock := createStock(t, db, owner.ID, "Widget", 3, "2.50", 0)
	rec := newReconciler(t, db)

	report, err := rec.ApplySales(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Missing", "quantity_sold": "1"},
		{"product_name": "Widget", "quantity_sold": "5"}, // more than available
		{"product_name": "Widget", "quantity_sold": "2"},
	}})
	if err != nil {
		t.Fatalf("ApplySales: %v", err)
	}
	if report.RowsApplied != 1 || report.RowsSkipped != 2 {
		t.Fatalf("report = %+v, want 1 applied, 2 skipped", report)
	}
	if got := reloadStock(t, db, stock.ID).Quantity; got != 1 {
		t.Errorf("quantity = %d, want 1", got)
	}
}

func TestReplaceSalesWindow(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	stock := createStock(t, db, owner.ID, "Widget", 10, "2.50", 0)
	rec := newReconciler(t, db)

	old := &model.Sale{
		UserID: owner.ID, StockID: stock.ID, QuantitySold: 1,
		UnitPrice: decimal.RequireFromString("2.50"), TotalAmount: decimal.RequireFromString("2.50"),
		SaleDate: time.Now().Add(-48 * time.Hour),
	}
	recent := &model.Sale{
		UserID: owner.ID, StockID: stock.ID, QuantitySold: 2,
		UnitPrice: decimal.RequireFromString("2.50"), TotalAmount: decimal.RequireFromString("5.00"),
		SaleDate: time.Now().Add(-time.Hour),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed old sale: %v", err)
	}
	if err := db.Create(recent).Error; err != nil {
		t.Fatalf("seed recent sale: %v", err)
	}

	inWindow := time.Now().Add(-30 * time.Minute).Format("2006-01-02 15:04:05")
	report, err := rec.ReplaceSalesWindow(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity_sold": "3", "sale_date": inWindow},
	}}, 24*time.Hour)
	if err != nil {
		t.Fatalf("ReplaceSalesWindow: %v", err)
	}
	if report.RowsApplied != 1 {
		t.Fatalf("applied = %d, want 1", report.RowsApplied)
	}

	var sales []model.Sale
	if err := db.Find(&sales, "user_id = ?", owner.ID).Error; err != nil {
		t.Fatalf("find sales: %v", err)
	}
	// Settled history before the cutoff survives; the in-window row replaced
	// the recent sale.
	if len(sales) != 2 {
		t.Fatalf("sales = %d, want 2 (old + synced)", len(sales))
	}
	for _, s := range sales {
		if s.ID == recent.ID {
			t.Error("in-window sale was not replaced")
		}
	}

	// Settled history never decrements live stock
	if got := reloadStock(t, db, stock.ID).Quantity; got != 10 {
		t.Errorf("quantity = %d, want untouched 10", got)
	}
}

func TestReplaceSalesWindowSkipsRowsOutsideWindow(t *testing.T) {
	db := newTestDB(t)
	owner := createOwner(t, db, "owner@test.local")
	createStock(t, db, owner.ID, "Widget", 10, "2.50", 0)
	rec := newReconciler(t, db)

	outside := time.Now().Add(-72 * time.Hour).Format("2006-01-02 15:04:05")
	report, err := rec.ReplaceSalesWindow(owner.ID, &sliceSource{rows: []rowsource.Row{
		{"product_name": "Widget", "quantity_sold": "1", "sale_date": outside},
	}}, 24*time.Hour)
	if err != nil {
		t.Fatalf("ReplaceSalesWindow: %v", err)
	}
	if report.RowsApplied != 0 || report.RowsSkipped != 1 {
		t.Fatalf("report = %+v, want 0 applied, 1 skipped", report)
	}
}
