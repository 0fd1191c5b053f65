package rowsource

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func createLegacyDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sync.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE stock (ProductName TEXT, Quantity INTEGER, Price REAL, Supplier TEXT)`,
		`INSERT INTO stock VALUES ('Widget', 5, 2.5, 'Acme')`,
		`INSERT INTO stock VALUES ('Gadget', 3, NULL, NULL)`,
		`CREATE TABLE sales (ProductName TEXT, QuantitySold INTEGER, UnitPrice REAL, EntryDate TEXT)`,
		`INSERT INTO sales VALUES ('Widget', 2, 2.5, '2025-06-01 10:30:00')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func TestSQLiteScansLegacyStockTable(t *testing.T) {
	path := createLegacyDB(t)

	src, err := OpenSQLite(path, "stock")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer src.Close()

	rows := drain(t, src)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Get("product_name") != "Widget" || rows[0].Get("supplier") != "Acme" {
		t.Errorf("row 1 = %v", rows[0])
	}
	if rows[0].Get("quantity") != "5" {
		t.Errorf("quantity = %q, want 5", rows[0].Get("quantity"))
	}
	// NULL columns stay absent rather than becoming empty strings
	if rows[1].Has("price") || rows[1].Has("supplier") {
		t.Errorf("row 2 carries NULL columns: %v", rows[1])
	}
}

func TestSQLiteScansLegacySalesTable(t *testing.T) {
	path := createLegacyDB(t)

	src, err := OpenSQLite(path, "sales")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer src.Close()

	rows := drain(t, src)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Get("quantity_sold") != "2" {
		t.Errorf("quantity_sold = %q, want 2", rows[0].Get("quantity_sold"))
	}
	if rows[0].Get("sale_date") != "2025-06-01 10:30:00" {
		t.Errorf("sale_date = %q", rows[0].Get("sale_date"))
	}
}

func TestSQLiteReset(t *testing.T) {
	path := createLegacyDB(t)

	src, err := OpenSQLite(path, "stock")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer src.Close()

	first := drain(t, src)
	if err := src.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second := drain(t, src)
	if len(first) != len(second) {
		t.Fatalf("passes differ: %d vs %d rows", len(first), len(second))
	}
}

func TestSQLiteRejectsUnknownTable(t *testing.T) {
	if _, err := OpenSQLite("ignored.db", "users; DROP TABLE stock"); err == nil {
		t.Fatal("arbitrary table names must be rejected")
	}
	if _, err := OpenSQLite("ignored.db", "invoices"); err == nil {
		t.Fatal("tables outside the sync schema must be rejected")
	}
}
