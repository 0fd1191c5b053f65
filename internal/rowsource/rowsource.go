package rowsource

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Row is one record from an uploaded file or a foreign table, keyed by
// canonical snake_case column names. Absent columns are simply missing keys;
// callers decide defaults.
type Row map[string]string

// Get returns the trimmed value for key, or "" when the column is absent.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// Has reports whether the row carries a non-empty value for key.
func (r Row) Has(key string) bool {
	return r.Get(key) != ""
}

// Source yields the rows of one upload in order. Next returns io.EOF when
// the source is exhausted. Reset rewinds to the first row so replace modes
// can rescan a source after counting or validation.
type Source interface {
	Next() (Row, error)
	Reset() error
	Close() error
}

// Column headers as the legacy system exported them, mapped to the canonical
// names the reconciliation engine reads.
var legacyHeaders = map[string]string{
	"ProductName":   "product_name",
	"Quantity":      "quantity",
	"Price":         "price",
	"Supplier":      "supplier",
	"Category":      "category",
	"SKU":           "sku",
	"Description":   "description",
	"MinimumStock":  "minimum_stock",
	"QuantitySold":  "quantity_sold",
	"UnitPrice":     "unit_price",
	"CustomerName":  "customer_name",
	"CustomerPhone": "customer_phone",
	"CustomerEmail": "customer_email",
	"Notes":         "notes",
	"EntryDate":     "sale_date",
	"SaleDate":      "sale_date",
}

func canonicalKey(header string) string {
	h := strings.TrimSpace(header)
	if mapped, ok := legacyHeaders[h]; ok {
		return mapped
	}
	return strings.ToLower(h)
}

// Open picks a Source implementation by file extension. table is only used
// by the SQLite source, which scans one named table of the foreign database.
func Open(path, table string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OpenCSV(path)
	case ".xlsx", ".xls":
		return OpenExcel(path)
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path, table)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}
