package service

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/rowsource"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Date formats accepted for sale dates, tried in order. Anything else falls
// back to the processing time.
var saleDateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Report is the outcome of one batch. Row-level problems land in Errors and
// never abort the batch; only engine-level failures surface as an error from
// the Reconcile methods.
type Report struct {
	RowsSeen    int        `json:"rows_seen"`
	RowsApplied int        `json:"rows_applied"`
	RowsSkipped int        `json:"rows_skipped"`
	Errors      []RowError `json:"errors,omitempty"`
}

type RowError struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

func (r *Report) skip(idx int, reason string) {
	r.RowsSkipped++
	r.Errors = append(r.Errors, RowError{RowIndex: idx, Reason: reason})
}

// ReconcileService applies an ordered sequence of external rows against the
// store. Merge paths isolate failures per row; replace paths are
// all-or-nothing inside one transaction.
type ReconcileService interface {
	MergeStock(ownerID uuid.UUID, src rowsource.Source) (*Report, error)
	ReplaceStock(ownerID uuid.UUID, src rowsource.Source) (*Report, error)
	ApplySales(ownerID uuid.UUID, src rowsource.Source) (*Report, error)
	ReplaceSalesWindow(ownerID uuid.UUID, src rowsource.Source, window time.Duration) (*Report, error)
}

type reconcileService struct {
	stockRepo repository.StockRepository
	saleRepo  repository.SaleRepository
	ledger    LedgerService
	db        *gorm.DB
	log       *logrus.Logger
}

func NewReconcileService(sRepo repository.StockRepository, saleRepo repository.SaleRepository, ledger LedgerService, db *gorm.DB, log *logrus.Logger) ReconcileService {
	return &reconcileService{
		stockRepo: sRepo,
		saleRepo:  saleRepo,
		ledger:    ledger,
		db:        db,
		log:       log,
	}
}

// stockPatch is the typed form of one stock row: the parsed values plus
// which optional fields the row actually supplied. Supplied metadata
// overwrites, absent metadata is retained.
type stockPatch struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	HasPrice    bool
	Supplier    string
	HasSupplier bool
	Category    string
	HasCategory bool
	SKU         string
	HasSKU      bool
	Description string
	HasDesc     bool
	MinStock    int
	HasMinStock bool
}

func parseStockRow(row rowsource.Row) (*stockPatch, error) {
	patch := &stockPatch{ProductName: row.Get("product_name")}

	if row.Has("quantity") {
		qty, err := strconv.Atoi(row.Get("quantity"))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", row.Get("quantity"))
		}
		patch.Quantity = qty
	}
	if row.Has("price") {
		price, err := decimal.NewFromString(row.Get("price"))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", row.Get("price"))
		}
		patch.Price = price
		patch.HasPrice = true
	}
	if row.Has("minimum_stock") {
		min, err := strconv.Atoi(row.Get("minimum_stock"))
		if err != nil {
			return nil, fmt.Errorf("invalid minimum_stock %q", row.Get("minimum_stock"))
		}
		patch.MinStock = min
		patch.HasMinStock = true
	}
	if row.Has("supplier") {
		patch.Supplier = row.Get("supplier")
		patch.HasSupplier = true
	}
	if row.Has("category") {
		patch.Category = row.Get("category")
		patch.HasCategory = true
	}
	if row.Has("sku") {
		patch.SKU = row.Get("sku")
		patch.HasSKU = true
	}
	if row.Has("description") {
		patch.Description = row.Get("description")
		patch.HasDesc = true
	}

	return patch, nil
}

func (p *stockPatch) toStock(ownerID uuid.UUID) *model.Stock {
	return &model.Stock{
		UserID:      ownerID,
		ProductName: p.ProductName,
		Quantity:    p.Quantity,
		Price:       p.Price,
		Supplier:    p.Supplier,
		Category:    p.Category,
		SKU:         p.SKU,
		Description: p.Description,
		MinStock:    p.MinStock,
	}
}

// MergeStock upserts each row by (owner, product name). Quantity merges
// additively so repeated delta files accumulate counts; metadata overwrites
// only when the row supplies a value, so re-imports stay idempotent there.
// Each row runs in its own transaction: one bad row never rolls back its
// siblings.
func (s *reconcileService) MergeStock(ownerID uuid.UUID, src rowsource.Source) (*Report, error) {
	report := &Report{}
	idx := 0

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row source: %w", err)
		}
		idx++
		report.RowsSeen++

		if !row.Has("product_name") {
			report.skip(idx, "missing product name")
			continue
		}

		patch, err := parseStockRow(row)
		if err != nil {
			report.skip(idx, err.Error())
			continue
		}

		if err := s.applyStockPatch(ownerID, patch); err != nil {
			report.skip(idx, err.Error())
			continue
		}
		report.RowsApplied++
	}

	return report, nil
}

func (s *reconcileService) applyStockPatch(ownerID uuid.UUID, patch *stockPatch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		stock, err := s.stockRepo.FindForUpdateByName(tx, ownerID, patch.ProductName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(patch.toStock(ownerID)).Error
		}
		if err != nil {
			return err
		}

		stock.Quantity += patch.Quantity
		if patch.HasPrice {
			stock.Price = patch.Price
		}
		if patch.HasSupplier {
			stock.Supplier = patch.Supplier
		}
		if patch.HasCategory {
			stock.Category = patch.Category
		}
		if patch.HasSKU {
			stock.SKU = patch.SKU
		}
		if patch.HasDesc {
			stock.Description = patch.Description
		}
		if patch.HasMinStock {
			stock.MinStock = patch.MinStock
		}

		return tx.Save(stock).Error
	})
}

// ReplaceStock makes the owner's stock table equal the source snapshot.
// Products present in the snapshot are overwritten in place, so they keep
// their identity and their linked sales history; products the snapshot no
// longer carries are pruned together with their sales, which would otherwise
// block the delete through the sales foreign key. Everything runs in one
// transaction and a malformed snapshot aborts before any write.
func (s *reconcileService) ReplaceStock(ownerID uuid.UUID, src rowsource.Source) (*Report, error) {
	report := &Report{}

	var patches []*stockPatch
	idx := 0
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Report{}, fmt.Errorf("read row source: %w", err)
		}
		idx++
		report.RowsSeen++

		if !row.Has("product_name") {
			report.skip(idx, "missing product name")
			continue
		}

		patch, err := parseStockRow(row)
		if err != nil {
			return &Report{}, fmt.Errorf("row %d: %w", idx, err)
		}
		patches = append(patches, patch)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(patches))
		for _, patch := range patches {
			names = append(names, patch.ProductName)
		}

		if err := s.pruneStocksNotIn(tx, ownerID, names); err != nil {
			return err
		}

		for _, patch := range patches {
			stock, err := s.stockRepo.FindForUpdateByName(tx, ownerID, patch.ProductName)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(patch.toStock(ownerID)).Error; err != nil {
					return err
				}
				report.RowsApplied++
				continue
			}
			if err != nil {
				return err
			}

			// A snapshot overwrites; absent columns reset to their zero value
			stock.Quantity = patch.Quantity
			stock.Price = patch.Price
			stock.Supplier = patch.Supplier
			stock.Category = patch.Category
			stock.SKU = patch.SKU
			stock.Description = patch.Description
			stock.MinStock = patch.MinStock
			if err := tx.Save(stock).Error; err != nil {
				return err
			}
			report.RowsApplied++
		}

		return nil
	})
	if err != nil {
		return &Report{}, err
	}

	return report, nil
}

// pruneStocksNotIn deletes the owner's products missing from the snapshot,
// sales first so the stock delete passes the foreign key.
func (s *reconcileService) pruneStocksNotIn(tx *gorm.DB, ownerID uuid.UUID, names []string) error {
	q := tx.Model(&model.Stock{}).Where("user_id = ?", ownerID)
	if len(names) > 0 {
		q = q.Where("product_name NOT IN ?", names)
	}

	var pruned []uuid.UUID
	if err := q.Pluck("id", &pruned).Error; err != nil {
		return err
	}
	if len(pruned) == 0 {
		return nil
	}

	if err := tx.Delete(&model.Sale{}, "stock_id IN ?", pruned).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Stock{}, "id IN ?", pruned).Error
}

// ApplySales records one sale per row against existing stock. Rows are
// isolated: unknown products, malformed values and insufficient stock are
// recorded as warnings and processing continues.
func (s *reconcileService) ApplySales(ownerID uuid.UUID, src rowsource.Source) (*Report, error) {
	report := &Report{}
	idx := 0

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row source: %w", err)
		}
		idx++
		report.RowsSeen++

		if !row.Has("product_name") {
			report.skip(idx, "missing product name")
			continue
		}

		// Sales cannot create stock
		stock, err := s.stockRepo.FindByName(ownerID, row.Get("product_name"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			report.skip(idx, fmt.Sprintf("stock item %q not found", row.Get("product_name")))
			continue
		}
		if err != nil {
			return report, err
		}

		qty, err := strconv.Atoi(row.Get("quantity_sold"))
		if err != nil || qty <= 0 {
			report.skip(idx, fmt.Sprintf("invalid quantity_sold %q", row.Get("quantity_sold")))
			continue
		}

		unitPrice := stock.Price
		if row.Has("unit_price") {
			unitPrice, err = decimal.NewFromString(row.Get("unit_price"))
			if err != nil {
				report.skip(idx, fmt.Sprintf("invalid unit_price %q", row.Get("unit_price")))
				continue
			}
		}

		// Bulk-imported current sales must respect availability; the check
		// repeats atomically inside RecordSale, this read just produces a
		// clearer warning.
		if stock.Quantity < qty {
			report.skip(idx, fmt.Sprintf("insufficient stock for %q: available %d, required %d", stock.ProductName, stock.Quantity, qty))
			continue
		}

		req := &SaleRequest{
			StockID:       stock.ID,
			QuantitySold:  qty,
			UnitPrice:     unitPrice,
			CustomerName:  row.Get("customer_name"),
			CustomerPhone: row.Get("customer_phone"),
			CustomerEmail: row.Get("customer_email"),
			Notes:         row.Get("notes"),
			SaleDate:      parseSaleDate(row.Get("sale_date")),
		}
		if _, err := s.ledger.RecordSale(ownerID, req, false); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				report.skip(idx, fmt.Sprintf("insufficient stock for %q", stock.ProductName))
				continue
			}
			report.skip(idx, err.Error())
			continue
		}
		report.RowsApplied++
	}

	return report, nil
}

// ReplaceSalesWindow re-syncs a trailing window of sales history from a
// source system: delete everything local at or after the cutoff, insert the
// source's rows for that window. One transaction, all or nothing. The rows
// are settled history, so live stock is never decremented here.
func (s *reconcileService) ReplaceSalesWindow(ownerID uuid.UUID, src rowsource.Source, window time.Duration) (*Report, error) {
	report := &Report{}
	cutoff := time.Now().Add(-window)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.saleRepo.DeleteSince(tx, ownerID, cutoff); err != nil {
			return err
		}

		idx := 0
		for {
			row, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read row source: %w", err)
			}
			idx++
			report.RowsSeen++

			if !row.Has("product_name") {
				report.skip(idx, "missing product name")
				continue
			}

			var stock model.Stock
			err = tx.First(&stock, "user_id = ? AND product_name = ?", ownerID, row.Get("product_name")).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.skip(idx, fmt.Sprintf("stock item %q not found", row.Get("product_name")))
				continue
			}
			if err != nil {
				return err
			}

			qty, err := strconv.Atoi(row.Get("quantity_sold"))
			if err != nil || qty <= 0 {
				return fmt.Errorf("row %d: invalid quantity_sold %q", idx, row.Get("quantity_sold"))
			}

			unitPrice := stock.Price
			if row.Has("unit_price") {
				unitPrice, err = decimal.NewFromString(row.Get("unit_price"))
				if err != nil {
					return fmt.Errorf("row %d: invalid unit_price %q", idx, row.Get("unit_price"))
				}
			}

			saleDate := parseSaleDate(row.Get("sale_date"))
			if saleDate.Before(cutoff) {
				// Outside the sync window; inserting it would duplicate
				// history that was never deleted.
				report.skip(idx, fmt.Sprintf("sale date %s predates sync window", saleDate.Format("2006-01-02 15:04:05")))
				continue
			}

			sale := &model.Sale{
				UserID:        ownerID,
				StockID:       stock.ID,
				QuantitySold:  qty,
				UnitPrice:     unitPrice,
				TotalAmount:   unitPrice.Mul(decimal.NewFromInt(int64(qty))),
				CustomerName:  row.Get("customer_name"),
				CustomerPhone: row.Get("customer_phone"),
				CustomerEmail: row.Get("customer_email"),
				Notes:         row.Get("notes"),
				SaleDate:      saleDate,
			}
			if err := tx.Create(sale).Error; err != nil {
				return fmt.Errorf("row %d: %w", idx, err)
			}
			report.RowsApplied++
		}

		return nil
	})
	if err != nil {
		return &Report{}, err
	}

	return report, nil
}

func parseSaleDate(value string) time.Time {
	for _, layout := range saleDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now()
}
