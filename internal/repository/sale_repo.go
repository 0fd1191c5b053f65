package repository

import (
	"time"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleRepository interface {
	FindByID(ownerID, id uuid.UUID) (*model.Sale, error)
	FindByOwner(ownerID uuid.UUID, from, to *time.Time) ([]model.Sale, error)
	SalesSummary(ownerID uuid.UUID, since time.Time) (*SalesSummary, error)
	TopProducts(ownerID uuid.UUID, since time.Time, limit int) ([]TopProduct, error)

	// DeleteSince removes the owner's sales dated at or after cutoff, inside
	// the caller's transaction. Used by the rolling-window sync.
	DeleteSince(tx *gorm.DB, ownerID uuid.UUID, cutoff time.Time) error
}

// SalesSummary aggregates revenue over a period.
type SalesSummary struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	SalesCount   int64           `json:"sales_count"`
}

// TopProduct is one row of the best-sellers aggregate.
type TopProduct struct {
	ProductName string `json:"product_name"`
	TotalSold   int    `json:"total_sold"`
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) FindByID(ownerID, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.Preload("Stock").First(&sale, "id = ? AND user_id = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) FindByOwner(ownerID uuid.UUID, from, to *time.Time) ([]model.Sale, error) {
	var sales []model.Sale
	tx := r.db.Preload("Stock").Where("user_id = ?", ownerID)
	if from != nil {
		tx = tx.Where("sale_date >= ?", from)
	}
	if to != nil {
		tx = tx.Where("sale_date <= ?", to)
	}
	err := tx.Order("sale_date DESC").Find(&sales).Error
	return sales, err
}

func (r *saleRepo) SalesSummary(ownerID uuid.UUID, since time.Time) (*SalesSummary, error) {
	var summary SalesSummary

	var total decimal.NullDecimal
	err := r.db.Model(&model.Sale{}).
		Where("user_id = ? AND sale_date >= ?", ownerID, since).
		Select("SUM(total_amount)").
		Scan(&total).Error
	if err != nil {
		return nil, err
	}
	if total.Valid {
		summary.TotalRevenue = total.Decimal
	}

	err = r.db.Model(&model.Sale{}).
		Where("user_id = ? AND sale_date >= ?", ownerID, since).
		Count(&summary.SalesCount).Error
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

func (r *saleRepo) TopProducts(ownerID uuid.UUID, since time.Time, limit int) ([]TopProduct, error) {
	var results []TopProduct
	err := r.db.Model(&model.Sale{}).
		Select("stocks.product_name AS product_name, SUM(sales.quantity_sold) AS total_sold").
		Joins("JOIN stocks ON stocks.id = sales.stock_id").
		Where("sales.user_id = ? AND sales.sale_date >= ?", ownerID, since).
		Group("stocks.product_name").
		Order("total_sold DESC").
		Limit(limit).
		Scan(&results).Error
	return results, err
}

func (r *saleRepo) DeleteSince(tx *gorm.DB, ownerID uuid.UUID, cutoff time.Time) error {
	return tx.Delete(&model.Sale{}, "user_id = ? AND sale_date >= ?", ownerID, cutoff).Error
}
