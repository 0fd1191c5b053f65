package repository

import (
	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	Create(stock *model.Stock) error
	FindByID(ownerID, id uuid.UUID) (*model.Stock, error)
	FindByName(ownerID uuid.UUID, productName string) (*model.Stock, error)
	FindByOwner(ownerID uuid.UUID, query string) ([]model.Stock, error)
	FindLowStock(ownerID uuid.UUID) ([]model.Stock, error)
	Update(stock *model.Stock) error
	Delete(ownerID, id uuid.UUID) error
	CountByOwner(ownerID uuid.UUID) (int64, error)
	CountLowStock(ownerID uuid.UUID) (int64, error)

	// Transaction-scoped operations. Every read-modify-write of a quantity
	// goes through a locked read inside the caller's transaction.
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Stock, error)
	FindForUpdateByName(tx *gorm.DB, ownerID uuid.UUID, productName string) (*model.Stock, error)
	UpdateQuantity(tx *gorm.DB, id uuid.UUID, newQuantity int) error
}

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepo(db *gorm.DB) StockRepository {
	return &stockRepo{db}
}

func (r *stockRepo) Create(stock *model.Stock) error {
	return r.db.Create(stock).Error
}

func (r *stockRepo) FindByID(ownerID, id uuid.UUID) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.First(&stock, "id = ? AND user_id = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepo) FindByName(ownerID uuid.UUID, productName string) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.First(&stock, "user_id = ? AND product_name = ?", ownerID, productName).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepo) FindByOwner(ownerID uuid.UUID, query string) ([]model.Stock, error) {
	var stocks []model.Stock
	tx := r.db.Where("user_id = ?", ownerID)
	if query != "" {
		like := "%" + query + "%"
		tx = tx.Where(
			"product_name ILIKE ? OR sku ILIKE ? OR supplier ILIKE ? OR category ILIKE ?",
			like, like, like, like,
		)
	}
	err := tx.Order("created_at DESC").Find(&stocks).Error
	return stocks, err
}

func (r *stockRepo) FindLowStock(ownerID uuid.UUID) ([]model.Stock, error) {
	var stocks []model.Stock
	err := r.db.
		Where("user_id = ? AND quantity <= min_stock", ownerID).
		Order("quantity ASC").
		Find(&stocks).Error
	return stocks, err
}

func (r *stockRepo) Update(stock *model.Stock) error {
	return r.db.Save(stock).Error
}

func (r *stockRepo) Delete(ownerID, id uuid.UUID) error {
	return r.db.Delete(&model.Stock{}, "id = ? AND user_id = ?", id, ownerID).Error
}

func (r *stockRepo) CountByOwner(ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.Stock{}).Where("user_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (r *stockRepo) CountLowStock(ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.Stock{}).
		Where("user_id = ? AND quantity <= min_stock", ownerID).
		Count(&count).Error
	return count, err
}

// withRowLock adds FOR UPDATE on databases that support it. SQLite has a
// single writer and no row locks, so the clause is skipped there.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *stockRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Stock, error) {
	var stock model.Stock
	err := withRowLock(tx).First(&stock, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepo) FindForUpdateByName(tx *gorm.DB, ownerID uuid.UUID, productName string) (*model.Stock, error) {
	var stock model.Stock
	err := withRowLock(tx).First(&stock, "user_id = ? AND product_name = ?", ownerID, productName).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// UpdateQuantity runs inside the caller's transaction so the decrement and
// whatever record triggered it commit or roll back together.
func (r *stockRepo) UpdateQuantity(tx *gorm.DB, id uuid.UUID, newQuantity int) error {
	return tx.Model(&model.Stock{}).
		Where("id = ?", id).
		Update("quantity", newQuantity).Error
}
