package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/ws"
	"go-stock-ledger/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockService covers the administrative stock paths: manual add, direct
// edit (the one quantity write allowed outside the ledger and the
// reconciliation engine), and queries.
type StockService interface {
	CreateStock(ownerID uuid.UUID, stock *model.Stock) error
	UpdateStock(ownerID, id uuid.UUID, req *model.Stock) (*model.Stock, error)
	DeleteStock(ownerID, id uuid.UUID) error
	GetStocks(ownerID uuid.UUID, query string) ([]model.Stock, error)
	GetStock(ownerID, id uuid.UUID) (*model.Stock, error)
	GetLowStocks(ownerID uuid.UUID) ([]model.Stock, error)
}

type stockService struct {
	stockRepo repository.StockRepository
	db        *gorm.DB
	wsHub     *ws.Hub
}

func NewStockService(sRepo repository.StockRepository, db *gorm.DB, hub *ws.Hub) StockService {
	return &stockService{
		stockRepo: sRepo,
		db:        db,
		wsHub:     hub,
	}
}

func (s *stockService) CreateStock(ownerID uuid.UUID, stock *model.Stock) error {
	stock.UserID = ownerID

	// 1. Validate struct
	if err := validator.FirstError(validator.ValidateStruct(stock)); err != nil {
		return err
	}

	// 2. The natural key (owner, product name) must stay unique
	existing, err := s.stockRepo.FindByName(ownerID, stock.ProductName)
	if err == nil && existing != nil {
		return fmt.Errorf("product %q already exists", stock.ProductName)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// 3. Persist
	if err := s.stockRepo.Create(stock); err != nil {
		return err
	}

	// 4. Broadcast
	s.broadcast("stock_created", stock)
	return nil
}

func (s *stockService) UpdateStock(ownerID, id uuid.UUID, req *model.Stock) (*model.Stock, error) {
	var updated *model.Stock

	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.stockRepo.FindForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStockNotFound
			}
			return err
		}
		if existing.UserID != ownerID {
			return ErrWrongOwner
		}

		existing.ProductName = req.ProductName
		existing.Quantity = req.Quantity
		existing.Price = req.Price
		existing.Supplier = req.Supplier
		existing.Category = req.Category
		existing.SKU = req.SKU
		existing.Description = req.Description
		existing.MinStock = req.MinStock

		if err := tx.Save(existing).Error; err != nil {
			return err
		}

		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("stock_updated", updated)
	return updated, nil
}

func (s *stockService) DeleteStock(ownerID, id uuid.UUID) error {
	if _, err := s.stockRepo.FindByID(ownerID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStockNotFound
		}
		return err
	}
	return s.stockRepo.Delete(ownerID, id)
}

func (s *stockService) GetStocks(ownerID uuid.UUID, query string) ([]model.Stock, error) {
	return s.stockRepo.FindByOwner(ownerID, query)
}

func (s *stockService) GetStock(ownerID, id uuid.UUID) (*model.Stock, error) {
	stock, err := s.stockRepo.FindByID(ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, err
	}
	return stock, nil
}

func (s *stockService) GetLowStocks(ownerID uuid.UUID) ([]model.Stock, error) {
	return s.stockRepo.FindLowStock(ownerID)
}

func (s *stockService) broadcast(action string, stock *model.Stock) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "stock_update",
			"action": action,
			"stock": map[string]interface{}{
				"id":           stock.ID,
				"product_name": stock.ProductName,
				"quantity":     stock.Quantity,
				"price":        stock.Price,
				"is_low":       stock.IsLow(),
			},
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}
