package service

import (
	"encoding/json"
	"errors"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/ws"
	"go-stock-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService is the only path allowed to change a stock quantity as a
// side effect of recording a sale. The decrement and the sale row commit or
// roll back together.
type LedgerService interface {
	RecordSale(ownerID uuid.UUID, req *SaleRequest, historical bool) (*model.Sale, error)
	GetSales(ownerID uuid.UUID, from, to *time.Time) ([]model.Sale, error)
	GetSale(ownerID, id uuid.UUID) (*model.Sale, error)
}

// SaleRequest carries one sale to record. Zero UnitPrice and TotalAmount
// mean "not supplied": the price falls back to the stock's current price and
// the total is computed from it, then never recomputed. A genuinely free
// sale therefore cannot be expressed as price zero; record it with notes
// instead.
type SaleRequest struct {
	StockID       uuid.UUID       `json:"stock_id" validate:"uuid_required"`
	QuantitySold  int             `json:"quantity_sold" validate:"required,gt=0"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email" validate:"omitempty,email"`
	Notes         string          `json:"notes"`
	SaleDate      time.Time       `json:"sale_date"`
}

type ledgerService struct {
	stockRepo repository.StockRepository
	saleRepo  repository.SaleRepository
	db        *gorm.DB
	log       *logrus.Logger
	wsHub     *ws.Hub
}

func NewLedgerService(sRepo repository.StockRepository, saleRepo repository.SaleRepository, db *gorm.DB, log *logrus.Logger, hub *ws.Hub) LedgerService {
	return &ledgerService{
		stockRepo: sRepo,
		saleRepo:  saleRepo,
		db:        db,
		log:       log,
		wsHub:     hub,
	}
}

func (s *ledgerService) RecordSale(ownerID uuid.UUID, req *SaleRequest, historical bool) (*model.Sale, error) {
	// 1. Validate input
	if err := validator.FirstError(validator.ValidateStruct(req)); err != nil {
		return nil, err
	}

	var sale *model.Sale

	// 2. Atomic operation: locked read, availability check, decrement, insert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		stock, err := s.stockRepo.FindForUpdate(tx, req.StockID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStockNotFound
			}
			return err
		}

		// Tenant isolation: resolving another account's stock is always fatal
		if stock.UserID != ownerID {
			return ErrWrongOwner
		}

		unitPrice := req.UnitPrice
		if unitPrice.IsZero() {
			unitPrice = stock.Price
		}

		if stock.Quantity < req.QuantitySold {
			if !historical {
				return ErrInsufficientStock
			}
			s.log.WithFields(logrus.Fields{
				"product":   stock.ProductName,
				"available": stock.Quantity,
				"requested": req.QuantitySold,
			}).Warn("historical sale drives stock negative")
		}

		if err := s.stockRepo.UpdateQuantity(tx, stock.ID, stock.Quantity-req.QuantitySold); err != nil {
			return err
		}

		total := req.TotalAmount
		if total.IsZero() {
			total = unitPrice.Mul(decimal.NewFromInt(int64(req.QuantitySold)))
		}

		saleDate := req.SaleDate
		if saleDate.IsZero() {
			saleDate = time.Now()
		}

		sale = &model.Sale{
			UserID:        ownerID,
			StockID:       stock.ID,
			QuantitySold:  req.QuantitySold,
			UnitPrice:     unitPrice,
			TotalAmount:   total,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			CustomerEmail: req.CustomerEmail,
			Notes:         req.Notes,
			SaleDate:      saleDate,
		}
		return tx.Create(sale).Error
	})
	if err != nil {
		return nil, err
	}

	// 3. Broadcast after commit; delivery failures never undo the sale
	s.broadcastSale(sale)

	return sale, nil
}

func (s *ledgerService) broadcastSale(sale *model.Sale) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "stock_update",
			"action": "sale_recorded",
			"sale": map[string]interface{}{
				"id":            sale.ID,
				"stock_id":      sale.StockID,
				"quantity_sold": sale.QuantitySold,
				"total_amount":  sale.TotalAmount,
			},
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}

func (s *ledgerService) GetSales(ownerID uuid.UUID, from, to *time.Time) ([]model.Sale, error) {
	return s.saleRepo.FindByOwner(ownerID, from, to)
}

func (s *ledgerService) GetSale(ownerID, id uuid.UUID) (*model.Sale, error) {
	sale, err := s.saleRepo.FindByID(ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}
