package service

import (
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
)

// DashboardStats is the overview block shown on login: product counts and a
// trailing 30-day sales picture.
type DashboardStats struct {
	TotalProducts int64                    `json:"total_products"`
	LowStockCount int64                    `json:"low_stock_count"`
	SalesSummary  *repository.SalesSummary `json:"sales_summary"`
	TopProducts   []repository.TopProduct  `json:"top_products"`
	LowStock      []model.Stock            `json:"low_stock_products"`
}

type DashboardService interface {
	GetStats(ownerID uuid.UUID) (*DashboardStats, error)
}

type dashboardService struct {
	stockRepo repository.StockRepository
	saleRepo  repository.SaleRepository
}

func NewDashboardService(stockRepo repository.StockRepository, saleRepo repository.SaleRepository) DashboardService {
	return &dashboardService{
		stockRepo: stockRepo,
		saleRepo:  saleRepo,
	}
}

func (s *dashboardService) GetStats(ownerID uuid.UUID) (*DashboardStats, error) {
	stats := &DashboardStats{}
	since := time.Now().AddDate(0, 0, -30)

	var err error
	if stats.TotalProducts, err = s.stockRepo.CountByOwner(ownerID); err != nil {
		return nil, err
	}
	if stats.LowStockCount, err = s.stockRepo.CountLowStock(ownerID); err != nil {
		return nil, err
	}
	if stats.SalesSummary, err = s.saleRepo.SalesSummary(ownerID, since); err != nil {
		return nil, err
	}
	if stats.TopProducts, err = s.saleRepo.TopProducts(ownerID, since, 5); err != nil {
		return nil, err
	}

	lowStock, err := s.stockRepo.FindLowStock(ownerID)
	if err != nil {
		return nil, err
	}
	if len(lowStock) > 10 {
		lowStock = lowStock[:10]
	}
	stats.LowStock = lowStock

	return stats, nil
}
