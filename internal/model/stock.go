package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock is one product owned by exactly one account. (UserID, ProductName)
// is the natural key every reconciliation path upserts against.
type Stock struct {
	BaseModel
	UserID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stocks_owner_product" json:"user_id" validate:"uuid_required"`
	User        *User           `gorm:"foreignKey:UserID" json:"user,omitempty" validate:"-"`
	ProductName string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_stocks_owner_product" json:"product_name" validate:"required"`
	Quantity    int             `gorm:"default:0" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"price"`
	Supplier    string          `gorm:"type:varchar(255)" json:"supplier"`
	Category    string          `gorm:"type:varchar(100)" json:"category"`
	SKU         string          `gorm:"type:varchar(100);column:sku" json:"sku"`
	Description string          `gorm:"type:text" json:"description"`
	MinStock    int             `gorm:"default:0" json:"minimum_stock"`

	Sales []Sale `gorm:"foreignKey:StockID" json:"sales,omitempty"`
}

func (Stock) TableName() string {
	return "stocks"
}

// IsLow reports whether the on-hand quantity has reached the reorder threshold.
func (s *Stock) IsLow() bool {
	return s.Quantity <= s.MinStock
}
