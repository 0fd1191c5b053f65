package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is an immutable record of one transaction against one Stock.
// TotalAmount is fixed at creation time and never recomputed, even if the
// product's price changes later.
type Sale struct {
	BaseModel
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id" validate:"uuid_required"`
	StockID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"stock_id" validate:"uuid_required"`
	Stock         Stock           `json:"stock" validate:"-"`
	QuantitySold  int             `gorm:"not null" json:"quantity_sold" validate:"required,gt=0"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"` // Snapshot quantity * unit price
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(20)" json:"customer_phone"`
	CustomerEmail string          `gorm:"type:varchar(255)" json:"customer_email" validate:"omitempty,email"`
	Notes         string          `gorm:"type:text" json:"notes"`
	SaleDate      time.Time       `gorm:"not null;index" json:"sale_date"`
}

func (Sale) TableName() string {
	return "sales"
}
